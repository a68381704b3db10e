package view

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewAssignsUniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New(TypeText).ID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}

func TestGetAndInt(t *testing.T) {
	v := NewText(TextConfig{Text: "t", MaxLines: 3})

	if got, ok := v.Get("text"); !ok || got != "t" {
		t.Errorf("Get(text) = %v, %v", got, ok)
	}
	if _, ok := v.Get("textSize"); ok {
		t.Error("Get of an unset declared property should report false")
	}
	if v.Int("maxLines") != 3 {
		t.Errorf("Int(maxLines) = %d", v.Int("maxLines"))
	}
	v.Set("maxLines", 4.0)
	if v.Int("maxLines") != 4 {
		t.Errorf("Int(maxLines) after float write = %d", v.Int("maxLines"))
	}
}

func TestIntRoundsFractions(t *testing.T) {
	tests := []struct {
		value any
		want  int
	}{
		{14.9, 15},
		{14.4, 14},
		{-2.5, -3},
		{float32(7.6), 8},
		{json.Number("14.9"), 15},
		{json.Number("12"), 12},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{"14", 0},
	}
	for _, tt := range tests {
		v := NewText(TextConfig{})
		v.Set("maxLines", tt.value)
		if got := v.Int("maxLines"); got != tt.want {
			t.Errorf("Int(%v) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestCallbackProperty(t *testing.T) {
	clicks := 0
	v := NewText(TextConfig{Config: Config{OnClick: func([]json.RawMessage) (any, error) {
		clicks++
		return "ok", nil
	}}})

	m := ToModel(v)
	id, ok := v.CallbackID("onClick")
	if !ok {
		t.Fatal("onClick should be bound")
	}
	if m.Props["onClick"] != id {
		t.Errorf("wire value = %v, want callback id %s", m.Props["onClick"], id)
	}

	res, err := v.InvokeCallback(id, nil)
	if err != nil || res != "ok" || clicks != 1 {
		t.Errorf("InvokeCallback = %v, %v (clicks=%d)", res, err, clicks)
	}

	// Replacing the function keeps the id stable.
	v.Set("onClick", func() { clicks += 10 })
	if id2, _ := v.CallbackID("onClick"); id2 != id {
		t.Errorf("callback id changed from %s to %s", id, id2)
	}
	if _, err := v.InvokeCallback(id, nil); err != nil || clicks != 11 {
		t.Errorf("replacement callback not invoked: clicks=%d err=%v", clicks, err)
	}

	v.Set("onClick", nil)
	if _, err := v.InvokeCallback(id, nil); !errors.Is(err, ErrCallbackNotFound) {
		t.Errorf("cleared callback error = %v, want ErrCallbackNotFound", err)
	}

	v.Set("onClick", 42)
	if got, _ := v.Get("onClick"); got != nil {
		t.Errorf("non-callback write should be dropped, got %v", got)
	}
}

func TestContainerOwnership(t *testing.T) {
	child := NewText(TextConfig{Text: "c"})
	a := NewStack(Config{})
	b := NewStack(Config{})

	a.Add(child)
	if child.Parent() != Node(a) {
		t.Fatal("child parent should be a")
	}

	b.Add(child)
	if a.Len() != 0 {
		t.Errorf("a still owns %d children after re-parenting", a.Len())
	}
	if child.Parent() != Node(b) {
		t.Error("child parent should be b")
	}
	if diff := cmp.Diff([]string{}, a.View.props["children"]); diff != "" {
		t.Errorf("a children prop mismatch (-want +got):\n%s", diff)
	}

	if !b.Remove(child) || child.Parent() != nil {
		t.Error("Remove should detach")
	}
	if b.Remove(child) {
		t.Error("second Remove should report false")
	}
}

func TestContainerInsertAndMove(t *testing.T) {
	x := NewText(TextConfig{Text: "x"})
	y := NewText(TextConfig{Text: "y"})
	z := NewText(TextConfig{Text: "z"})
	s := NewStack(Config{}, x, y)

	s.Insert(-5, z)
	s.Add(x) // moves x to the end

	var ids []string
	for _, c := range s.Children() {
		ids = append(ids, c.Base().ID())
	}
	if diff := cmp.Diff([]string{z.ID(), y.ID(), x.ID()}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	s.RemoveAll()
	if s.Len() != 0 || x.Parent() != nil {
		t.Error("RemoveAll should detach everything")
	}
}

func TestPathFindRoot(t *testing.T) {
	leaf := NewText(TextConfig{})
	mid := NewVLayout(LinearConfig{Space: 4}, leaf)
	root := NewRoot()
	root.Add(mid)

	if diff := cmp.Diff([]string{root.ID(), mid.ID(), leaf.ID()}, leaf.Path()); diff != "" {
		t.Errorf("Path mismatch (-want +got):\n%s", diff)
	}
	if Root(leaf) != Node(root) {
		t.Error("Root(leaf) should be root")
	}
	found, ok := Find(root, leaf.ID())
	if !ok || found.Base() != leaf {
		t.Error("Find should locate leaf")
	}
	if _, ok := Find(root, "missing"); ok {
		t.Error("Find should miss unknown ids")
	}

	Detach(mid)
	if root.Len() != 0 || mid.Parent() != nil {
		t.Error("Detach should remove mid from root")
	}
}

func TestConfigApply(t *testing.T) {
	alpha := 0.5
	layout := FitLayout()
	v := NewImage(ImageConfig{
		Config:   Config{Width: 20, Alpha: &alpha, Layout: &layout, Identifier: "hero"},
		ImageURL: "https://example.com/a.png",
	})

	got := ToModel(v).Props
	want := map[string]any{
		"width":        20.0,
		"alpha":        0.5,
		"layoutConfig": layout,
		"identifier":   "hero",
		"imageUrl":     "https://example.com/a.png",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("props mismatch (-want +got):\n%s", diff)
	}
}

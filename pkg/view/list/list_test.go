package list

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/view"
	"github.com/vango-dev/vnative/pkg/vtest"
)

func textItems(renders *int) RenderFunc {
	return func(i int) view.Node {
		if renders != nil {
			*renders++
		}
		return NewItem(ItemConfig{}, view.NewText(view.TextConfig{Text: fmt.Sprintf("item %d", i)}))
	}
}

func itemText(t *testing.T, m view.Model) string {
	t.Helper()
	if len(m.Children) != 1 {
		t.Fatalf("item model has %d children", len(m.Children))
	}
	s, _ := m.Children[0].Props["text"].(string)
	return s
}

func TestRenderBunchedItemsClipping(t *testing.T) {
	tests := []struct {
		name          string
		itemCount     int
		start, length int
		want          int
	}{
		{"full window", 50, 0, 15, 15},
		{"tail window", 50, 45, 15, 5},
		{"past end", 50, 50, 15, 0},
		{"far past end", 50, 80, 15, 0},
		{"zero length", 50, 3, 0, 0},
		{"negative length", 50, 3, -4, 0},
		{"negative start", 50, -2, 15, 0},
		{"empty list", 0, 0, 15, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renders := 0
			l := New(Config{ItemCount: tt.itemCount, RenderItem: textItems(&renders)})

			got := l.RenderBunchedItems(tt.start, tt.length)
			if got == nil {
				t.Fatal("RenderBunchedItems returned nil, want empty slice")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
			if renders != tt.want {
				t.Errorf("rendered %d items, want %d", renders, tt.want)
			}
			for i, m := range got {
				if want := fmt.Sprintf("item %d", tt.start+i); itemText(t, m) != want {
					t.Errorf("model %d text = %q, want %q", i, itemText(t, m), want)
				}
			}
		})
	}
}

func TestGetItemIsIdempotent(t *testing.T) {
	renders := 0
	l := New(Config{ItemCount: 10, RenderItem: textItems(&renders)})

	a := l.GetItem(3)
	b := l.GetItem(3)
	if a != b || renders != 1 {
		t.Errorf("GetItem(3) twice: same=%v renders=%d", a == b, renders)
	}
	if a.Base().Parent() != view.Node(l) {
		t.Error("item parent should be the list")
	}
	if !l.Cached(3) || l.Cached(4) {
		t.Error("Cached() mismatch")
	}
}

func TestGetItemMovesReusedNode(t *testing.T) {
	var logs bytes.Buffer
	view.Default.SetLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { view.Default.SetLogger(nil) })

	shared := NewItem(ItemConfig{})
	l := New(Config{ItemCount: 3, RenderItem: func(int) view.Node { return shared }})

	l.GetItem(0)
	if got := l.GetItem(1); got != view.Node(shared) {
		t.Fatal("GetItem(1) did not return the rendered node")
	}
	if l.Cached(0) || !l.Cached(1) {
		t.Errorf("Cached(0) = %v, Cached(1) = %v; want the node moved to 1", l.Cached(0), l.Cached(1))
	}
	if n := len(l.Children()); n != 1 {
		t.Errorf("len(Children()) = %d, want 1", n)
	}
	if !strings.Contains(logs.String(), "cached at another index") {
		t.Errorf("no debug log for the moved item:\n%s", logs.String())
	}
}

func TestRealizedItemSerializesOnceFully(t *testing.T) {
	l := New(Config{ItemCount: 5, RenderItem: textItems(nil)})

	first := l.RenderBunchedItems(0, 1)[0]
	if first.Props["layoutConfig"] == nil || itemText(t, first) != "item 0" {
		t.Errorf("first model should be a full snapshot: %+v", first)
	}

	again := l.RenderBunchedItems(0, 1)[0]
	if !again.Empty() {
		t.Errorf("second model should carry no props, got %+v", again)
	}
	if again.ID != first.ID {
		t.Error("cached item must keep its id")
	}
}

func TestFiftyItemsBatchFifteen(t *testing.T) {
	renders := 0
	l := New(Config{ItemCount: 50, RenderItem: textItems(&renders)})
	if l.BatchCount() != DefaultBatchCount {
		t.Fatalf("BatchCount() = %d, want %d", l.BatchCount(), DefaultBatchCount)
	}

	var sizes []int
	seen := map[string]bool{}
	for start := 0; ; start += l.BatchCount() {
		window := l.RenderBunchedItems(start, l.BatchCount())
		sizes = append(sizes, len(window))
		if len(window) == 0 {
			break
		}
		for _, m := range window {
			if seen[m.ID] {
				t.Fatalf("item %s delivered twice", m.ID)
			}
			seen[m.ID] = true
		}
	}

	if diff := cmp.Diff([]int{15, 15, 15, 5, 0}, sizes); diff != "" {
		t.Errorf("window sizes mismatch (-want +got):\n%s", diff)
	}
	if renders != 50 || len(l.Children()) != 50 {
		t.Errorf("renders = %d, children = %d, want 50", renders, len(l.Children()))
	}

	l.Reset()
	if l.ItemCount() != 0 || len(l.Children()) != 0 {
		t.Errorf("after Reset: itemCount=%d children=%d", l.ItemCount(), len(l.Children()))
	}
	if !l.IsDirty("itemCount") {
		t.Error("Reset should mark itemCount dirty")
	}
	if got := l.RenderBunchedItems(0, 15); len(got) != 0 {
		t.Errorf("window after Reset = %d items", len(got))
	}

	l.SetItemCount(20)
	l.RenderBunchedItems(0, 15)
	if renders != 65 {
		t.Errorf("renders after reset and refill = %d, want 65", renders)
	}
}

func TestResetDetachesItems(t *testing.T) {
	l := New(Config{ItemCount: 3, RenderItem: textItems(nil)})
	item := l.GetItem(1)
	l.Reset()
	if item.Base().Parent() != nil {
		t.Error("Reset should clear item parents")
	}
}

func TestChildrenOrderAndSentinel(t *testing.T) {
	sentinel := view.NewText(view.TextConfig{Text: "loading"})
	l := New(Config{ItemCount: 10, RenderItem: textItems(nil), LoadMoreView: sentinel, LoadMore: true})

	c := l.GetItem(7)
	a := l.GetItem(2)
	b := l.GetItem(5)

	var ids []string
	for _, n := range l.Children() {
		ids = append(ids, n.Base().ID())
	}
	want := []string{a.Base().ID(), b.Base().ID(), c.Base().ID(), sentinel.ID()}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
	if sentinel.Parent() != view.Node(l) {
		t.Error("sentinel parent should be the list")
	}
}

func TestLoadMoreViewInjectedEveryModel(t *testing.T) {
	sentinel := view.NewText(view.TextConfig{Text: "loading"})
	l := New(Config{ItemCount: 1, LoadMoreView: sentinel})

	first := view.ToModel(l)
	second := view.ToModel(l)
	for i, m := range []view.Model{first, second} {
		if m.Props["loadMoreView"] != sentinel.ID() {
			t.Errorf("model %d loadMoreView = %v, want %s", i, m.Props["loadMoreView"], sentinel.ID())
		}
	}
	if len(second.Props) != 1 {
		t.Errorf("second model props = %v, want only loadMoreView", second.Props)
	}

	view.Detach(sentinel)
	if l.LoadMoreView() != nil {
		t.Error("detaching the sentinel should clear it")
	}
	if _, ok := view.ToModel(l).Props["loadMoreView"]; !ok {
		t.Error("clearing the sentinel should be sent as a property write")
	}
}

func TestListModel(t *testing.T) {
	loaded := false
	l := New(Config{
		ItemCount:  4,
		BatchCount: 2,
		RenderItem: textItems(nil),
		OnLoadMore: func([]json.RawMessage) (any, error) { loaded = true; return nil, nil },
	})

	m := view.ToModel(l)
	if m.Type != "List" {
		t.Errorf("Type = %q", m.Type)
	}
	cbID, ok := l.CallbackID("onLoadMore")
	if !ok {
		t.Fatal("onLoadMore should be bound")
	}
	want := map[string]any{"itemCount": 4, "batchCount": 2, "onLoadMore": cbID}
	if diff := cmp.Diff(want, m.Props); diff != "" {
		t.Errorf("props mismatch (-want +got):\n%s", diff)
	}
	if len(m.Children) != 0 {
		t.Errorf("unrealized list should have no children, got %d", len(m.Children))
	}

	if _, err := l.InvokeCallback(cbID, nil); err != nil || !loaded {
		t.Errorf("onLoadMore not invoked: %v", err)
	}
}

func TestHorizontal(t *testing.T) {
	l := NewHorizontal(Config{ItemCount: 2, RenderItem: func(i int) view.Node {
		return NewHorizontalItem(ItemConfig{Config: view.Config{Identifier: "card"}})
	}})
	m := view.ToModel(l)
	if m.Type != "HorizontalList" {
		t.Errorf("Type = %q", m.Type)
	}
	items := l.RenderBunchedItems(0, 5)
	if len(items) != 2 || items[0].Type != "HorizontalListItem" || items[0].Props["identifier"] != "card" {
		t.Errorf("items = %+v", items)
	}
	if items[0].Props["layoutConfig"] != view.FitLayout() {
		t.Errorf("horizontal item layout = %v", items[0].Props["layoutConfig"])
	}
}

func TestNilRenderItem(t *testing.T) {
	l := New(Config{ItemCount: 1, RenderItem: func(int) view.Node { return nil }})
	if got := l.RenderBunchedItems(0, 1); len(got) != 1 || got[0].Type != "ListItem" {
		t.Errorf("nil render should yield an empty item, got %+v", got)
	}
}

func TestRegisteredTypes(t *testing.T) {
	for _, name := range []string{"List", "ListItem", "HorizontalList", "HorizontalListItem"} {
		if _, ok := view.Default.Lookup(name); !ok {
			t.Errorf("%s not registered", name)
		}
	}
	if !TypeListItem.Is(view.TypeStack) {
		t.Error("ListItem should extend Stack")
	}
}

func TestCommands(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	native := vtest.NewNative()
	native.On("shader", "command", func(args []json.RawMessage) (any, error) {
		var cmd view.Command
		if err := json.Unmarshal(args[0], &cmd); err != nil {
			return nil, err
		}
		if cmd.Name == "findVisibleItems" {
			return []int{3, 4, 5}, nil
		}
		return nil, nil
	})
	bc := native.Context(t)

	root := view.NewRoot()
	l := New(Config{ItemCount: 10})
	root.Add(l)

	calls := []*bridge.Call{
		l.ScrollToItem(ctx, bc, 4, ScrollOptions{Animated: true}),
		l.FindVisibleItems(ctx, bc),
		l.FindCompletelyVisibleItems(ctx, bc),
		l.Reload(ctx, bc),
	}
	for _, c := range calls {
		if _, err := c.Await(ctx); err != nil {
			t.Fatalf("%s: %v", c, err)
		}
	}

	visible, err := bridge.Decode[[]int](ctx, calls[1])
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{3, 4, 5}, visible); diff != "" {
		t.Errorf("visible mismatch (-want +got):\n%s", diff)
	}

	var got []view.Command
	for _, r := range native.Requests() {
		var args []view.Command
		if err := json.Unmarshal(r.Args, &args); err != nil {
			t.Fatal(err)
		}
		got = append(got, args[0])
	}
	path := []string{root.ID(), l.ID()}
	want := []view.Command{
		{ViewIDs: path, Name: "scrollToItem", Args: map[string]any{"index": 4.0, "animated": true}},
		{ViewIDs: path, Name: "findVisibleItems"},
		{ViewIDs: path, Name: "findCompletelyVisibleItems"},
		{ViewIDs: path, Name: "reload"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

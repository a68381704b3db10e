package demo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vnative/pkg/panel"
	"github.com/vango-dev/vnative/pkg/view"
	"github.com/vango-dev/vnative/pkg/vtest"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func initScreen(t *testing.T, cfg Config) (*vtest.Native, *Screen) {
	t.Helper()
	native := vtest.NewNative()
	bc := native.Context(t)
	_, s := New(cfg).Attach(bc)
	if _, err := native.Invoke(testCtx(t), panel.MethodInit, panel.Env{Width: 390, Height: 844, Platform: "Android"}); err != nil {
		t.Fatalf("__init__ failed: %v", err)
	}
	return native, s
}

func window(t *testing.T, native *vtest.Native, id string, start, length int) []view.Model {
	t.Helper()
	raw, err := native.Invoke(testCtx(t), panel.MethodRenderBunchedItems, id, start, length)
	if err != nil {
		t.Fatalf("__renderBunchedItems__(%d, %d) failed: %v", start, length, err)
	}
	var models []view.Model
	if err := json.Unmarshal(raw, &models); err != nil {
		t.Fatal(err)
	}
	return models
}

func TestDemo_Windows(t *testing.T) {
	native, s := initScreen(t, Config{})
	l := s.List()

	if l.ItemCount() != 50 || l.BatchCount() != 15 {
		t.Fatalf("list = %d items, batch %d; want 50, 15", l.ItemCount(), l.BatchCount())
	}

	var sizes []int
	for start := 0; start < 60; start += 15 {
		w := window(t, native, l.ID(), start, 15)
		sizes = append(sizes, len(w))
	}
	if diff := cmp.Diff([]int{15, 15, 15, 5}, sizes); diff != "" {
		t.Fatalf("window sizes (-want +got):\n%s", diff)
	}

	w := window(t, native, l.ID(), 45, 15)
	if got := w[4].Children[0].Props["text"]; got != "Item 49" {
		t.Fatalf("last row text = %v, want Item 49", got)
	}
	if got := w[0].Props["identifier"]; got != "row" {
		t.Fatalf("row identifier = %v", got)
	}
}

func TestDemo_LoadMoreUntilMax(t *testing.T) {
	native, s := initScreen(t, Config{ItemCount: 50, PageSize: 10, MaxItems: 65})
	l := s.List()
	ctx := testCtx(t)

	cbID, ok := l.CallbackID("onLoadMore")
	if !ok {
		t.Fatal("onLoadMore callback not bound")
	}
	for range 2 {
		if _, err := native.Invoke(ctx, panel.MethodResponse, l.ID(), cbID); err != nil {
			t.Fatalf("__response__ failed: %v", err)
		}
	}

	if l.ItemCount() != 65 {
		t.Fatalf("item count = %d, want 65", l.ItemCount())
	}
	if v, _ := l.Get("loadMore"); v != false {
		t.Fatalf("loadMore = %v, want false at the cap", v)
	}
	if v, _ := s.title.Get("text"); v != "65 items" {
		t.Fatalf("title = %v", v)
	}
	if got := len(window(t, native, l.ID(), 60, 15)); got != 5 {
		t.Fatalf("window past the old end has %d rows, want 5", got)
	}
}

func TestDemo_ClickToasts(t *testing.T) {
	native, s := initScreen(t, Config{})
	l := s.List()
	ctx := testCtx(t)

	w := window(t, native, l.ID(), 0, 15)
	row := l.GetItem(3).Base()
	cbID, ok := row.CallbackID("onClick")
	if !ok || w[3].ID != row.ID() {
		t.Fatalf("row 3 has no click callback (model id %s, row id %s)", w[3].ID, row.ID())
	}
	if _, err := native.Invoke(ctx, panel.MethodResponse, row.ID(), cbID); err != nil {
		t.Fatalf("__response__ failed: %v", err)
	}

	reqs := native.WaitRequests(t, 2)
	var toast *struct{ Msg string }
	for _, r := range reqs {
		if r.String() == "modal.toast" {
			var args []struct{ Msg string }
			if err := json.Unmarshal(r.Args, &args); err != nil {
				t.Fatal(err)
			}
			toast = &args[0]
		}
	}
	if toast == nil || toast.Msg != "Item 3" {
		t.Fatalf("requests %v, want a toast for Item 3", native.Methods())
	}
}

// Package list implements virtualized lists: the list declares how many items
// it has, native asks for windows of them as they scroll into view, and only
// the requested items are ever rendered.
package list

import (
	"context"
	"slices"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/view"
)

// DefaultBatchCount is the window size native requests by default.
const DefaultBatchCount = 15

var listProps = []view.Property{
	view.Prop("itemCount", view.KindNumber),
	view.Prop("batchCount", view.KindNumber),
	view.Prop("loadMore", view.KindBool),
	view.Prop("loadMoreView", view.KindView),
	view.Prop("onLoadMore", view.KindCallback),
	view.Prop("onScroll", view.KindCallback),
	view.Prop("onScrollEnd", view.KindCallback),
	view.Prop("scrolledPosition", view.KindNumber),
	view.Prop("scrollable", view.KindBool),
	view.Prop("bounces", view.KindBool),
	view.Prop("canDrag", view.KindBool),
	view.Prop("itemCanDrag", view.KindCallback),
	view.Prop("beforeDragging", view.KindCallback),
	view.Prop("onDragging", view.KindCallback),
	view.Prop("onDragged", view.KindCallback),
}

// List view types.
var (
	TypeList               = view.TypeView.MustExtend("List", listProps...)
	TypeHorizontalList     = view.TypeView.MustExtend("HorizontalList", listProps...)
	TypeListItem           = view.TypeStack.MustExtend("ListItem")
	TypeHorizontalListItem = view.TypeStack.MustExtend("HorizontalListItem")
)

// RenderFunc builds the item at index. It is called at most once per index
// between resets and should return a fresh node: a node already cached at
// another index is moved to index, leaving the old index unrealized.
type RenderFunc func(index int) view.Node

// Config configures a List.
type Config struct {
	view.Config

	ItemCount    int
	RenderItem   RenderFunc
	BatchCount   int // 0 means DefaultBatchCount
	LoadMore     bool
	LoadMoreView view.Node
	OnLoadMore   view.Callback

	OnScroll         view.Callback
	OnScrollEnd      view.Callback
	ScrolledPosition int
	Scrollable       *bool
	Bounces          *bool

	CanDrag        bool
	ItemCanDrag    view.Callback
	BeforeDragging view.Callback
	OnDragging     view.Callback
	OnDragged      view.Callback
}

// List is a virtualized list. Items are realized on demand by RenderItem and
// cached by index until Reset.
type List struct {
	*view.View

	renderItem RenderFunc
	cached     map[int]view.Node
	sentinel   view.Node
}

// New creates a vertical list.
func New(cfg Config) *List {
	return newList(TypeList, cfg)
}

// NewHorizontal creates a horizontal list.
func NewHorizontal(cfg Config) *List {
	return newList(TypeHorizontalList, cfg)
}

func newList(t *view.Type, cfg Config) *List {
	l := &List{
		View:       view.New(t),
		renderItem: cfg.RenderItem,
		cached:     make(map[int]view.Node),
	}
	l.Embed(l)

	cfg.Config.Apply(l.View)
	l.SetItemCount(cfg.ItemCount)
	batch := cfg.BatchCount
	if batch <= 0 {
		batch = DefaultBatchCount
	}
	l.Set("batchCount", batch)
	if cfg.LoadMore {
		l.Set("loadMore", true)
	}
	if cfg.LoadMoreView != nil {
		l.SetLoadMoreView(cfg.LoadMoreView)
	}
	if cfg.ScrolledPosition != 0 {
		l.Set("scrolledPosition", cfg.ScrolledPosition)
	}
	if cfg.Scrollable != nil {
		l.Set("scrollable", *cfg.Scrollable)
	}
	if cfg.Bounces != nil {
		l.Set("bounces", *cfg.Bounces)
	}
	if cfg.CanDrag {
		l.Set("canDrag", true)
	}

	callbacks := []struct {
		name string
		cb   view.Callback
	}{
		{"onLoadMore", cfg.OnLoadMore},
		{"onScroll", cfg.OnScroll},
		{"onScrollEnd", cfg.OnScrollEnd},
		{"itemCanDrag", cfg.ItemCanDrag},
		{"beforeDragging", cfg.BeforeDragging},
		{"onDragging", cfg.OnDragging},
		{"onDragged", cfg.OnDragged},
	}
	for _, c := range callbacks {
		if c.cb != nil {
			l.Set(c.name, c.cb)
		}
	}
	return l
}

// SetRenderItem replaces the item factory. Already cached items are kept;
// call Reset to rebuild them.
func (l *List) SetRenderItem(fn RenderFunc) {
	l.renderItem = fn
}

// ItemCount returns the declared number of items.
func (l *List) ItemCount() int {
	return l.Int("itemCount")
}

// SetItemCount declares the number of items.
func (l *List) SetItemCount(n int) {
	l.Set("itemCount", n)
}

// BatchCount returns the window size native requests.
func (l *List) BatchCount() int {
	return l.Int("batchCount")
}

// LoadMoreView returns the load-more sentinel, or nil.
func (l *List) LoadMoreView() view.Node {
	return l.sentinel
}

// SetLoadMoreView sets the view native shows after the last item while more
// items load. Nil removes it.
func (l *List) SetLoadMoreView(n view.Node) {
	if l.sentinel != nil {
		l.sentinel.Base().SetParent(nil)
		l.sentinel = nil
	}
	if n == nil {
		l.Set("loadMoreView", nil)
		return
	}
	view.Detach(n)
	l.sentinel = n
	n.Base().SetParent(l.Node())
	view.MarkTreeDirty(n)
	l.Set("loadMoreView", n)
}

// Cached reports whether the item at index has been realized.
func (l *List) Cached(index int) bool {
	_, ok := l.cached[index]
	return ok
}

// GetItem returns the item at index, realizing and caching it on first use.
// A newly realized item is owned by the list and fully dirty.
func (l *List) GetItem(index int) view.Node {
	if n, ok := l.cached[index]; ok {
		return n
	}

	var n view.Node
	if l.renderItem != nil {
		n = l.renderItem(index)
	}
	if n == nil {
		n = NewItem(ItemConfig{})
	}
	if p := n.Base().Parent(); p != nil && p.Base() == l.View {
		l.Type().Logger().Debug("render returned an item cached at another index, moving it",
			"list", l.ID(), "item", n.Base().ID(), "index", index)
	}
	view.Detach(n)
	n.Base().SetParent(l.Node())
	view.MarkTreeDirty(n)
	l.cached[index] = n
	return n
}

// RenderBunchedItems returns the models of up to length items starting at
// start. The window is clipped to [0, ItemCount()); a negative start or an
// empty window yields no models.
func (l *List) RenderBunchedItems(start, length int) []view.Model {
	if start < 0 {
		return []view.Model{}
	}
	count := max(0, min(length, l.ItemCount()-start))
	models := make([]view.Model, 0, count)
	for i := range count {
		models = append(models, view.ToModel(l.GetItem(start+i)))
	}
	return models
}

// Reset drops every cached item and sets the item count to zero. Native is
// not notified until the next flush carries the itemCount change.
func (l *List) Reset() {
	for _, n := range l.cached {
		n.Base().SetParent(nil)
	}
	clear(l.cached)
	l.SetItemCount(0)
}

// Children implements view.Composite: cached items in index order, then the
// load-more sentinel.
func (l *List) Children() []view.Node {
	indices := make([]int, 0, len(l.cached))
	for i := range l.cached {
		indices = append(indices, i)
	}
	slices.Sort(indices)

	out := make([]view.Node, 0, len(indices)+1)
	for _, i := range indices {
		out = append(out, l.cached[i])
	}
	if l.sentinel != nil {
		out = append(out, l.sentinel)
	}
	return out
}

// InjectProps implements view.PropInjector. The sentinel id travels with
// every model.
func (l *List) InjectProps(props map[string]any) {
	if l.sentinel != nil {
		props["loadMoreView"] = l.sentinel.Base().ID()
	}
}

// DetachChild implements view.Parent.
func (l *List) DetachChild(child view.Node) {
	base := child.Base()
	if l.sentinel != nil && l.sentinel.Base() == base {
		l.sentinel = nil
		l.Set("loadMoreView", nil)
		return
	}
	for i, n := range l.cached {
		if n.Base() == base {
			delete(l.cached, i)
			return
		}
	}
}

// ScrollOptions configures ScrollToItem.
type ScrollOptions struct {
	Animated bool
}

// ScrollToItem asks native to scroll the item at index into view.
func (l *List) ScrollToItem(ctx context.Context, bc *bridge.Context, index int, opts ScrollOptions) *bridge.Call {
	return view.SendCommand(ctx, bc, l, "scrollToItem", map[string]any{
		"index":    index,
		"animated": opts.Animated,
	})
}

// FindVisibleItems asks native for the indices of the items at least partly
// on screen. The result decodes as []int.
func (l *List) FindVisibleItems(ctx context.Context, bc *bridge.Context) *bridge.Call {
	return view.SendCommand(ctx, bc, l, "findVisibleItems", nil)
}

// FindCompletelyVisibleItems asks native for the indices of the items fully
// on screen. The result decodes as []int.
func (l *List) FindCompletelyVisibleItems(ctx context.Context, bc *bridge.Context) *bridge.Call {
	return view.SendCommand(ctx, bc, l, "findCompletelyVisibleItems", nil)
}

// Reload asks native to request every visible window again.
func (l *List) Reload(ctx context.Context, bc *bridge.Context) *bridge.Call {
	return view.SendCommand(ctx, bc, l, "reload", nil)
}

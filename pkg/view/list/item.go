package list

import "github.com/vango-dev/vnative/pkg/view"

// ItemConfig configures a list item. Identifier lets native recycle item
// views of the same kind.
type ItemConfig struct {
	view.Config
}

// NewItem creates a vertical list item: full width, height fitted to its
// content unless cfg overrides the layout.
func NewItem(cfg ItemConfig, children ...view.Node) *view.Container {
	layout := view.LayoutConfig{WidthSpec: view.LayoutMost, HeightSpec: view.LayoutFit}
	return newItem(TypeListItem, layout, cfg, children)
}

// NewHorizontalItem creates a horizontal list item fitted to its content.
func NewHorizontalItem(cfg ItemConfig, children ...view.Node) *view.Container {
	return newItem(TypeHorizontalListItem, view.FitLayout(), cfg, children)
}

func newItem(t *view.Type, layout view.LayoutConfig, cfg ItemConfig, children []view.Node) *view.Container {
	item := view.NewContainer(t)
	item.Set("layoutConfig", layout)
	cfg.Apply(item.View)
	item.Add(children...)
	return item
}

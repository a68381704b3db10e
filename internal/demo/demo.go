// Package demo is the sample application served by `vnative serve`: a title
// over a virtualized list that starts with 50 rows, is rendered in windows of
// 15 and grows through its load-more sentinel.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/panel"
	"github.com/vango-dev/vnative/pkg/plugin/modal"
	"github.com/vango-dev/vnative/pkg/view"
	"github.com/vango-dev/vnative/pkg/view/list"
)

// Config configures the demo.
type Config struct {
	// ItemCount is the initial number of rows. Default: 50.
	ItemCount int

	// BatchCount is the window size native requests. Default: 15.
	BatchCount int

	// PageSize is how many rows each load-more adds. Default: 10.
	PageSize int

	// MaxItems stops load-more once reached. Default: 100.
	MaxItems int

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ItemCount == 0 {
		c.ItemCount = 50
	}
	if c.BatchCount == 0 {
		c.BatchCount = list.DefaultBatchCount
	}
	if c.PageSize == 0 {
		c.PageSize = 10
	}
	if c.MaxItems == 0 {
		c.MaxItems = 100
	}
	return c
}

// App builds one demo screen per bridge context.
type App struct {
	cfg Config
}

// New creates the demo application.
func New(cfg Config) *App {
	return &App{cfg: cfg.withDefaults()}
}

// Screen is the demo state bound to one panel.
type Screen struct {
	cfg   Config
	bc    *bridge.Context
	title *view.View
	list  *list.List
}

// Attach registers a demo panel on bc.
func (a *App) Attach(bc *bridge.Context) (*panel.Panel, *Screen) {
	s := &Screen{cfg: a.cfg, bc: bc}
	p := panel.New(bc, panel.Config{
		Build:  s.build,
		Logger: a.cfg.Logger,
		OnShow: func(*panel.Panel) {
			modal.Toast(context.Background(), bc, "Welcome back", modal.GravityBottom)
		},
	})
	return p, s
}

// List returns the screen's list once the panel is initialized.
func (s *Screen) List() *list.List {
	return s.list
}

func (s *Screen) build(*panel.Panel, panel.Env) view.Node {
	s.title = view.NewText(view.TextConfig{
		Text:     s.titleText(s.cfg.ItemCount),
		TextSize: 20,
		Config:   view.Config{Padding: &view.Edges{Left: 16, Top: 12, Bottom: 12}},
	})

	layout := view.MostLayout()
	layout.Weight = 1
	s.list = list.New(list.Config{
		Config:     view.Config{Layout: &layout},
		ItemCount:  s.cfg.ItemCount,
		BatchCount: s.cfg.BatchCount,
		RenderItem: s.renderItem,
		LoadMore:   s.cfg.ItemCount < s.cfg.MaxItems,
		LoadMoreView: list.NewItem(list.ItemConfig{},
			view.NewText(view.TextConfig{Text: "Loading…", TextAlignment: 1})),
		OnLoadMore: s.loadMore,
	})

	full := view.MostLayout()
	return view.NewVLayout(view.LinearConfig{Config: view.Config{Layout: &full}}, s.title, s.list)
}

func (s *Screen) titleText(n int) string {
	return fmt.Sprintf("%d items", n)
}

func (s *Screen) renderItem(i int) view.Node {
	label := fmt.Sprintf("Item %d", i)
	color := "#FFFFFF"
	if i%2 == 1 {
		color = "#F2F2F7"
	}
	return list.NewItem(list.ItemConfig{Config: view.Config{
		Identifier:      "row",
		BackgroundColor: color,
		OnClick: func([]json.RawMessage) (any, error) {
			modal.Toast(context.Background(), s.bc, label, modal.GravityCenter)
			return nil, nil
		},
	}}, view.NewText(view.TextConfig{
		Text:   label,
		Config: view.Config{Padding: &view.Edges{Left: 16, Top: 10, Bottom: 10}},
	}))
}

// loadMore appends a page of rows and turns the sentinel off at MaxItems.
func (s *Screen) loadMore([]json.RawMessage) (any, error) {
	n := min(s.list.ItemCount()+s.cfg.PageSize, s.cfg.MaxItems)
	s.list.SetItemCount(n)
	if n >= s.cfg.MaxItems {
		s.list.Set("loadMore", false)
	}
	s.title.Set("text", s.titleText(n))
	return nil, nil
}

// Package panel binds one view tree to one bridge context.
//
// A Panel owns the root of the tree. It serves the entity methods native
// invokes on the Go side (window requests for lists, callback responses and
// lifecycle hooks) and flushes the tree's dirty delta to native after every
// change:
//
//	p := panel.New(bc, panel.Config{
//	    Build: func(p *panel.Panel, env panel.Env) view.Node {
//	        return view.NewText(view.TextConfig{Text: "hello"})
//	    },
//	})
//
// All handlers run on the bridge context's loop, so the tree is never touched
// concurrently. Code running elsewhere changes the tree through Update.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/view"
)

// Entity methods native invokes.
const (
	MethodInit               = "__init__"
	MethodRenderBunchedItems = "__renderBunchedItems__"
	MethodResponse           = "__response__"
	MethodOnShow             = "__onShow__"
	MethodOnHidden           = "__onHidden__"
	MethodOnDestroy          = "__onDestroy__"
)

// Errors returned to native.
var (
	ErrViewNotFound = errors.New("panel: view not found")
	ErrNotWindowed  = errors.New("panel: view does not render item windows")
	ErrBadArgs      = errors.New("panel: bad arguments")
)

// Env describes the native surface the panel renders into.
type Env struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Platform string  `json:"platform"`
}

// Config configures a Panel.
type Config struct {
	// Build creates the content placed under the root on __init__.
	Build func(p *Panel, env Env) view.Node

	OnShow    func(p *Panel)
	OnHidden  func(p *Panel)
	OnDestroy func(p *Panel)

	// Logger defaults to the bridge context's logger.
	Logger *slog.Logger
}

// Windowed is implemented by views native pulls items from in windows.
type Windowed interface {
	view.Node
	RenderBunchedItems(start, length int) []view.Model
}

// Panel is one rendered screen.
type Panel struct {
	bc     *bridge.Context
	root   *view.Container
	cfg    Config
	logger *slog.Logger
	env    Env
}

// New creates a panel and registers its entity methods on bc.
func New(bc *bridge.Context, cfg Config) *Panel {
	logger := cfg.Logger
	if logger == nil {
		logger = bc.Logger()
	}
	p := &Panel{
		bc:     bc,
		root:   view.NewRoot(),
		cfg:    cfg,
		logger: logger,
	}

	bc.Handle(MethodInit, p.handleInit)
	bc.Handle(MethodRenderBunchedItems, p.handleRenderBunchedItems)
	bc.Handle(MethodResponse, p.handleResponse)
	bc.Handle(MethodOnShow, p.lifecycle("show", func() func(*Panel) { return p.cfg.OnShow }))
	bc.Handle(MethodOnHidden, p.lifecycle("hidden", func() func(*Panel) { return p.cfg.OnHidden }))
	bc.Handle(MethodOnDestroy, p.lifecycle("destroy", func() func(*Panel) { return p.cfg.OnDestroy }))
	return p
}

// Root returns the root of the tree.
func (p *Panel) Root() *view.Container {
	return p.root
}

// Context returns the bridge context.
func (p *Panel) Context() *bridge.Context {
	return p.bc
}

// Env returns the environment native passed to __init__.
func (p *Panel) Env() Env {
	return p.env
}

// Flush sends the tree's dirty delta to native with shader.render. It
// returns nil when nothing changed. Flush must run on the context loop.
func (p *Panel) Flush(ctx context.Context) *bridge.Call {
	m := view.ToModel(p.root)
	if m.Empty() {
		return nil
	}
	return p.bc.CallNative(ctx, "shader", "render", m)
}

// Update runs fn on the context loop and flushes afterwards. It reports false
// if the context is disposed.
func (p *Panel) Update(ctx context.Context, fn func()) bool {
	return p.bc.Dispatch(func() {
		fn()
		p.Flush(ctx)
	})
}

func (p *Panel) handleInit(ctx context.Context, args []json.RawMessage) (any, error) {
	if len(args) > 0 {
		if err := json.Unmarshal(args[0], &p.env); err != nil {
			return nil, fmt.Errorf("%w: env: %v", ErrBadArgs, err)
		}
	}
	p.logger.Info("panel init", "platform", p.env.Platform, "width", p.env.Width, "height", p.env.Height)

	p.root.RemoveAll()
	if p.cfg.Build != nil {
		if content := p.cfg.Build(p, p.env); content != nil {
			p.root.Add(content)
		}
	}
	view.MarkTreeDirty(p.root)
	p.Flush(ctx)
	return nil, nil
}

func (p *Panel) handleRenderBunchedItems(_ context.Context, args []json.RawMessage) (any, error) {
	var (
		id            string
		start, length int
	)
	if err := decodeArgs(args, &id, &start, &length); err != nil {
		return nil, err
	}

	n, ok := view.Find(p.root, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	w, ok := n.(Windowed)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotWindowed, id, n.Base().Type().Name())
	}
	models := w.RenderBunchedItems(start, length)
	p.logger.Debug("rendered item window", "view_id", id, "start", start, "length", length, "count", len(models))
	return models, nil
}

func (p *Panel) handleResponse(ctx context.Context, args []json.RawMessage) (any, error) {
	var viewID, callbackID string
	if err := decodeArgs(args, &viewID, &callbackID); err != nil {
		return nil, err
	}

	n, ok := view.Find(p.root, viewID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, viewID)
	}
	result, err := n.Base().InvokeCallback(callbackID, args[2:])
	p.Flush(ctx)
	return result, err
}

func (p *Panel) lifecycle(name string, hook func() func(*Panel)) bridge.HandlerFunc {
	return func(ctx context.Context, _ []json.RawMessage) (any, error) {
		p.logger.Debug("panel lifecycle", "event", name)
		if fn := hook(); fn != nil {
			fn(p)
			p.Flush(ctx)
		}
		return nil, nil
	}
}

// decodeArgs unmarshals the leading positional args into dst.
func decodeArgs(args []json.RawMessage, dst ...any) error {
	if len(args) < len(dst) {
		return fmt.Errorf("%w: got %d arguments, want at least %d", ErrBadArgs, len(args), len(dst))
	}
	for i, d := range dst {
		if err := json.Unmarshal(args[i], d); err != nil {
			return fmt.Errorf("%w: argument %d: %v", ErrBadArgs, i, err)
		}
	}
	return nil
}

package view

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// ErrCallbackNotFound is returned when native invokes an unknown callback id.
var ErrCallbackNotFound = errors.New("view: callback not found")

// Callback is a function property native can invoke through the panel.
// Args are the JSON values native passed along.
type Callback func(args []json.RawMessage) (any, error)

// Node is anything that embeds a *View.
type Node interface {
	Base() *View
}

// Composite is implemented by nodes that own child nodes.
type Composite interface {
	Node
	Children() []Node
}

// PropInjector is implemented by nodes that add derived properties to every
// model, whether or not those properties are dirty.
type PropInjector interface {
	Node
	InjectProps(props map[string]any)
}

// Parent is implemented by nodes that can give up a child.
type Parent interface {
	Node
	DetachChild(child Node)
}

// View is the identity, property map and dirty set shared by every node.
type View struct {
	id    string
	typ   *Type
	props map[string]any
	dirty map[string]struct{}

	outer  Node
	parent Node

	callbackIDs map[string]string // property name → callback id
	callbacks   map[string]Callback
	nextCB      int
}

// New creates a view of type t with a fresh id.
func New(t *Type) *View {
	v := &View{
		id:    uuid.NewString(),
		typ:   t,
		props: make(map[string]any),
		dirty: make(map[string]struct{}),
	}
	v.outer = v
	return v
}

// Base returns v. It makes *View a Node.
func (v *View) Base() *View {
	return v
}

// Embed records the node that embeds v. Parent links and tree walks then
// resolve to that node instead of the bare *View.
func (v *View) Embed(outer Node) {
	v.outer = outer
}

// Node returns the outermost node wrapping v.
func (v *View) Node() Node {
	return v.outer
}

// ID returns the immutable view id.
func (v *View) ID() string {
	return v.id
}

// Type returns the registered view type.
func (v *View) Type() *Type {
	return v.typ
}

// Parent returns the owning node, or nil for a detached view.
func (v *View) Parent() Node {
	return v.parent
}

// SetParent sets the owner back-reference. Containers call it on adoption;
// it does not detach v from a previous owner.
func (v *View) SetParent(p Node) {
	v.parent = p
}

// Set writes a declared property and marks it dirty, even if the value is
// unchanged. Writes to undeclared properties, and View or Callback
// properties given a value of the wrong shape, are dropped and logged.
func (v *View) Set(name string, value any) {
	p, ok := v.typ.Property(name)
	if !ok {
		v.drop(name, "undeclared property")
		return
	}

	switch p.Kind {
	case KindView:
		if value != nil {
			if _, ok := value.(Node); !ok {
				v.drop(name, "value is not a view")
				return
			}
		}
	case KindCallback:
		if value != nil {
			cb, ok := asCallback(value)
			if !ok {
				v.drop(name, "value is not a callback")
				return
			}
			value = cb
			v.bindCallback(name, cb)
		} else {
			v.unbindCallback(name)
		}
	}

	v.props[name] = value
	v.dirty[name] = struct{}{}
}

func asCallback(value any) (Callback, bool) {
	switch fn := value.(type) {
	case Callback:
		return fn, fn != nil
	case func(args []json.RawMessage) (any, error):
		return Callback(fn), fn != nil
	case func():
		return func([]json.RawMessage) (any, error) { fn(); return nil, nil }, fn != nil
	default:
		return nil, false
	}
}

func (v *View) drop(name, reason string) {
	attrs := []any{"view", v.id, "type", v.typ.name, "property", name, "reason", reason}
	if s := v.typ.suggest(name); s != "" && s != name {
		attrs = append(attrs, "did_you_mean", s)
	}
	v.typ.registry.log().Debug("dropped property write", attrs...)
}

// Get returns the stored value of a declared property.
func (v *View) Get(name string) (any, bool) {
	if _, ok := v.typ.Property(name); !ok {
		return nil, false
	}
	value, ok := v.props[name]
	return value, ok
}

// Int returns a numeric property as an int, or 0. Fractional values, as
// native may send for counts, round to the nearest integer.
func (v *View) Int(name string) int {
	value, _ := v.Get(name)
	switch n := value.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return roundInt(n)
	case float32:
		return roundInt(float64(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		f, _ := n.Float64()
		return roundInt(f)
	default:
		return 0
	}
}

func roundInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

// IsDirty reports whether name was written since the last serialization.
func (v *View) IsDirty(name string) bool {
	_, ok := v.dirty[name]
	return ok
}

// Dirty returns the dirty property names, sorted.
func (v *View) Dirty() []string {
	names := make([]string, 0, len(v.dirty))
	for name := range v.dirty {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkDirty forces a declared property into the next model.
func (v *View) MarkDirty(name string) {
	if _, ok := v.props[name]; ok {
		v.dirty[name] = struct{}{}
	}
}

// MarkAllDirty forces every stored property into the next model.
func (v *View) MarkAllDirty() {
	for name := range v.props {
		v.dirty[name] = struct{}{}
	}
}

func (v *View) clearDirty() {
	clear(v.dirty)
}

func (v *View) bindCallback(name string, cb Callback) {
	if v.callbacks == nil {
		v.callbacks = make(map[string]Callback)
		v.callbackIDs = make(map[string]string)
	}
	id, ok := v.callbackIDs[name]
	if !ok {
		v.nextCB++
		id = "cb" + strconv.Itoa(v.nextCB)
		v.callbackIDs[name] = id
	}
	v.callbacks[id] = cb
}

func (v *View) unbindCallback(name string) {
	if id, ok := v.callbackIDs[name]; ok {
		delete(v.callbacks, id)
	}
}

// CallbackID returns the wire id bound to a callback property.
func (v *View) CallbackID(name string) (string, bool) {
	id, ok := v.callbackIDs[name]
	if !ok {
		return "", false
	}
	_, live := v.callbacks[id]
	return id, live
}

// InvokeCallback runs the callback bound to id.
func (v *View) InvokeCallback(id string, args []json.RawMessage) (any, error) {
	cb, ok := v.callbacks[id]
	if !ok {
		return nil, ErrCallbackNotFound
	}
	return cb(args)
}

// wireValue converts a stored property value into its model form.
func (v *View) wireValue(name string, value any) any {
	switch val := value.(type) {
	case Node:
		return val.Base().id
	case Callback:
		id, _ := v.CallbackID(name)
		return id
	default:
		return value
	}
}

// Path returns the ids from the tree root down to v.
func (v *View) Path() []string {
	var path []string
	for cur := Node(v); cur != nil; cur = cur.Base().parent {
		path = append(path, cur.Base().id)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Root returns the topmost ancestor of n.
func Root(n Node) Node {
	for n.Base().parent != nil {
		n = n.Base().parent
	}
	return n.Base().outer
}

// Detach removes n from its owner, if any.
func Detach(n Node) {
	p := n.Base().parent
	if p == nil {
		return
	}
	if owner, ok := p.(Parent); ok {
		owner.DetachChild(n)
	}
	n.Base().parent = nil
}

// Find returns the node with the given id in the tree rooted at n.
func Find(n Node, id string) (Node, bool) {
	if n.Base().id == id {
		return n.Base().outer, true
	}
	if c, ok := n.Base().outer.(Composite); ok {
		for _, child := range c.Children() {
			if found, ok := Find(child, id); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// MarkTreeDirty forces every stored property of n and its descendants into
// the next model.
func MarkTreeDirty(n Node) {
	n.Base().MarkAllDirty()
	if c, ok := n.Base().outer.(Composite); ok {
		for _, child := range c.Children() {
			MarkTreeDirty(child)
		}
	}
}

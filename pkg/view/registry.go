package view

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/vango-dev/vnative/internal/errors"
)

// Kind is the value shape of a property.
type Kind uint8

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
	KindView     // value is a Node; the wire carries its id
	KindCallback // value is a Callback; the wire carries a callback id
	kindEnd
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindView:
		return "view"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Property declares a synchronized attribute of a view type.
type Property struct {
	Name string
	Kind Kind
}

// Prop is shorthand for Property{Name: name, Kind: kind}.
func Prop(name string, kind Kind) Property {
	return Property{Name: name, Kind: kind}
}

// Type is a registered view type. It is immutable after registration.
type Type struct {
	name     string
	parent   *Type
	props    map[string]Property
	order    []string
	registry *Registry
}

// Name returns the type name sent on the wire.
func (t *Type) Name() string {
	return t.name
}

// Parent returns the type t was extended from, or nil.
func (t *Type) Parent() *Type {
	return t.parent
}

// Property returns the declared property name.
func (t *Type) Property(name string) (Property, bool) {
	p, ok := t.props[name]
	return p, ok
}

// Properties returns the declared properties in declaration order,
// inherited ones first.
func (t *Type) Properties() []Property {
	out := make([]Property, len(t.order))
	for i, name := range t.order {
		out[i] = t.props[name]
	}
	return out
}

// Is reports whether t is other or extends it.
func (t *Type) Is(other *Type) bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Extend registers a new type in the same registry that inherits every
// property of t and adds props.
func (t *Type) Extend(name string, props ...Property) (*Type, error) {
	return t.registry.register(name, t, props)
}

// MustExtend is like Extend but panics on error.
func (t *Type) MustExtend(name string, props ...Property) *Type {
	nt, err := t.Extend(name, props...)
	if err != nil {
		panic(err)
	}
	return nt
}

// suggest returns the declared property closest to name, if any is within
// edit distance 2.
func (t *Type) suggest(name string) string {
	best, bestDist := "", 3
	for _, candidate := range t.order {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// Registry maps type names to their declared properties.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]*Type
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Default holds the built-in view types.
var Default = NewRegistry()

// SetLogger sets the logger used for dropped property writes.
// A nil logger means slog.Default().
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Logger returns the logger of the registry t was declared in.
func (t *Type) Logger() *slog.Logger {
	return t.registry.log()
}

func (r *Registry) log() *slog.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

// Register declares a new root type.
func (r *Registry) Register(name string, props ...Property) (*Type, error) {
	return r.register(name, nil, props)
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, props ...Property) *Type {
	t, err := r.Register(name, props...)
	if err != nil {
		panic(err)
	}
	return t
}

func (r *Registry) register(name string, parent *Type, props []Property) (*Type, error) {
	if name == "" {
		return nil, errors.New("E100")
	}

	t := &Type{
		name:     name,
		parent:   parent,
		props:    make(map[string]Property),
		registry: r,
	}
	if parent != nil {
		for _, pname := range parent.order {
			t.props[pname] = parent.props[pname]
			t.order = append(t.order, pname)
		}
	}

	for _, p := range props {
		if p.Name == "" || p.Kind >= kindEnd {
			return nil, errors.New("E102").
				WithDetail("type " + name + " declares property " + p.Name + " with kind " + p.Kind.String())
		}
		if _, dup := t.props[p.Name]; dup {
			return nil, errors.New("E101").
				WithDetail("type " + name + " declares " + p.Name + " twice")
		}
		t.props[p.Name] = p
		t.order = append(t.order, p.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return nil, errors.New("E103").WithDetail(name)
	}
	r.types[name] = t
	return t, nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Types returns all registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

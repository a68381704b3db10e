package view

// Model is the transport form of a view: the properties written since the
// previous model, plus the models of its children. Receivers apply it as a
// merge-patch keyed by ID.
type Model struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Props    map[string]any `json:"props"`
	Children []Model        `json:"children"`
}

// ToModel serializes the dirty delta of n and its descendants, then clears
// their dirty sets. Props and Children are never nil so they encode as {}
// and [].
func ToModel(n Node) Model {
	v := n.Base()
	outer := v.Node()

	props := make(map[string]any, len(v.dirty))
	for name := range v.dirty {
		props[name] = v.wireValue(name, v.props[name])
	}
	v.clearDirty()

	if inj, ok := outer.(PropInjector); ok {
		inj.InjectProps(props)
	}

	children := []Model{}
	if c, ok := outer.(Composite); ok {
		kids := c.Children()
		children = make([]Model, 0, len(kids))
		for _, child := range kids {
			children = append(children, ToModel(child))
		}
	}

	return Model{
		ID:       v.id,
		Type:     v.typ.name,
		Props:    props,
		Children: children,
	}
}

// Empty reports whether m and its children carry no properties.
func (m Model) Empty() bool {
	if len(m.Props) > 0 {
		return false
	}
	for _, c := range m.Children {
		if !c.Empty() {
			return false
		}
	}
	return true
}

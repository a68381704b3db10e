package view

import "slices"

// Container is a view that owns an ordered sequence of children.
//
// If its type declares a "children" property, the ordered child id list is
// mirrored into it on every structural change so native sees the new order
// through ordinary dirty tracking.
type Container struct {
	*View
	children []Node
}

// NewContainer creates an empty container of type t.
func NewContainer(t *Type) *Container {
	c := &Container{View: New(t)}
	c.Embed(c)
	return c
}

// Children returns the children in order.
func (c *Container) Children() []Node {
	return slices.Clone(c.children)
}

// Len returns the number of children.
func (c *Container) Len() int {
	return len(c.children)
}

// Add appends children. A child owned by another node is detached from it
// first; a child already in c moves to the end.
func (c *Container) Add(children ...Node) {
	for _, child := range children {
		c.adopt(child)
		c.children = append(c.children, child)
	}
	c.syncChildren()
}

// Insert places child at index i, clamped to [0, Len()].
func (c *Container) Insert(i int, child Node) {
	c.adopt(child)
	i = max(0, min(i, len(c.children)))
	c.children = slices.Insert(c.children, i, child)
	c.syncChildren()
}

func (c *Container) adopt(child Node) {
	Detach(child)
	child.Base().SetParent(c.Node())
	MarkTreeDirty(child)
}

// Remove detaches child. It reports whether child was present.
func (c *Container) Remove(child Node) bool {
	i := c.index(child)
	if i < 0 {
		return false
	}
	c.children = slices.Delete(c.children, i, i+1)
	child.Base().SetParent(nil)
	c.syncChildren()
	return true
}

// RemoveAll detaches every child.
func (c *Container) RemoveAll() {
	for _, child := range c.children {
		child.Base().SetParent(nil)
	}
	c.children = nil
	c.syncChildren()
}

// DetachChild implements Parent.
func (c *Container) DetachChild(child Node) {
	c.Remove(child)
}

func (c *Container) index(child Node) int {
	base := child.Base()
	return slices.IndexFunc(c.children, func(n Node) bool { return n.Base() == base })
}

func (c *Container) syncChildren() {
	if _, ok := c.Type().Property("children"); !ok {
		return
	}
	ids := make([]string, len(c.children))
	for i, child := range c.children {
		ids[i] = child.Base().ID()
	}
	c.Set("children", ids)
}

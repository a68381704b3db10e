// Package view holds the declarative view tree that a Go process keeps on
// behalf of a native renderer.
//
// Every view type declares which properties participate in synchronization
// (see Registry). Writing a declared property records it in the view's dirty
// set. ToModel turns a tree into a Model carrying only the dirty properties
// and clears them, so each Model is the delta since the previous one:
//
//	text := view.NewText(view.TextConfig{Text: "hello"})
//	root := view.NewRoot()
//	root.Add(text)
//
//	first := view.ToModel(root)  // root children + full text props
//	text.Set("text", "world")
//	second := view.ToModel(root) // only {"text": "world"} for the text view
//
// Views are not safe for concurrent use. A tree is owned by one bridge
// context and only touched on that context's loop.
package view

package view

import (
	"context"

	"github.com/vango-dev/vnative/pkg/bridge"
)

// Command is the payload of a shader.command call: a named operation on the
// native counterpart of the view at ViewIDs, the id path from the root.
type Command struct {
	ViewIDs []string `json:"viewIds"`
	Name    string   `json:"name"`
	Args    any      `json:"args,omitempty"`
}

// SendCommand asks native to run the named command on n's native
// counterpart. n must be attached to the tree native has rendered.
func SendCommand(ctx context.Context, bc *bridge.Context, n Node, name string, args any) *bridge.Call {
	return bc.CallNative(ctx, "shader", "command", Command{
		ViewIDs: n.Base().Path(),
		Name:    name,
		Args:    args,
	})
}

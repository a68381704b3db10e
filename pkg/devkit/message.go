package devkit

import (
	"encoding/json"
	"fmt"
)

// Command names a devkit message.
type Command string

const (
	// CmdDebug is sent by a device entering debugging.
	CmdDebug Command = "DEBUG"
	// CmdException reports an uncaught exception.
	CmdException Command = "EXCEPTION"
	// CmdLog carries one log line.
	CmdLog Command = "LOG"
	// CmdSwitchToDebug tells the debugging device that a debugger attached.
	CmdSwitchToDebug Command = "SWITCH_TO_DEBUG"
)

// Message is the envelope of every devkit frame. SWITCH_TO_DEBUG carries
// ContextID at the top level and has no data.
type Message struct {
	Cmd       Command         `json:"cmd"`
	Data      json.RawMessage `json:"data,omitempty"`
	ContextID string          `json:"contextId,omitempty"`
}

// NewSwitchToDebug returns the SWITCH_TO_DEBUG message for contextID.
func NewSwitchToDebug(contextID string) Message {
	return Message{Cmd: CmdSwitchToDebug, ContextID: contextID}
}

// NewMessage encodes data as the payload of a cmd message.
func NewMessage(cmd Command, data any) (Message, error) {
	m := Message{Cmd: cmd}
	if data == nil {
		return m, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("devkit: encode %s: %w", cmd, err)
	}
	m.Data = raw
	return m, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("devkit: %s message has no data", m.Cmd)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("devkit: decode %s: %w", m.Cmd, err)
	}
	return nil
}

// DebugData is the payload of DEBUG.
type DebugData struct {
	ContextID string `json:"contextId"`
	Source    string `json:"source,omitempty"`
}

// ExceptionData is the payload of EXCEPTION.
type ExceptionData struct {
	Source    string `json:"source"`
	Exception string `json:"exception"`
}

// LogType is the level of a LOG message.
type LogType string

const (
	LogDefault LogType = "DEFAULT"
	LogWarn    LogType = "WARN"
	LogError   LogType = "ERROR"
)

// Tag returns the one-letter console tag for t.
func (t LogType) Tag() string {
	switch t {
	case LogError:
		return "[E]"
	case LogWarn:
		return "[W]"
	default:
		return "[I]"
	}
}

// LogData is the payload of LOG.
type LogData struct {
	Type    LogType `json:"type"`
	Message string  `json:"message"`
}

package ollama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/whyrusleeping/ollama/tools"
)

// Invoke runs the call against reg.
func (tc ToolCall) Invoke(ctx context.Context, reg tools.Invoker) (any, error) {
	return reg.Invoke(ctx, tc.Function.Name, tc.Function.Arguments)
}

// Call converts tc for use with tools.InvokeAll.
func (tc ToolCall) Call() tools.Call {
	return tools.Call{Name: tc.Function.Name, Arguments: tc.Function.Arguments}
}

// Calls returns the tool calls of m in the form tools.InvokeAll accepts.
func (m Message) Calls() []tools.Call {
	out := make([]tools.Call, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		out = append(out, tc.Call())
	}
	return out
}

// ToolMessage builds the "tool" message that reports result back to the
// model. Strings are sent as is, anything else as JSON.
func ToolMessage(name string, result any) (Message, error) {
	var content string
	switch v := result.(type) {
	case string:
		content = v
	case fmt.Stringer:
		content = v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return Message{}, fmt.Errorf("encoding result of %s: %w", name, err)
		}
		content = string(data)
	}
	return Message{Role: "tool", Content: content, ToolName: name}, nil
}

package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Use errors.Is to check.
var (
	ErrSchema           = errors.New("tool schema error")
	ErrDuplicateTool    = errors.New("tool already registered")
	ErrUnknownTool      = errors.New("tool not registered")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// SchemaError reports a tool that cannot be described: a bad name, a
// parameter whose type has no JSON Schema form, or a malformed function.
type SchemaError struct {
	Tool   string
	Param  string
	Reason string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	if e.Tool != "" {
		fmt.Fprintf(&b, "tool %q: ", e.Tool)
	}
	if e.Param != "" {
		fmt.Fprintf(&b, "parameter %q: ", e.Param)
	}
	b.WriteString(e.Reason)
	return b.String()
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// DuplicateToolError is returned when registering a name that is already
// taken without asking for override.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

func (e *DuplicateToolError) Is(target error) bool { return target == ErrDuplicateTool }

// UnknownToolError is returned when invoking a name nobody registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.Name)
}

func (e *UnknownToolError) Is(target error) bool { return target == ErrUnknownTool }

// ArgumentError reports arguments that do not fit a tool's schema. It is the
// kind of error worth sending back to the model so it can correct itself.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("tool %q: invalid arguments: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArguments }

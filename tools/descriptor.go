package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"regexp"

	"github.com/google/jsonschema-go/jsonschema"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Tool is the wire form of a tool offered to a model.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes a callable tool.
type Function struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

type invokeFunc func(ctx context.Context, args map[string]any) (any, error)

// Descriptor is an immutable, registrable tool: a name, a description, the
// JSON Schema of its arguments and the code that runs it.
type Descriptor struct {
	name        string
	description string
	params      *jsonschema.Schema
	resolved    *jsonschema.Resolved
	call        invokeFunc
}

func newDescriptor(name, description string, params *jsonschema.Schema, call invokeFunc) (*Descriptor, error) {
	if !namePattern.MatchString(name) {
		return nil, &SchemaError{Tool: name, Reason: "name must match " + namePattern.String()}
	}
	if call == nil {
		return nil, &SchemaError{Tool: name, Reason: "nil implementation"}
	}
	if params == nil {
		params = &jsonschema.Schema{Type: "object"}
	}
	if params.Type != "object" {
		return nil, &SchemaError{Tool: name, Reason: fmt.Sprintf("parameters must be an object schema, got %q", params.Type)}
	}
	resolved, err := params.Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
	if err != nil {
		return nil, &SchemaError{Tool: name, Reason: err.Error()}
	}
	return &Descriptor{
		name:        name,
		description: description,
		params:      params,
		resolved:    resolved,
		call:        call,
	}, nil
}

// Name returns the tool name.
func (d *Descriptor) Name() string { return d.name }

// Description returns the tool description.
func (d *Descriptor) Description() string { return d.description }

// Parameters returns a copy of the argument schema.
func (d *Descriptor) Parameters() *jsonschema.Schema { return d.params.CloneSchemas() }

// Tool returns the wire form of d.
func (d *Descriptor) Tool() Tool {
	return Tool{
		Type: "function",
		Function: Function{
			Name:        d.name,
			Description: d.description,
			Parameters:  d.Parameters(),
		},
	}
}

// Invoke validates args against the schema, filling in defaults, and runs
// the tool. Errors from the tool itself are returned unchanged.
func (d *Descriptor) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	args = maps.Clone(args)
	if args == nil {
		args = map[string]any{}
	}
	if err := d.resolved.ApplyDefaults(&args); err != nil {
		return nil, &ArgumentError{Tool: d.name, Err: err}
	}
	if err := d.resolved.Validate(args); err != nil {
		return nil, &ArgumentError{Tool: d.name, Err: err}
	}
	return d.call(ctx, args)
}

// Func describes an ordinary Go function as a tool.
//
// fn may take a leading context.Context. Its remaining parameters are either
// named with WithParams, or, when fn takes exactly one struct and no names
// are given, described by that struct's fields. fn may return nothing, a
// value, an error, or a value and an error.
func Func(name string, fn any, opts ...Option) (*Descriptor, error) {
	o := applyOptions(opts)

	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, &SchemaError{Tool: name, Reason: fmt.Sprintf("expected a function, got %T", fn)}
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, &SchemaError{Tool: name, Reason: "variadic functions are not supported"}
	}

	sig, err := readSignature(name, ft)
	if err != nil {
		return nil, err
	}

	var (
		params *jsonschema.Schema
		bind   func(map[string]any) ([]reflect.Value, error)
	)
	if len(o.params) == 0 && len(sig.in) == 1 && isStruct(sig.in[0]) {
		params, bind, err = structParams(name, sig.in[0], o)
	} else {
		params, bind, err = positionalParams(name, sig.in, o)
	}
	if err != nil {
		return nil, err
	}

	call := func(ctx context.Context, args map[string]any) (any, error) {
		in, err := bind(args)
		if err != nil {
			return nil, &ArgumentError{Tool: name, Err: err}
		}
		if sig.ctx {
			in = append([]reflect.Value{reflect.ValueOf(ctx)}, in...)
		}
		return sig.results(fv.Call(in))
	}
	return newDescriptor(name, o.description, params, call)
}

// Typed describes a function whose argument struct T defines the parameters.
func Typed[T, R any](name string, fn func(context.Context, T) (R, error), opts ...Option) (*Descriptor, error) {
	if !isStruct(reflect.TypeFor[T]()) {
		return nil, &SchemaError{Tool: name, Reason: fmt.Sprintf("argument type %s is not a struct", reflect.TypeFor[T]())}
	}
	return Func(name, fn, opts...)
}

// Record registers a struct type as a tool of its own: its fields are the
// parameters and invoking it returns the populated T.
func Record[T any](name string, opts ...Option) (*Descriptor, error) {
	if !isStruct(reflect.TypeFor[T]()) {
		return nil, &SchemaError{Tool: name, Reason: fmt.Sprintf("%s is not a struct", reflect.TypeFor[T]())}
	}
	return Func(name, func(v T) T { return v }, opts...)
}

// Dynamic builds a tool from a schema known only at run time, such as one
// received from an MCP server. schema may be a *jsonschema.Schema or any
// value that marshals to a JSON Schema object.
func Dynamic(name, description string, schema any, fn func(context.Context, map[string]any) (any, error)) (*Descriptor, error) {
	params, err := compileSchema(schema)
	if err != nil {
		return nil, &SchemaError{Tool: name, Reason: err.Error()}
	}
	if fn == nil {
		return nil, &SchemaError{Tool: name, Reason: "nil implementation"}
	}
	return newDescriptor(name, description, params, fn)
}

// compileSchema deep-copies schema into a jsonschema.Schema, dropping the
// identifiers that would make resolution depend on remote documents.
func compileSchema(schema any) (*jsonschema.Schema, error) {
	if schema == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	if s, ok := schema.(*jsonschema.Schema); ok {
		schema = s.CloneSchemas()
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("schema is not an object: %w", err)
	}
	for _, k := range []string{"$schema", "$id", "id"} {
		delete(m, k)
	}
	if _, ok := m["type"]; !ok {
		m["type"] = "object"
	}
	if data, err = json.Marshal(m); err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	return &s, nil
}

type signature struct {
	ctx     bool
	in      []reflect.Type
	results func([]reflect.Value) (any, error)
}

func readSignature(name string, ft reflect.Type) (*signature, error) {
	sig := &signature{}
	for i := 0; i < ft.NumIn(); i++ {
		t := ft.In(i)
		if i == 0 && t == contextType {
			sig.ctx = true
			continue
		}
		sig.in = append(sig.in, t)
	}

	switch {
	case ft.NumOut() == 0:
		sig.results = func([]reflect.Value) (any, error) { return nil, nil }
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
		sig.results = func(out []reflect.Value) (any, error) { return nil, asError(out[0]) }
	case ft.NumOut() == 1:
		sig.results = func(out []reflect.Value) (any, error) { return out[0].Interface(), nil }
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		sig.results = func(out []reflect.Value) (any, error) {
			if err := asError(out[1]); err != nil {
				return nil, err
			}
			return out[0].Interface(), nil
		}
	default:
		return nil, &SchemaError{Tool: name, Reason: "function must return (R), (error), (R, error) or nothing"}
	}
	return sig, nil
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

func isStruct(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType
}

// structParams uses the fields of t as the parameters.
func structParams(name string, t reflect.Type, o *descOptions) (*jsonschema.Schema, func(map[string]any) ([]reflect.Value, error), error) {
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	params, err := newBuilder().schema(base)
	if err != nil {
		return nil, nil, &SchemaError{Tool: name, Reason: err.Error()}
	}
	for prop, ps := range params.Properties {
		if ps.Description == "" {
			ps.Description = o.doc.Params[prop]
		}
	}
	if err := applyDefaults(name, params, o.defaults); err != nil {
		return nil, nil, err
	}

	bind := func(args map[string]any) ([]reflect.Value, error) {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		v := reflect.New(base)
		if err := json.Unmarshal(data, v.Interface()); err != nil {
			return nil, err
		}
		if t.Kind() == reflect.Pointer {
			return []reflect.Value{v}, nil
		}
		return []reflect.Value{v.Elem()}, nil
	}
	return params, bind, nil
}

// positionalParams uses the named function parameters.
func positionalParams(name string, in []reflect.Type, o *descOptions) (*jsonschema.Schema, func(map[string]any) ([]reflect.Value, error), error) {
	if len(o.params) != len(in) {
		return nil, nil, &SchemaError{Tool: name, Reason: fmt.Sprintf("function takes %d parameters but %d names were given", len(in), len(o.params))}
	}

	params := &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}
	b := newBuilder()
	for i, t := range in {
		pname := o.params[i]
		if _, dup := params.Properties[pname]; dup {
			return nil, nil, &SchemaError{Tool: name, Param: pname, Reason: "duplicate parameter name"}
		}
		ps, err := b.schema(t)
		if err != nil {
			return nil, nil, &SchemaError{Tool: name, Param: pname, Reason: err.Error()}
		}
		ps.Description = o.doc.Params[pname]
		params.Properties[pname] = ps
		params.PropertyOrder = append(params.PropertyOrder, pname)
		params.Required = append(params.Required, pname)
	}
	if err := applyDefaults(name, params, o.defaults); err != nil {
		return nil, nil, err
	}

	names := o.params
	bind := func(args map[string]any) ([]reflect.Value, error) {
		out := make([]reflect.Value, len(in))
		for i, t := range in {
			v := reflect.New(t)
			if raw, ok := args[names[i]]; ok {
				data, err := json.Marshal(raw)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", names[i], err)
				}
				if err := json.Unmarshal(data, v.Interface()); err != nil {
					return nil, fmt.Errorf("%s: %w", names[i], err)
				}
			}
			out[i] = v.Elem()
		}
		return out, nil
	}
	return params, bind, nil
}

// applyDefaults records WithDefault values in the schema and drops the
// parameters they cover from required.
func applyDefaults(name string, params *jsonschema.Schema, defaults map[string]any) error {
	for pname, v := range defaults {
		ps, ok := params.Properties[pname]
		if !ok {
			return &SchemaError{Tool: name, Param: pname, Reason: "default for unknown parameter"}
		}
		data, err := json.Marshal(v)
		if err != nil {
			return &SchemaError{Tool: name, Param: pname, Reason: "default: " + err.Error()}
		}
		ps.Default = data
	}
	required := params.Required[:0:0]
	for _, r := range params.Required {
		if params.Properties[r].Default == nil {
			required = append(required, r)
		}
	}
	params.Required = required
	return nil
}

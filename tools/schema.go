package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Enumerator is implemented by types whose values are limited to a fixed
// set, the Go counterpart of a literal or enum type. Enum is called on the
// zero value.
type Enumerator interface {
	Enum() []any
}

// SchemaProvider is implemented by types that describe themselves. JSONSchema
// is called on the zero value and its result is copied.
type SchemaProvider interface {
	JSONSchema() *jsonschema.Schema
}

var (
	timeType       = reflect.TypeFor[time.Time]()
	rawMessageType = reflect.TypeFor[json.RawMessage]()
	enumeratorType = reflect.TypeFor[Enumerator]()
	providerType   = reflect.TypeFor[SchemaProvider]()
	contextType    = reflect.TypeFor[context.Context]()
	errorType      = reflect.TypeFor[error]()
)

// SchemaFor returns the JSON Schema of T.
//
// Go types map as follows: strings to "string", bools to "boolean", integer
// kinds to "integer", floats to "number", slices and arrays to "array" (with
// "items" unless the element type is an empty interface), string-keyed maps
// and structs to "object", time.Time to a date-time string. Interfaces and
// json.RawMessage accept any value. Channels, functions, complex numbers and
// self-referencing structs have no schema and yield a *SchemaError.
func SchemaFor[T any]() (*jsonschema.Schema, error) {
	s, err := newBuilder().schema(reflect.TypeFor[T]())
	if err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}
	return s, nil
}

type builder struct {
	visiting map[reflect.Type]bool
}

func newBuilder() *builder {
	return &builder{visiting: map[reflect.Type]bool{}}
}

func (b *builder) schema(t reflect.Type) (*jsonschema.Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Implements(providerType) {
		s := reflect.Zero(t).Interface().(SchemaProvider).JSONSchema()
		if s == nil {
			return nil, fmt.Errorf("%s: JSONSchema returned nil", t)
		}
		return s.CloneSchemas(), nil
	}
	if t.Implements(enumeratorType) {
		return b.enumSchema(t)
	}

	switch t {
	case timeType:
		return &jsonschema.Schema{Type: "string", Format: "date-time"}, nil
	case rawMessageType:
		return &jsonschema.Schema{}, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return &jsonschema.Schema{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &jsonschema.Schema{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &jsonschema.Schema{Type: "number"}, nil
	case reflect.String:
		return &jsonschema.Schema{Type: "string"}, nil
	case reflect.Interface:
		return &jsonschema.Schema{}, nil
	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			// encoding/json carries []byte as base64 text.
			return &jsonschema.Schema{Type: "string", ContentEncoding: "base64"}, nil
		}
		s := &jsonschema.Schema{Type: "array"}
		if !isAny(t.Elem()) {
			items, err := b.schema(t.Elem())
			if err != nil {
				return nil, err
			}
			s.Items = items
		}
		if t.Kind() == reflect.Array {
			s.MinItems = jsonschema.Ptr(t.Len())
			s.MaxItems = jsonschema.Ptr(t.Len())
		}
		return s, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%s: map keys must be strings", t)
		}
		s := &jsonschema.Schema{Type: "object"}
		if !isAny(t.Elem()) {
			vs, err := b.schema(t.Elem())
			if err != nil {
				return nil, err
			}
			s.AdditionalProperties = vs
		}
		return s, nil
	case reflect.Struct:
		return b.structSchema(t)
	default:
		return nil, fmt.Errorf("%s: unsupported type", t)
	}
}

func isAny(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.NumMethod() == 0
}

func (b *builder) enumSchema(t reflect.Type) (*jsonschema.Schema, error) {
	vals := reflect.Zero(t).Interface().(Enumerator).Enum()
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: empty enum", t)
	}
	s := &jsonschema.Schema{Enum: vals}
	switch t.Kind() {
	case reflect.String:
		s.Type = "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		s.Type = "integer"
	case reflect.Float32, reflect.Float64:
		s.Type = "number"
	case reflect.Bool:
		s.Type = "boolean"
	}
	return s, nil
}

func (b *builder) structSchema(t reflect.Type) (*jsonschema.Schema, error) {
	if b.visiting[t] {
		return nil, fmt.Errorf("%s: recursive type", t)
	}
	b.visiting[t] = true
	defer delete(b.visiting, t)

	s := &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}
	if err := b.addFields(s, t); err != nil {
		return nil, err
	}
	return s, nil
}

// addFields adds the exported fields of t to s, inlining untagged embedded
// structs the way encoding/json does.
func (b *builder) addFields(s *jsonschema.Schema, t reflect.Type) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, omit, tagged := jsonName(f)
		if name == "-" {
			continue
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if f.Anonymous && !tagged && ft.Kind() == reflect.Struct {
			if err := b.addFields(s, ft); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		fs, err := b.schema(f.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if err := applyFieldTags(fs, f); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}

		if _, dup := s.Properties[name]; !dup {
			s.PropertyOrder = append(s.PropertyOrder, name)
		}
		s.Properties[name] = fs
		if !omit && fs.Default == nil {
			s.Required = append(s.Required, name)
		}
	}
	return nil
}

// jsonName returns the property name of f, whether the field may be omitted,
// and whether the json tag named it explicitly.
func jsonName(f reflect.StructField) (name string, omit bool, tagged bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "-", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	for _, o := range strings.Split(opts, ",") {
		if o == "omitempty" || o == "omitzero" {
			omit = true
		}
	}
	if name == "" {
		return f.Name, omit, false
	}
	return name, omit, true
}

// applyFieldTags reads the description, enum, const, format and default tags.
func applyFieldTags(s *jsonschema.Schema, f reflect.StructField) error {
	if d := f.Tag.Get("description"); d != "" {
		s.Description = d
	}
	if fm := f.Tag.Get("format"); fm != "" {
		s.Format = fm
	}
	kind := f.Type.Kind()
	if kind == reflect.Pointer {
		kind = f.Type.Elem().Kind()
	}
	if e, ok := f.Tag.Lookup("enum"); ok {
		// On a list the enum constrains the elements.
		target, ekind := s, kind
		if s.Type == "array" && (kind == reflect.Slice || kind == reflect.Array) {
			if s.Items == nil {
				s.Items = &jsonschema.Schema{}
			}
			target, ekind = s.Items, elemKind(f.Type)
		}
		target.Enum = nil
		for _, raw := range strings.Split(e, ",") {
			v, err := parseTagValue(ekind, strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("enum tag: %w", err)
			}
			target.Enum = append(target.Enum, v)
		}
	}
	if c, ok := f.Tag.Lookup("const"); ok {
		v, err := parseTagValue(kind, c)
		if err != nil {
			return fmt.Errorf("const tag: %w", err)
		}
		s.Const = &v
	}
	if d, ok := f.Tag.Lookup("default"); ok {
		v, err := parseTagValue(kind, d)
		if err != nil {
			return fmt.Errorf("default tag: %w", err)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("default tag: %w", err)
		}
		s.Default = data
	}
	return nil
}

func elemKind(t reflect.Type) reflect.Kind {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	t = t.Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind()
}

// parseTagValue interprets a tag literal as a value of the field's kind.
// Composite kinds take JSON.
func parseTagValue(kind reflect.Kind, raw string) (any, error) {
	switch kind {
	case reflect.String:
		return raw, nil
	case reflect.Bool:
		return strconv.ParseBool(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.ParseInt(raw, 10, 64)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.ParseUint(raw, 10, 64)
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(raw, 64)
	default:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

package tools

import (
	"github.com/rs/zerolog"
)

type descOptions struct {
	description string
	doc         Doc
	params      []string
	defaults    map[string]any
}

// Option configures a tool built by Func, Typed or Record.
type Option func(*descOptions)

// WithDescription sets the tool description, taking precedence over the
// summary of WithDoc.
func WithDescription(s string) Option {
	return func(o *descOptions) { o.description = s }
}

// WithDoc parses a documentation block with ParseDoc. Its summary becomes
// the description and its parameter lines the property descriptions.
func WithDoc(text string) Option {
	return func(o *descOptions) { o.doc = ParseDoc(text) }
}

// WithParams names the parameters of a function, in order. A leading
// context.Context parameter is not named.
func WithParams(names ...string) Option {
	return func(o *descOptions) { o.params = names }
}

// WithDefault gives a parameter a default, making it optional.
func WithDefault(param string, v any) Option {
	return func(o *descOptions) {
		if o.defaults == nil {
			o.defaults = map[string]any{}
		}
		o.defaults[param] = v
	}
}

func applyOptions(opts []Option) *descOptions {
	o := &descOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.description == "" {
		o.description = o.doc.Summary
	}
	return o
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaultOverride lets every registration replace an existing tool of
// the same name.
func WithDefaultOverride() RegistryOption {
	return func(r *Registry) { r.override = true }
}

// WithLogger sets the logger used for registration and dispatch tracing.
func WithLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

type registerOptions struct {
	override bool
}

// RegisterOption configures one Register call.
type RegisterOption func(*registerOptions)

// WithOverride replaces a tool of the same name instead of failing.
func WithOverride() RegisterOption {
	return func(o *registerOptions) { o.override = true }
}

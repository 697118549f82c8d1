package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Invoker dispatches a tool call by name.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// Registry maps tool names to descriptors and remembers registration order.
//
// A Registry is not safe for concurrent mutation. Concurrent Invoke calls on
// a registry nobody is modifying are fine; wrap it with Synchronized when
// registration and dispatch overlap.
type Registry struct {
	tools    *orderedmap.OrderedMap[string, *Descriptor]
	override bool
	log      zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools: orderedmap.New[string, *Descriptor](),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds d. A name collision fails with *DuplicateToolError unless
// override is requested, in which case d takes the place of the old tool,
// keeping its position in Tools.
func (r *Registry) Register(d *Descriptor, opts ...RegisterOption) error {
	if d == nil {
		return &SchemaError{Reason: "nil descriptor"}
	}
	o := registerOptions{override: r.override}
	for _, opt := range opts {
		opt(&o)
	}

	if _, exists := r.tools.Get(d.name); exists {
		if !o.override {
			return &DuplicateToolError{Name: d.name}
		}
		r.log.Debug().Str("tool", d.name).Msg("replacing tool")
	}
	r.tools.Set(d.name, d)
	return nil
}

// RegisterFunc builds a descriptor with Func and registers it.
func (r *Registry) RegisterFunc(name string, fn any, opts ...Option) error {
	d, err := Func(name, fn, opts...)
	if err != nil {
		return err
	}
	return r.Register(d)
}

// RegisterMultiple registers each descriptor in order. It stops at the first
// failure; tools registered before it stay registered.
func (r *Registry) RegisterMultiple(ds ...*Descriptor) error {
	for i, d := range ds {
		if err := r.Register(d); err != nil {
			return fmt.Errorf("registering tool %d of %d: %w", i+1, len(ds), err)
		}
	}
	return nil
}

// Unregister removes a tool and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	_, ok := r.tools.Delete(name)
	return ok
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	return r.tools.Get(name)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return r.tools.Len()
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, r.tools.Len())
	for p := r.tools.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Tools returns the wire descriptions of every tool in registration order,
// ready for a chat request.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, r.tools.Len())
	for p := r.tools.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value.Tool())
	}
	return out
}

// Invoke runs the named tool with args. An unknown name fails with
// *UnknownToolError without running anything; arguments that do not match
// the schema fail with *ArgumentError. Errors from the tool are returned
// unchanged.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	d, ok := r.tools.Get(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return dispatch(ctx, r.log, d, args)
}

// InvokeJSON is Invoke with the arguments as a raw JSON object.
func (r *Registry) InvokeJSON(ctx context.Context, name string, raw []byte) (any, error) {
	d, ok := r.tools.Get(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	args, err := decodeArgs(raw)
	if err != nil {
		return nil, &ArgumentError{Tool: name, Err: err}
	}
	return dispatch(ctx, r.log, d, args)
}

func dispatch(ctx context.Context, log zerolog.Logger, d *Descriptor, args map[string]any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug().Str("tool", d.name).Int("args", len(args)).Msg("invoking tool")
	return d.Invoke(ctx, args)
}

var errNotObject = errors.New("arguments must be a JSON object")

func decodeArgs(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return m, nil
}

// SyncRegistry is a Registry guarded by a read-write mutex.
type SyncRegistry struct {
	mu  sync.RWMutex
	reg *Registry
}

// Synchronized wraps r for concurrent use. r must not be used directly
// afterwards.
func Synchronized(r *Registry) *SyncRegistry {
	return &SyncRegistry{reg: r}
}

// Register is Registry.Register under the write lock.
func (s *SyncRegistry) Register(d *Descriptor, opts ...RegisterOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Register(d, opts...)
}

// RegisterMultiple is Registry.RegisterMultiple under the write lock.
func (s *SyncRegistry) RegisterMultiple(ds ...*Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.RegisterMultiple(ds...)
}

// Unregister is Registry.Unregister under the write lock.
func (s *SyncRegistry) Unregister(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Unregister(name)
}

// Tools is Registry.Tools under the read lock.
func (s *SyncRegistry) Tools() []Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Tools()
}

// Invoke looks the tool up under the read lock and runs it without holding
// the lock.
func (s *SyncRegistry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	d, ok := s.reg.Lookup(name)
	s.mu.RUnlock()
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return dispatch(ctx, s.reg.log, d, args)
}

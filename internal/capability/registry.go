// Package capability holds the name-keyed registry of invocable capabilities
// ("tools") that the model may request during an orchestration run.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kalambet/ragent/internal/llm"
)

// ErrNotFound is returned when a capability name is not registered.
var ErrNotFound = errors.New("capability not found")

// Capability is an action the model may invoke by name.
//
// Definition returns the capability's self-description in wire form:
// {"type":"function","function":{"name","description","parameters"}}.
// Execute reports its own failures as a descriptive string with a nil
// error; a non-nil error aborts the whole run.
type Capability interface {
	Name() string
	Definition() json.RawMessage
	Callback() bool
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry maps capability names to implementations. Register everything
// before sharing the registry; lookups take no locks.
type Registry struct {
	caps     map[string]Capability
	observer Observer
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithObserver sets the observer notified after every execution.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewRegistry creates an empty registry. Without WithObserver executions are
// logged by a LogObserver on slog.Default().
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		caps:     make(map[string]Capability),
		observer: NewLogObserver(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds c under c.Name(). An existing capability with the same name
// is replaced.
func (r *Registry) Register(c Capability) {
	r.caps[c.Name()] = c
}

// Get returns the capability registered under name.
func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.caps[name]
	return c, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.caps)
}

// Definitions returns the wire definitions of all capabilities, sorted by
// name. Capabilities whose self-description does not decode into the wire
// shape are left out.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.caps))
	for _, name := range r.Names() {
		var def llm.ToolDefinition
		if err := json.Unmarshal(r.caps[name].Definition(), &def); err != nil {
			continue
		}
		if def.Function.Name == "" {
			continue
		}
		defs = append(defs, def)
	}
	return defs
}

// CallbackPolicy reports whether results from name are fed back to the
// model for another turn.
func (r *Registry) CallbackPolicy(name string) (bool, error) {
	c, ok := r.caps[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.Callback(), nil
}

// Execute runs the capability registered under name.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	c, ok := r.caps[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	start := time.Now()
	result, err := c.Execute(ctx, args)
	r.observer.Executed(ctx, Execution{
		Name:      name,
		Arguments: args,
		Result:    result,
		Err:       err,
		Duration:  time.Since(start),
	})
	return result, err
}

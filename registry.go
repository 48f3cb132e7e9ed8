package luna

import (
	"fmt"
	"log/slog"
	"sync"
)

// DefaultGroup is the group tools land in when no group is named.
const DefaultGroup = "default"

// Registry is the in-memory catalog of all tool entries, queryable by
// name, kind, and group. It is constructed explicitly and shared by the
// tool pass and any component that registers capabilities at runtime.
// Safe for concurrent use.
//
// Invariant: every name in a group mapping exists in the name map;
// Unregister removes both.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Entry
	groups map[string][]string
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets a structured logger. Default: discard.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]*Entry),
		groups: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = nopLogger
	}
	return r
}

// Register inserts or replaces an entry by name and adds it to group
// (DefaultGroup when empty). Registering the same name again replaces
// the prior entry; the group membership is not duplicated.
func (r *Registry) Register(tool Tool, kind ToolKind, group string) *Entry {
	if group == "" {
		group = DefaultGroup
	}
	entry := newEntry(tool, kind)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[entry.name]; exists {
		r.logger.Warn("tool already registered, replacing", "tool", entry.name)
	}
	r.tools[entry.name] = entry
	if !contains(r.groups[group], entry.name) {
		r.groups[group] = append(r.groups[group], entry.name)
	}
	r.logger.Info("tool registered", "tool", entry.name, "kind", kind.String(), "group", group)
	return entry
}

// Unregister removes a tool from the name map and from every group.
// Returns an error when the name is unknown; prior state is untouched.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return fmt.Errorf("tool %q not registered", name)
	}
	delete(r.tools, name)
	for group, members := range r.groups {
		r.groups[group] = remove(members, name)
	}
	r.logger.Info("tool unregistered", "tool", name)
	return nil
}

// Get returns the entry for name, or nil.
func (r *Registry) Get(name string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// ByKind returns all entries of the given kind, any status.
func (r *Registry) ByKind(kind ToolKind) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, e := range r.tools {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ByGroup returns the entries of a group in registration order.
func (r *Registry) ByGroup(group string) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, name := range r.groups[group] {
		if e, ok := r.tools[name]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Available returns entries whose status permits invocation
// (available or currently executing another call).
func (r *Registry) Available() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, e := range r.tools {
		switch e.Status() {
		case ToolAvailable, ToolExecuting:
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// AllMetrics returns a metrics snapshot per registered tool.
func (r *Registry) AllMetrics() map[string]Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Metrics, len(r.tools))
	for name, e := range r.tools {
		out[name] = e.Metrics()
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

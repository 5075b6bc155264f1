package agent

import (
	"context"
	"sync"
)

// ParamSpec describes one tool parameter. All parameters are strings; the
// model API's schema types are derived from this by the provider.
type ParamSpec struct {
	Name        string
	Description string
}

// ToolSpec declares a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ParamSpec
	Required    []string

	// Progress is announced to the caller before execution. Empty means
	// the tool runs silently.
	Progress string
}

// Outcome is the structured result of a tool execution. OK reports whether
// the tool produced usable output; Message is the payload or a human-readable
// failure explanation, always non-empty.
type Outcome struct {
	OK      bool
	Message string
}

// Response renders the outcome in the shape fed back to the model.
func (o Outcome) Response() map[string]any {
	return map[string]any{"result": o.OK, "message": o.Message}
}

// Tool is an external capability the model may invoke. Implementations
// convert expected failures (bad URL, search miss) into Outcome{OK: false}
// rather than returning them as errors.
type Tool interface {
	Spec() ToolSpec
	Call(ctx context.Context, args map[string]any) Outcome
}

// Registry holds the fixed tool set offered to the model, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Spec().Name
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Specs returns the declarations of all registered tools in registration
// order, for passing to the model on each send.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

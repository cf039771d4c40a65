// Package tools provides tool management and registration.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Which tools exist is decoupled from which tools a job enables

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps tool names to implementations. It is an explicit instance
// passed to whoever needs it and is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// NewDefaultRegistry creates a registry holding the built-in file tools.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewReadFileTool())
	r.Register(NewListFilesTool())
	r.Register(NewSearchFilesTool())
	return r
}

// Register adds a tool under its name. A later registration with the same
// name replaces the earlier one.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// GetMany resolves names in the order given, silently dropping any that are
// not registered. The result may be empty; callers must check.
func (r *Registry) GetMany(names []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			tools = append(tools, tool)
		}
	}
	return tools
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	return r.GetMany(r.Names())
}

// Description returns a human-readable listing of all tools.
func (r *Registry) Description() string {
	var descriptions []string
	for _, tool := range r.List() {
		var params []string
		for _, f := range tool.Schema().Fields {
			required := "required"
			if f.Optional {
				required = "optional"
			}
			line := fmt.Sprintf("  - %s (%s): %s [%s]", f.Name, f.Type, f.Description, required)
			if len(f.Enum) > 0 {
				line += fmt.Sprintf(" one of: %s", strings.Join(f.Enum, ", "))
			}
			params = append(params, line)
		}

		descriptions = append(descriptions, fmt.Sprintf(
			"Tool: %s\nDescription: %s\nParameters:\n%s",
			tool.Name(), tool.Description(), strings.Join(params, "\n")))
	}

	return strings.Join(descriptions, "\n\n")
}

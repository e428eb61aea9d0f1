package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"scout/internal/llm"
	"scout/internal/schema"
)

var (
	// ErrUnknownTool is returned for calls naming a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned for calls whose arguments are not valid
	// JSON or do not match the tool's input schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

type entry struct {
	tool      Tool
	validator *schema.Validator
}

type Registry struct {
	tools map[string]*entry
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*entry),
	}
}

// Register adds a tool. Its input schema is resolved here so a broken schema
// fails at startup rather than on the first call.
func (r *Registry) Register(tool Tool) error {
	return r.RegisterAll(tool)
}

// RegisterAll adds tools as one batch: either every tool is registered or,
// on the first bad name, schema or collision, none is.
func (r *Registry) RegisterAll(tools ...Tool) error {
	batch := make(map[string]*entry, len(tools))
	for _, tool := range tools {
		name := tool.Name()
		if name == "" {
			return fmt.Errorf("tool has no name")
		}
		if _, dup := batch[name]; dup {
			return fmt.Errorf("tool %s registered twice", name)
		}
		v, err := schema.NewValidator(tool.Parameters())
		if err != nil {
			return fmt.Errorf("tool %s: %w", name, err)
		}
		batch[name] = &entry{tool: tool, validator: v}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range batch {
		if _, exists := r.tools[name]; exists {
			return fmt.Errorf("tool %s already registered", name)
		}
	}
	for name, e := range batch {
		r.tools[name] = e
	}
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return e.tool, nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, e := range r.tools {
		tools = append(tools, e.tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Declare returns the catalog advertised to the model.
func (r *Registry) Declare() []llm.ToolDefinition {
	tools := r.List()
	defs := make([]llm.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}

// Validate checks that name is registered and args match its schema.
func (r *Registry) Validate(name string, args json.RawMessage) error {
	r.mu.RLock()
	e, exists := r.tools[name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err := e.validator.Validate(args); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrInvalidArguments, name, err)
	}
	return nil
}

// Invoke validates args and runs the tool, returning the text for the model.
// Contract violations are returned as errors; tool failures come back as
// error text.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if err := r.Validate(name, args); err != nil {
		return "", err
	}
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	res, err := t.Execute(ctx, args)
	if err != nil {
		return Failure(err.Error()).Text(), nil
	}
	return res.Text(), nil
}

// Subset returns a registry holding only the named tools. Unknown names are
// an error.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub := NewRegistry()
	for _, name := range names {
		e, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		sub.tools[name] = e
	}
	return sub, nil
}

// GetToolBestPractices collects best practices from all registered tools
// that implement BestPracticer
func (r *Registry) GetToolBestPractices() string {
	var practices []string
	for _, t := range r.List() {
		bp, ok := t.(BestPracticer)
		if !ok {
			continue
		}
		if s := bp.BestPractices(); s != "" {
			practices = append(practices, s)
		}
	}

	if len(practices) == 0 {
		return ""
	}
	return "# Tool Usage Best Practices\n\n" + strings.Join(practices, "\n\n")
}

// Package registry provides the node definition registry.
//
// The registry maps node type identifiers (e.g. "api_call", "pdb_file") to
// their parsed definition documents. It is populated from the embedded
// built-in documents and, optionally, from user-supplied document
// directories. Definitions are cached for the lifetime of the registry;
// lookups for unknown types fail with pipeline.ErrDefinitionNotFound.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/santosrai/flowgrid/internal/ctxlog"
	"github.com/santosrai/flowgrid/internal/fsutil"
	"github.com/santosrai/flowgrid/internal/pipeline"
	"github.com/santosrai/flowgrid/internal/schema"
)

// Registry holds the node definitions for a single engine instance.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*schema.Definition
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*schema.Definition)}
}

// Register adds a definition. Registering the same node type twice is a
// wiring mistake and fails loudly.
func (r *Registry) Register(def *schema.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Type]; exists {
		return fmt.Errorf("node definition %q already registered", def.Type)
	}
	r.defs[def.Type] = def
	return nil
}

// LoadDirectory parses every .hcl definition document under the given path
// and registers the node types it declares.
func (r *Registry) LoadDirectory(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return fmt.Errorf("failed to walk definitions directory %s: %w", path, err)
	}
	if len(files) == 0 {
		logger.Warn("No definition documents found in path", "path", path)
		return nil
	}

	for _, file := range files {
		defs, err := schema.ParseFile(file)
		if err != nil {
			return err
		}
		for _, def := range defs {
			if err := r.Register(def); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
		}
		logger.Debug("Loaded definition document.", "file", file, "node_types", len(defs))
	}

	logger.Info("Definition documents loaded.", "files", len(files), "node_types", r.Len())
	return nil
}

// Definition returns the cached definition for a node type.
func (r *Registry) Definition(nodeType string) (*schema.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", pipeline.ErrDefinitionNotFound, nodeType)
	}
	return def, nil
}

// DefaultConfig returns a fresh deep copy of the definition's default
// config. Callers get their own maps: mutating one node's config must never
// leak into another's.
func (r *Registry) DefaultConfig(nodeType string) (map[string]any, error) {
	def, err := r.Definition(nodeType)
	if err != nil {
		return nil, err
	}
	cfg, _ := deepCopyValue(def.DefaultConfig).(map[string]any)
	if cfg == nil {
		cfg = make(map[string]any)
	}
	return cfg, nil
}

// Types returns the registered node type identifiers.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.defs))
	for t := range r.defs {
		types = append(types, t)
	}
	return types
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Validate checks every registered definition against the set of execution
// strategies the dispatcher actually implements. A definition referencing an
// unimplemented strategy is a mismatch between documents and code, caught at
// startup rather than mid-run.
func (r *Registry) Validate(supported func(strategyType string) bool) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for nodeType, def := range r.defs {
		if !supported(def.Execution.Type) {
			return fmt.Errorf("node definition %q references unknown execution strategy %q", nodeType, def.Execution.Type)
		}
	}
	return nil
}

// deepCopyValue recursively copies maps and slices; primitives are copied by
// value.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}

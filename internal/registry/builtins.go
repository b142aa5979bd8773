package registry

import (
	"embed"
	"fmt"

	"github.com/santosrai/flowgrid/internal/schema"
)

//go:embed definitions/*.hcl
var builtinFS embed.FS

// LoadBuiltins registers the definition documents shipped with the engine:
// the four generic strategies plus the protein-pipeline producer types the
// canvas ships with.
func (r *Registry) LoadBuiltins() error {
	entries, err := builtinFS.ReadDir("definitions")
	if err != nil {
		return fmt.Errorf("failed to read embedded definitions: %w", err)
	}

	for _, entry := range entries {
		src, err := builtinFS.ReadFile("definitions/" + entry.Name())
		if err != nil {
			return err
		}
		defs, err := schema.ParseBytes(src, entry.Name())
		if err != nil {
			return err
		}
		for _, def := range defs {
			if err := r.Register(def); err != nil {
				return err
			}
		}
	}
	return nil
}

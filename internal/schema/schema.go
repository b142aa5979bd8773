// Package schema defines the declarative node definition documents and their
// HCL wire format.
//
// Each node type available on the canvas is described by a `node` block in a
// definition document: the configurable fields with their types, requiredness
// and defaults, the typed input/output handles used to route data across
// edges, the execution strategy descriptor with its template fields, and the
// default config new nodes are seeded with. Documents are parsed into the
// format-agnostic Definition model consumed by the registry and the
// dispatcher.
package schema

import "github.com/hashicorp/hcl/v2"

// --- HCL wire structures ---

// FieldBlock declares one configurable field of a node type.
type FieldBlock struct {
	Name     string         `hcl:"name,label"`
	Type     string         `hcl:"type"`
	Required bool           `hcl:"required,optional"`
	Default  hcl.Expression `hcl:"default,optional"`
}

// HandleBlock declares one typed input or output port.
type HandleBlock struct {
	ID       string `hcl:"id,label"`
	DataType string `hcl:"data_type"`
}

// ExecutionBlock carries the strategy tag plus the strategy-specific
// template fields (endpoint, method, headers, payload, message, code, ...).
// The fields are deliberately open-ended; they are decoded generically into
// the descriptor's field map.
type ExecutionBlock struct {
	Type string   `hcl:"type,label"`
	Body hcl.Body `hcl:",remain"`
}

// DefaultsBlock holds the default config a freshly created node of this
// type starts with.
type DefaultsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// NodeBlock is the top-level `node "<type>" { ... }` block of a definition
// document.
type NodeBlock struct {
	Type        string          `hcl:"type,label"`
	Description string          `hcl:"description,optional"`
	Fields      []*FieldBlock   `hcl:"field,block"`
	Inputs      []*HandleBlock  `hcl:"input,block"`
	Outputs     []*HandleBlock  `hcl:"output,block"`
	Execution   *ExecutionBlock `hcl:"execution,block"`
	Defaults    *DefaultsBlock  `hcl:"defaults,block"`
}

// DocumentConfig is the root structure of a definition document. A single
// file may declare several node types.
type DocumentConfig struct {
	Nodes []*NodeBlock `hcl:"node,block"`
	Body  hcl.Body     `hcl:",remain"`
}

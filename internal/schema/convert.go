package schema

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// ParseFile parses one definition document from disk.
func ParseFile(path string) ([]*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse definition document %s: %w", path, diags)
	}
	return convertFile(file, path)
}

// ParseBytes parses a definition document held in memory; filename is used
// in diagnostics only. This is how the embedded built-in documents load.
func ParseBytes(src []byte, filename string) ([]*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse definition document %s: %w", filename, diags)
	}
	return convertFile(file, filename)
}

func convertFile(file *hcl.File, name string) ([]*Definition, error) {
	var doc DocumentConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("invalid definition document %s: %w", name, diags)
	}

	defs := make([]*Definition, 0, len(doc.Nodes))
	for _, block := range doc.Nodes {
		def, err := convertNodeBlock(block)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func convertNodeBlock(block *NodeBlock) (*Definition, error) {
	if block.Execution == nil {
		return nil, fmt.Errorf("node %q: missing execution block", block.Type)
	}

	def := &Definition{
		Type:        block.Type,
		Description: block.Description,
		Execution:   StrategySpec{Type: block.Execution.Type},
	}

	if len(block.Fields) > 0 {
		def.Schema = make(map[string]FieldSpec, len(block.Fields))
		for _, f := range block.Fields {
			spec := FieldSpec{Type: f.Type, Required: f.Required}
			if f.Default != nil {
				val, diags := f.Default.Value(nil)
				if diags.HasErrors() {
					return nil, fmt.Errorf("node %q: field %q default: %w", block.Type, f.Name, diags)
				}
				if !val.IsNull() {
					goVal, err := ctyToGo(val)
					if err != nil {
						return nil, fmt.Errorf("node %q: field %q default: %w", block.Type, f.Name, err)
					}
					spec.Default = goVal
				}
			}
			def.Schema[f.Name] = spec
		}
	}

	for _, in := range block.Inputs {
		def.Inputs = append(def.Inputs, HandleSpec{ID: in.ID, DataType: in.DataType})
	}
	for _, out := range block.Outputs {
		def.Outputs = append(def.Outputs, HandleSpec{ID: out.ID, DataType: out.DataType})
	}

	fields, err := bodyToMap(block.Execution.Body)
	if err != nil {
		return nil, fmt.Errorf("node %q: execution block: %w", block.Type, err)
	}
	def.Execution.Fields = fields

	if block.Defaults != nil {
		defaults, err := bodyToMap(block.Defaults.Body)
		if err != nil {
			return nil, fmt.Errorf("node %q: defaults block: %w", block.Type, err)
		}
		def.DefaultConfig = defaults
	}

	return def, nil
}

// bodyToMap decodes the free-form attributes of a block into a Go map.
// Values must be literals; definition documents carry templates as plain
// strings, not HCL expressions over other nodes.
func bodyToMap(body hcl.Body) (map[string]any, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w", diags)
	}
	if len(attrs) == 0 {
		return nil, nil
	}

	out := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %q: %w", name, diags)
		}
		goVal, err := ctyToGo(val)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = goVal
	}
	return out, nil
}

// ctyToGo converts a cty.Value into plain Go values (string, float64, bool,
// map[string]any, []any), the shapes the template resolver and dispatcher
// operate on.
func ctyToGo(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	if val.Type().IsPrimitiveType() {
		switch val.Type() {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", val.Type().FriendlyName())
		}
	}
	if val.Type().IsObjectType() || val.Type().IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			goVal, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = goVal
		}
		return out, nil
	}
	if val.Type().IsTupleType() || val.Type().IsListType() || val.Type().IsSetType() {
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			goVal, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, goVal)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", val.Type().FriendlyName())
}

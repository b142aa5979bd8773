// Package dataflow routes produced results across pipeline edges.
//
// For a node's declared input handle, the resolver follows the single edge
// targeting that handle back to its source node and projects whatever that
// node produced onto the handle's expected data type. Producers are
// heterogeneous (an api_call returns a response body, a file node a
// descriptor, a script whatever it evaluated to), so projection applies a
// documented fallback chain rather than demanding one canonical shape:
//
//  1. a structured descriptor the producer explicitly tagged for the data
//     type (the whole result, or any nested value carrying a matching
//     "type" tag),
//  2. a conventionally named field of the producer's result metadata (the
//     data type name itself, then "output_file", "sequence", "message"),
//  3. for a wildcard handle, the entire result metadata blob.
//
// Anything else resolves to nil, which required handles turn into a
// validation error.
package dataflow

import (
	"github.com/santosrai/flowgrid/internal/pipeline"
	"github.com/santosrai/flowgrid/internal/schema"
)

// conventionalFields are checked, in order, after the data type name itself.
var conventionalFields = []string{"output_file", "sequence", "message"}

// Resolver resolves cross-node data flow for one pipeline.
type Resolver struct{}

// New creates a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// InputData resolves the data arriving at one input handle. It returns nil
// when the handle is unconnected, the upstream node has produced nothing, or
// nothing in the produced result matches the expected data type.
func (r *Resolver) InputData(nodeID string, handle schema.HandleSpec, p *pipeline.Pipeline) any {
	edge := p.EdgeInto(nodeID, handle.ID)
	if edge == nil {
		return nil
	}
	source := p.NodeByID(edge.Source)
	if source == nil || source.ResultMetadata == nil {
		return nil
	}
	return project(source.ResultMetadata, handle.DataType)
}

// AllInputData aggregates every declared input handle into a
// {handleID: value} map. When optionalInputs is false, a concretely typed
// handle resolving to nil fails with a ValidationError naming the handle;
// wildcard handles are never required.
func (r *Resolver) AllInputData(node *pipeline.Node, def *schema.Definition, p *pipeline.Pipeline, optionalInputs bool) (map[string]any, error) {
	if len(def.Inputs) == 0 {
		return nil, nil
	}

	inputs := make(map[string]any, len(def.Inputs))
	for _, handle := range def.Inputs {
		value := r.InputData(node.ID, handle, p)
		if value == nil && !optionalInputs && handle.DataType != schema.DataTypeAny {
			return nil, &pipeline.ValidationError{
				NodeID: node.ID,
				Handle: handle.ID,
				Msg:    "no upstream data for required input of type " + handle.DataType,
			}
		}
		inputs[handle.ID] = value
	}
	return inputs, nil
}

// project maps a producer's result metadata onto the expected data type.
func project(result map[string]any, dataType string) any {
	if dataType == schema.DataTypeAny {
		return result
	}

	// Explicitly tagged descriptor: the whole result, or a nested value.
	if tag, _ := result["type"].(string); tag == dataType {
		return result
	}
	for _, v := range result {
		if nested, ok := v.(map[string]any); ok {
			if tag, _ := nested["type"].(string); tag == dataType {
				return nested
			}
		}
	}

	// Conventionally named fields.
	if v, ok := result[dataType]; ok && v != nil {
		return v
	}
	for _, field := range conventionalFields {
		if v, ok := result[field]; ok && v != nil {
			return v
		}
	}

	return nil
}

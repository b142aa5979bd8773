// Package strategy implements per-node execution dispatch.
//
// Every node definition carries an execution descriptor tagged with a
// strategy type; the dispatcher holds one handler per tag behind the common
// Strategy contract and routes each node to its handler. Handlers build
// their behavior from the descriptor's template fields, resolved against the
// node's config and upstream input at execution time.
package strategy

import (
	"context"

	"github.com/santosrai/flowgrid/internal/httpclient"
	"github.com/santosrai/flowgrid/internal/pipeline"
	"github.com/santosrai/flowgrid/internal/schema"
	"github.com/santosrai/flowgrid/internal/template"
)

// ExecContext is everything a strategy needs to execute one node.
type ExecContext struct {
	Node       *pipeline.Node
	Definition *schema.Definition
	// Input maps input handle ids to the data resolved from upstream nodes.
	Input map[string]any
}

// TemplateContext builds the template lookup context for this execution.
func (ec ExecContext) TemplateContext() template.Context {
	var input any
	if ec.Input != nil {
		input = ec.Input
	}
	return template.NodeContext(ec.Node, input)
}

// Result is the outcome of one node execution. Request and Response are set
// only by strategies that perform an HTTP call.
type Result struct {
	Data     any
	Request  *pipeline.RequestEnvelope
	Response *pipeline.ResponseEnvelope
}

// Strategy executes one node according to its descriptor.
type Strategy interface {
	Type() string
	Execute(ctx context.Context, ec ExecContext) (*Result, error)
}

// resolveDeep resolves a descriptor field, then resolves once more when the
// looked-up value is itself a template. Descriptor fields usually point at
// config ("{{config.endpoint}}") whose user-authored value may in turn
// reference upstream input.
func resolveDeep(r *template.Resolver, value any, tctx template.Context) any {
	resolved := r.Resolve(value, tctx)
	if s, ok := resolved.(string); ok && template.HasTemplate(s) {
		return r.Resolve(s, tctx)
	}
	return resolved
}

// InputsOptional is the per-strategy input validation policy: strategies
// listed here tolerate unconnected input handles. api_call nodes commonly
// run from config alone; every other strategy requires its declared inputs.
func InputsOptional(strategyType string) bool {
	return strategyType == schema.StrategyAPICall
}

// Dispatcher routes node executions to the strategy matching the
// definition's execution type.
type Dispatcher struct {
	resolver   *template.Resolver
	strategies map[string]Strategy
}

// NewDispatcher creates a dispatcher with the four built-in strategies
// registered. The client handles relative api_call endpoints.
func NewDispatcher(resolver *template.Resolver, client httpclient.Client) *Dispatcher {
	d := &Dispatcher{
		resolver:   resolver,
		strategies: make(map[string]Strategy),
	}
	d.register(&apiCallStrategy{resolver: resolver, client: client})
	d.register(&fileCheckStrategy{resolver: resolver})
	d.register(&logStrategy{resolver: resolver})
	d.register(&codeExecutionStrategy{resolver: resolver})
	return d
}

func (d *Dispatcher) register(s Strategy) {
	d.strategies[s.Type()] = s
}

// Supports reports whether a strategy type has a registered handler.
func (d *Dispatcher) Supports(strategyType string) bool {
	_, ok := d.strategies[strategyType]
	return ok
}

// ExecuteNode dispatches one node. An unknown execution type is a fatal
// configuration error for that node.
func (d *Dispatcher) ExecuteNode(ctx context.Context, ec ExecContext) (*Result, error) {
	s, ok := d.strategies[ec.Definition.Execution.Type]
	if !ok {
		return nil, &pipeline.ConfigurationError{
			NodeID: ec.Node.ID,
			Msg:    "unknown execution type " + ec.Definition.Execution.Type,
		}
	}
	return s.Execute(ctx, ec)
}

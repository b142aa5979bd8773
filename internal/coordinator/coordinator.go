// Package coordinator drives a full pipeline run.
//
// A run is one sequential loop over the topological order of the graph.
// Independent branches are not executed in parallel; determinism and simple
// per-node error isolation are preferred over throughput, since per-node
// latency is dominated by external I/O anyway. All state mutation happens on
// the coordinator goroutine through the store's scoped updates, so no
// additional locking is needed around the run itself.
//
// A failing node does not abort the run. The loop records the error and
// moves on; downstream nodes that depended on the failed output see nil
// input and fail their own validation independently.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync/atomic"
	"time"

	"github.com/santosrai/flowgrid/internal/ctxlog"
	"github.com/santosrai/flowgrid/internal/dataflow"
	"github.com/santosrai/flowgrid/internal/events"
	"github.com/santosrai/flowgrid/internal/pipeline"
	"github.com/santosrai/flowgrid/internal/registry"
	"github.com/santosrai/flowgrid/internal/schema"
	"github.com/santosrai/flowgrid/internal/state"
	"github.com/santosrai/flowgrid/internal/strategy"
	"github.com/santosrai/flowgrid/internal/toposort"
)

// promotedFields are lifted from one level down to the top of a node's
// result metadata so downstream data-flow resolution can find them by
// convention.
var promotedFields = []string{"output_file", "sequence", "message", "data"}

// Coordinator executes runs against one state store.
type Coordinator struct {
	registry   *registry.Registry
	dispatcher *strategy.Dispatcher
	flow       *dataflow.Resolver
	store      *state.Store
	bus        *events.Bus

	canceled atomic.Bool
}

// New wires a coordinator.
func New(reg *registry.Registry, disp *strategy.Dispatcher, flow *dataflow.Resolver, store *state.Store, bus *events.Bus) *Coordinator {
	return &Coordinator{
		registry:   reg,
		dispatcher: disp,
		flow:       flow,
		store:      store,
		bus:        bus,
	}
}

// RequestCancel sets the cooperative cancellation flag. The flag is checked
// between node boundaries only: no further nodes start, but a node already
// in flight runs to completion.
func (c *Coordinator) RequestCancel() {
	c.canceled.Store(true)
}

// Validate checks the pipeline without executing anything: the graph is
// acyclic, every edge references known nodes, every node type has a
// definition, and every required schema field has a value. Validation
// failures surface the first problem found. This is a pre-run detection
// affordance for the hosting application; Run enforces only the structural
// part, since node-scoped problems fail at that node's boundary instead.
func (c *Coordinator) Validate(p *pipeline.Pipeline) error {
	if err := validateStructure(p); err != nil {
		return err
	}
	for _, n := range p.Nodes {
		def, err := c.registry.Definition(n.Type)
		if err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
		if err := c.validateNode(n, def); err != nil {
			return err
		}
	}
	return nil
}

// validateStructure checks the graph shape: acyclic and every edge endpoint
// resolves to a known node. A structural problem makes the whole run
// meaningless, so these checks gate Run.
func validateStructure(p *pipeline.Pipeline) error {
	if _, err := toposort.Sort(p); err != nil {
		return err
	}
	for _, e := range p.Edges {
		if p.NodeByID(e.Source) == nil {
			return fmt.Errorf("edge %s references unknown source node %q", e.ID, e.Source)
		}
		if p.NodeByID(e.Target) == nil {
			return fmt.Errorf("edge %s references unknown target node %q", e.ID, e.Target)
		}
	}
	return nil
}

// validateNode checks a single node is executable: a supported execution
// type and every required schema field set. These problems are fatal to the
// node only, never to the run.
func (c *Coordinator) validateNode(n *pipeline.Node, def *schema.Definition) error {
	if !c.dispatcher.Supports(def.Execution.Type) {
		return &pipeline.ConfigurationError{
			NodeID: n.ID,
			Msg:    "unknown execution type " + def.Execution.Type,
		}
	}
	for field, spec := range def.Schema {
		if !spec.Required || spec.Default != nil {
			continue
		}
		if v, ok := n.Config[field]; !ok || v == nil || v == "" {
			return &pipeline.ValidationError{
				NodeID: n.ID,
				Field:  field,
				Msg:    fmt.Sprintf("required field %q is not set", field),
			}
		}
	}
	return nil
}

// Run executes the pipeline once and returns the finalized execution record.
// Node failures do not fail the run; cancellation does, with ErrRunCanceled.
func (c *Coordinator) Run(ctx context.Context) (*pipeline.Execution, error) {
	logger := ctxlog.FromContext(ctx)
	p := c.store.Pipeline()
	c.canceled.Store(false)

	if err := validateStructure(p); err != nil {
		return nil, err
	}
	order, err := toposort.Sort(p)
	if err != nil {
		return nil, err
	}

	exec := c.store.BeginExecution(time.Now())
	logger.Info("Run started.", "pipeline_id", p.ID, "execution_id", exec.ID, "nodes", len(order))
	c.bus.EmitRunStarted(events.RunStartedEvent{PipelineID: p.ID, ExecutionID: exec.ID})

	for _, id := range order {
		n := p.NodeByID(id)
		if !n.Status.Succeeded() {
			c.store.UpdateNodeStatus(id, pipeline.StatusPending, "")
		}
	}

	canceled := false
	for _, id := range order {
		if c.canceled.Load() || ctx.Err() != nil {
			canceled = true
			logger.Warn("Run canceled; remaining nodes skipped.", "execution_id", exec.ID)
			break
		}

		n := p.NodeByID(id)
		if n.Status.Succeeded() {
			logger.Debug("Node already completed; skipping.", "node_id", id)
			continue
		}
		c.runNode(ctx, p, n)
	}

	c.reconcile(p)
	c.store.FinalizeExecution(time.Now())
	final := c.store.Execution()

	summaries := make([]events.NodeSummary, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		summaries = append(summaries, events.NodeSummary{NodeID: n.ID, Status: n.Status, Error: n.Error})
	}
	c.bus.EmitRunCompleted(events.RunCompletedEvent{
		PipelineID:  p.ID,
		ExecutionID: final.ID,
		Status:      final.Status,
		Nodes:       summaries,
	})
	logger.Info("Run finished.", "execution_id", final.ID, "canceled", canceled)

	if canceled {
		return final, pipeline.ErrRunCanceled
	}
	return final, nil
}

// runNode executes one node end to end: input resolution, dispatch, result
// normalization, status and log updates, completion event.
func (c *Coordinator) runNode(ctx context.Context, p *pipeline.Pipeline, n *pipeline.Node) {
	logger := ctxlog.FromContext(ctx)
	started := time.Now()

	def, err := c.registry.Definition(n.Type)
	if err == nil {
		err = c.validateNode(n, def)
	}
	if err != nil {
		c.failNode(p, n, pipeline.ExecutionLogEntry{
			NodeID:    n.ID,
			NodeLabel: n.Label,
			NodeType:  n.Type,
			StartedAt: started,
		}, started, err)
		return
	}

	c.store.UpdateNodeStatus(n.ID, pipeline.StatusRunning, "")
	logger.Info("Executing node.", "node_id", n.ID, "node_type", n.Type)

	entry := pipeline.ExecutionLogEntry{
		NodeID:    n.ID,
		NodeLabel: n.Label,
		NodeType:  n.Type,
		Status:    pipeline.StatusRunning,
		StartedAt: started,
	}

	inputs, err := c.flow.AllInputData(n, def, p, strategy.InputsOptional(def.Execution.Type))
	if err != nil {
		c.failNode(p, n, entry, started, err)
		return
	}
	entry.Input = inputs
	c.store.AddExecutionLog(entry)

	res, err := c.dispatcher.ExecuteNode(ctx, strategy.ExecContext{
		Node:       n,
		Definition: def,
		Input:      inputs,
	})
	completed := time.Now()
	duration := completed.Sub(started)

	if err != nil {
		msg := err.Error()
		patch := state.LogPatch{
			Status:      statusPtr(pipeline.StatusError),
			CompletedAt: &completed,
			Duration:    &duration,
			Error:       &msg,
		}
		var httpErr *pipeline.HTTPError
		if errors.As(err, &httpErr) {
			patch.Request = httpErr.Request
			patch.Response = httpErr.Response
		}
		c.store.UpdateExecutionLog(n.ID, patch)
		c.store.UpdateNodeStatus(n.ID, pipeline.StatusError, msg)
		logger.Error("Node execution failed.", "node_id", n.ID, "error", err)
		c.bus.EmitNodeCompleted(events.NodeCompletedEvent{PipelineID: p.ID, NodeID: n.ID, Status: pipeline.StatusError})
		return
	}

	rm := normalizeResult(def, res)
	c.store.SetNodeResult(n.ID, rm)
	c.store.UpdateNodeStatus(n.ID, pipeline.StatusCompleted, "")

	patch := state.LogPatch{
		Status:      statusPtr(pipeline.StatusCompleted),
		CompletedAt: &completed,
		Duration:    &duration,
		Output:      rm,
	}
	if res != nil {
		patch.Request = res.Request
		patch.Response = res.Response
	}
	c.store.UpdateExecutionLog(n.ID, patch)
	logger.Info("Node completed.", "node_id", n.ID, "duration", duration)
	c.bus.EmitNodeCompleted(events.NodeCompletedEvent{PipelineID: p.ID, NodeID: n.ID, Status: pipeline.StatusCompleted})
}

// failNode records a node failure that happened before or during execution.
// The log entry is appended if it was not added yet, then patched terminal.
func (c *Coordinator) failNode(p *pipeline.Pipeline, n *pipeline.Node, entry pipeline.ExecutionLogEntry, started time.Time, err error) {
	completed := time.Now()
	duration := completed.Sub(started)
	msg := err.Error()

	entry.Status = pipeline.StatusError
	entry.CompletedAt = completed
	entry.Duration = duration
	entry.Error = msg
	c.store.AddExecutionLog(entry)
	c.store.UpdateNodeStatus(n.ID, pipeline.StatusError, msg)
	c.bus.EmitNodeCompleted(events.NodeCompletedEvent{PipelineID: p.ID, NodeID: n.ID, Status: pipeline.StatusError})
}

// reconcile re-derives each node's final status after the loop. Statuses can
// end up stale when a run is canceled mid-way or the host restored a
// snapshot taken during a run; a node holding results is treated as
// completed, a node caught mid-flight without results as failed.
func (c *Coordinator) reconcile(p *pipeline.Pipeline) {
	for _, n := range p.Nodes {
		switch n.Status {
		case pipeline.StatusError, pipeline.StatusCompleted, pipeline.StatusSuccess:
		case pipeline.StatusRunning:
			if len(n.ResultMetadata) > 0 {
				c.store.UpdateNodeStatus(n.ID, pipeline.StatusCompleted, "")
			} else {
				c.store.UpdateNodeStatus(n.ID, pipeline.StatusError, "node did not produce a result")
			}
		default:
			if len(n.ResultMetadata) > 0 {
				c.store.UpdateNodeStatus(n.ID, pipeline.StatusCompleted, "")
			}
		}
	}
}

// normalizeResult shapes a raw execution result into the node's
// result_metadata. Map results are used as-is, everything else is wrapped
// under "data". Conventionally named fields buried one level down are
// promoted to the top so downstream resolution finds them; producers that
// declare a pdb_file output get a synthesized file descriptor when the
// result carried a filepath.
func normalizeResult(def *schema.Definition, res *strategy.Result) map[string]any {
	rm := map[string]any{}
	if res != nil {
		switch data := res.Data.(type) {
		case nil:
		case map[string]any:
			rm = data
		default:
			rm = map[string]any{"data": data}
		}
	}

	for _, field := range promotedFields {
		if _, ok := rm[field]; ok {
			continue
		}
		for _, v := range rm {
			nested, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if pv, ok := nested[field]; ok && pv != nil {
				rm[field] = pv
				break
			}
		}
	}

	if def.DeclaresOutput("pdb_file") {
		if _, tagged := rm["output_file"].(map[string]any); !tagged {
			if fp := findFilepath(rm); fp != "" {
				rm["output_file"] = map[string]any{
					"type":     "pdb_file",
					"filename": path.Base(fp),
					"filepath": fp,
				}
			}
		}
	}
	return rm
}

// findFilepath looks for a "filepath" string at the top level of the result
// or one level down.
func findFilepath(rm map[string]any) string {
	if fp, ok := rm["filepath"].(string); ok {
		return fp
	}
	for _, v := range rm {
		if nested, ok := v.(map[string]any); ok {
			if fp, ok := nested["filepath"].(string); ok {
				return fp
			}
		}
	}
	return ""
}

func statusPtr(s pipeline.Status) *pipeline.Status { return &s }

// Package events delivers boundary events to external subscribers: run
// start, per-node completion, run completion. Dispatch is synchronous and
// in-process; handlers run on the coordinator goroutine between node
// boundaries, so they must be quick and must not call back into the run.
package events

import (
	"log/slog"
	"sync"

	"github.com/santosrai/flowgrid/internal/pipeline"
)

// RunStartedEvent is emitted once when a run begins.
type RunStartedEvent struct {
	PipelineID  string
	ExecutionID string
}

// NodeCompletedEvent is emitted after each node reaches a terminal status,
// including error.
type NodeCompletedEvent struct {
	PipelineID string
	NodeID     string
	Status     pipeline.Status
}

// NodeSummary is the per-node outcome carried on RunCompletedEvent.
type NodeSummary struct {
	NodeID string
	Status pipeline.Status
	Error  string
}

// RunCompletedEvent is emitted once when the run loop ends, whether or not
// individual nodes failed.
type RunCompletedEvent struct {
	PipelineID  string
	ExecutionID string
	Status      pipeline.Status
	Nodes       []NodeSummary
}

// Bus fans boundary events out to registered handlers.
type Bus struct {
	logger *slog.Logger

	mu                    sync.RWMutex
	runStartedHandlers    []func(RunStartedEvent)
	nodeCompletedHandlers []func(NodeCompletedEvent)
	runCompletedHandlers  []func(RunCompletedEvent)
}

// NewBus creates an event bus. A nil logger falls back to slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger.With("component", "event-bus")}
}

// OnRunStarted registers a handler for run-started events.
func (b *Bus) OnRunStarted(fn func(RunStartedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runStartedHandlers = append(b.runStartedHandlers, fn)
}

// OnNodeCompleted registers a handler for node-completed events.
func (b *Bus) OnNodeCompleted(fn func(NodeCompletedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodeCompletedHandlers = append(b.nodeCompletedHandlers, fn)
}

// OnRunCompleted registers a handler for run-completed events.
func (b *Bus) OnRunCompleted(fn func(RunCompletedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runCompletedHandlers = append(b.runCompletedHandlers, fn)
}

// EmitRunStarted delivers a run-started event.
func (b *Bus) EmitRunStarted(ev RunStartedEvent) {
	b.mu.RLock()
	handlers := b.runStartedHandlers
	b.mu.RUnlock()

	b.logger.Debug("run started", "pipeline_id", ev.PipelineID, "execution_id", ev.ExecutionID)
	for _, fn := range handlers {
		fn(ev)
	}
}

// EmitNodeCompleted delivers a node-completed event.
func (b *Bus) EmitNodeCompleted(ev NodeCompletedEvent) {
	b.mu.RLock()
	handlers := b.nodeCompletedHandlers
	b.mu.RUnlock()

	b.logger.Debug("node completed", "pipeline_id", ev.PipelineID, "node_id", ev.NodeID, "status", ev.Status)
	for _, fn := range handlers {
		fn(ev)
	}
}

// EmitRunCompleted delivers a run-completed event.
func (b *Bus) EmitRunCompleted(ev RunCompletedEvent) {
	b.mu.RLock()
	handlers := b.runCompletedHandlers
	b.mu.RUnlock()

	b.logger.Debug("run completed", "pipeline_id", ev.PipelineID, "status", ev.Status, "nodes", len(ev.Nodes))
	for _, fn := range handlers {
		fn(ev)
	}
}

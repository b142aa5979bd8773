// Package flowgrid is a pipeline execution engine: it takes a typed node
// graph, orders it by its dependency edges, and executes each node with the
// strategy its definition declares, flowing results across edges into
// downstream inputs.
//
// The engine is a library. The hosting application owns the outer surface
// (UI, transport, persistence triggers); flowgrid owns ordering, data flow,
// per-node dispatch and the execution record of each run.
package flowgrid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/santosrai/flowgrid/internal/coordinator"
	"github.com/santosrai/flowgrid/internal/ctxlog"
	"github.com/santosrai/flowgrid/internal/dataflow"
	"github.com/santosrai/flowgrid/internal/events"
	"github.com/santosrai/flowgrid/internal/httpclient"
	"github.com/santosrai/flowgrid/internal/pipeline"
	"github.com/santosrai/flowgrid/internal/registry"
	"github.com/santosrai/flowgrid/internal/state"
	"github.com/santosrai/flowgrid/internal/strategy"
	"github.com/santosrai/flowgrid/internal/template"
)

// Config holds everything an Engine instance needs to run.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string
	// LogFormat is "text" or "json". Defaults to text.
	LogFormat string
	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// DefinitionsPath optionally points at a directory of additional node
	// definition documents, loaded on top of the built-ins.
	DefinitionsPath string

	// BaseURL is the backend that relative api_call endpoints resolve
	// against. Ignored when HTTPClient is set.
	BaseURL string
	// HTTPTimeout is a duration string for the default client, e.g. "30s".
	HTTPTimeout string
	// HTTPClient overrides the default client for relative endpoints,
	// letting the host inject auth or tracing.
	HTTPClient HTTPClient
}

// Engine executes pipelines. Each instance carries its own isolated logger,
// registry and run state; instances do not share anything.
type Engine struct {
	logger     *slog.Logger
	registry   *registry.Registry
	resolver   *template.Resolver
	dispatcher *strategy.Dispatcher
	bus        *events.Bus

	store   *state.Store
	coord   *coordinator.Coordinator
	running atomic.Bool
}

// New builds a fully wired engine: logger, built-in and user-supplied node
// definitions, template resolver, strategy dispatcher and event bus. The
// registry is validated against the dispatcher so a definition referencing
// an unimplemented strategy fails here rather than mid-run.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	outW := cfg.LogOutput
	if outW == nil {
		outW = os.Stderr
	}
	logger := ctxlog.NewLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	reg := registry.New()
	if err := reg.LoadBuiltins(); err != nil {
		return nil, fmt.Errorf("failed to load built-in definitions: %w", err)
	}
	if cfg.DefinitionsPath != "" {
		if err := reg.LoadDirectory(ctx, cfg.DefinitionsPath); err != nil {
			return nil, err
		}
	}

	client := cfg.HTTPClient
	if client == nil && cfg.BaseURL != "" {
		base, err := httpclient.New(cfg.BaseURL, cfg.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		client = base
	}

	resolver := template.NewResolver()
	disp := strategy.NewDispatcher(resolver, client)
	if err := reg.Validate(disp.Supports); err != nil {
		return nil, err
	}
	logger.Debug("Engine initialized.", "node_types", reg.Len())

	return &Engine{
		logger:     logger,
		registry:   reg,
		resolver:   resolver,
		dispatcher: disp,
		bus:        events.NewBus(logger),
	}, nil
}

// SetPipeline installs the graph the next runs operate on. Any previous run
// state is discarded; the pipeline itself keeps whatever node statuses and
// results it carries, so a restored snapshot can resume where it left off.
func (e *Engine) SetPipeline(p *Pipeline) error {
	if e.running.Load() {
		return fmt.Errorf("cannot replace pipeline while a run is in progress")
	}
	if p == nil {
		return fmt.Errorf("pipeline is nil")
	}
	e.store = state.New(p)
	e.coord = coordinator.New(e.registry, e.dispatcher, dataflow.New(), e.store, e.bus)
	return nil
}

// NewNode creates a node of the given type with its config seeded from the
// definition's default config. The copy is fresh; editing one node's config
// never leaks into another's.
func (e *Engine) NewNode(nodeType, id, label string) (*Node, error) {
	cfg, err := e.registry.DefaultConfig(nodeType)
	if err != nil {
		return nil, err
	}
	return &Node{
		ID:     id,
		Type:   nodeType,
		Label:  label,
		Config: cfg,
		Status: StatusIdle,
	}, nil
}

// Validate checks the installed pipeline without executing it, surfacing
// the first problem a run would hit. Running does not require a prior
// Validate call; node-scoped problems fail that node during the run.
func (e *Engine) Validate() error {
	if e.coord == nil {
		return fmt.Errorf("no pipeline set")
	}
	return e.coord.Validate(e.store.Pipeline())
}

// Run executes the installed pipeline once, sequentially in topological
// order, and returns the finalized execution record. Individual node
// failures do not fail the run; a canceled run returns ErrRunCanceled
// alongside the partial record.
func (e *Engine) Run(ctx context.Context) (*Execution, error) {
	if e.coord == nil {
		return nil, fmt.Errorf("no pipeline set")
	}
	if !e.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("a run is already in progress")
	}
	defer e.running.Store(false)

	return e.coord.Run(ctxlog.WithLogger(ctx, e.logger))
}

// Cancel requests cooperative cancellation of the in-flight run. It never
// interrupts the node currently executing; the run stops at the next node
// boundary.
func (e *Engine) Cancel() {
	if e.coord != nil {
		e.coord.RequestCancel()
	}
}

// Pipeline returns the installed graph, or nil.
func (e *Engine) Pipeline() *Pipeline {
	if e.store == nil {
		return nil
	}
	return e.store.Pipeline()
}

// Execution returns a copy of the current execution record, or nil before
// the first run.
func (e *Engine) Execution() *Execution {
	if e.store == nil {
		return nil
	}
	return e.store.Execution()
}

// History returns copies of all finalized execution records, oldest first.
func (e *Engine) History() []*Execution {
	if e.store == nil {
		return nil
	}
	return e.store.History()
}

// NodeTypes lists the registered node type identifiers.
func (e *Engine) NodeTypes() []string {
	return e.registry.Types()
}

// SaveState writes the pipeline, current execution and history as JSON.
func (e *Engine) SaveState(w io.Writer) error {
	if e.store == nil {
		return fmt.Errorf("no pipeline set")
	}
	return e.store.Save(w)
}

// LoadState restores engine state from a snapshot previously written by
// SaveState.
func (e *Engine) LoadState(r io.Reader) error {
	if e.running.Load() {
		return fmt.Errorf("cannot load state while a run is in progress")
	}
	store := state.New(&pipeline.Pipeline{})
	if err := store.Load(r); err != nil {
		return err
	}
	e.store = store
	e.coord = coordinator.New(e.registry, e.dispatcher, dataflow.New(), e.store, e.bus)
	return nil
}

// OnRunStarted registers a handler invoked when a run begins.
func (e *Engine) OnRunStarted(fn func(RunStartedEvent)) { e.bus.OnRunStarted(fn) }

// OnNodeCompleted registers a handler invoked after each node reaches a
// terminal status, including error.
func (e *Engine) OnNodeCompleted(fn func(NodeCompletedEvent)) { e.bus.OnNodeCompleted(fn) }

// OnRunCompleted registers a handler invoked when a run loop ends.
func (e *Engine) OnRunCompleted(fn func(RunCompletedEvent)) { e.bus.OnRunCompleted(fn) }

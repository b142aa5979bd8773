// Package state holds the single source of truth for a pipeline run: the
// graph, per-node status/result/error, the current execution record and the
// run history.
//
// The store is mutated exclusively by the coordinator through the scoped
// update methods below; external observers (a canvas UI, tests) read
// snapshots concurrently. Reads return copies so observers never see a
// half-applied update.
package state

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/santosrai/flowgrid/internal/pipeline"
)

// Store is the execution state container for one pipeline.
type Store struct {
	mu        sync.RWMutex
	pipeline  *pipeline.Pipeline
	execution *pipeline.Execution
	history   []*pipeline.Execution
}

// New creates a store owning the given pipeline graph.
func New(p *pipeline.Pipeline) *Store {
	return &Store{pipeline: p}
}

// Pipeline returns the live pipeline graph. The coordinator owns it during a
// run; observers should prefer NodeSnapshot and Execution.
func (s *Store) Pipeline() *pipeline.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline
}

// NodeSnapshot returns a copy of a node's current state, or nil for unknown
// ids.
func (s *Store) NodeSnapshot(nodeID string) *pipeline.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.pipeline.NodeByID(nodeID)
	if n == nil {
		return nil
	}
	cp := *n
	return &cp
}

// BeginExecution creates the execution record for a new run and makes it
// current. The previous current execution, if any, was already copied into
// history when it finalized.
func (s *Store) BeginExecution(startedAt time.Time) *pipeline.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.execution = &pipeline.Execution{
		ID:        uuid.New().String(),
		StartedAt: startedAt,
		Status:    pipeline.StatusRunning,
		Logs:      []pipeline.ExecutionLogEntry{},
	}
	s.pipeline.Status = pipeline.StatusRunning
	return s.execution.Clone()
}

// FinalizeExecution marks the current execution completed, retains it as
// current, and appends a detached copy to the history. The record is never
// cleared; it stays readable until the next run begins.
func (s *Store) FinalizeExecution(completedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.execution == nil {
		return
	}
	s.execution.CompletedAt = completedAt
	s.execution.Status = pipeline.StatusCompleted
	s.pipeline.Status = pipeline.StatusCompleted
	s.history = append(s.history, s.execution.Clone())
}

// Execution returns a copy of the current execution record, or nil before
// the first run.
func (s *Store) Execution() *pipeline.Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.execution.Clone()
}

// History returns copies of all finalized execution records, oldest first.
func (s *Store) History() []*pipeline.Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*pipeline.Execution, len(s.history))
	for i, e := range s.history {
		out[i] = e.Clone()
	}
	return out
}

// UpdateNodeStatus sets a node's status and error message. An empty errMsg
// leaves any previous error untouched unless the status is non-error, in
// which case the error is cleared.
func (s *Store) UpdateNodeStatus(nodeID string, status pipeline.Status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.pipeline.NodeByID(nodeID)
	if n == nil {
		return
	}
	n.Status = status
	if errMsg != "" {
		n.Error = errMsg
	} else if status != pipeline.StatusError {
		n.Error = ""
	}
}

// SetNodeResult writes a node's result metadata in one assignment, before
// the coordinator marks the node completed. Result metadata is never cleared
// implicitly; passing nil is a no-op.
func (s *Store) SetNodeResult(nodeID string, resultMetadata map[string]any) {
	if resultMetadata == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.pipeline.NodeByID(nodeID); n != nil {
		n.ResultMetadata = resultMetadata
	}
}

// NodePatch is a scoped update applied to a node by UpdateNode. Nil fields
// are left untouched.
type NodePatch struct {
	Status         *pipeline.Status
	ResultMetadata map[string]any
	Error          *string
	Config         map[string]any
}

// UpdateNode applies a patch to a node under one lock acquisition.
func (s *Store) UpdateNode(nodeID string, patch NodePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.pipeline.NodeByID(nodeID)
	if n == nil {
		return
	}
	if patch.Status != nil {
		n.Status = *patch.Status
	}
	if patch.ResultMetadata != nil {
		n.ResultMetadata = patch.ResultMetadata
	}
	if patch.Error != nil {
		n.Error = *patch.Error
	}
	if patch.Config != nil {
		n.Config = patch.Config
	}
}

// AddExecutionLog appends a log entry to the current execution.
func (s *Store) AddExecutionLog(entry pipeline.ExecutionLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.execution == nil {
		return
	}
	s.execution.Logs = append(s.execution.Logs, entry)
}

// LogPatch is a scoped update applied to a node's latest log entry. Nil
// fields are left untouched.
type LogPatch struct {
	Status      *pipeline.Status
	CompletedAt *time.Time
	Duration    *time.Duration
	Output      any
	Request     *pipeline.RequestEnvelope
	Response    *pipeline.ResponseEnvelope
	Error       *string
}

// UpdateExecutionLog patches the most recent log entry for the given node.
// Missing entries are ignored; a node that never started has nothing to
// patch.
func (s *Store) UpdateExecutionLog(nodeID string, patch LogPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.execution == nil {
		return
	}
	for i := len(s.execution.Logs) - 1; i >= 0; i-- {
		if s.execution.Logs[i].NodeID != nodeID {
			continue
		}
		entry := &s.execution.Logs[i]
		if patch.Status != nil {
			entry.Status = *patch.Status
		}
		if patch.CompletedAt != nil {
			entry.CompletedAt = *patch.CompletedAt
		}
		if patch.Duration != nil {
			entry.Duration = *patch.Duration
		}
		if patch.Output != nil {
			entry.Output = patch.Output
		}
		if patch.Request != nil {
			entry.Request = patch.Request
		}
		if patch.Response != nil {
			entry.Response = patch.Response
		}
		if patch.Error != nil {
			entry.Error = *patch.Error
		}
		return
	}
}

// snapshot is the persisted form of the store.
type snapshot struct {
	Pipeline  *pipeline.Pipeline    `json:"pipeline"`
	Execution *pipeline.Execution   `json:"execution,omitempty"`
	History   []*pipeline.Execution `json:"history,omitempty"`
}

// Save writes the complete store state as JSON. Called at defined
// boundaries (after a run, on host shutdown) rather than on every mutation.
func (s *Store) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot{
		Pipeline:  s.pipeline,
		Execution: s.execution,
		History:   s.history,
	}); err != nil {
		return fmt.Errorf("failed to save state snapshot: %w", err)
	}
	return nil
}

// Load replaces the store state from a JSON snapshot previously produced by
// Save.
func (s *Store) Load(r io.Reader) error {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("failed to load state snapshot: %w", err)
	}
	if snap.Pipeline == nil {
		return fmt.Errorf("state snapshot contains no pipeline")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline = snap.Pipeline
	s.execution = snap.Execution
	s.history = snap.History
	return nil
}

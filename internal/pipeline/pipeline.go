// Package pipeline defines the data model shared by every component of the
// execution engine: the node graph supplied by the hosting application, the
// per-node execution state mutated during a run, and the execution records
// retained for inspection afterwards.
//
// The graph structure (nodes, edges, handles) is immutable during a run.
// Mutable state (status, result metadata, errors, logs) lives on the same
// structs but is only ever written by the coordinator through the state
// store's scoped update methods.
package pipeline

import "time"

// Status is the lifecycle state of a node or a whole pipeline run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Terminal reports whether the status is a final state for a node within a
// single run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusSuccess || s == StatusError
}

// Succeeded reports whether the status represents a successfully finished
// node. Both "completed" and "success" are accepted; the canvas frontend
// historically produced either depending on the node type.
func (s Status) Succeeded() bool {
	return s == StatusCompleted || s == StatusSuccess
}

// Pipeline is the node graph a run operates on. Node ids are unique within
// a pipeline and every edge references existing node ids; Validate enforces
// both before a run starts.
type Pipeline struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Nodes  []*Node `json:"nodes"`
	Edges  []*Edge `json:"edges"`
	Status Status  `json:"status"`
}

// Node is a typed unit of work in the graph. Config is seeded from the node
// definition's default config at creation time and may be overridden by the
// graph editor. ResultMetadata is written atomically by the coordinator
// before the node is marked completed and is never cleared implicitly.
type Node struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Label          string         `json:"label"`
	Config         map[string]any `json:"config,omitempty"`
	Status         Status         `json:"status"`
	ResultMetadata map[string]any `json:"result_metadata,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Edge is a directed connection from one node's output handle to another
// node's input handle. A target handle is assumed to have a single incoming
// edge.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (p *Pipeline) NodeByID(id string) *Node {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// EdgeInto returns the single edge targeting the given node and handle, or
// nil when the handle is unconnected. An empty handle id on the edge matches
// any requested handle, mirroring how the canvas connects single-input
// nodes.
func (p *Pipeline) EdgeInto(nodeID, handleID string) *Edge {
	for _, e := range p.Edges {
		if e.Target != nodeID {
			continue
		}
		if e.TargetHandle == handleID || e.TargetHandle == "" || handleID == "" {
			return e
		}
	}
	return nil
}

// RequestEnvelope captures the final outgoing HTTP request of an api_call
// node for logging and error reporting.
type RequestEnvelope struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// ResponseEnvelope captures the HTTP response of an api_call node regardless
// of status code.
type ResponseEnvelope struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	Data       any               `json:"data,omitempty"`
}

// ExecutionLogEntry is the per-node record of one run: timing, resolved
// input, produced output, the request/response envelopes when the node made
// an HTTP call, and the error message when it failed.
type ExecutionLogEntry struct {
	NodeID      string            `json:"nodeId"`
	NodeLabel   string            `json:"nodeLabel"`
	NodeType    string            `json:"nodeType"`
	Status      Status            `json:"status"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt,omitempty"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Input       any               `json:"input,omitempty"`
	Output      any               `json:"output,omitempty"`
	Request     *RequestEnvelope  `json:"request,omitempty"`
	Response    *ResponseEnvelope `json:"response,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Execution is one full run of a pipeline. It is created when the run
// starts, finalized when the run loop ends, and retained as "current" until
// the next run begins; a copy is also appended to the run history.
type Execution struct {
	ID          string              `json:"id"`
	StartedAt   time.Time           `json:"startedAt"`
	CompletedAt time.Time           `json:"completedAt,omitempty"`
	Status      Status              `json:"status"`
	Logs        []ExecutionLogEntry `json:"logs"`
}

// Clone returns a deep copy of the execution record, detached from any
// further coordinator writes.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Logs = make([]ExecutionLogEntry, len(e.Logs))
	copy(cp.Logs, e.Logs)
	return &cp
}

package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStatus_Terminal covers terminal and succeeded classification.
func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusCompleted, StatusSuccess, StatusError} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []Status{StatusIdle, StatusPending, StatusRunning} {
		assert.False(t, s.Terminal(), s)
	}

	assert.True(t, StatusCompleted.Succeeded())
	assert.True(t, StatusSuccess.Succeeded())
	assert.False(t, StatusError.Succeeded())
	assert.False(t, StatusRunning.Succeeded())
}

// TestEdgeInto validates handle matching, including the empty-handle
// wildcard the canvas produces for single-input nodes.
func TestEdgeInto(t *testing.T) {
	t.Parallel()

	p := &Pipeline{
		Nodes: []*Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []*Edge{
			{ID: "e1", Source: "a", Target: "b", TargetHandle: "left"},
			{ID: "e2", Source: "c", Target: "b", TargetHandle: "right"},
			{ID: "e3", Source: "a", Target: "c"},
		},
	}

	require.NotNil(t, p.EdgeInto("b", "left"))
	assert.Equal(t, "e1", p.EdgeInto("b", "left").ID)
	assert.Equal(t, "e2", p.EdgeInto("b", "right").ID)
	assert.Nil(t, p.EdgeInto("b", "middle"))

	// An edge without a target handle matches any requested handle.
	assert.Equal(t, "e3", p.EdgeInto("c", "whatever").ID)

	assert.Nil(t, p.EdgeInto("a", "left"))
}

// TestNodeByID validates lookup.
func TestNodeByID(t *testing.T) {
	t.Parallel()

	p := &Pipeline{Nodes: []*Node{{ID: "x"}}}
	require.NotNil(t, p.NodeByID("x"))
	assert.Nil(t, p.NodeByID("y"))
}

// TestExecution_Clone validates the copy is detached from the original's
// log slice.
func TestExecution_Clone(t *testing.T) {
	t.Parallel()

	var nilExec *Execution
	assert.Nil(t, nilExec.Clone())

	e := &Execution{ID: "e1", Logs: []ExecutionLogEntry{{NodeID: "a"}}}
	cp := e.Clone()
	cp.Logs[0].NodeID = "changed"
	cp.Logs = append(cp.Logs, ExecutionLogEntry{NodeID: "b"})

	assert.Equal(t, "a", e.Logs[0].NodeID)
	assert.Len(t, e.Logs, 1)
}

// TestErrorTypes validates messages and unwrapping for the typed errors.
func TestErrorTypes(t *testing.T) {
	t.Parallel()

	t.Run("configuration error", func(t *testing.T) {
		err := &ConfigurationError{NodeID: "n1", Field: "endpoint", Msg: "missing endpoint", Hint: "configure the URL"}
		assert.Contains(t, err.Error(), "n1")
		assert.Contains(t, err.Error(), "configure the URL")
		assert.True(t, IsConfigurationError(err))
		assert.False(t, IsValidationError(err))
	})

	t.Run("validation error", func(t *testing.T) {
		err := &ValidationError{NodeID: "n1", Handle: "sequence", Msg: "no upstream data"}
		assert.Contains(t, err.Error(), `"sequence"`)
		assert.True(t, IsValidationError(err))
	})

	t.Run("http error unwraps", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := &HTTPError{Request: &RequestEnvelope{}, Err: cause}
		assert.True(t, errors.Is(err, cause))
		assert.Contains(t, err.Error(), "connection refused")

		statusErr := &HTTPError{Status: 503}
		assert.Contains(t, statusErr.Error(), "503")
	})

	t.Run("script error unwraps", func(t *testing.T) {
		cause := errors.New("boom")
		err := &ScriptError{NodeID: "n1", Err: cause}
		assert.True(t, errors.Is(err, cause))
		assert.Contains(t, err.Error(), "boom")
	})
}

package toposort

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santosrai/flowgrid/internal/pipeline"
)

func graph(nodes []string, edges [][2]string) *pipeline.Pipeline {
	p := &pipeline.Pipeline{ID: "p1"}
	for _, id := range nodes {
		p.Nodes = append(p.Nodes, &pipeline.Node{ID: id, Type: "log"})
	}
	for i, e := range edges {
		p.Edges = append(p.Edges, &pipeline.Edge{
			ID:     string(rune('a' + i)),
			Source: e[0],
			Target: e[1],
		})
	}
	return p
}

// TestSort_LinearChain validates that a chain executes source to sink.
func TestSort_LinearChain(t *testing.T) {
	t.Parallel()

	p := graph([]string{"C", "A", "B"}, [][2]string{{"A", "B"}, {"B", "C"}})

	order, err := Sort(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

// TestSort_EveryEdgeRespected validates the order places each edge's source
// before its target in a diamond-shaped graph.
func TestSort_EveryEdgeRespected(t *testing.T) {
	t.Parallel()

	edges := [][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}}
	p := graph([]string{"A", "B", "C", "D"}, edges)

	order, err := Sort(p)
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, e := range edges {
		assert.Less(t, pos[e[0]], pos[e[1]], "edge %s->%s out of order", e[0], e[1])
	}
}

// TestSort_Deterministic validates ties are broken by declaration order, so
// the same pipeline always yields the same order.
func TestSort_Deterministic(t *testing.T) {
	t.Parallel()

	p := graph([]string{"X", "Y", "Z"}, nil)

	first, err := Sort(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, first)

	for i := 0; i < 10; i++ {
		again, err := Sort(p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestSort_CycleRejected validates a cyclic graph fails with
// ErrCyclicPipeline naming the stuck nodes.
func TestSort_CycleRejected(t *testing.T) {
	t.Parallel()

	p := graph([]string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "B"}})

	order, err := Sort(p)
	assert.Nil(t, order)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrCyclicPipeline))
	assert.Contains(t, err.Error(), "B")
	assert.Contains(t, err.Error(), "C")
}

// TestOrder_IgnoresUnknownEdgeEndpoints validates edges referencing node ids
// outside the graph do not affect ordering.
func TestOrder_IgnoresUnknownEdgeEndpoints(t *testing.T) {
	t.Parallel()

	p := graph([]string{"A", "B"}, [][2]string{{"ghost", "A"}, {"A", "B"}})

	order := Order(p)
	assert.Equal(t, []string{"A", "B"}, order)
}

// TestOrder_EmptyPipeline validates the degenerate cases.
func TestOrder_EmptyPipeline(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Order(&pipeline.Pipeline{}))

	single := graph([]string{"only"}, nil)
	assert.Equal(t, []string{"only"}, Order(single))
}

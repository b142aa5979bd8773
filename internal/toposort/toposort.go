// Package toposort computes the linear execution order of a pipeline graph.
package toposort

import (
	"fmt"

	"github.com/santosrai/flowgrid/internal/pipeline"
)

// Order computes a topological order over the pipeline's nodes using Kahn's
// algorithm. Edges referencing unknown node ids are ignored. Ties are broken
// by original node-array position, so the order is deterministic for a given
// pipeline.
//
// When the graph contains a cycle the returned slice is shorter than the
// node count: the nodes on the cycle never reach in-degree zero. Callers
// that must reject cycles use Sort instead.
func Order(p *pipeline.Pipeline) []string {
	known := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		known[n.ID] = true
	}

	inDegree := make(map[string]int, len(p.Nodes))
	adjacency := make(map[string][]string, len(p.Nodes))
	for _, n := range p.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range p.Edges {
		if !known[e.Source] || !known[e.Target] {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	// Seed the FIFO queue with zero in-degree nodes in declaration order.
	queue := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(p.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, next := range adjacency[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return order
}

// Sort returns the full execution order or ErrCyclicPipeline naming the
// nodes stuck on a cycle.
func Sort(p *pipeline.Pipeline) ([]string, error) {
	order := Order(p)
	if len(order) == len(p.Nodes) {
		return order, nil
	}

	visited := make(map[string]bool, len(order))
	for _, id := range order {
		visited[id] = true
	}
	var cyclic []string
	for _, n := range p.Nodes {
		if !visited[n.ID] {
			cyclic = append(cyclic, n.ID)
		}
	}
	return nil, fmt.Errorf("%w: unresolvable nodes %v", pipeline.ErrCyclicPipeline, cyclic)
}

// Package graph builds, validates and repairs the dependency graph of workflow phases.
package graph

import (
	"slices"

	"github.com/dukex/refiner/pkg/models"
)

// Build performs the naive construction: one node per phase and one edge from each
// declared dependency to its dependent phase, in declaration order. Repeated
// dependencies produce a single edge. Dependencies on unknown phases are kept as
// dangling edges.
func Build(phases []*models.Phase) *models.DependencyGraph {
	g := &models.DependencyGraph{
		Nodes: make([]models.GraphNode, 0, len(phases)),
		Edges: make([]models.Edge, 0),
	}

	for _, phase := range phases {
		if phase == nil {
			continue
		}

		g.Nodes = append(g.Nodes, models.GraphNode{ID: phase.ID})
	}

	for _, phase := range phases {
		if phase == nil {
			continue
		}

		for _, dep := range phase.DependsOn {
			edge := models.Edge{From: dep, To: phase.ID}
			if !slices.Contains(g.Edges, edge) {
				g.Edges = append(g.Edges, edge)
			}
		}
	}

	return g
}

// HasCycle reports whether the graph contains a directed cycle.
func HasCycle(g *models.DependencyGraph) bool {
	return len(FindCycle(g)) > 0
}

// FindCycle returns the edges of the first cycle found by a depth-first traversal
// with recursion-stack tracking, or nil when the graph is acyclic. Nodes and edges are
// visited in insertion order so the result is deterministic.
func FindCycle(g *models.DependencyGraph) []models.Edge {
	if g == nil {
		return nil
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the recursion stack
		black = 2 // finished
	)

	adjacency := adjacencyOf(g)
	color := make(map[string]int, len(g.Nodes))
	stack := make([]models.Edge, 0)

	var cycle []models.Edge

	var visit func(node string) bool
	visit = func(node string) bool {
		color[node] = gray

		for _, edge := range adjacency[node] {
			switch color[edge.To] {
			case gray:
				// The loop starts at the stack edge leaving the gray node.
				start := len(stack)
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i].From == edge.To {
						start = i

						break
					}
				}

				cycle = append(append([]models.Edge(nil), stack[start:]...), edge)

				return true
			case white:
				stack = append(stack, edge)
				if visit(edge.To) {
					return true
				}

				stack = stack[:len(stack)-1]
			}
		}

		color[node] = black

		return false
	}

	for _, node := range nodeOrder(g) {
		if color[node] == white && visit(node) {
			return cycle
		}
	}

	return nil
}

// reachable reports whether target can be reached from source.
func reachable(g *models.DependencyGraph, source, target string) bool {
	adjacency := adjacencyOf(g)
	seen := map[string]bool{source: true}
	queue := []string{source}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if node == target {
			return true
		}

		for _, edge := range adjacency[node] {
			if !seen[edge.To] {
				seen[edge.To] = true
				queue = append(queue, edge.To)
			}
		}
	}

	return false
}

func adjacencyOf(g *models.DependencyGraph) map[string][]models.Edge {
	adjacency := make(map[string][]models.Edge, len(g.Nodes))
	for _, edge := range g.Edges {
		adjacency[edge.From] = append(adjacency[edge.From], edge)
	}

	return adjacency
}

// nodeOrder lists node ids in insertion order followed by any edge endpoint that is
// not a declared node.
func nodeOrder(g *models.DependencyGraph) []string {
	order := make([]string, 0, len(g.Nodes))
	seen := make(map[string]bool, len(g.Nodes))

	for _, node := range g.Nodes {
		if !seen[node.ID] {
			seen[node.ID] = true
			order = append(order, node.ID)
		}
	}

	for _, edge := range g.Edges {
		for _, id := range []string{edge.From, edge.To} {
			if !seen[id] {
				seen[id] = true
				order = append(order, id)
			}
		}
	}

	return order
}

func outDegree(g *models.DependencyGraph, id string) int {
	count := 0

	for _, edge := range g.Edges {
		if edge.From == id {
			count++
		}
	}

	return count
}

func edgeIndex(g *models.DependencyGraph, edge models.Edge) int {
	return slices.Index(g.Edges, edge)
}

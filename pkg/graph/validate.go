package graph

import (
	"fmt"
	"slices"

	"github.com/dukex/refiner/pkg/models"
)

// RepairKind identifies the strategy used to repair the graph.
type RepairKind string

const (
	RepairMissingNode    RepairKind = "missing_node"
	RepairEdgeReversed   RepairKind = "edge_reversed"
	RepairNodeDuplicated RepairKind = "node_duplicated"
)

// Repair describes a single change made to the graph during validation.
type Repair struct {
	Kind RepairKind  `json:"kind"`
	Node string      `json:"node,omitempty"`
	Edge models.Edge `json:"edge"`
	// Replacement is the edge that took the place of Edge, if any.
	Replacement models.Edge `json:"replacement"`
}

// Note renders the repair as a workflow note.
func (r Repair) Note() string {
	switch r.Kind {
	case RepairMissingNode:
		return fmt.Sprintf("graph: auto-generated placeholder phase %q required by %q", r.Node, r.Edge.To)
	case RepairEdgeReversed:
		return fmt.Sprintf("graph: reversed dependency %s->%s to break a cycle", r.Edge.From, r.Edge.To)
	case RepairNodeDuplicated:
		return fmt.Sprintf("graph: duplicated phase as %q and rewired %s->%s to %s->%s to break a cycle",
			r.Node, r.Edge.From, r.Edge.To, r.Replacement.From, r.Replacement.To)
	default:
		return "graph: " + string(r.Kind)
	}
}

// Result is the outcome of validating a workflow's phases.
type Result struct {
	Graph   *models.DependencyGraph
	Valid   bool
	Repairs []Repair
	Err     error
}

// Notes returns the notes of every repair, in the order they were made.
func (r Result) Notes() []string {
	notes := make([]string, 0, len(r.Repairs))
	for _, repair := range r.Repairs {
		notes = append(notes, repair.Note())
	}

	return notes
}

// Validate builds the dependency graph of the phases and repairs it where possible.
// Duplicate or empty phase ids fail without any repair. Missing dependencies become
// auto-generated placeholder nodes. Each cycle gets exactly one repair attempt:
// reverse its most recently added edge or, when that closes another loop, duplicate
// the endpoint with fewer out-edges and rewire the edge to the duplicate.
func Validate(phases []*models.Phase) Result {
	seen := make(map[string]bool, len(phases))

	for i, phase := range phases {
		if phase == nil || phase.ID == "" {
			return Result{Err: fmt.Errorf("%w: phase %d has no id", ErrInvalidPhase, i)}
		}

		if seen[phase.ID] {
			return Result{Err: fmt.Errorf("%w: %s", ErrDuplicatePhase, phase.ID)}
		}

		seen[phase.ID] = true
	}

	g := Build(phases)
	repairs := addMissingNodes(g)

	// A repair never introduces a cycle, so one repair per edge always suffices.
	cycleRepairs, err := repairCycles(g, len(g.Edges))
	repairs = append(repairs, cycleRepairs...)

	if err != nil {
		return Result{Graph: g, Repairs: repairs, Err: err}
	}

	return Result{Graph: g, Valid: true, Repairs: repairs}
}

// repairCycles repairs one cycle at a time until the graph is acyclic. A cycle still
// present once limit repairs were made is unrepairable.
func repairCycles(g *models.DependencyGraph, limit int) ([]Repair, error) {
	var repairs []Repair

	for {
		cycle := FindCycle(g)
		if cycle == nil {
			return repairs, nil
		}

		if len(repairs) >= limit {
			return repairs, fmt.Errorf("%w: %s", ErrUnrepairableCycle, describe(cycle))
		}

		repairs = append(repairs, repairCycle(g, cycle))
	}
}

func addMissingNodes(g *models.DependencyGraph) []Repair {
	var repairs []Repair

	for _, edge := range g.Edges {
		if g.HasNode(edge.From) {
			continue
		}

		g.Nodes = append(g.Nodes, models.GraphNode{ID: edge.From, AutoGenerated: true})
		repairs = append(repairs, Repair{Kind: RepairMissingNode, Node: edge.From, Edge: edge})
	}

	return repairs
}

func repairCycle(g *models.DependencyGraph, cycle []models.Edge) Repair {
	latest := cycle[0]
	for _, edge := range cycle[1:] {
		if edgeIndex(g, edge) > edgeIndex(g, latest) {
			latest = edge
		}
	}

	if repair, ok := reverseEdge(g, latest); ok {
		return repair
	}

	return duplicateWeaker(g, latest)
}

// reverseEdge replaces edge with its reverse unless the reversed edge would close a
// new loop, in which case the graph is left untouched.
func reverseEdge(g *models.DependencyGraph, edge models.Edge) (Repair, bool) {
	if edge.From == edge.To {
		return Repair{}, false
	}

	idx := edgeIndex(g, edge)
	without := &models.DependencyGraph{
		Nodes: g.Nodes,
		Edges: slices.Delete(slices.Clone(g.Edges), idx, idx+1),
	}

	if reachable(without, edge.From, edge.To) {
		return Repair{}, false
	}

	reversed := models.Edge{From: edge.To, To: edge.From}
	if !slices.Contains(without.Edges, reversed) {
		without.Edges = append(without.Edges, reversed)
	}

	g.Edges = without.Edges

	return Repair{Kind: RepairEdgeReversed, Edge: edge, Replacement: reversed}, true
}

func duplicateWeaker(g *models.DependencyGraph, edge models.Edge) Repair {
	weaker := edge.To
	if outDegree(g, edge.From) < outDegree(g, edge.To) {
		weaker = edge.From
	}

	duplicate := uniqueID(g, weaker)
	g.Nodes = append(g.Nodes, models.GraphNode{ID: duplicate, AutoGenerated: true})

	replacement := models.Edge{From: edge.From, To: duplicate}
	if weaker == edge.From && edge.From != edge.To {
		replacement = models.Edge{From: duplicate, To: edge.To}
	}

	g.Edges[edgeIndex(g, edge)] = replacement

	return Repair{Kind: RepairNodeDuplicated, Node: duplicate, Edge: edge, Replacement: replacement}
}

func uniqueID(g *models.DependencyGraph, base string) string {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s~dup%d", base, n)
		if !g.HasNode(candidate) {
			return candidate
		}
	}
}

func describe(cycle []models.Edge) string {
	if len(cycle) == 0 {
		return ""
	}

	path := cycle[0].From
	for _, edge := range cycle {
		path += " -> " + edge.To
	}

	return path
}

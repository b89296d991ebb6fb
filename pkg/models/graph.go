package models

// GraphNode is a node of a dependency graph. Nodes synthesised during repair are
// marked AutoGenerated.
type GraphNode struct {
	ID            string `json:"id"                       yaml:"id"`
	AutoGenerated bool   `json:"auto_generated,omitempty" yaml:"auto_generated,omitempty"`
}

// Edge is a directed dependency edge: To depends on From.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to"   yaml:"to"`
}

// DependencyGraph is the directed graph of phase dependencies.
type DependencyGraph struct {
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
	Edges []Edge      `json:"edges" yaml:"edges"`
}

// HasNode reports whether id is a node of the graph.
func (g *DependencyGraph) HasNode(id string) bool {
	for _, node := range g.Nodes {
		if node.ID == id {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the graph.
func (g *DependencyGraph) Clone() *DependencyGraph {
	if g == nil {
		return nil
	}

	return &DependencyGraph{
		Nodes: append([]GraphNode(nil), g.Nodes...),
		Edges: append([]Edge(nil), g.Edges...),
	}
}

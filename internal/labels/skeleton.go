package labels

import "fmt"

// Edge connects two skeleton nodes by index.
type Edge struct {
	Src int
	Dst int
}

// Skeleton is an ordered set of named nodes plus edges between node
// indices. Skeletons are shared by reference across a Labels collection;
// instances never hold private copies.
type Skeleton struct {
	Name  string
	Nodes []string
	Edges []Edge
}

// NewSkeleton builds a skeleton after checking node-name uniqueness and
// edge index bounds.
func NewSkeleton(name string, nodes []string, edges []Edge) (*Skeleton, error) {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if seen[n] {
			return nil, fmt.Errorf("duplicate node name %q in skeleton %q", n, name)
		}
		seen[n] = true
	}
	for _, e := range edges {
		if e.Src < 0 || e.Src >= len(nodes) || e.Dst < 0 || e.Dst >= len(nodes) {
			return nil, fmt.Errorf("edge (%d,%d) out of range for %d nodes", e.Src, e.Dst, len(nodes))
		}
	}
	return &Skeleton{Name: name, Nodes: nodes, Edges: edges}, nil
}

// NodeIndex returns the index of the named node, or -1.
func (s *Skeleton) NodeIndex(name string) int {
	for i, n := range s.Nodes {
		if n == name {
			return i
		}
	}
	return -1
}

// Matches reports structural equality: same node names in the same order
// and the same edge set. Identity is still by pointer; Matches only backs
// dedup on read.
func (s *Skeleton) Matches(other *Skeleton) bool {
	if len(s.Nodes) != len(other.Nodes) || len(s.Edges) != len(other.Edges) {
		return false
	}
	for i, n := range s.Nodes {
		if other.Nodes[i] != n {
			return false
		}
	}
	for i, e := range s.Edges {
		if other.Edges[i] != e {
			return false
		}
	}
	return true
}

package graph

import (
	"sync"
)

// WaitGraph tracks which in-flight constructions are blocked on which others.
// An edge from -> to means "from cannot finish until to has finished".
// Adding an edge that would close a cycle is rejected, which turns a
// would-be deadlock into a CircularDependencyError.
type WaitGraph[K comparable] struct {
	mu    sync.Mutex
	edges map[K]map[K]int // adjacency list with edge multiplicity
	name  func(K) string
}

// NewWaitGraph creates an empty wait graph. name renders keys in errors.
func NewWaitGraph[K comparable](name func(K) string) *WaitGraph[K] {
	return &WaitGraph[K]{
		edges: make(map[K]map[K]int),
		name:  name,
	}
}

// AddEdge records that from waits on to. It fails without recording anything
// if to already (transitively) waits on from.
func (g *WaitGraph[K]) AddEdge(from, to K) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if path := g.findPath(to, from); path != nil {
		// path runs to ... from; the cycle starts at from
		cycle := make([]string, 0, len(path))
		cycle = append(cycle, g.name(from))
		for _, k := range path[:len(path)-1] {
			cycle = append(cycle, g.name(k))
		}
		return &CircularDependencyError{Node: g.name(from), Path: cycle}
	}

	tos, ok := g.edges[from]
	if !ok {
		tos = make(map[K]int)
		g.edges[from] = tos
	}
	tos[to]++

	return nil
}

// RemoveEdge removes one occurrence of the edge from -> to.
func (g *WaitGraph[K]) RemoveEdge(from, to K) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tos, ok := g.edges[from]
	if !ok {
		return
	}

	if tos[to] <= 1 {
		delete(tos, to)
	} else {
		tos[to]--
	}

	if len(tos) == 0 {
		delete(g.edges, from)
	}
}

// Len returns the number of distinct edges.
func (g *WaitGraph[K]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := 0
	for _, tos := range g.edges {
		count += len(tos)
	}
	return count
}

// findPath returns the nodes from start to target inclusive, or nil.
func (g *WaitGraph[K]) findPath(start, target K) []K {
	if start == target {
		return []K{start}
	}

	visited := make(map[K]bool)
	var path []K

	var visit func(node K) bool
	visit = func(node K) bool {
		if visited[node] {
			return false
		}
		visited[node] = true
		path = append(path, node)

		if node == target {
			return true
		}

		for next := range g.edges[node] {
			if visit(next) {
				return true
			}
		}

		path = path[:len(path)-1]
		return false
	}

	if visit(start) {
		return path
	}
	return nil
}

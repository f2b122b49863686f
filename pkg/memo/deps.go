package memo

import (
	"fmt"
	"strings"
	"sync"
)

// CycleError reports a cyclic dependency among registered producers.
// It is a descriptor-authoring bug: a cycle would deadlock the nested
// single-flight computations, so registration fails fast instead.
type CycleError struct {
	// Path is the cycle, starting and ending at the same producer.
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("memo: cyclic producer dependency: %s", strings.Join(e.Path, " -> "))
}

// Graph tracks declared dependencies between producers. Edges are added
// at registration time; AddEdge rejects any edge that would close a
// cycle with a *CycleError carrying the full path.
type Graph struct {
	mu    sync.RWMutex
	edges map[string]map[string]struct{}
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string]map[string]struct{})}
}

// AddNode registers a producer with no dependencies yet. Idempotent.
func (g *Graph) AddNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[name]; !ok {
		g.edges[name] = make(map[string]struct{})
	}
}

// AddEdge declares that from depends on to. Returns a *CycleError if the
// edge would make the graph cyclic; the graph is left unchanged in that
// case.
func (g *Graph) AddEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if from == to {
		return &CycleError{Path: []string{from, to}}
	}
	if path := g.pathLocked(to, from); path != nil {
		return &CycleError{Path: append([]string{from}, path...)}
	}

	if _, ok := g.edges[from]; !ok {
		g.edges[from] = make(map[string]struct{})
	}
	if _, ok := g.edges[to]; !ok {
		g.edges[to] = make(map[string]struct{})
	}
	g.edges[from][to] = struct{}{}
	return nil
}

// DependsOn reports whether from transitively depends on to.
func (g *Graph) DependsOn(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pathLocked(from, to) != nil
}

// pathLocked returns a dependency path from start to target, or nil.
// Caller must hold at least the read lock.
func (g *Graph) pathLocked(start, target string) []string {
	if start == target {
		return []string{start}
	}
	visited := make(map[string]struct{})
	var dfs func(node string) []string
	dfs = func(node string) []string {
		if node == target {
			return []string{node}
		}
		if _, seen := visited[node]; seen {
			return nil
		}
		visited[node] = struct{}{}
		for next := range g.edges[node] {
			if path := dfs(next); path != nil {
				return append([]string{node}, path...)
			}
		}
		return nil
	}
	return dfs(start)
}

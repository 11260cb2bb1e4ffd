package planner

import (
	"fmt"
	"sort"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// InvocationGraph represents the DAG of invocations with cycle detection and topological sorting
type InvocationGraph struct {
	invocations map[string]*model.Invocation
	position    map[string]int
}

// NewInvocationGraph creates a graph over invocations, remembering their build order
func NewInvocationGraph(invocations []model.Invocation) *InvocationGraph {
	g := &InvocationGraph{
		invocations: make(map[string]*model.Invocation, len(invocations)),
		position:    make(map[string]int, len(invocations)),
	}
	for i := range invocations {
		g.invocations[invocations[i].ID] = &invocations[i]
		g.position[invocations[i].ID] = i
	}
	return g
}

// DetectCycles performs cycle detection on the dependency graph using DFS
func (g *InvocationGraph) DetectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, id := range g.ids() {
		if !visited[id] {
			if g.hasCycleDFS(id, visited, recStack) {
				return fmt.Errorf("cycle detected in invocation dependencies at %s", id)
			}
		}
	}

	return nil
}

func (g *InvocationGraph) hasCycleDFS(node string, visited, recStack map[string]bool) bool {
	visited[node] = true
	recStack[node] = true

	inv, exists := g.invocations[node]
	if !exists {
		return false
	}

	for _, dep := range inv.DependsOn {
		if !visited[dep] {
			if g.hasCycleDFS(dep, visited, recStack) {
				return true
			}
		} else if recStack[dep] {
			return true
		}
	}

	recStack[node] = false
	return false
}

// TopologicalSort orders invocation IDs with Kahn's algorithm. Among ready
// invocations the one built first goes first, so independent work keeps work
// item order.
func (g *InvocationGraph) TopologicalSort() ([]string, error) {
	dependents := make(map[string][]string)
	inDegree := make(map[string]int)

	for id := range g.invocations {
		inDegree[id] = 0
	}

	for id, inv := range g.invocations {
		for _, dep := range inv.DependsOn {
			if _, ok := g.invocations[dep]; !ok {
				return nil, fmt.Errorf("invocation %s depends on unknown invocation %s", id, dep)
			}
			dependents[dep] = append(dependents[dep], id)
			inDegree[id]++
		}
	}

	ready := make([]string, 0)
	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}

	sorted := make([]string, 0, len(g.invocations))
	for len(ready) > 0 {
		g.byPosition(ready)
		current := ready[0]
		ready = ready[1:]
		sorted = append(sorted, current)

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(sorted) != len(g.invocations) {
		return nil, fmt.Errorf("failed to topologically sort: possible cycle detected")
	}

	return sorted, nil
}

func (g *InvocationGraph) ids() []string {
	ids := make([]string, 0, len(g.invocations))
	for id := range g.invocations {
		ids = append(ids, id)
	}
	g.byPosition(ids)
	return ids
}

func (g *InvocationGraph) byPosition(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return g.position[ids[i]] < g.position[ids[j]]
	})
}

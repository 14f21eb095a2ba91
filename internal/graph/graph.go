// Package graph provides the dependency graph over phases used for
// wave planning and live readiness queries.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jdsingh122918/forge/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among phases.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrDuplicateID indicates two phases share the same ID.
var ErrDuplicateID = errors.New("duplicate phase id")

// ErrUnknownDependency indicates a phase depends on an ID that does not exist.
var ErrUnknownDependency = errors.New("unknown dependency")

// PhaseGraph is a read-only dependency graph derived from a phase list.
// It is rebuilt whenever the phase list changes; nothing mutates it after
// Build returns.
type PhaseGraph struct {
	// phases holds the phases in their declared order.
	phases []*models.Phase
	// index maps phase ID to its position in phases.
	index map[string]int
	// dependents maps a phase ID to the IDs of phases that depend on it
	// (forward edges, dependency -> dependent).
	dependents map[string][]string
	// dependencies maps a phase ID to the IDs it depends on
	// (reverse edges).
	dependencies map[string][]string
}

// Build constructs a PhaseGraph from the given phases.
// It fails on duplicate IDs, unknown dependencies, and cycles; cycle
// errors name the phases involved.
func Build(phases []*models.Phase) (*PhaseGraph, error) {
	g := &PhaseGraph{
		phases:       phases,
		index:        make(map[string]int, len(phases)),
		dependents:   make(map[string][]string, len(phases)),
		dependencies: make(map[string][]string, len(phases)),
	}

	// First pass: register every phase and reject duplicate IDs.
	for i, p := range phases {
		if _, exists := g.index[p.ID]; exists {
			return nil, fmt.Errorf("%w: %s (%s)", ErrDuplicateID, p.ID, p.Name)
		}
		g.index[p.ID] = i
	}

	// Second pass: build forward and reverse adjacency from DependsOn.
	for _, p := range phases {
		for _, depID := range p.DependsOn {
			if _, exists := g.index[depID]; !exists {
				return nil, fmt.Errorf("%w: phase %s depends on %s", ErrUnknownDependency, p.ID, depID)
			}
			g.dependencies[p.ID] = append(g.dependencies[p.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], p.ID)
		}
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(cycle, ", "))
	}

	return g, nil
}

// findCycle runs Kahn's algorithm and returns the IDs of phases that
// could not be removed, which is exactly the set participating in (or
// downstream of) a cycle. Returns nil for an acyclic graph.
func (g *PhaseGraph) findCycle() []string {
	inDegree := make(map[string]int, len(g.phases))
	for _, p := range g.phases {
		inDegree[p.ID] = len(g.dependencies[p.ID])
	}

	queue := make([]string, 0, len(g.phases))
	for _, p := range g.phases {
		if inDegree[p.ID] == 0 {
			queue = append(queue, p.ID)
		}
	}

	removed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		removed++

		for _, dep := range g.dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if removed == len(g.phases) {
		return nil
	}

	var cycle []string
	for id, deg := range inDegree {
		if deg > 0 {
			cycle = append(cycle, id)
		}
	}
	sort.Strings(cycle)
	return cycle
}

// Size returns the number of phases in the graph.
func (g *PhaseGraph) Size() int {
	return len(g.phases)
}

// Phase returns the phase with the given ID, or nil if not present.
func (g *PhaseGraph) Phase(id string) *models.Phase {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.phases[i]
}

// Phases returns the phases in their declared order.
func (g *PhaseGraph) Phases() []*models.Phase {
	return g.phases
}

// Dependencies returns the IDs the given phase depends on.
func (g *PhaseGraph) Dependencies(id string) []string {
	return g.dependencies[id]
}

// Dependents returns the IDs of phases that depend on the given phase.
func (g *PhaseGraph) Dependents(id string) []string {
	return g.dependents[id]
}

// DependenciesSatisfied returns true if every dependency of the given
// phase is in the completed set. This is the single readiness predicate
// used for both wave planning and live scheduling.
func (g *PhaseGraph) DependenciesSatisfied(id string, completed map[string]bool) bool {
	for _, depID := range g.dependencies[id] {
		if !completed[depID] {
			return false
		}
	}
	return true
}

// Roots returns the IDs of phases with no dependencies, in declared order.
func (g *PhaseGraph) Roots() []string {
	var roots []string
	for _, p := range g.phases {
		if len(g.dependencies[p.ID]) == 0 {
			roots = append(roots, p.ID)
		}
	}
	return roots
}

// Leaves returns the IDs of phases nothing depends on, in declared order.
func (g *PhaseGraph) Leaves() []string {
	var leaves []string
	for _, p := range g.phases {
		if len(g.dependents[p.ID]) == 0 {
			leaves = append(leaves, p.ID)
		}
	}
	return leaves
}

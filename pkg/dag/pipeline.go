// Package dag builds and validates the dependency graph a pipeline
// executes over: unique step ids, no dangling dependency references,
// and cycles, caught here at construction time rather than by a
// runtime MaxIterations guard.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Node is the minimal contract a pipeline step must satisfy to
// participate in the graph. The engine's richer step type (condition,
// input mapping, retry policy, operation payload) embeds this; dag
// itself only ever needs an id and a dependency list.
type Node interface {
	StepID() string
	StepDependencies() []string
}

// Pipeline is a validated DAG of steps: unique ids, no dangling
// dependency references, no cycles.
type Pipeline struct {
	id          string
	name        string
	description string
	version     string
	steps       map[string]Node
	order       []string // insertion order, for deterministic iteration
}

// New constructs a Pipeline from steps, validating unique ids, that
// every dependency id resolves to a known step, and that the
// dependency graph is acyclic. Returns a *ConfigurationError on any
// violation.
func New(id, name, description, version string, steps []Node) (*Pipeline, error) {
	p := &Pipeline{
		id:          id,
		name:        name,
		description: description,
		version:     version,
		steps:       make(map[string]Node, len(steps)),
	}

	for _, s := range steps {
		sid := s.StepID()
		if _, exists := p.steps[sid]; exists {
			return nil, &ConfigurationError{Kind: KindDuplicateID, StepID: sid}
		}
		p.steps[sid] = s
		p.order = append(p.order, sid)
	}

	for _, s := range steps {
		for _, dep := range s.StepDependencies() {
			if _, ok := p.steps[dep]; !ok {
				return nil, &ConfigurationError{Kind: KindMissingDependency, StepID: s.StepID(), MissingID: dep}
			}
		}
	}

	if cycle := detectCycle(p.steps, p.order); cycle != nil {
		return nil, &ConfigurationError{Kind: KindCycle, CyclePath: cycle}
	}

	return p, nil
}

// ID returns the pipeline's identifier.
func (p *Pipeline) ID() string { return p.id }

// Name returns the pipeline's display name.
func (p *Pipeline) Name() string { return p.name }

// Description returns the pipeline's description.
func (p *Pipeline) Description() string { return p.description }

// Version returns the pipeline's version string.
func (p *Pipeline) Version() string { return p.version }

// Step returns the step with the given id.
func (p *Pipeline) Step(id string) (Node, bool) {
	s, ok := p.steps[id]
	return s, ok
}

// Steps returns all steps in the order they were passed to New.
func (p *Pipeline) Steps() []Node {
	out := make([]Node, len(p.order))
	for i, id := range p.order {
		out[i] = p.steps[id]
	}
	return out
}

// color marks a node's DFS visitation state for cycle detection.
type color int

const (
	white color = iota // unvisited
	gray               // on the active DFS path
	black              // fully explored
)

// detectCycle runs a three-color DFS over steps, starting from order
// to keep results deterministic across runs. It returns the cycle path
// (step ids, first id repeated at the end) on the first cycle found,
// or nil if the graph is acyclic.
func detectCycle(steps map[string]Node, order []string) []string {
	colors := make(map[string]color, len(steps))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = gray
		stack = append(stack, id)

		for _, dep := range steps[id].StepDependencies() {
			switch colors[dep] {
			case gray:
				// Found a back-edge into the active path: the cycle is
				// the suffix of stack starting at dep, plus dep again
				// to close the loop.
				start := indexOf(stack, dep)
				cycle := append([]string{}, stack[start:]...)
				cycle = append(cycle, dep)
				return cycle
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			case black:
				// Already fully explored via another path: safe.
			}
		}

		colors[id] = black
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, id := range order {
		if colors[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func indexOf(ss []string, target string) int {
	for i, s := range ss {
		if s == target {
			return i
		}
	}
	return -1
}

// Level groups steps that share the same dependency depth, exposing
// the pipeline's parallelism to a caller (a progress UI, a dry-run
// report) without implying any ordering between steps at the same level.
type Level struct {
	Level int
	Steps []string
}

// GetPipelineStructure computes each step's level — 1 + max(level of
// its dependencies), leaves at 0 — and groups step ids by level.
// Levels are returned in ascending order; the step ids within a level
// are sorted for determinism, but that sort implies no execution
// ordering among them.
func (p *Pipeline) GetPipelineStructure() []Level {
	levels := make(map[string]int, len(p.steps))

	var levelOf func(id string) int
	levelOf = func(id string) int {
		if lv, ok := levels[id]; ok {
			return lv
		}
		deps := p.steps[id].StepDependencies()
		if len(deps) == 0 {
			levels[id] = 0
			return 0
		}
		max := -1
		for _, dep := range deps {
			if lv := levelOf(dep); lv > max {
				max = lv
			}
		}
		lv := max + 1
		levels[id] = lv
		return lv
	}

	byLevel := make(map[int][]string)
	maxLevel := 0
	for _, id := range p.order {
		lv := levelOf(id)
		byLevel[lv] = append(byLevel[lv], id)
		if lv > maxLevel {
			maxLevel = lv
		}
	}

	out := make([]Level, 0, maxLevel+1)
	for lv := 0; lv <= maxLevel; lv++ {
		ids := byLevel[lv]
		sort.Strings(ids)
		out = append(out, Level{Level: lv, Steps: ids})
	}
	return out
}

// ConfigurationError reports a structurally invalid pipeline
// definition: a duplicate step id, a dependency naming an unknown
// step, or a cycle in the dependency graph.
type ConfigurationError struct {
	Kind      Kind
	StepID    string
	MissingID string
	CyclePath []string
}

// Kind enumerates the ways a pipeline definition can be invalid.
type Kind string

const (
	KindDuplicateID       Kind = "duplicate_step_id"
	KindMissingDependency Kind = "missing_dependency"
	KindCycle             Kind = "cycle"
)

func (e *ConfigurationError) Error() string {
	switch e.Kind {
	case KindDuplicateID:
		return fmt.Sprintf("dag: duplicate step id %q", e.StepID)
	case KindMissingDependency:
		return fmt.Sprintf("dag: step %q depends on unknown step %q", e.StepID, e.MissingID)
	case KindCycle:
		return fmt.Sprintf("dag: cycle detected: %s", strings.Join(e.CyclePath, " -> "))
	default:
		return "dag: invalid pipeline"
	}
}

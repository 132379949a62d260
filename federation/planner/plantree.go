package planner

import "sort"

// NodeKind tags a PlanNode's variant (core spec §9: "dynamic polymorphism
// over plan nodes is best modeled as a tagged variant rather than virtual
// dispatch").
type NodeKind string

const (
	NodeFetch        NodeKind = "Fetch"
	NodeSequence     NodeKind = "Sequence"
	NodeParallel     NodeKind = "Parallel"
	NodeFlatten      NodeKind = "Flatten"
	NodeDefer        NodeKind = "Defer"
	NodeSubscription NodeKind = "Subscription"
)

// PlanNode is the serializable query-plan tree described in core spec §3.
// It is derived from a PlanV2's flat step list for tracing/debugging and for
// the stable tagged-union wire encoding named in core spec §6; the executor
// itself continues to walk the step DAG directly (StepV2.DependsOn), since
// that DAG already encodes the same Sequence/Parallel/Flatten structure this
// tree only re-renders for external consumers.
type PlanNode struct {
	Kind     NodeKind    `json:"kind"`
	StepID   int         `json:"stepId,omitempty"`
	SubGraph string      `json:"subgraph,omitempty"`
	Path     []string    `json:"path,omitempty"`
	Label    string      `json:"label,omitempty"`
	Children []*PlanNode `json:"children,omitempty"`
}

// BuildPlanTree converts a flat StepV2 DAG into the Sequence/Parallel/
// Flatten tree shape named in core spec §3. Root steps with no dependencies
// become a Parallel group (or a single Fetch if there is only one); each
// step that depends on others is wrapped in a Sequence with its
// dependencies, and entity steps are wrapped in Flatten(InsertionPath).
func BuildPlanTree(plan *PlanV2) *PlanNode {
	byID := make(map[int]*StepV2, len(plan.Steps))
	for _, step := range plan.Steps {
		byID[step.ID] = step
	}

	memo := make(map[int]*PlanNode, len(plan.Steps))
	var build func(id int) *PlanNode
	build = func(id int) *PlanNode {
		if node, ok := memo[id]; ok {
			return node
		}
		step := byID[id]
		fetch := &PlanNode{Kind: NodeFetch, StepID: step.ID, SubGraph: step.SubGraph.Name}

		var node *PlanNode
		if step.StepType == StepTypeEntity && len(step.InsertionPath) > 0 {
			node = &PlanNode{Kind: NodeFlatten, Path: step.InsertionPath, Children: []*PlanNode{fetch}}
		} else {
			node = fetch
		}

		if len(step.DependsOn) > 0 {
			deps := append([]int(nil), step.DependsOn...)
			sort.Ints(deps)
			seq := &PlanNode{Kind: NodeSequence}
			for _, depID := range deps {
				seq.Children = append(seq.Children, build(depID))
			}
			seq.Children = append(seq.Children, node)
			node = seq
		}

		memo[id] = node
		return node
	}

	roots := append([]int(nil), plan.RootStepIndexes...)
	sort.Ints(roots)

	var rootNodes []*PlanNode
	for _, idx := range roots {
		if idx < 0 || idx >= len(plan.Steps) {
			continue
		}
		rootNodes = append(rootNodes, build(plan.Steps[idx].ID))
	}

	if len(rootNodes) == 1 {
		return rootNodes[0]
	}
	return &PlanNode{Kind: NodeParallel, Children: rootNodes}
}

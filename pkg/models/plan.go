package models

// PlanTask is a single task in a decomposition plan. Plans are produced
// outside this core (typically by the agent itself) and are untrusted
// until validated by the decomposition executor.
type PlanTask struct {
	// ID is the plan-local identifier for this task.
	ID string `yaml:"id" json:"id"`
	// Name is the short description of the task.
	Name string `yaml:"name" json:"name"`
	// Description provides detail the agent needs to execute the task.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Budget is the requested iteration budget for this task.
	Budget int `yaml:"budget" json:"budget"`
	// DependsOn lists plan-local task IDs that must complete first.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// DecompositionPlan is a proposed split of an over-scoped phase into
// smaller tasks.
type DecompositionPlan struct {
	// Tasks are the proposed tasks in plan order.
	Tasks []PlanTask `yaml:"tasks" json:"tasks"`
}

// TotalBudget returns the sum of all task budgets in the plan.
func (p *DecompositionPlan) TotalBudget() int {
	total := 0
	for i := range p.Tasks {
		total += p.Tasks[i].Budget
	}
	return total
}

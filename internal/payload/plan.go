package payload

// PlanStep is one upstream planner intention for a single agent.
type PlanStep struct {
	ID             string `json:"id,omitempty"`
	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	Agent          string `json:"agent,omitempty"`
}

// PlanStepsFrom reads plan steps out of a decoded JSON array. Entries that
// are not objects are skipped.
func PlanStepsFrom(v any) []PlanStep {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	steps := make([]PlanStep, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var s PlanStep
		s.ID, _ = Text(m, "id")
		s.Title, _ = Text(m, "title")
		s.Description, _ = Text(m, "description")
		s.ExpectedOutput, _ = Text(m, "expected_output")
		s.Agent, _ = Text(m, "agent")
		steps = append(steps, s)
	}
	return steps
}

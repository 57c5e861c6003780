package timeline

import (
	"fmt"
	"strings"

	"github.com/cadre-oss/storyline/internal/agents"
	"github.com/cadre-oss/storyline/internal/narrative"
	"github.com/cadre-oss/storyline/internal/payload"
)

// FromArtifacts narrates each agent's shared artifact through the rule
// catalog. Agents are visited in plan order; artifacts the plan does not
// mention follow in their original order.
func (s *Selector) FromArtifacts(artifacts Artifacts, plan []PlanStep) []SimulatedEvent {
	if len(artifacts) == 0 {
		return nil
	}

	set := newEventSet(ArtifactAgentCap)
	position := 0
	for _, na := range orderByPlan(artifacts, plan) {
		if agents.IsOrchestration(na.Agent) {
			continue
		}
		actionType := s.actionTypeFor(na)
		ctx := narrative.NewContext(na.Agent, actionType, na.Artifact, planStepFor(plan, na.Agent))
		steps := s.catalog.Steps(ctx)

		norm := agents.NormalizeName(na.Agent)
		friendly := s.registry.FriendlyName(na.Agent)
		summary, _ := payload.Text(na.Artifact, "summary_message")
		last, lastStep := -1, ""
		for j, step := range steps {
			ev := SimulatedEvent{
				ID:           fmt.Sprintf("artifact-%s-%d", norm, j),
				Agent:        na.Agent,
				FriendlyName: friendly,
				PrimaryText:  truncate(step),
				Status:       StatusPending,
				Timestamp:    float64(position),
				Source:       SourceArtifact,
			}
			if set.add(ev) {
				position++
				last, lastStep = len(set.events)-1, step
			}
		}
		// The summary belongs on the last step that survived the cap.
		if last >= 0 && summary != "" && summary != lastStep {
			set.events[last].Detail = truncate(summary)
		}
		s.debug("artifact narrated", "agent", na.Agent, "action_type", actionType, "steps", len(steps))
	}
	return set.events
}

// actionTypeFor prefers an action type stated by the artifact itself when the
// catalog knows it.
func (s *Selector) actionTypeFor(na NamedArtifact) string {
	for _, key := range []string{"action_type", "type"} {
		if t, ok := payload.Text(na.Artifact, key); ok {
			t = strings.ToLower(t)
			if s.catalog.Has(t) {
				return t
			}
		}
	}
	return s.registry.ActionType(na.Agent)
}

func orderByPlan(artifacts Artifacts, plan []PlanStep) Artifacts {
	out := make(Artifacts, 0, len(artifacts))
	used := make([]bool, len(artifacts))
	for _, step := range plan {
		n := agents.NormalizeName(step.Agent)
		if n == "" {
			continue
		}
		for i, na := range artifacts {
			if !used[i] && agents.NormalizeName(na.Agent) == n {
				used[i] = true
				out = append(out, na)
			}
		}
	}
	for i, na := range artifacts {
		if !used[i] {
			out = append(out, na)
		}
	}
	return out
}

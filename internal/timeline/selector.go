package timeline

import (
	"github.com/cadre-oss/storyline/internal/agents"
	"github.com/cadre-oss/storyline/internal/narrative"
)

// Logger is the logging surface the builders need. A nil Logger is silent.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
}

// Recorder receives one observation per built timeline.
type Recorder interface {
	RecordTimeline(source string, events int)
}

// Input is everything known about one turn when its timeline is built.
type Input struct {
	// AgentEvents is the live event buffer, newest first.
	AgentEvents []map[string]any `json:"agentEvents,omitempty"`
	// PlanSteps overrides the plan carried by the final message.
	PlanSteps    []PlanStep    `json:"planSteps,omitempty"`
	FinalMessage *FinalMessage `json:"finalMessage,omitempty"`
}

// Result is a built timeline and the builder that produced it. Source is
// empty when nothing could be narrated.
type Result struct {
	Events []SimulatedEvent `json:"events"`
	Source Source           `json:"source,omitempty"`
}

// Selector picks exactly one timeline builder per turn, in strict priority:
// live events, then artifacts, then literal message text.
type Selector struct {
	registry *agents.Registry
	catalog  *narrative.Catalog
	logger   Logger
	recorder Recorder
}

// NewSelector creates a selector. Nil registry or catalog fall back to the
// built-in ones.
func NewSelector(registry *agents.Registry, catalog *narrative.Catalog, logger Logger) *Selector {
	if registry == nil {
		registry = agents.DefaultRegistry()
	}
	if catalog == nil {
		catalog = narrative.NewCatalog()
	}
	return &Selector{registry: registry, catalog: catalog, logger: logger}
}

// SetRecorder attaches a metrics recorder.
func (s *Selector) SetRecorder(r Recorder) {
	s.recorder = r
}

// Registry returns the agent registry used for display names.
func (s *Selector) Registry() *agents.Registry {
	return s.registry
}

// Build runs the builders in priority order and returns the first non-empty
// timeline. Outputs are never merged.
func (s *Selector) Build(in Input) Result {
	artifacts := in.FinalMessage.ResolveArtifacts()
	plan := in.PlanSteps
	if len(plan) == 0 {
		plan = in.FinalMessage.ResolvePlan()
	}

	res := Result{Events: []SimulatedEvent{}}
	switch {
	case s.assign(&res, SourceEvent, s.FromStream(in.AgentEvents, artifacts, plan)):
	case s.assign(&res, SourceArtifact, s.FromArtifacts(artifacts, plan)):
	case s.assign(&res, SourceFallback, s.FromMessages(in.AgentEvents, in.FinalMessage)):
	}

	s.debug("timeline built",
		"source", string(res.Source),
		"events", len(res.Events),
		"buffered", len(in.AgentEvents),
		"artifacts", len(artifacts),
		"plan_steps", len(plan),
	)
	if s.recorder != nil {
		s.recorder.RecordTimeline(string(res.Source), len(res.Events))
	}
	return res
}

func (s *Selector) assign(res *Result, source Source, events []SimulatedEvent) bool {
	if len(events) == 0 {
		return false
	}
	res.Events = events
	res.Source = source
	return true
}

func (s *Selector) debug(msg string, keyvals ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, keyvals...)
	}
}

// BuildAgentTaskEvents builds a timeline with the built-in registry and
// catalog.
func BuildAgentTaskEvents(in Input) []SimulatedEvent {
	return NewSelector(nil, nil, nil).Build(in).Events
}

// BuildFromStream runs only the live-event builder.
func BuildFromStream(buffer []map[string]any, artifacts Artifacts, plan []PlanStep) []SimulatedEvent {
	return NewSelector(nil, nil, nil).FromStream(buffer, artifacts, plan)
}

// BuildFromArtifacts runs only the artifact builder.
func BuildFromArtifacts(artifacts Artifacts, plan []PlanStep, catalog *narrative.Catalog) []SimulatedEvent {
	return NewSelector(nil, catalog, nil).FromArtifacts(artifacts, plan)
}

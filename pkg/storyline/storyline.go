// Package storyline provides a public API for building and playing agent
// activity timelines.
//
// Example usage:
//
//	import "github.com/cadre-oss/storyline/pkg/storyline"
//
//	// Build a timeline from a final answer
//	msg, _ := storyline.ParseFinalMessage(raw)
//	events := storyline.BuildAgentTaskEvents(buffer, nil, msg)
//
//	// Play it with the default delays
//	p := storyline.NewPlayer("session-1")
//	p.StartTurn("cuantos movimientos tengo")
//	p.Deliver(storyline.Input{AgentEvents: buffer, FinalMessage: msg})
//	<-p.Done()
package storyline

import (
	"context"
	"fmt"

	"github.com/cadre-oss/storyline/internal/config"
	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// Timeline types.
type (
	Input          = timeline.Input
	Result         = timeline.Result
	SimulatedEvent = timeline.SimulatedEvent
	FinalMessage   = timeline.FinalMessage
	PlanStep       = timeline.PlanStep
	Status         = timeline.Status
	Source         = timeline.Source
)

// Playback types.
type (
	State        = playback.State
	Action       = playback.Action
	Caption      = playback.Caption
	Player       = playback.Player
	TimerManager = playback.TimerManager
)

// ParseFinalMessage decodes a final answer in any of its envelope shapes.
func ParseFinalMessage(raw []byte) (*FinalMessage, error) {
	return timeline.ParseFinalMessage(raw)
}

// FinalMessageFromMap converts a final answer that was already decoded into
// a map, for callers that read frames with their own JSON decoder.
func FinalMessageFromMap(v map[string]any) *FinalMessage {
	return timeline.FinalMessageFromMap(v)
}

// BuildAgentTaskEvents builds the timeline for one turn with the built-in
// agent names and narrative rules. agentEvents is the live buffer, newest
// first; planSteps overrides the plan carried by finalMessage.
func BuildAgentTaskEvents(agentEvents []map[string]any, planSteps []PlanStep, finalMessage *FinalMessage) []SimulatedEvent {
	return timeline.BuildAgentTaskEvents(Input{
		AgentEvents:  agentEvents,
		PlanSteps:    planSteps,
		FinalMessage: finalMessage,
	})
}

// Build builds a timeline with the narration settings of dir/storyline.yaml.
func Build(dir string, in Input) (Result, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load config: %w", err)
	}
	sel, err := timeline.SelectorFromConfig(cfg, nil)
	if err != nil {
		return Result{}, err
	}
	return sel.Build(in), nil
}

// Reduce applies one playback action.
func Reduce(s State, a Action) State {
	return playback.Reduce(s, a)
}

// NewTimerManager creates a timer manager on the wall clock.
func NewTimerManager() *TimerManager {
	return playback.NewTimerManager(nil)
}

// NewPlayer creates a player with the default delays and no archive.
func NewPlayer(sessionID string) *Player {
	return playback.NewPlayer(sessionID, playback.Options{})
}

// Play runs one turn to completion on a fresh player and returns its final
// state.
func Play(ctx context.Context, query string, in Input) (State, error) {
	p := NewPlayer("")
	defer p.Close()

	if _, err := p.StartTurn(query); err != nil {
		return State{}, err
	}
	if _, err := p.Deliver(in); err != nil {
		return State{}, err
	}
	select {
	case <-p.Done():
		return p.Snapshot(), nil
	case <-ctx.Done():
		return p.Snapshot(), ctx.Err()
	}
}

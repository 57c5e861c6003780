package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/cadre-oss/storyline/internal/archive"
	"github.com/cadre-oss/storyline/internal/config"
	sterrors "github.com/cadre-oss/storyline/internal/errors"
	"github.com/cadre-oss/storyline/internal/event"
	"github.com/cadre-oss/storyline/internal/telemetry"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// Timer keys.
const (
	keyCaption  = "caption"
	keyComplete = "complete"
	keyClear    = "clear"
)

func stepKey(i int) string { return fmt.Sprintf("step-%d", i) }

// Settings are the delays and captions a Player narrates with.
type Settings struct {
	Delays   config.PlaybackDelays
	Captions config.CaptionsConfig
}

// SettingsFromConfig parses the playback section of cfg.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	delays, err := cfg.Playback.ParsedDelays()
	if err != nil {
		return Settings{}, sterrors.Wrap(sterrors.CodeConfigInvalid, "invalid playback delay", err)
	}
	return Settings{Delays: delays, Captions: cfg.Playback.Captions}, nil
}

// DefaultSettings returns the settings of the default configuration.
func DefaultSettings() Settings {
	s, _ := SettingsFromConfig(config.Default())
	return s
}

// Options wires a Player's collaborators. All fields are optional.
type Options struct {
	Selector *timeline.Selector
	Settings Settings
	Clock    Clock
	Bus      *event.Bus
	Logger   *telemetry.Logger
	Metrics  *telemetry.Metrics
	Archive  *archive.Manager
}

// Player plays one session's turns. Starting a turn cancels everything
// scheduled for the previous one; callbacks carry the generation they were
// scheduled for and do nothing once it is stale.
type Player struct {
	mu         sync.Mutex
	sessionID  string
	opts       Options
	timers     *TimerManager
	state      State
	generation uint64
	turn       *turn
}

type turn struct {
	id        string
	query     string
	startedAt time.Time
	delivered bool
	finished  bool
	source    timeline.Source
	answer    string
	done      chan struct{}
}

// NewPlayer creates an idle player for sessionID.
func NewPlayer(sessionID string, opts Options) *Player {
	if opts.Selector == nil {
		opts.Selector = timeline.NewSelector(nil, nil, nil)
	}
	if opts.Settings == (Settings{}) {
		opts.Settings = DefaultSettings()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewMetrics()
	}
	return &Player{
		sessionID: sessionID,
		opts:      opts,
		timers:    NewTimerManager(opts.Clock),
		state:     Initial(),
	}
}

// SessionID returns the session this player belongs to.
func (p *Player) SessionID() string { return p.sessionID }

// Snapshot returns a copy of the current state.
func (p *Player) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// TurnID returns the current turn's ID, empty before the first turn.
func (p *Player) TurnID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.turn == nil {
		return ""
	}
	return p.turn.id
}

// Done returns a channel closed when the current turn finishes playing or is
// superseded. Before the first turn it returns a closed channel.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.turn == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.turn.done
}

// StartTurn begins narrating a new query. A turn still in progress is
// superseded and its timers are canceled before anything new is scheduled.
func (p *Player) StartTurn(query string) (string, error) {
	p.mu.Lock()
	var out []event.Event

	p.timers.ClearAll()
	if p.turn != nil && !p.turn.finished {
		out = append(out, p.supersedeLocked())
	}

	record, err := p.opts.Archive.StartTurn(p.sessionID, query)
	if err != nil {
		p.mu.Unlock()
		p.emit(out)
		return "", err
	}

	p.generation++
	gen := p.generation
	action := Start(query, p.opts.Settings.Captions.Shimmer)
	if p.turn != nil {
		action = Reset(query, p.opts.Settings.Captions.Shimmer)
	}
	p.turn = &turn{
		id:        record.ID,
		query:     query,
		startedAt: p.timers.Now(),
		done:      make(chan struct{}),
	}
	p.state = Reduce(p.state, action)
	p.opts.Metrics.IncTurnsStarted()

	p.timers.Set(keyCaption, func() { p.showWaiting(gen) }, p.opts.Settings.Delays.Shimmer)

	out = append(out,
		p.eventLocked(event.TurnStarted, map[string]interface{}{"query": query}),
		p.captionEventLocked(),
	)
	p.logger().Info("Turn started", "session_id", p.sessionID, "turn_id", record.ID)
	p.mu.Unlock()

	p.emit(out)
	return record.ID, nil
}

// Deliver builds the current turn's timeline from the collected agent
// activity and schedules its playback. An empty timeline completes the turn
// right away.
func (p *Player) Deliver(in timeline.Input) (timeline.Result, error) {
	res := p.opts.Selector.Build(in)
	answer := ""
	if in.FinalMessage != nil {
		answer = in.FinalMessage.HumanText()
	}

	p.mu.Lock()
	if p.turn == nil || p.turn.finished {
		p.mu.Unlock()
		return res, sterrors.New(sterrors.CodeTurnNotFound, "no turn in progress").
			WithSuggestion("Start a turn before delivering its answer")
	}
	if p.turn.delivered {
		p.mu.Unlock()
		return res, sterrors.Newf(sterrors.CodeInputInvalid, "turn %s already has a timeline", p.turn.id)
	}

	gen := p.generation
	p.turn.delivered = true
	p.turn.source = res.Source
	p.turn.answer = answer
	p.timers.Clear(keyCaption)
	p.state = Reduce(p.state, SetEvents(res.Events))

	out := []event.Event{p.eventLocked(event.TurnTimeline, map[string]interface{}{
		"source": string(res.Source),
		"events": len(res.Events),
	})}

	if len(res.Events) == 0 {
		out = append(out, p.completeLocked(p.opts.Settings.Captions.Empty)...)
		p.mu.Unlock()
		p.emit(out)
		return res, nil
	}

	d := p.opts.Settings.Delays
	for i := range res.Events {
		i := i
		p.timers.Set(stepKey(i), func() { p.step(gen, i) }, d.Waiting+time.Duration(i)*d.Step)
	}
	last := d.Waiting + time.Duration(len(res.Events)-1)*d.Step
	p.timers.Set(keyComplete, func() { p.finish(gen) }, last+d.Complete)
	p.mu.Unlock()

	p.emit(out)
	return res, nil
}

// Close cancels every pending timer. A turn in progress is superseded.
func (p *Player) Close() {
	p.mu.Lock()
	p.timers.ClearAll()
	var out []event.Event
	if p.turn != nil && !p.turn.finished {
		out = append(out, p.supersedeLocked())
	}
	p.generation++
	p.mu.Unlock()
	p.emit(out)
}

func (p *Player) showWaiting(gen uint64) {
	p.mu.Lock()
	if gen != p.generation || p.turn.delivered {
		p.mu.Unlock()
		return
	}
	p.state = Reduce(p.state, SetMorphing(p.opts.Settings.Captions.Waiting, CaptionWaiting, true))
	out := []event.Event{p.captionEventLocked()}
	p.mu.Unlock()
	p.emit(out)
}

func (p *Player) step(gen uint64, i int) {
	p.mu.Lock()
	if gen != p.generation || i >= len(p.state.Events) {
		p.mu.Unlock()
		return
	}

	var out []event.Event
	if i == 0 {
		p.state = Reduce(p.state, StopWaiting())
	} else {
		out = append(out, p.markLocked(i-1, timeline.StatusCompleted, event.StepCompleted))
	}
	p.state = Reduce(p.state, SetEventIndex(i))
	out = append(out, p.markLocked(i, timeline.StatusActive, event.StepActive))

	ev := p.state.Events[i]
	p.state = Reduce(p.state, SetMorphing(ev.PrimaryText, CaptionWaiting, true))
	out = append(out, p.captionEventLocked())
	p.mu.Unlock()

	p.emit(out)
}

func (p *Player) finish(gen uint64) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	var out []event.Event
	if n := len(p.state.Events); n > 0 && p.state.Events[n-1].Status != timeline.StatusCompleted {
		out = append(out, p.markLocked(n-1, timeline.StatusCompleted, event.StepCompleted))
	}
	out = append(out, p.completeLocked(p.opts.Settings.Captions.Final)...)
	p.mu.Unlock()

	p.emit(out)
}

func (p *Player) clearCaption(gen uint64) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.state = Reduce(p.state, ClearMorphing())
	out := []event.Event{p.captionEventLocked()}
	p.mu.Unlock()
	p.emit(out)
}

// completeLocked shows the final caption, archives the turn and schedules
// the caption to clear.
func (p *Player) completeLocked(caption string) []event.Event {
	t := p.turn
	gen := p.generation

	p.state = Reduce(p.state, Complete())
	p.state = Reduce(p.state, SetMorphing(caption, CaptionFinal, true))
	t.finished = true

	elapsed := p.timers.Now().Sub(t.startedAt)
	p.opts.Metrics.IncTurnsCompleted()
	p.opts.Metrics.RecordTurnDuration(elapsed)
	if _, err := p.opts.Archive.CompleteTurn(t.id, t.source, p.state.Events, t.answer); err != nil {
		p.logger().Warn("Failed to archive turn", "turn_id", t.id, "error", err)
	}
	p.timers.Set(keyClear, func() { p.clearCaption(gen) }, p.opts.Settings.Delays.Final)
	close(t.done)

	p.logger().Info("Turn completed",
		"session_id", p.sessionID,
		"turn_id", t.id,
		"source", string(t.source),
		"events", len(p.state.Events),
		"duration_ms", elapsed.Milliseconds(),
	)
	return []event.Event{
		p.captionEventLocked(),
		p.eventLocked(event.TurnCompleted, map[string]interface{}{
			"source":      string(t.source),
			"events":      len(p.state.Events),
			"duration_ms": elapsed.Milliseconds(),
		}),
	}
}

func (p *Player) supersedeLocked() event.Event {
	t := p.turn
	t.finished = true
	p.opts.Metrics.IncTurnsSuperseded()
	if _, err := p.opts.Archive.SupersedeTurn(t.id); err != nil {
		p.logger().Warn("Failed to archive superseded turn", "turn_id", t.id, "error", err)
	}
	close(t.done)
	return p.eventLocked(event.TurnSuperseded, map[string]interface{}{"query": t.query})
}

func (p *Player) markLocked(i int, status timeline.Status, t event.EventType) event.Event {
	p.state = Reduce(p.state, UpdateEventAt(i, status))
	ev := p.state.Events[i]
	return p.eventLocked(t, map[string]interface{}{
		"index":         i,
		"id":            ev.ID,
		"agent":         ev.Agent,
		"friendly_name": ev.FriendlyName,
		"primary_text":  ev.PrimaryText,
		"detail":        ev.Detail,
		"source":        string(ev.Source),
	})
}

func (p *Player) captionEventLocked() event.Event {
	c := p.state.Caption
	return p.eventLocked(event.CaptionChanged, map[string]interface{}{
		"text":  c.Text,
		"phase": string(c.Phase),
		"key":   c.Key,
	})
}

func (p *Player) eventLocked(t event.EventType, data map[string]interface{}) event.Event {
	turnID := ""
	if p.turn != nil {
		turnID = p.turn.id
	}
	return event.NewEvent(t, data).ForTurn(p.sessionID, turnID)
}

// emit publishes events in order. Must be called without p.mu held.
func (p *Player) emit(events []event.Event) {
	for _, ev := range events {
		if err := p.opts.Bus.Emit(ev); err != nil {
			p.logger().Warn("Playback hook failed", "event", string(ev.Type), "error", err)
		}
	}
}

func (p *Player) logger() *telemetry.Logger {
	return p.opts.Logger
}

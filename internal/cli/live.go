package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/cadre-oss/storyline/internal/event"
	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/render"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// livePrinter prints playback as it happens: status captions until the
// first step, each step as it becomes active, then the final caption.
type livePrinter struct {
	mu       sync.Mutex
	r        *render.Renderer
	w        io.Writer
	stepping bool
	finished chan struct{}
}

func newLivePrinter(r *render.Renderer, w io.Writer) *livePrinter {
	return &livePrinter{r: r, w: w, finished: make(chan struct{}, 16)}
}

// Finished receives once per turn, after its last line was printed.
func (lp *livePrinter) Finished() <-chan struct{} {
	return lp.finished
}

// Printf writes a line serialized with the playback output.
func (lp *livePrinter) Printf(format string, args ...interface{}) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	fmt.Fprintf(lp.w, format, args...)
}

// Hook returns the blocking hook that feeds the printer.
func (lp *livePrinter) Hook() event.Hook {
	events := []event.EventType{
		event.TurnStarted, event.TurnCompleted, event.TurnSuperseded,
		event.CaptionChanged, event.StepActive,
	}
	return event.NewFuncHook("live-printer", events, true, lp.handle)
}

func (lp *livePrinter) handle(ev event.Event) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	switch ev.Type {
	case event.TurnStarted:
		lp.stepping = false
		fmt.Fprintf(lp.w, "\n> %v\n", ev.Data["query"])
	case event.TurnSuperseded:
		fmt.Fprintln(lp.w, "(superseded)")
		lp.signal()
	case event.TurnCompleted:
		lp.signal()
	case event.StepActive:
		lp.stepping = true
		fmt.Fprintln(lp.w, lp.r.Step(stepFromData(ev.Data)))
	case event.CaptionChanged:
		text, _ := ev.Data["text"].(string)
		phase, _ := ev.Data["phase"].(string)
		caption := playback.Caption{Text: text, Phase: playback.CaptionPhase(phase)}
		if lp.stepping && caption.Phase != playback.CaptionFinal {
			return nil
		}
		if line := lp.r.Caption(caption); line != "" {
			fmt.Fprintln(lp.w, line)
		}
	}
	return nil
}

func (lp *livePrinter) signal() {
	select {
	case lp.finished <- struct{}{}:
	default:
	}
}

func stepFromData(data map[string]interface{}) timeline.SimulatedEvent {
	str := func(k string) string {
		s, _ := data[k].(string)
		return s
	}
	return timeline.SimulatedEvent{
		ID:           str("id"),
		Agent:        str("agent"),
		FriendlyName: str("friendly_name"),
		PrimaryText:  str("primary_text"),
		Detail:       str("detail"),
		Status:       timeline.StatusActive,
		Source:       timeline.Source(str("source")),
	}
}

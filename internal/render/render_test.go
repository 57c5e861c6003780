package render

import (
	"strings"
	"testing"

	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/timeline"
)

func sampleEvents() []timeline.SimulatedEvent {
	return []timeline.SimulatedEvent{
		{ID: "a", Agent: "capi_datab", FriendlyName: "Core Banking", PrimaryText: "Consultando movimientos", Status: timeline.StatusCompleted},
		{ID: "b", Agent: "capi_datab", FriendlyName: "Core Banking", PrimaryText: "Exportando resultados", Detail: "/tmp/out.json", Status: timeline.StatusActive},
		{ID: "c", Agent: "capi_elcajas", FriendlyName: "Cajas", PrimaryText: "Revisando cajas", Status: timeline.StatusPending},
	}
}

func TestRenderer_Timeline(t *testing.T) {
	r := New(PlainTheme())
	got := r.Timeline(sampleEvents())

	expected := strings.Join([]string{
		"✓ Core Banking  Consultando movimientos",
		"● Core Banking  Exportando resultados",
		"    /tmp/out.json",
		"○ Cajas  Revisando cajas",
	}, "\n")
	if got != expected {
		t.Errorf("expected:\n%s\ngot:\n%s", expected, got)
	}
}

func TestRenderer_Header(t *testing.T) {
	r := New(PlainTheme())

	tests := []struct {
		name string
		res  timeline.Result
		want string
	}{
		{"empty", timeline.Result{}, "Timeline (empty)"},
		{"one step", timeline.Result{Source: timeline.SourceFallback, Events: sampleEvents()[:1]}, "Timeline (fallback, 1 step)"},
		{"many steps", timeline.Result{Source: timeline.SourceArtifact, Events: sampleEvents()}, "Timeline (artifact, 3 steps)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Header(tt.res); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderer_Result(t *testing.T) {
	r := New(PlainTheme())
	out := r.Result(timeline.Result{Source: timeline.SourceEvent, Events: sampleEvents()})
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header plus 4 lines, got %d:\n%s", len(lines), out)
	}
	if lines[0] != "Timeline (event, 3 steps)" {
		t.Errorf("unexpected header %q", lines[0])
	}

	if got := r.Result(timeline.Result{}); got != "Timeline (empty)" {
		t.Errorf("expected only the header for an empty timeline, got %q", got)
	}
}

func TestRenderer_Caption(t *testing.T) {
	r := New(PlainTheme())

	if got := r.Caption(playback.Caption{}); got != "" {
		t.Errorf("expected empty caption to render nothing, got %q", got)
	}
	if got := r.Caption(playback.Caption{Text: "Coordinating agents", Phase: playback.CaptionWaiting}); got != "… Coordinating agents" {
		t.Errorf("unexpected waiting caption %q", got)
	}
	if got := r.Caption(playback.Caption{Text: "Done", Phase: playback.CaptionFinal}); got != "Done" {
		t.Errorf("unexpected final caption %q", got)
	}
}

func TestRenderer_State(t *testing.T) {
	r := New(PlainTheme())

	s := playback.Initial()
	if got := r.State(s); got != "" {
		t.Errorf("expected idle state to render nothing, got %q", got)
	}

	s.Caption = playback.Caption{Text: "Revisando cajas", Phase: playback.CaptionWaiting}
	s.Events = sampleEvents()
	got := r.State(s)
	if !strings.HasPrefix(got, "… Revisando cajas\n✓ Core Banking") {
		t.Errorf("expected caption above the timeline, got:\n%s", got)
	}
}

func TestDefaultTheme_KeepsText(t *testing.T) {
	r := New(DefaultTheme())
	out := r.Timeline(sampleEvents())
	for _, want := range []string{"Core Banking", "Exportando resultados", "/tmp/out.json", MarkerActive} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in styled output", want)
		}
	}
}

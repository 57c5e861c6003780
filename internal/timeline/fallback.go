package timeline

import (
	"fmt"
	"strings"

	"github.com/cadre-oss/storyline/internal/agents"
	"github.com/cadre-oss/storyline/internal/payload"
)

const defaultSpeaker = "assistant"

var fallbackTextPaths = []string{
	"summary", "message", "text", "content",
	"payload.summary", "payload.message", "payload.text", "payload.content",
	"data.summary", "data.message", "data.text", "data.content",
	"meta.content",
}

var fallbackAgentPaths = []string{"agent", "actor", "payload.actor", "payload.agent", "data.agent"}

// FromMessages narrates literal human text found in the supplied events
// (oldest first) and then in the final answer. It is the last resort when
// neither live events nor artifacts produced a timeline.
func (s *Selector) FromMessages(buffer []map[string]any, final *FinalMessage) []SimulatedEvent {
	set := newEventSet(FallbackAgentCap)
	add := func(agent, text string) {
		if agents.IsOrchestration(agent) {
			return
		}
		ev := SimulatedEvent{
			ID:           fmt.Sprintf("fallback-%s-%d", agents.NormalizeName(agent), len(set.events)),
			Agent:        agent,
			FriendlyName: s.registry.FriendlyName(agent),
			PrimaryText:  truncate(text),
			Status:       StatusPending,
			Timestamp:    float64(len(set.events)),
			Source:       SourceFallback,
		}
		set.add(ev)
	}

	for i := len(buffer) - 1; i >= 0; i-- {
		msg := buffer[i]
		if msg == nil {
			continue
		}
		agent, text := messageText(msg)
		if text == "" {
			continue
		}
		add(agent, text)
	}

	if final != nil {
		speaker := final.Speaker()
		if speaker == "" {
			speaker = defaultSpeaker
		}
		for _, sentence := range splitSentences(final.HumanText()) {
			add(speaker, sentence)
		}
	}
	return set.events
}

// messageText reads the speaker and narration of one buffered message. The
// normalized payload wins; the loose paths cover shapes it does not know.
func messageText(msg map[string]any) (agent, text string) {
	if p, ok := payload.Normalize(msg); ok {
		agent = strings.TrimSpace(p.Actor)
		text = firstNonEmpty(p.Summary, p.Detail)
	}
	if text == "" {
		text, _ = payload.FirstText(msg, fallbackTextPaths...)
	}
	if agent == "" {
		agent, _ = payload.FirstText(msg, fallbackAgentPaths...)
	}
	if agent == "" {
		agent = defaultSpeaker
	}
	return agent, text
}

var bulletPrefixes = []string{"- ", "* ", "• ", "> "}

// splitSentences breaks free text into lines and then sentences, dropping
// list markers and markdown headings.
func splitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#")
		line = strings.TrimSpace(line)
		for _, p := range bulletPrefixes {
			line = strings.TrimPrefix(line, p)
		}
		if line == "" {
			continue
		}
		out = append(out, sentencesOf(line)...)
	}
	return out
}

func sentencesOf(line string) []string {
	var out []string
	start := 0
	runes := []rune(line)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

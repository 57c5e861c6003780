package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	sterrors "github.com/cadre-oss/storyline/internal/errors"
)

// Validate checks the whole configuration and reports every problem found
// in one CONFIG_INVALID error.
func Validate(cfg *Config) error {
	var errors []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errors = append(errors, fmt.Sprintf("invalid logging.level: %s", cfg.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true, "": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errors = append(errors, fmt.Sprintf("invalid logging.format: %s (must be text or json)", cfg.Logging.Format))
	}

	switch cfg.Archive.Driver {
	case "memory", "":
	case "sqlite":
		if cfg.Archive.Path == "" {
			errors = append(errors, "archive.path is required for the sqlite driver")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid archive.driver: %s (must be sqlite or memory)", cfg.Archive.Driver))
	}

	errors = append(errors, validatePlayback(&cfg.Playback)...)
	errors = append(errors, validateNarration(&cfg.Narration)...)
	errors = append(errors, validateHooks(&cfg.Hooks)...)

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port out of range: %d", cfg.Server.Port))
	}
	if d, err := cfg.Server.ParsedSessionTimeout(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid server.session_timeout %q: %s", cfg.Server.SessionTimeout, err))
	} else if d <= 0 {
		errors = append(errors, "server.session_timeout must be positive")
	}

	if cfg.Feed.BufferSize < 0 {
		errors = append(errors, "feed.buffer_size must be non-negative")
	}
	if cfg.Feed.URL != "" {
		u, err := url.Parse(cfg.Feed.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errors = append(errors, fmt.Sprintf("feed.url must be a ws:// or wss:// URL: %s", cfg.Feed.URL))
		}
	}
	if _, err := cfg.Feed.ParsedHandshakeTimeout(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid feed.handshake_timeout %q: %s", cfg.Feed.HandshakeTimeout, err))
	}

	if len(errors) > 0 {
		return sterrors.New(sterrors.CodeConfigInvalid, "config validation failed: "+strings.Join(errors, "; ")).
			WithSuggestion("Fix the listed fields in " + ConfigFileName)
	}
	return nil
}

func validatePlayback(p *PlaybackConfig) []string {
	var errors []string
	fields := []struct {
		name  string
		value string
	}{
		{"shimmer_delay", p.ShimmerDelay},
		{"waiting_delay", p.WaitingDelay},
		{"step_delay", p.StepDelay},
		{"complete_delay", p.CompleteDelay},
		{"final_delay", p.FinalDelay},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid playback.%s %q: %s", f.name, f.value, err))
			continue
		}
		if d < 0 {
			errors = append(errors, fmt.Sprintf("playback.%s must not be negative", f.name))
		}
	}
	return errors
}

func validateNarration(n *NarrationConfig) []string {
	var errors []string
	for agent, name := range n.FriendlyNames {
		if strings.TrimSpace(agent) == "" || strings.TrimSpace(name) == "" {
			errors = append(errors, "narration.friendly_names entries need an agent and a name")
		}
	}
	for i, r := range n.Rules {
		label := r.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if strings.TrimSpace(r.ActionType) == "" {
			errors = append(errors, fmt.Sprintf("narration rule %s requires an action_type", label))
		}
		if len(r.Keywords) == 0 {
			errors = append(errors, fmt.Sprintf("narration rule %s requires at least one keyword", label))
		}
		if len(r.Steps) == 0 {
			errors = append(errors, fmt.Sprintf("narration rule %s requires at least one step", label))
		}
		if r.Priority < 0 {
			errors = append(errors, fmt.Sprintf("narration rule %s priority must be non-negative", label))
		}
	}
	return errors
}

func validateHooks(h *HooksConfig) []string {
	var errors []string
	names := make(map[string]bool)
	for i, hook := range h.Hooks {
		label := hook.Name
		if label == "" {
			errors = append(errors, fmt.Sprintf("hook #%d requires a name", i+1))
			label = fmt.Sprintf("#%d", i+1)
		} else if names[hook.Name] {
			errors = append(errors, fmt.Sprintf("duplicate hook name: %s", hook.Name))
		}
		names[hook.Name] = true

		switch hook.Type {
		case "shell":
			if hook.Command == "" {
				errors = append(errors, fmt.Sprintf("shell hook %s requires a command", label))
			}
		case "webhook":
			u, err := url.Parse(hook.URL)
			if hook.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				errors = append(errors, fmt.Sprintf("webhook hook %s requires an http(s) url", label))
			}
		case "log":
			validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "": true}
			if !validLevels[hook.Level] {
				errors = append(errors, fmt.Sprintf("log hook %s has invalid level: %s", label, hook.Level))
			}
		default:
			errors = append(errors, fmt.Sprintf("hook %s has invalid type: %s (must be shell, webhook, or log)", label, hook.Type))
		}
	}
	return errors
}

package event

import (
	"fmt"

	"github.com/cadre-oss/storyline/internal/config"
)

// HooksFromConfig builds the hooks declared in storyline.yaml. A disabled
// hooks section yields none.
func HooksFromConfig(cfg config.HooksConfig, logger FullLogger) ([]Hook, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	hooks := make([]Hook, 0, len(cfg.Hooks))
	for _, hc := range cfg.Hooks {
		events := make([]EventType, 0, len(hc.Events))
		for _, name := range hc.Events {
			t, err := ParseEventType(name)
			if err != nil {
				return nil, fmt.Errorf("hook %s: %w", hc.Name, err)
			}
			events = append(events, t)
		}

		switch hc.Type {
		case "shell":
			hooks = append(hooks, NewShellHook(hc.Name, hc.Command, events, hc.Blocking))
		case "webhook":
			wh := NewWebhookHook(hc.Name, hc.URL, events, hc.Blocking)
			wh.Headers = hc.Headers
			hooks = append(hooks, wh)
		case "log":
			hooks = append(hooks, NewLogHook(hc.Name, events, logger, hc.Level))
		default:
			return nil, fmt.Errorf("hook %s: unknown type %q", hc.Name, hc.Type)
		}
	}
	return hooks, nil
}

// RegisterConfigured builds the configured hooks and registers them on b.
func RegisterConfigured(b *Bus, cfg config.HooksConfig, logger FullLogger) error {
	hooks, err := HooksFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	for _, h := range hooks {
		b.Register(h)
	}
	return nil
}

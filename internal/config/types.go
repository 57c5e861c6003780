package config

import "time"

// ConfigFileName is the project configuration file looked up by Load.
const ConfigFileName = "storyline.yaml"

// Config represents the main project configuration (storyline.yaml)
type Config struct {
	Name      string          `yaml:"name" json:"name"`
	Version   string          `yaml:"version" json:"version"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Archive   ArchiveConfig   `yaml:"archive" json:"archive"`
	Playback  PlaybackConfig  `yaml:"playback" json:"playback"`
	Narration NarrationConfig `yaml:"narration" json:"narration"`
	Hooks     HooksConfig     `yaml:"hooks" json:"hooks"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Feed      FeedConfig      `yaml:"feed" json:"feed"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// ArchiveConfig configures where played turns are stored
type ArchiveConfig struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite, memory
	Path   string `yaml:"path" json:"path"`
}

// PlaybackConfig configures the narration timers. Durations use Go syntax
// ("750ms", "2s").
type PlaybackConfig struct {
	ShimmerDelay  string         `yaml:"shimmer_delay" json:"shimmer_delay"`   // shimmer -> waiting caption
	WaitingDelay  string         `yaml:"waiting_delay" json:"waiting_delay"`   // timeline delivered -> first step
	StepDelay     string         `yaml:"step_delay" json:"step_delay"`         // between steps
	CompleteDelay string         `yaml:"complete_delay" json:"complete_delay"` // last step -> final caption
	FinalDelay    string         `yaml:"final_delay" json:"final_delay"`       // final caption -> cleared
	Captions      CaptionsConfig `yaml:"captions" json:"captions"`
}

// CaptionsConfig holds the transient status captions.
type CaptionsConfig struct {
	Shimmer string `yaml:"shimmer" json:"shimmer"`
	Waiting string `yaml:"waiting" json:"waiting"`
	Final   string `yaml:"final" json:"final"`
	Empty   string `yaml:"empty" json:"empty"`
}

// PlaybackDelays is PlaybackConfig with parsed durations.
type PlaybackDelays struct {
	Shimmer  time.Duration
	Waiting  time.Duration
	Step     time.Duration
	Complete time.Duration
	Final    time.Duration
}

// NarrationConfig customizes agent names and narrative rules
type NarrationConfig struct {
	FriendlyNames map[string]string `yaml:"friendly_names,omitempty" json:"friendly_names,omitempty"`
	ActionTypes   map[string]string `yaml:"action_types,omitempty" json:"action_types,omitempty"`
	Rules         []RuleConfig      `yaml:"rules,omitempty" json:"rules,omitempty"`
	RulesDir      string            `yaml:"rules_dir,omitempty" json:"rules_dir,omitempty"` // directory of *.yaml rule lists
}

// RuleConfig adds a keyword-triggered context to an action type. An
// action type of "*" applies the rule to every action type.
type RuleConfig struct {
	ActionType string   `yaml:"action_type" json:"action_type"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Keywords   []string `yaml:"keywords" json:"keywords"`
	Priority   int      `yaml:"priority,omitempty" json:"priority,omitempty"`
	Steps      []string `yaml:"steps" json:"steps"`
}

// HooksConfig configures playback event hooks.
type HooksConfig struct {
	Enabled bool         `yaml:"enabled" json:"enabled"`
	Hooks   []HookConfig `yaml:"hooks" json:"hooks"`
}

// HookConfig defines a single hook.
type HookConfig struct {
	Name     string            `yaml:"name" json:"name"`
	Type     string            `yaml:"type" json:"type"`     // shell, webhook, log
	Events   []string          `yaml:"events" json:"events"` // event types to match
	Blocking bool              `yaml:"blocking" json:"blocking"`
	Command  string            `yaml:"command,omitempty" json:"command,omitempty"` // for shell hooks
	URL      string            `yaml:"url,omitempty" json:"url,omitempty"`         // for webhook hooks
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"` // for webhook hooks
	Level    string            `yaml:"level,omitempty" json:"level,omitempty"`     // for log hooks (debug, info, warn)
}

// ServerConfig configures the HTTP/SSE server
type ServerConfig struct {
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	SessionTimeout string `yaml:"session_timeout" json:"session_timeout"`
}

// FeedConfig configures the live websocket feed
type FeedConfig struct {
	URL              string `yaml:"url,omitempty" json:"url,omitempty"`
	BufferSize       int    `yaml:"buffer_size" json:"buffer_size"`
	HandshakeTimeout string `yaml:"handshake_timeout" json:"handshake_timeout"`
}

// MetricsConfig configures the JSONL metrics exporter. Empty path disables it.
type MetricsConfig struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// ParsedDelays converts the playback durations. Empty values use defaults.
func (p *PlaybackConfig) ParsedDelays() (PlaybackDelays, error) {
	var d PlaybackDelays
	fields := []struct {
		value    string
		fallback string
		dst      *time.Duration
	}{
		{p.ShimmerDelay, defaultShimmerDelay, &d.Shimmer},
		{p.WaitingDelay, defaultWaitingDelay, &d.Waiting},
		{p.StepDelay, defaultStepDelay, &d.Step},
		{p.CompleteDelay, defaultCompleteDelay, &d.Complete},
		{p.FinalDelay, defaultFinalDelay, &d.Final},
	}
	for _, f := range fields {
		v := f.value
		if v == "" {
			v = f.fallback
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return PlaybackDelays{}, err
		}
		*f.dst = parsed
	}
	return d, nil
}

// ParsedSessionTimeout converts the idle session timeout
func (s *ServerConfig) ParsedSessionTimeout() (time.Duration, error) {
	if s.SessionTimeout == "" {
		return 30 * time.Minute, nil // default
	}
	return time.ParseDuration(s.SessionTimeout)
}

// ParsedHandshakeTimeout converts the websocket handshake timeout
func (f *FeedConfig) ParsedHandshakeTimeout() (time.Duration, error) {
	if f.HandshakeTimeout == "" {
		return 10 * time.Second, nil // default
	}
	return time.ParseDuration(f.HandshakeTimeout)
}

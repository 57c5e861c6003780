package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultShimmerDelay  = "600ms"
	defaultWaitingDelay  = "300ms"
	defaultStepDelay     = "900ms"
	defaultCompleteDelay = "600ms"
	defaultFinalDelay    = "4s"
)

var (
	envPattern = regexp.MustCompile(`\$\{env\.([^}]+)\}`)
	varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// Load loads the project configuration from dir/storyline.yaml. A missing
// file yields the defaults.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile loads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	content = []byte(interpolateEnv(string(content)))

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// interpolateEnv replaces ${env.VAR} and ${VAR} with environment values
func interpolateEnv(content string) string {
	content = envPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // keep original if not found
	})

	content = varPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := varPattern.FindStringSubmatch(match)[1]
		// Dotted names are not environment references.
		if strings.Contains(varName, ".") {
			return match
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return content
}

func defaultConfig() *Config {
	cfg := &Config{
		Name:    "storyline",
		Version: "1.0",
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Archive.Driver == "" {
		cfg.Archive.Driver = "sqlite"
	}
	if cfg.Archive.Path == "" {
		cfg.Archive.Path = ".storyline/archive.db"
	}

	p := &cfg.Playback
	if p.ShimmerDelay == "" {
		p.ShimmerDelay = defaultShimmerDelay
	}
	if p.WaitingDelay == "" {
		p.WaitingDelay = defaultWaitingDelay
	}
	if p.StepDelay == "" {
		p.StepDelay = defaultStepDelay
	}
	if p.CompleteDelay == "" {
		p.CompleteDelay = defaultCompleteDelay
	}
	if p.FinalDelay == "" {
		p.FinalDelay = defaultFinalDelay
	}
	if p.Captions.Shimmer == "" {
		p.Captions.Shimmer = "Understanding your request"
	}
	if p.Captions.Waiting == "" {
		p.Captions.Waiting = "Coordinating agents"
	}
	if p.Captions.Final == "" {
		p.Captions.Final = "Response ready"
	}
	if p.Captions.Empty == "" {
		p.Captions.Empty = "Response ready"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTimeout == "" {
		cfg.Server.SessionTimeout = "30m"
	}
	if cfg.Feed.BufferSize == 0 {
		cfg.Feed.BufferSize = 200
	}
	if cfg.Feed.HandshakeTimeout == "" {
		cfg.Feed.HandshakeTimeout = "10s"
	}
}

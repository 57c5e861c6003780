package cli

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/cadre-oss/storyline/internal/archive"
	"github.com/cadre-oss/storyline/internal/config"
	sterrors "github.com/cadre-oss/storyline/internal/errors"
	"github.com/cadre-oss/storyline/internal/event"
	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/render"
	"github.com/cadre-oss/storyline/internal/telemetry"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *telemetry.Logger
	bus      *event.Bus
	metrics  *telemetry.Metrics
	archive  *archive.Manager
	exporter *telemetry.JSONLExporter
}

// envOverrides are the settings STORYLINE_* variables may override, keyed
// by their viper key.
func envOverrides(cfg *config.Config) map[string]*string {
	return map[string]*string{
		"logging.level":  &cfg.Logging.Level,
		"logging.format": &cfg.Logging.Format,
		"logging.file":   &cfg.Logging.File,
		"archive.driver": &cfg.Archive.Driver,
		"archive.path":   &cfg.Archive.Path,
		"feed.url":       &cfg.Feed.URL,
		"metrics.path":   &cfg.Metrics.Path,
	}
}

// envName is the STORYLINE_* variable viper binds to key.
func envName(key string) string {
	return "STORYLINE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// loadConfig reads the file viper resolved, falling back to
// ./storyline.yaml, then applies environment overrides and validates.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if used := viper.ConfigFileUsed(); used != "" {
		cfg, err = config.LoadFile(used)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return nil, sterrors.Wrap(sterrors.CodeConfigInvalid, "failed to load config", err).
			WithSuggestion("Check storyline.yaml syntax or pass --config")
	}

	for key, dst := range envOverrides(cfg) {
		if _, ok := os.LookupEnv(envName(key)); !ok {
			continue
		}
		if v := viper.GetString(key); v != "" {
			*dst = v
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp loads configuration and builds the logger, event bus and metrics.
// The archive is opened separately by commands that record turns.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := telemetry.NewLoggerWithOptions(telemetry.LoggerOptions{Level: level, Format: cfg.Logging.Format})
	if cfg.Logging.File != "" {
		if err := logger.WithFile(cfg.Logging.File); err != nil {
			return nil, err
		}
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		bus:     event.NewBus(logger),
		metrics: telemetry.NewMetrics(),
	}
	if err := event.RegisterConfigured(a.bus, cfg.Hooks, logger); err != nil {
		return nil, sterrors.Wrap(sterrors.CodeConfigInvalid, "invalid hooks", err)
	}

	if cfg.Metrics.Path != "" {
		exp, err := telemetry.NewJSONLExporter(cfg.Metrics.Path)
		if err != nil {
			return nil, err
		}
		a.exporter = exp
		a.metrics.SetExporter(exp)
		a.bus.Register(event.NewFuncHook("metrics-export", []event.EventType{event.TurnCompleted, event.TurnSuperseded}, false,
			func(ev event.Event) error {
				return a.metrics.FlushTurn(string(ev.Type), ev.SessionID, ev.TurnID)
			}))
	}
	return a, nil
}

// openArchive opens the configured turn archive.
func (a *app) openArchive() (*archive.Manager, error) {
	if a.archive != nil {
		return a.archive, nil
	}
	mgr, err := archive.NewManager(a.cfg.Archive.Driver, a.cfg.Archive.Path)
	if err != nil {
		return nil, err
	}
	a.archive = mgr
	return mgr, nil
}

// selector builds the configured timeline selector, recording into metrics.
func (a *app) selector() (*timeline.Selector, error) {
	sel, err := timeline.SelectorFromConfig(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	sel.SetRecorder(a.metrics)
	return sel, nil
}

// newPlayer builds a player for sessionID on the app's collaborators.
func (a *app) newPlayer(sessionID string, archiveMgr *archive.Manager) (*playback.Player, error) {
	sel, err := a.selector()
	if err != nil {
		return nil, err
	}
	settings, err := playback.SettingsFromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	return playback.NewPlayer(sessionID, playback.Options{
		Selector: sel,
		Settings: settings,
		Bus:      a.bus,
		Logger:   a.logger,
		Metrics:  a.metrics,
		Archive:  archiveMgr,
	}), nil
}

func (a *app) renderer() *render.Renderer {
	if noColor {
		return render.New(render.PlainTheme())
	}
	return render.New(render.DefaultTheme())
}

// Close releases the archive, metrics exporter and log files.
func (a *app) Close() {
	a.archive.Close()
	if a.exporter != nil {
		a.exporter.Close()
	}
	a.logger.Close()
}

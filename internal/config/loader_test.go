package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	content := `
name: branch-assistant
version: "2.0"
logging:
  level: debug
  format: json
archive:
  driver: memory
playback:
  step_delay: 250ms
  captions:
    waiting: Consultando agentes
narration:
  friendly_names:
    capi_datab: Core Banking
  action_types:
    capi_fx: database_query
  rules:
    - action_type: database_query
      keywords: [credito]
      steps: ["Checking credit lines"]
server:
  port: 9090
feed:
  url: ws://localhost:7000/ws
  buffer_size: 50
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Name != "branch-assistant" {
		t.Errorf("expected name branch-assistant, got %s", cfg.Name)
	}
	if cfg.Version != "2.0" {
		t.Errorf("expected version 2.0, got %s", cfg.Version)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected format json, got %s", cfg.Logging.Format)
	}
	if cfg.Archive.Driver != "memory" {
		t.Errorf("expected driver memory, got %s", cfg.Archive.Driver)
	}
	if cfg.Playback.Captions.Waiting != "Consultando agentes" {
		t.Errorf("expected custom waiting caption, got %s", cfg.Playback.Captions.Waiting)
	}
	if cfg.Playback.Captions.Final != "Response ready" {
		t.Errorf("expected default final caption, got %s", cfg.Playback.Captions.Final)
	}
	if cfg.Narration.FriendlyNames["capi_datab"] != "Core Banking" {
		t.Errorf("expected friendly name override, got %v", cfg.Narration.FriendlyNames)
	}
	if len(cfg.Narration.Rules) != 1 || cfg.Narration.Rules[0].Keywords[0] != "credito" {
		t.Errorf("unexpected rules %+v", cfg.Narration.Rules)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Feed.BufferSize != 50 {
		t.Errorf("expected buffer size 50, got %d", cfg.Feed.BufferSize)
	}

	delays, err := cfg.Playback.ParsedDelays()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delays.Step != 250*time.Millisecond {
		t.Errorf("expected step delay 250ms, got %s", delays.Step)
	}
	if delays.Final != 4*time.Second {
		t.Errorf("expected default final delay, got %s", delays.Final)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "storyline" {
		t.Errorf("expected default name, got %s", cfg.Name)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	content := `{{{invalid yaml content`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_ApplyDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
name: minimal
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level info, got %s", cfg.Logging.Level)
	}
	if cfg.Archive.Driver != "sqlite" {
		t.Errorf("expected default driver sqlite, got %s", cfg.Archive.Driver)
	}
	if cfg.Archive.Path != ".storyline/archive.db" {
		t.Errorf("expected default archive path, got %s", cfg.Archive.Path)
	}
	if cfg.Playback.StepDelay != "900ms" {
		t.Errorf("expected default step delay, got %s", cfg.Playback.StepDelay)
	}
	if cfg.Server.SessionTimeout != "30m" {
		t.Errorf("expected default session timeout, got %s", cfg.Server.SessionTimeout)
	}
	if cfg.Feed.BufferSize != 200 {
		t.Errorf("expected default buffer size, got %d", cfg.Feed.BufferSize)
	}
}

func TestLoad_EnvInterpolation(t *testing.T) {
	dir := t.TempDir()
	content := `
name: ${TEST_STORYLINE_NAME}
feed:
  url: ${env.TEST_STORYLINE_FEED}
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TEST_STORYLINE_NAME", "env-project")
	t.Setenv("TEST_STORYLINE_FEED", "wss://feed.example.com/agents")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Name != "env-project" {
		t.Errorf("expected env-project, got %s", cfg.Name)
	}
	if cfg.Feed.URL != "wss://feed.example.com/agents" {
		t.Errorf("expected feed url from env, got %s", cfg.Feed.URL)
	}
}

func TestLoad_EnvInterpolation_Unset(t *testing.T) {
	dir := t.TempDir()
	content := `
name: ${UNSET_STORYLINE_VAR}
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Name != "${UNSET_STORYLINE_VAR}" {
		t.Errorf("expected uninterpolated value, got %s", cfg.Name)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "custom.yaml")
	cfg := Default()
	cfg.Name = "saved"
	cfg.Narration.Rules = []RuleConfig{{ActionType: "*", Keywords: []string{"urgente"}, Steps: []string{"Prioritizing"}}}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Name != "saved" || len(loaded.Narration.Rules) != 1 {
		t.Errorf("unexpected round trip %+v", loaded)
	}
}

func TestLoadRuleFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b-news.yaml": `
- action_type: news_analysis
  keywords: [tasas]
  steps: ["Tracking rate announcements"]
`,
		"a-db.yml": `
- name: credit
  action_type: database_query
  keywords: [credito]
  steps: ["Checking credit lines"]
- action_type: database_query
  keywords: [nomina]
  steps: ["Reviewing payroll deposits"]
`,
		"notes.txt": "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	rules, err := LoadRuleFiles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	if rules[0].Name != "credit" || rules[1].Name != "a-db#2" || rules[2].Name != "b-news#1" {
		t.Errorf("unexpected rule names %q %q %q", rules[0].Name, rules[1].Name, rules[2].Name)
	}

	n := NarrationConfig{
		Rules:    []RuleConfig{{Name: "inline", ActionType: "*", Keywords: []string{"x"}, Steps: []string{"y"}}},
		RulesDir: dir,
	}
	all, err := n.AllRules()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 4 || all[0].Name != "inline" {
		t.Errorf("expected inline rule first, got %+v", all)
	}

	missing, err := LoadRuleFiles(filepath.Join(dir, "missing"))
	if err != nil || len(missing) != 0 {
		t.Errorf("expected no rules for missing dir, got %v %v", missing, err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GITHUB_TOKEN", "LOG_LEVEL", "PCT_LOG_LEVEL", "PCT_AI_PROVIDER"} {
		t.Setenv(k, "")
	}
	// godotenv reads .env from the working directory.
	t.Chdir(home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Provider != "anthropic" {
		t.Fatalf("ai.provider = %q, want anthropic", cfg.AI.Provider)
	}
	if cfg.Analysis.Workers != 4 || cfg.Analysis.Timeout != 30*time.Second {
		t.Fatalf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Analysis.MaxFileSizeKB != 100 || cfg.AI.MaxRetries != 3 || cfg.AI.MaxTokens != 4096 {
		t.Fatalf("unexpected limits: %+v %+v", cfg.Analysis, cfg.AI)
	}
	if cfg.Report.MinSeverity != "info" || cfg.Report.FailOnCritical {
		t.Fatalf("unexpected report defaults: %+v", cfg.Report)
	}
	if cfg.Server.Addr != "127.0.0.1:8000" || cfg.Server.RequestsPerMinute != 60 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if want := filepath.Join(home, DefaultPromptsDir); cfg.Analysis.PromptsDir != want {
		t.Fatalf("prompts_dir = %q, want %q", cfg.Analysis.PromptsDir, want)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PCT_ANALYSIS_WORKERS", "9")
	t.Setenv("PCT_REPORT_FAIL_ON_CRITICAL", "true")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("LOG_LEVEL", "WARNING")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.Workers != 9 {
		t.Fatalf("workers = %d, want 9", cfg.Analysis.Workers)
	}
	if !cfg.Report.FailOnCritical {
		t.Fatal("fail_on_critical not picked up from env")
	}
	if cfg.AI.AnthropicKey != "sk-test" {
		t.Fatalf("anthropic key = %q", cfg.AI.AnthropicKey)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("log level = %q, want warn", cfg.Log.Level)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom", "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.AI.Provider = "ollama"
	cfg.Analysis.Pass = "security"
	cfg.Report.Format = "sarif"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm = %v, want 0600", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.AI.Provider != "ollama" || got.Analysis.Pass != "security" || got.Report.Format != "sarif" {
		t.Fatalf("round trip lost values: %+v", got)
	}
	if got.Analysis.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v", got.Analysis.Timeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "bad.json")
	if err := os.WriteFile(path, []byte(`{"report":{"min_severity":"severe"},"analysis":{"workers":0}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"MinSeverity", "Workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadMalformedFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "broken.json")
	if err := os.WriteFile(path, []byte(`{"ai":`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestSetUpdatesSingleKey(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "cfg", "config.json")

	if err := Set(path, "analysis.workers", "8"); err != nil {
		t.Fatalf("Set workers: %v", err)
	}
	if err := Set(path, "Report.Fail_On_Critical", "true"); err != nil {
		t.Fatalf("Set fail_on_critical: %v", err)
	}
	if err := Set(path, "notify.events", "analysis_failed,analysis_completed"); err != nil {
		t.Fatalf("Set notify.events: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.Workers != 8 || !cfg.Report.FailOnCritical {
		t.Fatalf("values not persisted: %+v %+v", cfg.Analysis, cfg.Report)
	}
	if len(cfg.Notify.Events) != 2 {
		t.Fatalf("notify.events = %v", cfg.Notify.Events)
	}
	if cfg.Analysis.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v, untouched keys must keep their defaults", cfg.Analysis.Timeout)
	}
}

func TestSetRejectsUnknownKeysAndInvalidValues(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.json")

	if err := Set(path, "ai.temperature", "1"); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
	if err := Set(path, "ai.provider", "bogus"); err == nil {
		t.Fatal("expected validation error for provider")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invalid Set must not write the file (stat err: %v)", err)
	}
}

func TestNotifyValidation(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "notify.json")
	body := `{"notify":{"events":["sweep_done"],"webhook":{"url":"not a url"}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"Events", "URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

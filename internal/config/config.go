package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".pct"
	DefaultConfigFile = "config.json"
	DefaultPromptsDir = ".pct/prompts"

	envPrefix = "PCT"
)

var validate = validator.New()

// Load reads the config file and environment and returns a validated Config.
// A missing config file is not an error; defaults apply. The configPath flag
// may override the default location.
func Load(configPath string) (*Config, error) {
	// A .env in the working directory is optional.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvFallbacks(&cfg)
	expandPaths(&cfg, home)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and reports every violation at once.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, e := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed '%s' (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	path, err := ConfigPath(configPath)
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Set updates one dotted key (e.g. "analysis.workers") in the config file,
// validates the result and writes it back. Environment overrides are not
// persisted.
func Set(configPath, key, value string) error {
	path, err := ConfigPath(configPath)
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigFile(path)
	setDefaults(v, home)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	key = strings.ToLower(strings.TrimSpace(key))
	if !slices.Contains(v.AllKeys(), key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	v.Set(key, value)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	if err := Validate(&cfg); err != nil {
		return err
	}
	return Save(&cfg, configPath)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.openai_api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.ollama_url", "http://localhost:11434")
	v.SetDefault("ai.fallback", []string{})
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.max_tokens", 4096)

	v.SetDefault("analysis.pass", "comprehensive")
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.timeout", 30*time.Second)
	v.SetDefault("analysis.requests_per_minute", 0)
	v.SetDefault("analysis.max_file_size_kb", 100)
	v.SetDefault("analysis.min_confidence", 0.0)
	v.SetDefault("analysis.prompts_dir", filepath.Join(home, DefaultPromptsDir))

	v.SetDefault("report.format", "console")
	v.SetDefault("report.min_severity", "info")
	v.SetDefault("report.fail_on_critical", false)

	v.SetDefault("server.addr", "127.0.0.1:8000")
	v.SetDefault("server.requests_per_minute", 60)

	v.SetDefault("github.token", "")
	v.SetDefault("github.host", "")

	v.SetDefault("notify.events", []string{})
	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
}

// applyEnvFallbacks honours the provider-conventional variables when the
// PCT_-prefixed ones are unset.
func applyEnvFallbacks(cfg *Config) {
	if cfg.AI.AnthropicKey == "" {
		cfg.AI.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.AI.OpenAIKey == "" {
		cfg.AI.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if lvl := strings.TrimSpace(os.Getenv("LOG_LEVEL")); lvl != "" && os.Getenv(envPrefix+"_LOG_LEVEL") == "" {
		cfg.Log.Level = strings.ToLower(lvl)
	}
	if cfg.Log.Level == "warning" {
		cfg.Log.Level = "warn"
	}
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Analysis.PromptsDir = expandHome(cfg.Analysis.PromptsDir, home)
	cfg.Log.File = expandHome(cfg.Log.File, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}

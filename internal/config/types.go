package config

import "time"

// Config is the root configuration structure for pct.
// Serialised to ~/.pct/config.json.
type Config struct {
	AI       AIConfig       `mapstructure:"ai"       json:"ai"`
	Analysis AnalysisConfig `mapstructure:"analysis" json:"analysis"`
	Report   ReportConfig   `mapstructure:"report"   json:"report"`
	Server   ServerConfig   `mapstructure:"server"   json:"server"`
	GitHub   GitHubConfig   `mapstructure:"github"   json:"github"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
	Log      LogConfig      `mapstructure:"log"      json:"log"`
}

// AIConfig controls the language model used as the analyzer.
type AIConfig struct {
	// Provider is "anthropic" (default), "openai", "ollama" or "none".
	Provider     string `mapstructure:"provider"          json:"provider"          validate:"omitempty,oneof=anthropic openai ollama none"`
	Model        string `mapstructure:"model"             json:"model"`
	AnthropicKey string `mapstructure:"anthropic_api_key" json:"anthropic_api_key"`
	OpenAIKey    string `mapstructure:"openai_api_key"    json:"openai_api_key"`
	// BaseURL overrides the OpenAI-compatible endpoint (proxies, Azure, LM Studio).
	BaseURL string `mapstructure:"base_url"   json:"base_url"   validate:"omitempty,url"`
	// OllamaURL is used when Provider == "ollama".
	OllamaURL string `mapstructure:"ollama_url" json:"ollama_url" validate:"omitempty,url"`
	// Fallback lists providers tried in order when the primary fails.
	Fallback   []string `mapstructure:"fallback"    json:"fallback"    validate:"dive,oneof=anthropic openai ollama"`
	MaxRetries int      `mapstructure:"max_retries" json:"max_retries" validate:"gte=0,lte=10"`
	MaxTokens  int      `mapstructure:"max_tokens"  json:"max_tokens"  validate:"gte=256"`
}

// AnalysisConfig controls how sources are split into units and analyzed.
type AnalysisConfig struct {
	// Pass is security, bugs, quality or comprehensive.
	Pass string `mapstructure:"pass" json:"pass" validate:"oneof=security bugs quality comprehensive"`
	// Workers bounds concurrent analyzer calls.
	Workers int           `mapstructure:"workers" json:"workers" validate:"gte=1,lte=64"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" validate:"min=1s"`
	// RequestsPerMinute caps analyzer calls across workers. Zero means unlimited.
	RequestsPerMinute int     `mapstructure:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
	MaxFileSizeKB     int     `mapstructure:"max_file_size_kb"    json:"max_file_size_kb"    validate:"gte=1"`
	MinConfidence     float64 `mapstructure:"min_confidence"      json:"min_confidence"      validate:"gte=0,lte=1"`
	// PromptsDir holds user prompt packs that shadow the bundled ones.
	PromptsDir string `mapstructure:"prompts_dir" json:"prompts_dir"`
}

// ReportConfig holds report defaults; CLI flags override them.
type ReportConfig struct {
	Format         string `mapstructure:"format"           json:"format"           validate:"oneof=console json sarif html yaml"`
	MinSeverity    string `mapstructure:"min_severity"     json:"min_severity"     validate:"oneof=critical high medium low info"`
	FailOnCritical bool   `mapstructure:"fail_on_critical" json:"fail_on_critical"`
}

// ServerConfig controls the HTTP API started by `pct serve`.
type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr" validate:"required,hostname_port"`
	// RequestsPerMinute is the per-client rate limit. Zero disables it.
	RequestsPerMinute int `mapstructure:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
}

// GitHubConfig holds credentials for cloning private repositories and
// uploading SARIF to code scanning.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host"  json:"host"`
}

// NotifyConfig controls where run summaries are posted after an analysis.
type NotifyConfig struct {
	// Events selects which outcomes are sent: "analysis_failed" (default)
	// and/or "analysis_completed".
	Events  []string            `mapstructure:"events"  json:"events"  validate:"dive,oneof=analysis_failed analysis_completed"`
	Slack   SlackNotifyConfig   `mapstructure:"slack"   json:"slack"`
	Webhook WebhookNotifyConfig `mapstructure:"webhook" json:"webhook"`
}

type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url" validate:"omitempty,url"`
}

// WebhookNotifyConfig posts a JSON summary to URL, signed with HMAC-SHA256
// when Secret is set.
type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    json:"url"    validate:"omitempty,url"`
	Secret string `mapstructure:"secret" json:"secret"`
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"  json:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" json:"format" validate:"oneof=text json"`
	// File, when set, receives log output instead of stderr.
	File string `mapstructure:"file" json:"file"`
}

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/internal/config"
	"github.com/CosmoTheDev/pct/internal/prompts"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup wizard",
	Long: `Walks through choosing an AI provider, default analysis settings, and an
optional GitHub token, then writes ~/.pct/config.json and installs the bundled
prompt packs into the prompts directory so they can be customised.`,
	RunE: runInit,
}

// defaultModels is the model preselected for each provider.
var defaultModels = map[string]string{
	"anthropic": "claude-3-haiku-20240307",
	"openai":    "gpt-4o-mini",
	"ollama":    "llama3.1",
}

func runInit(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  pct · LLM-powered code review"))
	fmt.Println(dimStyle.Render("  Answers are saved to your config file; re-run 'pct init' any time.\n"))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println(warnStyle.Render("  Existing config could not be loaded (" + err.Error() + "); starting from defaults."))
		cfg = &config.Config{}
	}
	applyWizardDefaults(cfg)

	// Step 1: provider.
	fmt.Println(headerStyle.Render("  Step 1/3 · AI Provider"))
	provider := cfg.AI.Provider
	providerForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which provider should analyze your code?").
				Options(
					huh.NewOption("Anthropic (Claude)", "anthropic"),
					huh.NewOption("OpenAI or compatible endpoint", "openai"),
					huh.NewOption("Ollama (local models)", "ollama"),
				).
				Value(&provider),
		),
	)
	if err := providerForm.Run(); err != nil {
		return fmt.Errorf("provider selection: %w", err)
	}
	cfg.AI.Provider = provider

	model := cfg.AI.Model
	if model == "" {
		model = defaultModels[provider]
	}
	var key string
	fields := []huh.Field{}
	switch provider {
	case "anthropic":
		key = cfg.AI.AnthropicKey
		fields = append(fields, huh.NewInput().
			Title("Anthropic API Key").
			Description("Get one at console.anthropic.com. ANTHROPIC_API_KEY is used when left blank.").
			Placeholder("sk-ant-...").
			EchoMode(huh.EchoModePassword).
			Value(&key))
	case "openai":
		key = cfg.AI.OpenAIKey
		fields = append(fields,
			huh.NewInput().
				Title("OpenAI API Key").
				Description("OPENAI_API_KEY is used when left blank.").
				Placeholder("sk-...").
				EchoMode(huh.EchoModePassword).
				Value(&key),
			huh.NewInput().
				Title("Base URL (optional)").
				Description("Only for proxies or compatible servers such as LM Studio.").
				Placeholder("https://api.openai.com/v1").
				Value(&cfg.AI.BaseURL),
		)
	case "ollama":
		fields = append(fields, huh.NewInput().
			Title("Ollama URL").
			Placeholder("http://localhost:11434").
			Value(&cfg.AI.OllamaURL))
	}
	fields = append(fields, huh.NewInput().
		Title("Model").
		Description("Leave as is unless you know which model you want.").
		Value(&model))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("provider settings: %w", err)
	}
	cfg.AI.Model = strings.TrimSpace(model)
	switch provider {
	case "anthropic":
		cfg.AI.AnthropicKey = strings.TrimSpace(key)
	case "openai":
		cfg.AI.OpenAIKey = strings.TrimSpace(key)
	}
	reportProviderProbe(cmd.Context(), cfg.AI)

	// Step 2: analysis defaults.
	fmt.Println(headerStyle.Render("  Step 2/3 · Analysis defaults"))
	workers := fmt.Sprintf("%d", cfg.Analysis.Workers)
	analysisForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default analysis pass").
				Options(
					huh.NewOption("Comprehensive (security, bugs, and quality)", "comprehensive"),
					huh.NewOption("Security only", "security"),
					huh.NewOption("Bugs only", "bugs"),
					huh.NewOption("Quality only", "quality"),
				).
				Value(&cfg.Analysis.Pass),
			huh.NewSelect[string]().
				Title("Minimum severity to report").
				Options(
					huh.NewOption("info (everything)", "info"),
					huh.NewOption("low", "low"),
					huh.NewOption("medium", "medium"),
					huh.NewOption("high", "high"),
					huh.NewOption("critical", "critical"),
				).
				Value(&cfg.Report.MinSeverity),
			huh.NewInput().
				Title("Concurrent analyzer calls").
				Value(&workers).
				Validate(func(s string) error {
					var n int
					if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 1 || n > 64 {
						return fmt.Errorf("enter a number between 1 and 64")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Fail (exit 1) when a critical finding is reported?").
				Value(&cfg.Report.FailOnCritical),
		),
	)
	if err := analysisForm.Run(); err != nil {
		return fmt.Errorf("analysis settings: %w", err)
	}
	_, _ = fmt.Sscanf(workers, "%d", &cfg.Analysis.Workers)

	// Step 3: GitHub.
	fmt.Println(headerStyle.Render("  Step 3/3 · GitHub (optional)"))
	ghForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub token (leave blank to skip)").
				Description("Needs 'repo' for private clones and 'security_events' for SARIF uploads.").
				Placeholder("ghp_...  (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.GitHub.Token),
			huh.NewInput().
				Title("GitHub Enterprise host (optional)").
				Placeholder("github.example.com").
				Value(&cfg.GitHub.Host),
		),
	)
	if err := ghForm.Run(); err != nil {
		return fmt.Errorf("github settings: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Save(cfg, cfgFile); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	path, _ := config.ConfigPath(cfgFile)
	fmt.Println(successStyle.Render("  Config saved to " + path))

	if err := prompts.NewStore(afero.NewOsFs(), cfg.Analysis.PromptsDir).Init(); err != nil {
		fmt.Println(warnStyle.Render("  Could not install prompt packs: " + err.Error()))
	} else {
		fmt.Println(successStyle.Render("  Prompt packs installed in " + cfg.Analysis.PromptsDir))
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("  Next: pct doctor, then pct analyze ./your-code"))
	return nil
}

// applyWizardDefaults fills the zero values a fresh Config would otherwise
// fail validation on.
func applyWizardDefaults(cfg *config.Config) {
	if cfg.AI.Provider == "" || cfg.AI.Provider == "none" {
		cfg.AI.Provider = "anthropic"
	}
	if cfg.AI.OllamaURL == "" {
		cfg.AI.OllamaURL = "http://localhost:11434"
	}
	if cfg.AI.MaxRetries == 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 4096
	}
	if cfg.Analysis.Pass == "" {
		cfg.Analysis.Pass = "comprehensive"
	}
	if cfg.Analysis.Workers == 0 {
		cfg.Analysis.Workers = 4
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = 30 * time.Second
	}
	if cfg.Analysis.MaxFileSizeKB == 0 {
		cfg.Analysis.MaxFileSizeKB = 100
	}
	if cfg.Analysis.PromptsDir == "" {
		if home, err := config.ConfigPath(""); err == nil {
			cfg.Analysis.PromptsDir = strings.TrimSuffix(home, config.DefaultConfigFile) + "prompts"
		}
	}
	if cfg.Report.Format == "" {
		cfg.Report.Format = "console"
	}
	if cfg.Report.MinSeverity == "" {
		cfg.Report.MinSeverity = "info"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8000"
		cfg.Server.RequestsPerMinute = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func reportProviderProbe(parent context.Context, aiCfg config.AIConfig) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	provider, err := ai.New(aiCfg)
	if err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("  Provider check skipped: %v", err)))
		return
	}
	if provider.IsAvailable(ctx) {
		fmt.Println(successStyle.Render(fmt.Sprintf("  %s reachable (%s).", provider.Name(), provider.Model())))
		return
	}
	fmt.Println(warnStyle.Render("  Provider not reachable right now."))
	fmt.Println(dimStyle.Render("  You can finish setup and fix this later, then run 'pct doctor'."))
}

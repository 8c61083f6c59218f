package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pct/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage pct configuration",
	Long: `Configuration is read from ~/.pct/config.json (or --config), then
PCT_-prefixed environment variables such as PCT_ANALYSIS_WORKERS override it.
ANTHROPIC_API_KEY, OPENAI_API_KEY and GITHUB_TOKEN are honoured when the
matching keys are empty.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		redact(cfg)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var configSetCmd = &cobra.Command{
	Use:     "set KEY VALUE",
	Short:   "Set one configuration key",
	Example: "  pct config set analysis.workers 8\n  pct config set notify.events analysis_failed,analysis_completed",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(cfgFile, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("%s updated", args[0])))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	Long:  "Opens the config file in $EDITOR (default nano), writing the defaults first if it does not exist yet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(p); os.IsNotExist(statErr) {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := config.Save(cfg, cfgFile); err != nil {
				return err
			}
		}

		editor := firstSet(os.Getenv("EDITOR"), "nano")
		c := exec.Command(editor, p) // #nosec G204 -- editor is from $EDITOR env var, intentional user-controlled binary
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("running %s: %w", editor, err)
		}

		if _, err := config.Load(cfgFile); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("Saved config does not load: "+err.Error()))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd, configEditCmd)
}

// redact masks credentials in place before cfg is printed.
func redact(cfg *config.Config) {
	mask := func(s *string, shown string) {
		if *s != "" {
			*s = shown
		}
	}
	mask(&cfg.AI.AnthropicKey, "sk-ant-***")
	mask(&cfg.AI.OpenAIKey, "sk-***")
	mask(&cfg.GitHub.Token, "ghp-***")
	mask(&cfg.Notify.Webhook.Secret, "***")
}

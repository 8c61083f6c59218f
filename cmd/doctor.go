package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/internal/config"
	"github.com/CosmoTheDev/pct/internal/notify"
	"github.com/CosmoTheDev/pct/internal/prompts"
	"github.com/CosmoTheDev/pct/internal/source"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify configuration, credentials, and provider reachability",
	Long: `Checks that the configuration loads and validates, that the configured AI
provider answers, that every prompt pack parses, and whether a GitHub token is
available for private clones and SARIF uploads.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== pct doctor ===")
	fmt.Fprintln(out)

	fmt.Fprint(out, "Config ................... ")
	path, _ := config.ConfigPath(cfgFile)
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(out, "FAIL (%s)\n", err)
		fmt.Fprintln(out)
		fmt.Fprintln(out, warnStyle.Render("Fix the configuration, or run 'pct init' to recreate it."))
		return nil
	}
	if _, statErr := os.Stat(path); statErr != nil {
		fmt.Fprintln(out, "OK (defaults, no config file)")
	} else {
		fmt.Fprintf(out, "OK (%s)\n", path)
	}

	allOK := checkProvider(ctx, out, cfg)
	allOK = checkPrompts(out, cfg) && allOK

	fmt.Fprint(out, "GitHub token ............. ")
	if cfg.GitHub.Token == "" {
		fmt.Fprintln(out, "not set (only needed for private --repo clones and --upload-sarif)")
	} else {
		host := firstSet(cfg.GitHub.Host, "github.com")
		fmt.Fprintf(out, "OK (%s)\n", host)
	}

	fmt.Fprint(out, "Notifications ............ ")
	if notify.NewDispatcher(cfg.Notify, nil).IsAnyConfigured() {
		fmt.Fprintln(out, "OK")
	} else {
		fmt.Fprintln(out, "none configured")
	}

	fmt.Fprintf(out, "Languages ................ %d supported\n", len(source.Languages()))

	fmt.Fprintln(out)
	if allOK {
		fmt.Fprintln(out, successStyle.Render("All checks passed. pct is ready!"))
	} else {
		fmt.Fprintln(out, warnStyle.Render("Some checks failed. Run 'pct init' to fix."))
	}
	return nil
}

func checkProvider(ctx context.Context, out io.Writer, cfg *config.Config) bool {
	fmt.Fprint(out, "AI provider .............. ")
	analyzer, err := ai.New(cfg.AI)
	if err != nil {
		fmt.Fprintf(out, "FAIL (%s)\n", err)
		return false
	}
	if _, noop := analyzer.(*ai.NoopProvider); noop {
		fmt.Fprintln(out, "FAIL (not configured; run 'pct init' or set ANTHROPIC_API_KEY)")
		return false
	}
	if !analyzer.IsAvailable(ctx) {
		fmt.Fprintf(out, "WARN (%s / %s not reachable)\n", analyzer.Name(), analyzer.Model())
		return false
	}
	fmt.Fprintf(out, "OK (%s / %s)\n", analyzer.Name(), analyzer.Model())
	return true
}

func checkPrompts(out io.Writer, cfg *config.Config) bool {
	fmt.Fprint(out, "Prompt packs ............. ")
	packs, err := prompts.NewStore(afero.NewOsFs(), cfg.Analysis.PromptsDir).List()
	if err != nil {
		fmt.Fprintf(out, "FAIL (%s)\n", err)
		return false
	}
	user := 0
	for _, p := range packs {
		if !p.Bundled {
			user++
		}
	}
	fmt.Fprintf(out, "OK (%d available, %d from %s)\n", len(packs), user, cfg.Analysis.PromptsDir)
	return true
}

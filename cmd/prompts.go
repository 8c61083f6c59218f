package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pct/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List, inspect, and install prompt packs",
	Long: `Prompt packs are Markdown files with YAML front matter whose body is the
user prompt template. Packs in analysis.prompts_dir (default ~/.pct/prompts)
shadow the bundled packs of the same name.`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available prompt packs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := promptStore()
		if err != nil {
			return err
		}
		packs, err := store.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%-18s %-15s %-8s %s", "NAME", "PASS", "SOURCE", "DESCRIPTION")))
		for _, p := range packs {
			src := "user"
			if p.Bundled {
				src = "bundled"
			}
			fmt.Fprintf(out, "%-18s %-15s %-8s %s\n", p.Name, firstSet(p.Pass, "-"), src, p.Description)
		}
		return nil
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a prompt pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := promptStore()
		if err != nil {
			return err
		}
		p, err := store.Load(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "name:        %s\n", p.Name)
		fmt.Fprintf(out, "version:     %d\n", p.Version)
		fmt.Fprintf(out, "pass:        %s\n", firstSet(p.Pass, "-"))
		fmt.Fprintf(out, "tags:        %s\n", strings.Join(p.Tags, ", "))
		fmt.Fprintf(out, "description: %s\n\n", p.Description)
		fmt.Fprintln(out, p.Body)
		return nil
	},
}

var promptsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Copy the bundled packs into the prompts directory for editing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := prompts.NewStore(afero.NewOsFs(), cfg.Analysis.PromptsDir)
		if err := store.Init(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Prompt packs installed in "+cfg.Analysis.PromptsDir))
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd, promptsShowCmd, promptsInitCmd)
}

func promptStore() (*prompts.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return prompts.NewStore(afero.NewOsFs(), cfg.Analysis.PromptsDir), nil
}

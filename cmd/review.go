package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pct/internal/policy"
	"github.com/CosmoTheDev/pct/internal/report"
	"github.com/CosmoTheDev/pct/internal/tui"
	"github.com/CosmoTheDev/pct/models"
)

var reviewFailOnCritical bool

var reviewCmd = &cobra.Command{
	Use:   "review REPORT.json",
	Short: "Browse a JSON report in the terminal",
	Long:  `Opens an interactive viewer for a report written by 'pct analyze --format json'.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewFailOnCritical, "fail-on-critical", false,
		"show the report as failing when it contains a critical finding, even if it was written without --fail-on-critical")
}

func runReview(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}
	res, err := report.DecodeJSON(data)
	if err != nil {
		return err
	}
	return tui.NewApp(res, reviewVerdict(res, reviewFailOnCritical)).Run()
}

// reviewVerdict is the report's own fail verdict, optionally tightened by
// --fail-on-critical.
func reviewVerdict(res *models.AnalysisResult, failOnCritical bool) bool {
	return policy.ShouldFail(res, res.FailOnCritical || failOnCritical)
}

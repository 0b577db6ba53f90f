package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/regis-cli/regis-playbook/src/internal/runner"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command, parse args from CLI
func newRootCmd() *cobra.Command {
	opts := &runner.Options{}

	cmd := &cobra.Command{
		Use:   "regis-playbook",
		Short: "Evaluate container image analysis reports against playbooks",
		Long: `regis-playbook evaluates an image analysis report against one or more playbooks.
Each playbook groups JsonLogic scorecards into pages and sections; the result carries
per-level and per-tag summaries, resolved widgets and links, and an overall score.
Optional Rego policies can enforce minimum results and fail the run.`,
		Version:       fmt.Sprintf("%s (built: %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	// Inputs
	cmd.Flags().StringVar(&opts.ReportPath, "report", "",
		"Path to the analysis report (JSON or YAML) (required)")
	cmd.Flags().StringArrayVar(&opts.Playbooks, "playbook", []string{},
		"Playbook source, repeatable: file path, http(s) URL or github://owner/repo/path[@ref] (required)")
	cmd.Flags().StringArrayVar(&opts.Meta, "meta", []string{},
		"Metadata in key=value format merged into the report, repeatable. A bare key is set to \"true\"")
	cmd.Flags().StringVar(&opts.PoliciesPath, "policies-path", "",
		"Path to policies directory (contains compliance-config.yaml). Enforcement is skipped when empty")

	// Execution
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", runner.DEFAULT_CONCURRENCY,
		"Max number of playbooks evaluated at the same time")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Debug mode")

	// Output
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "./output",
		"Output directory in case the tool need to export files")
	cmd.Flags().BoolVar(&opts.EnableExportReport, "enable-export-report", false,
		"Enable export report (one json file per playbook plus report.json to output dir), results go to stdout otherwise")
	cmd.Flags().BoolVar(&opts.EnableExportPerformanceReport, "enable-export-performance-report", false,
		"Enable export performance report (json file to output dir)")

	// Mark required flags
	_ = cmd.MarkFlagRequired("report")
	_ = cmd.MarkFlagRequired("playbook")

	return cmd
}

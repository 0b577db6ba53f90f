package runner

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/regis-cli/regis-playbook/src/pkg/models"
)

const (
	ICON_PASSED     = "✓"
	ICON_FAILED     = "✗"
	ICON_INCOMPLETE = "?"
)

var (
	passedColor     = color.New(color.FgGreen)
	failedColor     = color.New(color.FgRed)
	incompleteColor = color.New(color.FgYellow)
	headerColor     = color.New(color.FgHiCyan, color.Bold)
	sectionColor    = color.New(color.FgHiBlue)
)

// PrintSummary writes a human readable summary of a run: one block per
// playbook with every scorecard and its status, then the enforcement counts.
func PrintSummary(w io.Writer, data *models.RunReport) {
	for _, result := range data.Playbooks {
		if result == nil {
			continue
		}
		fmt.Fprintf(w, "\n  %s  %s\n",
			headerColor.Sprint(result.PlaybookName),
			scoreColor(result.Score).Sprintf("%d%% (%d/%d scorecards passed)",
				result.Score, result.PassedScorecards, result.TotalScorecards))

		for _, page := range result.Pages {
			if len(result.Pages) > 1 {
				fmt.Fprintf(w, "  %s\n", page.Title)
			}
			for _, section := range page.Sections {
				fmt.Fprintf(w, "    %s\n", sectionColor.Sprint(section.Name))
				for _, sc := range section.Scorecards {
					fmt.Fprintf(w, "      %s [%-6s] %s\n", statusIcon(sc.Status), sc.Level, sc.Title)
				}
			}
		}
	}

	if data.Enforcement != nil {
		counts := data.Enforcement.Counts
		fmt.Fprintf(w, "\n  Policies: %d evaluated, %d passed, %d failed (%d blocking, %d warning, %d recommend)\n",
			counts.TotalCount, counts.TotalSuccess, counts.TotalFailed,
			counts.BlockingFailedCount, counts.WarningFailedCount, counts.RecommendFailedCount)
		printFailedPolicies(w, data.Enforcement.BlockingPolicies, failedColor)
		printFailedPolicies(w, data.Enforcement.WarningPolicies, incompleteColor)
		printFailedPolicies(w, data.Enforcement.RecommendPolicies, sectionColor)
	}
	fmt.Fprintln(w)
}

func printFailedPolicies(w io.Writer, results []models.PolicyResult, c *color.Color) {
	for _, res := range results {
		if res.IsPassing {
			continue
		}
		fmt.Fprintf(w, "    %s %s (%s) on %s\n", c.Sprint(res.Level), res.PolicyName, res.PolicyId, res.Playbook)
		for _, msg := range res.FailMessages {
			fmt.Fprintf(w, "      - %s\n", msg)
		}
	}
}

func statusIcon(status models.RuleStatus) string {
	switch status {
	case models.RuleStatusPassed:
		return passedColor.Sprint(ICON_PASSED)
	case models.RuleStatusIncomplete:
		return incompleteColor.Sprint(ICON_INCOMPLETE)
	default:
		return failedColor.Sprint(ICON_FAILED)
	}
}

func scoreColor(score int) *color.Color {
	switch {
	case score >= 80:
		return passedColor
	case score >= 50:
		return incompleteColor
	default:
		return failedColor
	}
}

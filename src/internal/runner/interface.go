package runner

import "github.com/regis-cli/regis-playbook/src/pkg/models"

type RunnerInterface interface {
	// Initialize the runner: validate collaborators and load enforcement policies
	Initialize() error

	// Load the analysis report and merge the --meta pairs into its metadata
	LoadReport() (map[string]any, error)

	// Load and evaluate every playbook against the report, keeping flag order
	EvaluatePlaybooks(report map[string]any) ([]*models.PlaybookResult, error)

	// Evaluate enforcement policies over the playbook results, nil when no policies are configured
	EnforcePolicies(results []*models.PlaybookResult) (*models.EnforcementReport, error)

	// Main routine to process the runner
	Process() error

	// Handling the export
	Output(data *models.RunReport) error
}

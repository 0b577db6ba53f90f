package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/regis-cli/regis-playbook/src/pkg/loader"
	"github.com/regis-cli/regis-playbook/src/pkg/models"
	"github.com/regis-cli/regis-playbook/src/pkg/playbook"
	"github.com/regis-cli/regis-playbook/src/pkg/policy"
	"github.com/regis-cli/regis-playbook/src/pkg/trace"
)

var logger *log.Entry = log.WithFields(log.Fields{
	"package": "runner",
})

const RUN_REPORT_FILENAME = "report.json"

// ErrBlockingPolicyFailed is returned by Process when a BLOCK level policy fails
var ErrBlockingPolicyFailed = errors.New("blocking policy check failed")

type RunnerBase struct {
	Context context.Context
	Options *Options

	Loader   loader.PlaybookLoader
	Enforcer policy.PolicyEvaluatorInterface // nil when no policies path is set

	Stdout io.Writer
	Stderr io.Writer
}

// make RunnerBase implement RunnerInterface
var _ RunnerInterface = (*RunnerBase)(nil)

func NewRunnerBase(
	ctx context.Context,
	options *Options,
	playbookLoader loader.PlaybookLoader,
	enforcer policy.PolicyEvaluatorInterface,
) (*RunnerBase, error) {
	runner := &RunnerBase{
		Context:  ctx,
		Options:  options,
		Loader:   playbookLoader,
		Enforcer: enforcer,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
	return runner, nil
}

func (r *RunnerBase) Initialize() error {
	logger.Info("Initializing runner: starting...")

	if r.Loader == nil {
		return fmt.Errorf("loader is required")
	}
	if r.Stdout == nil {
		r.Stdout = io.Discard
	}
	if r.Stderr == nil {
		r.Stderr = io.Discard
	}

	if r.Enforcer != nil {
		logger.Info("Initalize runner: Enforcer: Loading and validating policy configuration")
		if err := r.Enforcer.LoadAndValidate(r.Context); err != nil {
			return fmt.Errorf("failed to load policy config: %w", err)
		}
	}

	logger.Info("Initalize runner: done.")
	return nil
}

func (r *RunnerBase) LoadReport() (map[string]any, error) {
	ctx, span := trace.StartSpan(r.Context, "LoadReport")
	defer span.End()
	logger.Info("LoadReport: starting...")

	report, err := r.Loader.LoadReport(ctx, r.Options.ReportPath)
	if err != nil {
		return nil, err
	}

	meta, err := ParseMeta(r.Options.Meta)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		merged := make(map[string]any, len(meta))
		if existing, ok := report["metadata"].(map[string]any); ok {
			for k, v := range existing {
				merged[k] = v
			}
		}
		for k, v := range meta {
			merged[k] = v
		}
		report["metadata"] = merged
		logger.WithField("metadata", merged).Debug("Merged report metadata")
	}

	logger.Info("LoadReport: done.")
	return report, nil
}

func (r *RunnerBase) EvaluatePlaybooks(report map[string]any) ([]*models.PlaybookResult, error) {
	ctx, span := trace.StartSpan(r.Context, "EvaluatePlaybooks")
	defer span.End()
	logger.Info("EvaluatePlaybooks: starting...")

	limit := r.Options.Concurrency
	if limit < 1 {
		limit = DEFAULT_CONCURRENCY
	}

	// the report is shared read-only; each goroutine owns one slot of results
	results := make([]*models.PlaybookResult, len(r.Options.Playbooks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, source := range r.Options.Playbooks {
		g.Go(func() error {
			sourceName := loader.SourceName(source)
			pbCtx, pbSpan := trace.StartSpan(gctx, fmt.Sprintf("EvaluatePlaybooks.%s", sourceName))
			defer pbSpan.End()

			pb, err := r.Loader.LoadPlaybook(pbCtx, source)
			if err != nil {
				return err
			}
			result, err := playbook.Evaluate(pb, report, sourceName)
			if err != nil {
				return fmt.Errorf("failed to evaluate playbook %s: %w", source, err)
			}
			logger.WithFields(log.Fields{
				"playbook": result.PlaybookName,
				"score":    result.Score,
			}).Info("Evaluated playbook")
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("EvaluatePlaybooks: done.")
	return results, nil
}

func (r *RunnerBase) EnforcePolicies(results []*models.PlaybookResult) (*models.EnforcementReport, error) {
	if r.Enforcer == nil {
		logger.Info("EnforcePolicies: option was disabled")
		return nil, nil
	}

	ctx, span := trace.StartSpan(r.Context, "EnforcePolicies")
	defer span.End()
	logger.Info("EnforcePolicies: starting...")

	report, err := r.Enforcer.Enforce(ctx, results)
	if err != nil {
		return nil, err
	}

	logger.Info("EnforcePolicies: done.")
	return report, nil
}

func (r *RunnerBase) Process() error {
	_, span := trace.StartSpan(r.Context, "Process")
	defer span.End()
	logger.Info("Process: starting...")

	report, err := r.LoadReport()
	if err != nil {
		return err
	}

	results, err := r.EvaluatePlaybooks(report)
	if err != nil {
		return err
	}
	logger.WithField("results", len(results)).Debug("Evaluated Playbooks")

	enforcement, err := r.EnforcePolicies(results)
	if err != nil {
		return err
	}

	runReport := models.RunReport{
		Timestamp:    time.Now().UTC(),
		ReportSource: r.Options.ReportPath,
		Playbooks:    results,
		Enforcement:  enforcement,
	}
	if err := r.Output(&runReport); err != nil {
		return err
	}
	PrintSummary(r.Stderr, &runReport)

	if !enforcement.PassBlockingCheck() {
		return fmt.Errorf("%w: %d blocking policies failed", ErrBlockingPolicyFailed, enforcement.Counts.BlockingFailedCount)
	}

	logger.Info("Process: done.")
	return nil
}

func (r *RunnerBase) Output(data *models.RunReport) error {
	_, span := trace.StartSpan(r.Context, "Output")
	defer span.End()

	logger.Info("Output: starting...")
	if r.Options.EnableExportReport {
		if err := r.outputReportJson(data); err != nil {
			return err
		}
	} else {
		if err := writeJSON(r.Stdout, data.Playbooks); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}
	logger.Info("Output: done.")
	return nil
}

// Exporting one json file per playbook plus the run report to the output directory
func (r *RunnerBase) outputReportJson(data *models.RunReport) error {
	logger.Info("OutputJson: starting...")

	if err := os.MkdirAll(r.Options.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	used := make(map[string]int)
	for _, result := range data.Playbooks {
		name := resultFileName(result)
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		if err := writeJSONFile(filepath.Join(r.Options.OutputDir, name+".json"), result); err != nil {
			return err
		}
	}

	return writeJSONFile(filepath.Join(r.Options.OutputDir, RUN_REPORT_FILENAME), data)
}

func writeJSONFile(filePath string, v any) error {
	f, err := os.Create(filePath)
	if err != nil {
		logger.WithField("filePath", filePath).WithField("error", err).Error("Failed to create report file")
		return err
	}
	defer f.Close()

	if err := writeJSON(f, v); err != nil {
		logger.WithField("filePath", filePath).WithField("error", err).Error("Failed to write report data to file")
		return err
	}
	logger.WithField("filePath", filePath).Info("Written report data to file")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// resultFileName is the playbook slug, or its lowercased name with unsafe characters replaced
func resultFileName(result *models.PlaybookResult) string {
	name := result.Slug
	if name == "" {
		name = result.PlaybookName
	}
	name = strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(name), "-"), "-.")
	if name == "" {
		return "playbook"
	}
	return name
}

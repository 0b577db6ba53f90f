package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/regis-cli/regis-playbook/src/internal/runner"
	"github.com/regis-cli/regis-playbook/src/pkg/loader"
	"github.com/regis-cli/regis-playbook/src/pkg/policy"
	"github.com/regis-cli/regis-playbook/src/pkg/trace"
)

var logger *log.Entry = log.WithFields(log.Fields{
	"package": "run",
})

// createRunner wires the loader and the optional policy enforcer
func createRunner(ctx context.Context, opts *runner.Options) (runner.RunnerInterface, error) {
	logger.WithField("opts", opts).Debug("Creating runner..")

	var enforcer policy.PolicyEvaluatorInterface
	if opts.PoliciesPath != "" {
		enforcer = policy.NewPolicyEvaluator(opts.PoliciesPath)
	}

	r, err := runner.NewRunnerBase(ctx, opts, loader.NewLoader(), enforcer)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}
	return r, nil
}

func initialize(ctx context.Context, opts *runner.Options) (runner.RunnerInterface, error) {
	r, err := createRunner(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := r.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize runner: %w", err)
	}
	return r, nil
}

func run(ctx context.Context, opts *runner.Options) error {
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger.WithField("opts", opts).Info("Running..")

	// Validate options
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	// Initialize tracer
	shutdown, err := trace.InitTracer("regis-playbook", opts.EnableExportPerformanceReport, opts.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdown()

	// Initialize runner
	appRunner, err := initialize(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	if err := appRunner.Process(); err != nil {
		return fmt.Errorf("failed to process: %w", err)
	}

	return nil
}

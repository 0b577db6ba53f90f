package trace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var logger = log.WithField("package", "trace")

const (
	PERFORMANCE_REPORT_FILENAME = "performance-report.json"
	TRACER_NAME                 = "regis-playbook"
)

// InitTracer installs the global tracer provider. When enabled, every span
// is written to <outputDir>/performance-report.json as it ends. The returned
// func flushes the exporter and closes the file.
func InitTracer(serviceName string, enabled bool, outputDir string) (func(), error) {
	if !enabled {
		logger.Debug("Performance report disabled, spans are not exported")
		return func() {}, nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	filePath := filepath.Join(outputDir, PERFORMANCE_REPORT_FILENAME)
	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create performance report file: %w", err)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(f),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	logger.WithField("filePath", filePath).Info("Performance report enabled")

	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithField("error", err).Warn("Failed to shutdown tracer provider")
		}
		if err := f.Close(); err != nil {
			logger.WithField("error", err).Warn("Failed to close performance report file")
		}
	}, nil
}

// StartSpan starts a span on the global tracer
func StartSpan(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return otel.Tracer(TRACER_NAME).Start(ctx, name)
}

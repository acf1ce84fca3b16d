/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/friendsincode/crewdesk/internal/version"
)

// ServiceName identifies CrewDesk spans in the collector.
const ServiceName = "crewdesk"

const instrumentationName = "github.com/friendsincode/crewdesk"

// Span attribute keys shared by the services.
const (
	AttrTenantID  = attribute.Key("crewdesk.tenant_id")
	AttrWorkerID  = attribute.Key("crewdesk.worker_id")
	AttrJobID     = attribute.Key("crewdesk.job_id")
	AttrPeriod    = attribute.Key("crewdesk.period")
	AttrEvents    = attribute.Key("crewdesk.events")
	AttrConflicts = attribute.Key("crewdesk.conflicts")
	AttrJobsTotal = attribute.Key("crewdesk.jobs_total")
)

// TracerConfig mirrors the CREWDESK_TRACING_* settings.
type TracerConfig struct {
	Enabled     bool
	Endpoint    string // collector host:port
	SampleRate  float64
	Environment string
}

// TracerProvider owns the SDK provider so it can be flushed on shutdown.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	logger   zerolog.Logger
}

// InitTracer installs the global tracer provider. With tracing disabled a no-op
// provider is installed and Shutdown does nothing.
func InitTracer(ctx context.Context, cfg TracerConfig, logger zerolog.Logger) (*TracerProvider, error) {
	logger = logger.With().Str("component", "tracing").Logger()
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		logger.Info().Msg("tracing disabled")
		return &TracerProvider{logger: logger}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(ServiceAttributes(cfg.Environment)...),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		otlptracegrpc.WithTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Float64("sample_rate", cfg.SampleRate).
		Msg("tracing enabled")
	return &TracerProvider{provider: tp, logger: logger}, nil
}

// ServiceAttributes describes this process to the collector.
func ServiceAttributes(environment string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version.Version),
	}
	if environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(environment))
	}
	if rev := version.Revision(); rev != "" {
		attrs = append(attrs, attribute.String("vcs.revision", rev))
	}
	return attrs
}

// Sampler samples root spans at rate and otherwise follows the caller's decision,
// so a trace started by an upstream proxy is kept whole.
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Shutdown flushes buffered spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	tp.logger.Info().Msg("tracer provider flushed")
	return nil
}

// StartTenantSpan starts "<component>.<op>" tagged with the tenant.
func StartTenantSpan(ctx context.Context, component, op, tenantID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrTenantID.String(tenantID))
	return otel.Tracer(instrumentationName).Start(ctx, component+"."+op, trace.WithAttributes(attrs...))
}

// StartWorkerSpan is StartTenantSpan for work scoped to one worker.
func StartWorkerSpan(ctx context.Context, component, op, tenantID, workerID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartTenantSpan(ctx, component, op, tenantID, append(attrs, AttrWorkerID.String(workerID))...)
}

// RecordError marks the span failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

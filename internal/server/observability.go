package server

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Observability struct {
	Tracer oteltrace.Tracer
	Meter  metric.Meter

	traceProvider    *sdktrace.TracerProvider
	RunCounter       metric.Int64Counter
	MethodDuration   metric.Int64Histogram
	DisagreementHits metric.Int64Counter
	RateLimitBlocked metric.Int64Counter
}

func SetupObservability(ctx context.Context, cfg ObservabilityConfig) (*Observability, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "authwatch-api"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	if cfg.OTLPEndpoint != "" {
		exporter, exportErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exportErr != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", exportErr)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
	} else {
		slog.Info("otel trace exporter not configured; using local tracer provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	meter := otel.Meter(serviceName)
	tracer := otel.Tracer(serviceName)
	runCounter, _ := meter.Int64Counter("authwatch_run_total")
	methodDuration, _ := meter.Int64Histogram("authwatch_method_duration_ms")
	disagreementHits, _ := meter.Int64Counter("authwatch_consensus_disagreement_total")
	rateLimitBlocked, _ := meter.Int64Counter("authwatch_rate_limit_block_total")
	return &Observability{
		Tracer:           tracer,
		Meter:            meter,
		traceProvider:    tp,
		RunCounter:       runCounter,
		MethodDuration:   methodDuration,
		DisagreementHits: disagreementHits,
		RateLimitBlocked: rateLimitBlocked,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.traceProvider == nil {
		return nil
	}
	return o.traceProvider.Shutdown(ctx)
}

func (o *Observability) MarkRun(ctx context.Context, status string) {
	if o == nil {
		return
	}
	o.RunCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) MarkMethod(ctx context.Context, method string, durationMS int64) {
	if o == nil {
		return
	}
	o.MethodDuration.Record(ctx, durationMS, metric.WithAttributes(
		attribute.String("method", method),
	))
}

func (o *Observability) MarkDisagreement(ctx context.Context, target string) {
	if o == nil {
		return
	}
	o.DisagreementHits.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}

func (o *Observability) MarkRateLimited(ctx context.Context, reason string) {
	if o == nil {
		return
	}
	o.RateLimitBlocked.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

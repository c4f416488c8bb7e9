// Package tracing настраивает OpenTelemetry для сервиса расчётов.
//
// Спаны уходят в Jaeger по OTLP/gRPC. Входящий запрос открывает корневой спан
// в otelgin, сага добавляет дочерние спаны на каждый вызов сервиса счетов.
// Контекст между сервисами передаётся заголовком traceparent (W3C).
package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"example.com/card-settlement/pkg/logger"
)

// Config: параметры трассировки.
type Config struct {
	ServiceName string
	Version     string
	Environment string
	// Endpoint: OTLP gRPC коллектор, host:port.
	Endpoint string
	// SampleRatio в (0, 1]. Значения вне диапазона означают 1.
	SampleRatio float64
	Enabled     bool
}

// Provider владеет TracerProvider и соединением с коллектором.
// Нулевой Provider (трассировка выключена) безопасно останавливать.
type Provider struct {
	tp   *sdktrace.TracerProvider
	conn *grpc.ClientConn
}

// Setup регистрирует глобальные TracerProvider и propagator.
// При выключенной трассировке глобальный provider остаётся no-op.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	log := logger.With().Str("component", "tracing").Logger()

	// propagator нужен и без экспорта: trace_id из traceparent попадает в логи
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled || cfg.Endpoint == "" {
		log.Info().Msg("Экспорт трасс отключен")
		return &Provider{}, nil
	}

	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return &Provider{}, fmt.Errorf("ошибка соединения с коллектором %s: %w", cfg.Endpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return &Provider{}, fmt.Errorf("ошибка создания OTLP exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		_ = conn.Close()
		return &Provider{}, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Float64("sample_ratio", cfg.SampleRatio).
		Msg("Экспорт трасс в Jaeger включен")

	return &Provider{tp: tp, conn: conn}, nil
}

// newSampler уважает решение вызывающего сервиса, для новых трасс применяет ratio.
func newSampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	env := cfg.Environment
	if env == "" {
		env = "development"
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
			semconv.DeploymentEnvironmentName(env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка описания ресурса: %w", err)
	}
	return res, nil
}

// Shutdown отправляет накопленные спаны и закрывает соединение.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}

	var errs []error
	if err := p.tp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider: %w", err))
	}
	if err := p.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("grpc: %w", err))
	}
	return errors.Join(errs...)
}

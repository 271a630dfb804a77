package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pdflux-api"

var (
	metricsOnce       sync.Once
	authCounter       metric.Int64Counter
	conversionCounter metric.Int64Counter
	paymentCounter    metric.Int64Counter
	repositoryCounter metric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter(meterName)
	authCounter, _ = meter.Int64Counter("auth_events_total",
		metric.WithDescription("Auth lifecycle events by operation and outcome"))
	conversionCounter, _ = meter.Int64Counter("conversion_events_total",
		metric.WithDescription("Conversion ledger events by operation and outcome"))
	paymentCounter, _ = meter.Int64Counter("payment_events_total",
		metric.WithDescription("Payment reconciliation events by operation and outcome"))
	repositoryCounter, _ = meter.Int64Counter("repository_operations_total",
		metric.WithDescription("Repository operations by entity, operation and outcome"))
}

func RecordAuthEvent(ctx context.Context, operation, outcome string) {
	metricsOnce.Do(initMetrics)
	authCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordConversionEvent(ctx context.Context, operation, outcome string) {
	metricsOnce.Do(initMetrics)
	conversionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordPaymentEvent(ctx context.Context, operation, outcome string) {
	metricsOnce.Do(initMetrics)
	paymentCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	metricsOnce.Do(initMetrics)
	repositoryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes billing ledger instruments.
type Metrics struct {
	billsGenerated     metric.Int64Counter
	generationFailures metric.Int64Counter
	paymentsRecorded   metric.Int64Counter
	paymentAmount      metric.Int64Counter
	sequenceRetries    metric.Int64Counter
	sequenceExhausted  metric.Int64Counter
	integrityHolds     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "netbill"
	}
	meter := provider.Meter(name)

	billsGenerated, err := meter.Int64Counter("netbill_bills_generated_total")
	if err != nil {
		return nil, err
	}
	generationFailures, err := meter.Int64Counter("netbill_bill_generation_failures_total")
	if err != nil {
		return nil, err
	}
	paymentsRecorded, err := meter.Int64Counter("netbill_payments_recorded_total")
	if err != nil {
		return nil, err
	}
	paymentAmount, err := meter.Int64Counter("netbill_payment_amount_total")
	if err != nil {
		return nil, err
	}
	sequenceRetries, err := meter.Int64Counter("netbill_sequence_retries_total")
	if err != nil {
		return nil, err
	}
	sequenceExhausted, err := meter.Int64Counter("netbill_sequence_exhausted_total")
	if err != nil {
		return nil, err
	}
	integrityHolds, err := meter.Int64Counter("netbill_integrity_holds_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		billsGenerated:     billsGenerated,
		generationFailures: generationFailures,
		paymentsRecorded:   paymentsRecorded,
		paymentAmount:      paymentAmount,
		sequenceRetries:    sequenceRetries,
		sequenceExhausted:  sequenceExhausted,
		integrityHolds:     integrityHolds,
	}, nil
}

// RecordGeneration records the outcome of one generation run.
func (m *Metrics) RecordGeneration(ctx context.Context, created, failed int) {
	if m == nil {
		return
	}
	if created > 0 {
		m.billsGenerated.Add(ctx, int64(created))
	}
	if failed > 0 {
		m.generationFailures.Add(ctx, int64(failed))
	}
}

func (m *Metrics) RecordPayment(ctx context.Context, method string, amount int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("method", strings.ToLower(strings.TrimSpace(method))))
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
	if amount > 0 {
		m.paymentAmount.Add(ctx, amount, metric.WithAttributes(attrs...))
	}
}

// RecordSequenceRetry counts a collision on an identifier kind such as BILL or PAY.
func (m *Metrics) RecordSequenceRetry(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("sequence", strings.TrimSpace(kind)))
	m.sequenceRetries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSequenceExhausted(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("sequence", strings.TrimSpace(kind)))
	m.sequenceExhausted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordIntegrityHold(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.integrityHolds.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"method":      {},
	"route":       {},
	"status_code": {},
	"sequence":    {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

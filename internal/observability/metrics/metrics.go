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

// Metrics exposes OTel instruments for fee ledger activity.
type Metrics struct {
	schedulesGenerated metric.Int64Counter
	installmentsIssued metric.Int64Counter
	payments           metric.Int64Counter
	paymentAmount      metric.Float64Counter
	manualEdits        metric.Int64Counter
	reconciliations    metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
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

// New configures the fee ledger instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "feeledger"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.schedulesGenerated, err = meter.Int64Counter("feeledger_schedules_generated_total"); err != nil {
		return nil, err
	}
	if m.installmentsIssued, err = meter.Int64Counter("feeledger_installments_issued_total"); err != nil {
		return nil, err
	}
	if m.payments, err = meter.Int64Counter("feeledger_payments_total"); err != nil {
		return nil, err
	}
	if m.paymentAmount, err = meter.Float64Counter("feeledger_payment_amount_total"); err != nil {
		return nil, err
	}
	if m.manualEdits, err = meter.Int64Counter("feeledger_manual_edits_total"); err != nil {
		return nil, err
	}
	if m.reconciliations, err = meter.Int64Counter("feeledger_reconciliations_total"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordScheduleGenerated counts one generated schedule and its rows.
func (m *Metrics) RecordScheduleGenerated(ctx context.Context, source string, installments int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("source", source))...)
	m.schedulesGenerated.Add(ctx, 1, attrs)
	m.installmentsIssued.Add(ctx, int64(installments), attrs)
}

// RecordPayment counts one allocation. outcome is "applied" or "leftover".
func (m *Metrics) RecordPayment(ctx context.Context, outcome string, amount float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...)
	m.payments.Add(ctx, 1, attrs)
	m.paymentAmount.Add(ctx, amount, attrs)
}

func (m *Metrics) RecordManualEdit(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.manualEdits.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

func (m *Metrics) RecordReconciliation(ctx context.Context, trigger string) {
	if m == nil {
		return
	}
	m.reconciliations.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("trigger", trigger))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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
	"operation": {},
	"outcome":   {},
	"reason":    {},
	"source":    {},
	"trigger":   {},
	"route":     {},
}

// FilterAttributes drops labels outside the allow list. Student, account and
// installment ids must never become metric labels.
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

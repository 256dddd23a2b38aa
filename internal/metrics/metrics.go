package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "opineeo"

// Recorder holds the widget and host instruments. It satisfies the widget
// package's Recorder interface.
type Recorder struct {
	mounts        metric.Int64Counter
	submits       metric.Int64Counter
	submitLatency metric.Float64Histogram
	closes        metric.Int64Counter
	pages         metric.Int64UpDownCounter
	messages      metric.Int64Counter
}

func New(meter metric.Meter) (*Recorder, error) {
	mounts, err := meter.Int64Counter(
		"opineeo.widget.mounts",
		metric.WithDescription("Widget mounts by outcome"),
		metric.WithUnit("{mount}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create widget_mounts counter: %w", err)
	}

	submits, err := meter.Int64Counter(
		"opineeo.widget.submissions",
		metric.WithDescription("Survey submissions by delivery outcome"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create widget_submissions counter: %w", err)
	}

	submitLatency, err := meter.Float64Histogram(
		"opineeo.widget.submission.duration",
		metric.WithDescription("Time from pressing send to completion in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission_duration histogram: %w", err)
	}

	closes, err := meter.Int64Counter(
		"opineeo.widget.closes",
		metric.WithDescription("Widgets closed by the user or auto close"),
		metric.WithUnit("{close}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create widget_closes counter: %w", err)
	}

	pages, err := meter.Int64UpDownCounter(
		"opineeo.host.pages.active",
		metric.WithDescription("Browser pages with a live session"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pages_active gauge: %w", err)
	}

	messages, err := meter.Int64Counter(
		"opineeo.host.messages",
		metric.WithDescription("Websocket messages by direction and type"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create host_messages counter: %w", err)
	}

	return &Recorder{
		mounts:        mounts,
		submits:       submits,
		submitLatency: submitLatency,
		closes:        closes,
		pages:         pages,
		messages:      messages,
	}, nil
}

func (r *Recorder) RecordMount(ctx context.Context, outcome string) {
	r.mounts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (r *Recorder) RecordSubmit(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.submits.Add(ctx, 1, attrs)
	r.submitLatency.Record(ctx, elapsed.Seconds(), attrs)
}

func (r *Recorder) RecordClose(ctx context.Context) {
	r.closes.Add(ctx, 1)
}

func (r *Recorder) PageOpened(ctx context.Context) {
	r.pages.Add(ctx, 1)
}

func (r *Recorder) PageClosed(ctx context.Context) {
	r.pages.Add(ctx, -1)
}

func (r *Recorder) RecordMessage(ctx context.Context, direction, messageType string) {
	r.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("type", messageType),
	))
}

// Prometheus wires a Recorder to a Prometheus exporter on its own registry.
type Prometheus struct {
	Recorder *Recorder
	Provider *sdkmetric.MeterProvider
	Handler  http.Handler
}

func NewPrometheus() (*Prometheus, error) {
	registry := promclient.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	recorder, err := New(provider.Meter(meterName))
	if err != nil {
		return nil, err
	}

	return &Prometheus{
		Recorder: recorder,
		Provider: provider,
		Handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

func (p *Prometheus) Shutdown(ctx context.Context) error {
	return p.Provider.Shutdown(ctx)
}

// Package alert implements alert dispatching to multiple sinks.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to configured sinks. Delivery is best-effort: a
// failed sink is logged and the remaining sinks still run.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger}
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// AddSink appends a sink to the dispatcher.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Dispatch sends an alert to all configured sinks.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			d.logger.Error("failed to send alert", "sink", sink.Name(), "error", err)
		}
	}
}

// AlertFunc returns a function suitable for use as the migrator's alert callback.
func (d *Dispatcher) AlertFunc() func(context.Context, types.Alert) {
	return d.Dispatch
}

func newSink(cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(), nil
	case types.AlertWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL), nil
	case types.AlertSNS:
		if cfg.TopicARN == "" {
			return nil, fmt.Errorf("SNS topic ARN required")
		}
		return NewSNSSink(cfg.TopicARN)
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}

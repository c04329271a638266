package alerts

import (
	"context"

	"github.com/datakiln/retaildw/internal/platform/logger"
)

// Event kinds emitted by the pipeline. Delivery (email, chat, dashboards) is
// an external concern; the core only produces the data.
const (
	KindAnomaly     = "anomaly"
	KindGateFailure = "gate_failure"
	KindRunFinished = "run_finished"
)

type Event struct {
	Kind     string         `json:"kind"`
	JobID    string         `json:"job_id,omitempty"`
	Table    string         `json:"table,omitempty"`
	Metric   string         `json:"metric,omitempty"`
	Severity string         `json:"severity,omitempty"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type logNotifier struct {
	log *logger.Logger
}

// NewLogNotifier emits events to the structured log. The default sink.
func NewLogNotifier(baseLog *logger.Logger) Notifier {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &logNotifier{log: baseLog.With("component", "alerts")}
}

func (n *logNotifier) Notify(_ context.Context, ev Event) error {
	n.log.Warn("pipeline alert",
		"kind", ev.Kind,
		"job_id", ev.JobID,
		"table", ev.Table,
		"metric", ev.Metric,
		"severity", ev.Severity,
		"message", ev.Message,
		"data", ev.Data,
	)
	return nil
}

type multiNotifier struct {
	sinks []Notifier
}

// NewMulti fans events out to every sink; the first error wins but all sinks
// are attempted.
func NewMulti(sinks ...Notifier) Notifier {
	return &multiNotifier{sinks: sinks}
}

func (n *multiNotifier) Notify(ctx context.Context, ev Event) error {
	var firstErr error
	for _, s := range n.sinks {
		if err := s.Notify(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

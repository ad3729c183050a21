package notify

import (
	"context"
	"log/slog"
)

// LogSink writes events to a structured logger. Confirmations log at info,
// failures and timeouts at warn.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink returns a LogSink writing to logger, or slog.Default() if nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{Logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(ctx context.Context, ev Event) error {
	level := slog.LevelInfo
	if ev.Type != EventConfirmed {
		level = slog.LevelWarn
	}

	attrs := []any{
		"event", string(ev.Type),
		"operation_id", string(ev.OperationID),
		"kind", string(ev.Kind),
		"tx_ref", ev.TxRef,
	}
	if ev.RecordID != "" {
		attrs = append(attrs, "record_id", ev.RecordID)
	}
	if ev.Reason != "" {
		attrs = append(attrs, "reason", ev.Reason)
	}

	s.Logger.Log(ctx, level, ev.Message, attrs...)
	return nil
}

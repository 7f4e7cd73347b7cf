package logger

import (
	"context"
	"log/slog"
	"time"
)

// Reporter is the operator-visible error channel. Security decisions fail
// closed on their own; the reporter exists so infrastructure failures
// (unreachable storage, dropped activity records) never pass silently.
type Reporter struct {
	logger *slog.Logger
}

func NewReporter(logger *slog.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// StorageFailure reports that a storage backend rejected an operation.
func (r *Reporter) StorageFailure(component, op string, err error) {
	r.logger.LogAttrs(context.Background(), slog.LevelError, "storage_failure",
		slog.String("component", component),
		slog.String("op", op),
		slog.Any("error", err),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// ActivitySinkFailure reports that an activity record could not be persisted
// and was parked in the fallback buffer.
func (r *Reporter) ActivitySinkFailure(action string, buffered int, err error) {
	r.logger.LogAttrs(context.Background(), slog.LevelError, "activity_sink_failure",
		slog.String("action", action),
		slog.Int("buffered_records", buffered),
		slog.Any("error", err),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// ActivityRecordDropped reports that the fallback buffer overflowed and a
// record was lost. This is the loudest signal the reporter emits.
func (r *Reporter) ActivityRecordDropped(action string) {
	r.logger.LogAttrs(context.Background(), slog.LevelError, "activity_record_dropped",
		slog.String("action", action),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

package session

import (
	"context"

	"codeberg.org/mutker/plantsim/internal/logger"
)

// Sink receives every Snapshot a session produces. Publish is called from
// the tick goroutine or from the goroutine issuing a control call, so it
// should return promptly.
type Sink interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, snap *Snapshot) error

func (f SinkFunc) Publish(ctx context.Context, snap *Snapshot) error {
	return f(ctx, snap)
}

// LogSink logs each tick's record at info level.
func LogSink(log logger.Logger) Sink {
	return SinkFunc(func(_ context.Context, snap *Snapshot) error {
		if snap.Event != EventTick || snap.Record == nil {
			return nil
		}

		ev := log.Info().
			Str("page", snap.Page).
			Uint64("seq", snap.Seq).
			Int("alerts", len(snap.Alerts))
		for _, field := range sortedKeys(snap.Series) {
			values := snap.Series[field]
			if len(values) > 0 {
				ev = ev.Float64(field, values[len(values)-1])
			}
		}
		ev.Msg("Tick")

		return nil
	})
}

// Package metrics archives tick records to SQLite.
package metrics

import (
	"context"
	"time"

	"codeberg.org/mutker/plantsim/internal/session"
)

// Archive stores the numeric fields of every tick snapshot. It is a
// session.Sink.
type Archive interface {
	Publish(ctx context.Context, snap *session.Snapshot) error
	Close() error
}

// Repository buffers rows and writes them in batches.
type Repository interface {
	Record(rows []Row) error
	Close() error
}

// Row is one numeric field of one tick.
type Row struct {
	Timestamp time.Time
	SessionID string
	Page      string
	Seq       uint64
	Field     string
	Value     float64
}

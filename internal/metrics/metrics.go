package metrics

import (
	"context"
	"sort"

	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/logger"
	"codeberg.org/mutker/plantsim/internal/session"
)

type service struct {
	repo Repository
}

type noopArchive struct{}

// NewService opens the archive, or returns a no-op Archive when disabled.
func NewService(cfg Config, log logger.Logger) (Archive, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Archive disabled, using no-op archive")
		return noopArchive{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Publish(ctx context.Context, snap *session.Snapshot) error {
	if snap.Event != session.EventTick || snap.Record == nil {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(errors.ErrTimeout, err)
	}

	if err := s.repo.Record(Rows(snap)); err != nil {
		return errors.New().Wrap(ErrCollection, err)
	}

	return nil
}

func (s *service) Close() error {
	return s.repo.Close()
}

// Rows flattens a tick snapshot's record into one row per numeric field,
// ordered by field name.
func Rows(snap *session.Snapshot) []Row {
	values := snap.Record.Values()

	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	rows := make([]Row, len(fields))
	for i, f := range fields {
		rows[i] = Row{
			Timestamp: snap.Record.Time(),
			SessionID: snap.SessionID,
			Page:      snap.Page,
			Seq:       snap.Seq,
			Field:     f,
			Value:     values[f],
		}
	}

	return rows
}

func (noopArchive) Publish(context.Context, *session.Snapshot) error {
	return nil
}

func (noopArchive) Close() error {
	return nil
}

package session

import (
	"context"
	"time"

	"codeberg.org/mutker/plantsim/internal/errors"
)

// ManagerConfig selects the pages to run and how they tick.
type ManagerConfig struct {
	// Pages lists catalog page names. Empty means every page.
	Pages   []string
	Cadence time.Duration
	// Seed seeds every page's sampler; page i uses Seed+i. Zero seeds from
	// the clock.
	Seed int64
}

// Manager runs one Session per configured page.
type Manager struct {
	order    []string
	sessions map[string]*Session
}

// NewManager builds a stopped session for each configured page. opts are
// applied to every session.
func NewManager(cfg ManagerConfig, opts ...Option) (*Manager, error) {
	names := cfg.Pages
	if len(names) == 0 {
		names = PageNames()
	}

	m := &Manager{
		sessions: make(map[string]*Session, len(names)),
	}

	for i, name := range names {
		if _, dup := m.sessions[name]; dup {
			continue
		}

		page, err := LookupPage(name)
		if err != nil {
			return nil, err
		}

		seed := cfg.Seed
		if seed != 0 {
			seed += int64(i)
		}

		s, err := New(page, cfg.Cadence, append([]Option{WithSeed(seed)}, opts...)...)
		if err != nil {
			return nil, err
		}

		m.order = append(m.order, name)
		m.sessions[name] = s
	}

	return m, nil
}

// Open opens every session. If one fails, those already opened are closed.
func (m *Manager) Open(ctx context.Context) error {
	for i, name := range m.order {
		if err := m.sessions[name].Open(ctx); err != nil {
			for _, opened := range m.order[:i] {
				m.sessions[opened].Close()
			}
			return err
		}
	}

	return nil
}

// Get returns the session for a page.
func (m *Manager) Get(name string) (*Session, error) {
	s, ok := m.sessions[name]
	if !ok {
		return nil, errors.New().WithData(errors.ErrNotFound, struct {
			Page string
		}{
			Page: name,
		})
	}

	return s, nil
}

// Sessions returns the sessions in configured order.
func (m *Manager) Sessions() []*Session {
	out := make([]*Session, len(m.order))
	for i, name := range m.order {
		out[i] = m.sessions[name]
	}
	return out
}

// Snapshots returns the current snapshot of every session.
func (m *Manager) Snapshots() []*Snapshot {
	out := make([]*Snapshot, len(m.order))
	for i, name := range m.order {
		out[i] = m.sessions[name].Snapshot()
	}
	return out
}

// Close stops every session.
func (m *Manager) Close() {
	for _, name := range m.order {
		m.sessions[name].Close()
	}
}

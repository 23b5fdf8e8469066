package session

import (
	"sort"
	"time"

	"codeberg.org/mutker/plantsim/internal/alert"
	"codeberg.org/mutker/plantsim/internal/telemetry"
)

// Event names what produced a Snapshot.
type Event string

const (
	EventTick  Event = "tick"
	EventClear Event = "clear"
	EventState Event = "state"
)

// Stats summarizes the values currently held in one chart series.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Count  int     `json:"count"`
}

// Snapshot is a copy of a session's state handed to sinks. Sinks own the
// value and may retain it.
type Snapshot struct {
	SessionID string               `json:"session_id"`
	Page      string               `json:"page"`
	Title     string               `json:"title"`
	Event     Event                `json:"event"`
	Seq       uint64               `json:"seq"`
	State     string               `json:"state"`
	CadenceMS int64                `json:"cadence_ms"`
	At        time.Time            `json:"at"`
	Record    telemetry.Record     `json:"record,omitempty"`
	Table     []telemetry.Record   `json:"table"`
	Labels    []time.Time          `json:"labels"`
	Series    map[string][]float64 `json:"series"`
	Stats     map[string]Stats     `json:"stats"`
	Alerts    []alert.Alert        `json:"alerts,omitempty"`
}

func calculateStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	minV, maxV, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		sum += v
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var median float64
	if n := len(sorted); n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	return Stats{
		Min:    minV,
		Max:    maxV,
		Mean:   sum / float64(len(values)),
		Median: median,
		Count:  len(values),
	}
}

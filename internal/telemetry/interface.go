// Package telemetry defines the per-page telemetry records and the
// samplers that synthesize them.
package telemetry

import (
	"math/rand"
	"time"
)

// Record is one synthesized sample of a page's schema. Records are not
// modified after Sample returns them.
type Record interface {
	// Time is when the record was produced.
	Time() time.Time
	// Values returns the numeric fields keyed by their JSON names.
	Values() map[string]float64
}

// Sampler produces one Record per call. Samplers that model continuity
// keep their process state internally and advance it on every call.
type Sampler interface {
	// Sample produces the next record. step is the time elapsed per tick
	// and is used by samplers that integrate rates.
	Sample(now time.Time, step time.Duration) Record
}

// Factory builds a Sampler drawing from rng. now is the session start
// time, used to seed state anchored in wall-clock time.
type Factory func(rng *rand.Rand, now time.Time) Sampler

// NewRand returns a random source. A zero seed draws the seed from the
// current time.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	//nolint:gosec // G404: synthetic telemetry, not security sensitive
	return rand.New(rand.NewSource(seed))
}

package telemetry

import (
	"math"
	"math/rand"
	"time"
)

// HydraulicRecord is one penstock and runner reading.
type HydraulicRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	HeadM         float64   `json:"head_m"`
	FlowM3s       float64   `json:"flow_m3s"`
	PressurePa    int       `json:"pressure_pa"`
	VelocityMs    float64   `json:"velocity_ms"`
	HeadLossM     float64   `json:"head_loss_m"`
	EfficiencyPct float64   `json:"efficiency_pct"`
}

func (r HydraulicRecord) Time() time.Time { return r.Timestamp }

func (r HydraulicRecord) Values() map[string]float64 {
	return map[string]float64{
		"head_m":         r.HeadM,
		"flow_m3s":       r.FlowM3s,
		"pressure_pa":    float64(r.PressurePa),
		"velocity_ms":    r.VelocityMs,
		"head_loss_m":    r.HeadLossM,
		"efficiency_pct": r.EfficiencyPct,
	}
}

type hydraulicSampler struct {
	rng *rand.Rand
}

func NewHydraulic(rng *rand.Rand, _ time.Time) Sampler {
	return &hydraulicSampler{rng: rng}
}

func (s *hydraulicSampler) Sample(now time.Time, _ time.Duration) Record {
	return HydraulicRecord{
		Timestamp:     now,
		HeadM:         round(uniform(s.rng, 12, 15), 2),
		FlowM3s:       round(uniform(s.rng, 2, 3.6), 2),
		PressurePa:    int(math.Round(uniform(s.rng, 100000, 109000))),
		VelocityMs:    round(uniform(s.rng, 3, 4.2), 2),
		HeadLossM:     round(uniform(s.rng, 0.2, 0.4), 2),
		EfficiencyPct: round(uniform(s.rng, 85, 97), 2),
	}
}

// OverviewRecord is the plant-level flow summary shown on the landing page.
type OverviewRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	HeadM         float64   `json:"head_m"`
	FlowM3s       float64   `json:"flow_m3s"`
	PressurePa    int       `json:"pressure_pa"`
	EfficiencyPct float64   `json:"efficiency_pct"`
}

func (r OverviewRecord) Time() time.Time { return r.Timestamp }

func (r OverviewRecord) Values() map[string]float64 {
	return map[string]float64{
		"head_m":         r.HeadM,
		"flow_m3s":       r.FlowM3s,
		"pressure_pa":    float64(r.PressurePa),
		"efficiency_pct": r.EfficiencyPct,
	}
}

type overviewSampler struct {
	rng *rand.Rand
}

func NewOverview(rng *rand.Rand, _ time.Time) Sampler {
	return &overviewSampler{rng: rng}
}

func (s *overviewSampler) Sample(now time.Time, _ time.Duration) Record {
	return OverviewRecord{
		Timestamp:     now,
		HeadM:         round(uniform(s.rng, 12, 14), 2),
		FlowM3s:       round(uniform(s.rng, 3, 4), 2),
		PressurePa:    int(math.Round(uniform(s.rng, 100000, 108000))),
		EfficiencyPct: round(uniform(s.rng, 85, 95), 2),
	}
}

package telemetry

import (
	"math"
	"math/rand"
	"time"
)

const (
	initialStorageM3 = 2.5e7
	initialLevelM    = 78
	initialWaterC    = 18.5
	levelPerM3       = 1.0 / 500000
	levelResponse    = 0.05
	minWaterC        = 4
	maxWaterC        = 30
)

// ReservoirRecord is one reservoir balance reading.
type ReservoirRecord struct {
	ResID           int64     `json:"res_id"`
	Timestamp       time.Time `json:"timestamp"`
	WaterLevelM     float64   `json:"water_level_m"`
	InflowRateM3s   float64   `json:"inflow_rate_m3s"`
	OutflowRateM3s  float64   `json:"outflow_rate_m3s"`
	StorageVolumeM3 float64   `json:"storage_volume_m3"`
	WaterTempC      float64   `json:"water_temp_c"`
}

func (r ReservoirRecord) Time() time.Time { return r.Timestamp }

func (r ReservoirRecord) Values() map[string]float64 {
	return map[string]float64{
		"res_id":            float64(r.ResID),
		"water_level_m":     r.WaterLevelM,
		"inflow_rate_m3s":   r.InflowRateM3s,
		"outflow_rate_m3s":  r.OutflowRateM3s,
		"storage_volume_m3": r.StorageVolumeM3,
		"water_temp_c":      r.WaterTempC,
	}
}

type reservoirSampler struct {
	rng    *rand.Rand
	lastID int64

	storage float64
	level   float64
	tempC   float64
}

// NewReservoir samples a reservoir whose storage integrates net flow over
// each tick and whose level follows storage with a first-order lag.
func NewReservoir(rng *rand.Rand, _ time.Time) Sampler {
	return &reservoirSampler{
		rng:     rng,
		storage: initialStorageM3,
		level:   initialLevelM,
		tempC:   initialWaterC,
	}
}

func (s *reservoirSampler) Sample(now time.Time, step time.Duration) Record {
	t := float64(now.UnixMilli())

	inflow := round(250+math.Sin(t/7000)*60+uniform(s.rng, -20, 20), 2)
	outflow := round(230+math.Sin(t/8000+0.8)*55+uniform(s.rng, -15, 15), 2)

	s.storage = integrateStorage(s.storage, inflow, outflow, step)
	s.level = round(s.level+(s.storage*levelPerM3-s.level)*levelResponse, 2)
	s.tempC = clamp(round(s.tempC+uniform(s.rng, -0.03, 0.03), 2), minWaterC, maxWaterC)

	s.lastID++

	return ReservoirRecord{
		ResID:           s.lastID,
		Timestamp:       now,
		WaterLevelM:     s.level,
		InflowRateM3s:   inflow,
		OutflowRateM3s:  outflow,
		StorageVolumeM3: math.Round(s.storage),
		WaterTempC:      s.tempC,
	}
}

// integrateStorage advances storage by net flow over step, floored at zero.
func integrateStorage(storage, inflow, outflow float64, step time.Duration) float64 {
	if step < 0 {
		step = 0
	}

	return math.Max(0, storage+(inflow-outflow)*step.Seconds())
}

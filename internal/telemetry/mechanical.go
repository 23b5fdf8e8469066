package telemetry

import (
	"math"
	"math/rand"
	"time"
)

const (
	nominalSpeedRPM   = 600
	nominalTorqueNm   = 22000
	peakEfficiency    = 92.5
	minBearingTempC   = 40
	maxBearingTempC   = 95
	minVibrationMms   = 0.4
	minMechEfficiency = 80
	maxMechEfficiency = 97
)

// MechanicalRecord is one turbine shaft reading.
type MechanicalRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	RotationalSpeed    float64   `json:"rotational_speed"`
	Torque             float64   `json:"torque"`
	Vibration          float64   `json:"vibration"`
	BearingTemperature float64   `json:"bearing_temperature"`
	Efficiency         float64   `json:"efficiency"`
}

func (r MechanicalRecord) Time() time.Time { return r.Timestamp }

func (r MechanicalRecord) Values() map[string]float64 {
	return map[string]float64{
		"rotational_speed":    r.RotationalSpeed,
		"torque":              r.Torque,
		"vibration":           r.Vibration,
		"bearing_temperature": r.BearingTemperature,
		"efficiency":          r.Efficiency,
	}
}

type mechanicalSampler struct {
	rng *rand.Rand

	bearingTemp float64
	vibration   float64
}

// NewMechanical samples a turbine whose speed swings around 600 rpm and
// whose bearing temperature drifts with load.
func NewMechanical(rng *rand.Rand, _ time.Time) Sampler {
	return &mechanicalSampler{
		rng:         rng,
		bearingTemp: 62,
		vibration:   0.9,
	}
}

func (s *mechanicalSampler) Sample(now time.Time, _ time.Duration) Record {
	t := float64(now.UnixMilli())

	speed := round(nominalSpeedRPM+math.Sin(t/6000)*60+uniform(s.rng, -10, 10), 1)
	torque := math.Round(nominalTorqueNm + (speed-nominalSpeedRPM)*80 + uniform(s.rng, -1000, 1000))

	s.vibration = round(math.Max(minVibrationMms, 0.6+(torque-nominalTorqueNm)/30000+uniform(s.rng, 0, 0.6)), 2)

	drift := (torque-23000)/80000 + uniform(s.rng, -0.07, 0.08)
	s.bearingTemp = clamp(round(s.bearingTemp+drift, 2), minBearingTempC, maxBearingTempC)

	dev := speed - nominalSpeedRPM
	eff := round(peakEfficiency-0.0008*dev*dev+uniform(s.rng, -0.3, 0.3), 2)

	return MechanicalRecord{
		Timestamp:          now,
		RotationalSpeed:    speed,
		Torque:             torque,
		Vibration:          s.vibration,
		BearingTemperature: s.bearingTemp,
		Efficiency:         clamp(eff, minMechEfficiency, maxMechEfficiency),
	}
}

package telemetry

import (
	"math"
	"math/rand"
	"time"
)

const nominalVoltage = 11000

// ElectricalRecord is one generator terminal reading.
type ElectricalRecord struct {
	RecordID          int64     `json:"record_id"`
	GeneratorVoltageV int       `json:"generator_voltage_v"`
	GeneratorCurrentA float64   `json:"generator_current_a"`
	PowerOutputKW     float64   `json:"power_output_kw"`
	PowerFactor       float64   `json:"power_factor"`
	FrequencyHz       float64   `json:"frequency_hz"`
	Timestamp         time.Time `json:"timestamp"`
}

func (r ElectricalRecord) Time() time.Time { return r.Timestamp }

func (r ElectricalRecord) Values() map[string]float64 {
	return map[string]float64{
		"record_id":           float64(r.RecordID),
		"generator_voltage_v": float64(r.GeneratorVoltageV),
		"generator_current_a": r.GeneratorCurrentA,
		"power_output_kw":     r.PowerOutputKW,
		"power_factor":        r.PowerFactor,
		"frequency_hz":        r.FrequencyHz,
	}
}

// PowerOutputKW is the three-phase active power in kW. Records carry it
// rounded to 0.1 kW.
func PowerOutputKW(voltage, current, powerFactor float64) float64 {
	return math.Sqrt(3) * voltage * current * powerFactor / 1000
}

type electricalSampler struct {
	rng    *rand.Rand
	lastID int64
}

// NewElectrical samples an 11 kV generator around nominal load.
func NewElectrical(rng *rand.Rand, _ time.Time) Sampler {
	return &electricalSampler{rng: rng}
}

func (s *electricalSampler) Sample(now time.Time, _ time.Duration) Record {
	voltage := int(math.Round(nominalVoltage + uniform(s.rng, -0.05, 0.05)*nominalVoltage))
	current := round(uniform(s.rng, 300, 700), 1)
	pf := round(uniform(s.rng, 0.88, 0.99), 3)
	freq := round(50+uniform(s.rng, -0.2, 0.2), 2)

	s.lastID++

	return ElectricalRecord{
		RecordID:          s.lastID,
		GeneratorVoltageV: voltage,
		GeneratorCurrentA: current,
		PowerOutputKW:     round(PowerOutputKW(float64(voltage), current, pf), 1),
		PowerFactor:       pf,
		FrequencyHz:       freq,
		Timestamp:         now,
	}
}

package alert

import (
	"testing"
	"time"

	"codeberg.org/mutker/plantsim/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestCheck(t *testing.T) {
	d := NewDetector(map[string]Rule{
		"frequency_hz":        Range(49.85, 50.15),
		"power_factor":        Above(0.9),
		"generator_current_a": Below(600),
	})

	tests := []struct {
		name     string
		rec      telemetry.ElectricalRecord
		fields   []string
		severity []Severity
	}{
		{
			name: "all within range",
			rec:  telemetry.ElectricalRecord{FrequencyHz: 50, PowerFactor: 0.95, GeneratorCurrentA: 400},
		},
		{
			name:     "low frequency",
			rec:      telemetry.ElectricalRecord{FrequencyHz: 49.84, PowerFactor: 0.95, GeneratorCurrentA: 400},
			fields:   []string{"frequency_hz"},
			severity: []Severity{SeverityWarning},
		},
		{
			name:     "far outside band is critical",
			rec:      telemetry.ElectricalRecord{FrequencyHz: 50.5, PowerFactor: 0.95, GeneratorCurrentA: 400},
			fields:   []string{"frequency_hz"},
			severity: []Severity{SeverityCritical},
		},
		{
			name:     "multiple violations sorted by field",
			rec:      telemetry.ElectricalRecord{FrequencyHz: 50, PowerFactor: 0.89, GeneratorCurrentA: 650},
			fields:   []string{"generator_current_a", "power_factor"},
			severity: []Severity{SeverityWarning, SeverityWarning},
		},
		{
			name: "bounds are inclusive",
			rec:  telemetry.ElectricalRecord{FrequencyHz: 50.15, PowerFactor: 0.9, GeneratorCurrentA: 600},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rec.Timestamp = at
			alerts := d.Check("electrical", tt.rec)

			require.Len(t, alerts, len(tt.fields))
			for i, a := range alerts {
				assert.Equal(t, tt.fields[i], a.Field)
				assert.Equal(t, tt.severity[i], a.Severity)
				assert.Equal(t, "electrical", a.Page)
				assert.Equal(t, at, a.Timestamp)
				assert.Contains(t, a.Message, tt.fields[i])
			}
		})
	}
}

func TestCheckCarriesBounds(t *testing.T) {
	d := NewDetector(map[string]Rule{"bearing_temperature": Below(85)})

	alerts := d.Check("mechanical", telemetry.MechanicalRecord{BearingTemperature: 95})

	require.Len(t, alerts, 1)
	assert.Nil(t, alerts[0].Min)
	require.NotNil(t, alerts[0].Max)
	assert.Equal(t, 85.0, *alerts[0].Max)
	assert.Equal(t, 95.0, alerts[0].Value)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestNilDetector(t *testing.T) {
	var d *Detector
	assert.Nil(t, d.Check("electrical", telemetry.ElectricalRecord{}))
}

func TestDetectorCopiesRules(t *testing.T) {
	rules := map[string]Rule{"vibration": Below(1)}
	d := NewDetector(rules)
	delete(rules, "vibration")

	assert.Len(t, d.Check("mechanical", telemetry.MechanicalRecord{Vibration: 2}), 1)
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, "[1.00, 2.00]", Range(1, 2).String())
	assert.Equal(t, "[-inf, 2.00]", Below(2).String())
	assert.Equal(t, "[1.00, +inf]", Above(1).String())
}

func TestDefaultRulesAcceptNominalValues(t *testing.T) {
	d := NewDetector(DefaultRules())

	rec := telemetry.MechanicalRecord{BearingTemperature: 62, Vibration: 0.9, Efficiency: 92}
	assert.Empty(t, d.Check("mechanical", rec))
}

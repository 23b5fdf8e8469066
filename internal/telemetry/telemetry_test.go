package telemetry

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestSamplersAreDeterministicWhenSeeded(t *testing.T) {
	factories := map[string]Factory{
		"electrical":  NewElectrical,
		"hydraulic":   NewHydraulic,
		"overview":    NewOverview,
		"mechanical":  NewMechanical,
		"reservoir":   NewReservoir,
		"maintenance": NewMaintenance,
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			a := factory(seeded(42), start)
			b := factory(seeded(42), start)

			now := start
			for i := 0; i < 10; i++ {
				now = now.Add(time.Second)
				assert.Equal(t, a.Sample(now, time.Second), b.Sample(now, time.Second))
			}
		})
	}
}

func TestElectricalPowerDerivation(t *testing.T) {
	s := NewElectrical(seeded(7), start)

	for i := 0; i < 500; i++ {
		rec := s.Sample(start.Add(time.Duration(i)*time.Second), time.Second).(ElectricalRecord)

		want := math.Sqrt(3) * float64(rec.GeneratorVoltageV) * rec.GeneratorCurrentA * rec.PowerFactor / 1000
		require.InDelta(t, want, rec.PowerOutputKW, 0.05)
		require.Equal(t, round(want, 1), rec.PowerOutputKW)
	}
}

func TestPowerOutputKW(t *testing.T) {
	assert.InDelta(t, math.Sqrt(3)*3300, PowerOutputKW(11000, 300, 1), 1e-9)
	assert.InDelta(t, 5715.77, PowerOutputKW(11000, 300, 1), 0.01)
	assert.InDelta(t, 0, PowerOutputKW(11000, 0, 0.9), 1e-12)
}

func TestElectricalRanges(t *testing.T) {
	s := NewElectrical(seeded(1), start)

	var lastID int64
	for i := 0; i < 1000; i++ {
		rec := s.Sample(start, time.Second).(ElectricalRecord)

		assert.GreaterOrEqual(t, rec.GeneratorVoltageV, 10450)
		assert.LessOrEqual(t, rec.GeneratorVoltageV, 11550)
		assert.GreaterOrEqual(t, rec.GeneratorCurrentA, 300.0)
		assert.LessOrEqual(t, rec.GeneratorCurrentA, 700.0)
		assert.GreaterOrEqual(t, rec.PowerFactor, 0.88)
		assert.LessOrEqual(t, rec.PowerFactor, 0.99)
		assert.InDelta(t, 50, rec.FrequencyHz, 0.2+1e-9)
		assert.Equal(t, lastID+1, rec.RecordID)
		lastID = rec.RecordID
	}
}

func TestHydraulicRanges(t *testing.T) {
	s := NewHydraulic(seeded(3), start)

	for i := 0; i < 1000; i++ {
		rec := s.Sample(start, time.Second).(HydraulicRecord)

		assert.True(t, rec.HeadM >= 12 && rec.HeadM <= 15, "head %v", rec.HeadM)
		assert.True(t, rec.FlowM3s >= 2 && rec.FlowM3s <= 3.6, "flow %v", rec.FlowM3s)
		assert.True(t, rec.PressurePa >= 100000 && rec.PressurePa <= 109000, "pressure %v", rec.PressurePa)
		assert.True(t, rec.VelocityMs >= 3 && rec.VelocityMs <= 4.2, "velocity %v", rec.VelocityMs)
		assert.True(t, rec.HeadLossM >= 0.2 && rec.HeadLossM <= 0.4, "loss %v", rec.HeadLossM)
		assert.True(t, rec.EfficiencyPct >= 85 && rec.EfficiencyPct <= 97, "eff %v", rec.EfficiencyPct)
	}
}

func TestOverviewRanges(t *testing.T) {
	s := NewOverview(seeded(5), start)

	for i := 0; i < 1000; i++ {
		rec := s.Sample(start, time.Second).(OverviewRecord)

		assert.True(t, rec.HeadM >= 12 && rec.HeadM <= 14, "head %v", rec.HeadM)
		assert.True(t, rec.FlowM3s >= 3 && rec.FlowM3s <= 4, "flow %v", rec.FlowM3s)
		assert.True(t, rec.PressurePa >= 100000 && rec.PressurePa <= 108000, "pressure %v", rec.PressurePa)
		assert.True(t, rec.EfficiencyPct >= 85 && rec.EfficiencyPct <= 95, "eff %v", rec.EfficiencyPct)
	}
}

func TestMechanicalStaysWithinPhysicalLimits(t *testing.T) {
	s := NewMechanical(seeded(11), start).(*mechanicalSampler)

	now := start
	for i := 0; i < 5000; i++ {
		now = now.Add(1500 * time.Millisecond)
		rec := s.Sample(now, 1500*time.Millisecond).(MechanicalRecord)

		require.GreaterOrEqual(t, rec.BearingTemperature, float64(minBearingTempC))
		require.LessOrEqual(t, rec.BearingTemperature, float64(maxBearingTempC))
		require.GreaterOrEqual(t, rec.Vibration, minVibrationMms)
		require.GreaterOrEqual(t, rec.Efficiency, float64(minMechEfficiency))
		require.LessOrEqual(t, rec.Efficiency, float64(maxMechEfficiency))
		require.InDelta(t, nominalSpeedRPM, rec.RotationalSpeed, 70)
		assert.Equal(t, s.bearingTemp, rec.BearingTemperature)
	}
}

func TestMechanicalBearingTemperatureClampsHigh(t *testing.T) {
	s := NewMechanical(seeded(2), start).(*mechanicalSampler)
	s.bearingTemp = maxBearingTempC

	for i := 0; i < 100; i++ {
		rec := s.Sample(start, time.Second).(MechanicalRecord)
		require.LessOrEqual(t, rec.BearingTemperature, float64(maxBearingTempC))
	}
}

func TestIntegrateStorageNeverNegative(t *testing.T) {
	rng := seeded(99)

	storage := 1000.0
	for i := 0; i < 10000; i++ {
		inflow := uniform(rng, 0, 500)
		outflow := uniform(rng, 0, 500)
		step := time.Duration(rng.Intn(3_600_000)) * time.Millisecond

		storage = integrateStorage(storage, inflow, outflow, step)
		require.GreaterOrEqual(t, storage, 0.0)
	}

	assert.Equal(t, 0.0, integrateStorage(10, 0, 500, time.Hour))
	assert.Equal(t, 10.0, integrateStorage(10, 0, 500, 0))
	assert.Equal(t, 10.0, integrateStorage(10, 0, 500, -time.Second))
	assert.Equal(t, 110.0, integrateStorage(10, 101, 1, time.Second))
}

func TestReservoirStorageNeverNegative(t *testing.T) {
	s := NewReservoir(seeded(4), start).(*reservoirSampler)
	s.storage = 50

	now := start
	for i := 0; i < 2000; i++ {
		now = now.Add(time.Second)
		step := time.Duration(i%7) * time.Minute
		rec := s.Sample(now, step).(ReservoirRecord)

		require.GreaterOrEqual(t, s.storage, 0.0)
		require.GreaterOrEqual(t, rec.StorageVolumeM3, 0.0)
		require.GreaterOrEqual(t, rec.WaterLevelM, 0.0)
		require.GreaterOrEqual(t, rec.WaterTempC, float64(minWaterC))
		require.LessOrEqual(t, rec.WaterTempC, float64(maxWaterC))
	}
}

func TestReservoirIntegratesOverStep(t *testing.T) {
	s := NewReservoir(seeded(8), start).(*reservoirSampler)

	before := s.storage
	rec := s.Sample(start, 2*time.Second).(ReservoirRecord)

	want := before + (rec.InflowRateM3s-rec.OutflowRateM3s)*2
	assert.InDelta(t, want, s.storage, 1e-6)
	assert.Equal(t, math.Round(want), rec.StorageVolumeM3)
	assert.Equal(t, int64(1), rec.ResID)
}

func TestReservoirLevelFollowsStorage(t *testing.T) {
	s := NewReservoir(seeded(6), start).(*reservoirSampler)

	for i := 0; i < 400; i++ {
		s.Sample(start, 0)
	}

	assert.InDelta(t, s.storage*levelPerM3, s.level, 0.5)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		days int
		want MaintenanceStatus
	}{
		{-2, StatusDue},
		{0, StatusDue},
		{3, StatusDue},
		{4, StatusUpcoming},
		{9, StatusUpcoming},
		{10, StatusOK},
		{30, StatusOK},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.days), "days=%d", tt.days)
	}
}

func TestDaysLeftRoundsUp(t *testing.T) {
	assert.Equal(t, 1, DaysLeft(start.Add(time.Hour), start))
	assert.Equal(t, 2, DaysLeft(start.Add(48*time.Hour), start))
	assert.Equal(t, 3, DaysLeft(start.Add(48*time.Hour+time.Minute), start))
	assert.Equal(t, 0, DaysLeft(start.Add(-time.Hour), start))
}

func TestMaintenanceFleet(t *testing.T) {
	s := NewMaintenance(seeded(21), start)

	first := s.Sample(start, time.Second).(FleetRecord)
	require.Len(t, first.Turbines, fleetSize)
	assert.Equal(t, fleetSize, first.Total)
	assert.Equal(t, first.Total, first.OK+first.Upcoming+first.Due)

	names := map[string]bool{}
	var hours float64
	for i, tb := range first.Turbines {
		names[tb.TurbineName] = true
		hours += tb.OperatingHours

		assert.GreaterOrEqual(t, tb.DaysLeft, minLeadDays)
		assert.LessOrEqual(t, tb.DaysLeft, minLeadDays+leadSpreadDays-1)
		assert.Equal(t, StatusOf(tb.DaysLeft), tb.MaintenanceStatus)
		assert.Equal(t, plants[(tb.RecordID-1)%len(plants)], tb.PlantName)

		if i > 0 {
			assert.False(t, tb.UpcomingMaintenanceDate.Before(first.Turbines[i-1].UpcomingMaintenanceDate))
		}
	}
	assert.Len(t, names, fleetSize)
	assert.InDelta(t, hours, first.OperatingHours, 1e-6)

	second := s.Sample(start.Add(time.Second), time.Second).(FleetRecord)
	growth := second.OperatingHours - first.OperatingHours
	assert.GreaterOrEqual(t, growth, fleetSize*minHoursPerTick-1e-9)
	assert.LessOrEqual(t, growth, fleetSize*maxHoursPerTick+1e-9)
}

func TestMaintenanceStatusesAdvanceWithTime(t *testing.T) {
	s := NewMaintenance(seeded(13), start)

	later := start.Add(40 * day)
	rec := s.Sample(later, time.Second).(FleetRecord)

	assert.Equal(t, fleetSize, rec.Due)
	assert.Zero(t, rec.OK)
	assert.Zero(t, rec.Upcoming)
}

func TestFleetRecordIsNotAliased(t *testing.T) {
	s := NewMaintenance(seeded(17), start)

	first := s.Sample(start, time.Second).(FleetRecord)
	hours := first.Turbines[0].OperatingHours
	s.Sample(start, time.Second)

	assert.Equal(t, hours, first.Turbines[0].OperatingHours)
}

func TestRecordValues(t *testing.T) {
	rec := ElectricalRecord{GeneratorVoltageV: 11000, GeneratorCurrentA: 400, PowerFactor: 0.9, FrequencyHz: 50, Timestamp: start}

	values := rec.Values()
	assert.Equal(t, 11000.0, values["generator_voltage_v"])
	assert.Equal(t, 400.0, values["generator_current_a"])
	assert.Equal(t, start, rec.Time())
}

func TestNewRand(t *testing.T) {
	assert.Equal(t, NewRand(5).Int63(), NewRand(5).Int63())
	assert.NotNil(t, NewRand(0))
}

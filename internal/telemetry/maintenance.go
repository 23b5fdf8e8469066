package telemetry

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

const (
	fleetSize       = 8
	day             = 24 * time.Hour
	dueWithinDays   = 3
	upcomingDays    = 10
	minLeadDays     = 2
	leadSpreadDays  = 29
	baseHours       = 1000
	hoursSpread     = 4000
	minHoursPerTick = 0.02
	maxHoursPerTick = 0.10
)

var plants = []string{"Plant A", "Plant B", "Plant C"}

// MaintenanceStatus classifies how close a turbine is to its next service.
type MaintenanceStatus string

const (
	StatusOK       MaintenanceStatus = "OK"
	StatusUpcoming MaintenanceStatus = "UPCOMING"
	StatusDue      MaintenanceStatus = "DUE"
)

// StatusOf classifies a turbine by whole days until maintenance.
func StatusOf(daysLeft int) MaintenanceStatus {
	switch {
	case daysLeft <= dueWithinDays:
		return StatusDue
	case daysLeft < upcomingDays:
		return StatusUpcoming
	default:
		return StatusOK
	}
}

// DaysLeft rounds the time until due up to whole days.
func DaysLeft(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

// Turbine is one row of the maintenance schedule.
type Turbine struct {
	RecordID                int               `json:"record_id"`
	TurbineName             string            `json:"turbine_name"`
	PlantName               string            `json:"plant_name"`
	UpcomingMaintenanceDate time.Time         `json:"upcoming_maintenance_date"`
	DaysLeft                int               `json:"days_left"`
	OperatingHours          float64           `json:"operating_hours"`
	MaintenanceStatus       MaintenanceStatus `json:"maintenance_status"`
}

// FleetRecord is the maintenance state of the whole fleet at one tick.
// Turbines are ordered soonest maintenance first.
type FleetRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	Turbines       []Turbine `json:"turbines"`
	Total          int       `json:"total"`
	OK             int       `json:"ok"`
	Upcoming       int       `json:"upcoming"`
	Due            int       `json:"due"`
	OperatingHours float64   `json:"operating_hours"`
}

func (r FleetRecord) Time() time.Time { return r.Timestamp }

func (r FleetRecord) Values() map[string]float64 {
	return map[string]float64{
		"total":           float64(r.Total),
		"ok":              float64(r.OK),
		"upcoming":        float64(r.Upcoming),
		"due":             float64(r.Due),
		"operating_hours": r.OperatingHours,
	}
}

type maintenanceSampler struct {
	rng   *rand.Rand
	fleet []Turbine
}

// NewMaintenance seeds a fleet of turbines with maintenance dates 2 to 30
// days after now.
func NewMaintenance(rng *rand.Rand, now time.Time) Sampler {
	s := &maintenanceSampler{
		rng:   rng,
		fleet: make([]Turbine, fleetSize),
	}

	for i := range s.fleet {
		lead := time.Duration(minLeadDays+rng.Intn(leadSpreadDays)) * day
		s.fleet[i] = Turbine{
			RecordID:                i + 1,
			TurbineName:             fmt.Sprintf("TURB-%02d", i+1),
			PlantName:               plants[i%len(plants)],
			UpcomingMaintenanceDate: now.Add(lead),
			OperatingHours:          float64(baseHours + rng.Intn(hoursSpread)),
			MaintenanceStatus:       StatusOK,
		}
	}

	return s
}

func (s *maintenanceSampler) Sample(now time.Time, _ time.Duration) Record {
	rec := FleetRecord{
		Timestamp: now,
		Turbines:  make([]Turbine, len(s.fleet)),
		Total:     len(s.fleet),
	}

	for i := range s.fleet {
		t := &s.fleet[i]
		t.OperatingHours += round(uniform(s.rng, minHoursPerTick, maxHoursPerTick), 2)
		t.DaysLeft = DaysLeft(t.UpcomingMaintenanceDate, now)
		t.MaintenanceStatus = StatusOf(t.DaysLeft)

		switch t.MaintenanceStatus {
		case StatusDue:
			rec.Due++
		case StatusUpcoming:
			rec.Upcoming++
		default:
			rec.OK++
		}
		rec.OperatingHours += t.OperatingHours
		rec.Turbines[i] = *t
	}

	sort.SliceStable(rec.Turbines, func(i, j int) bool {
		return rec.Turbines[i].UpcomingMaintenanceDate.Before(rec.Turbines[j].UpcomingMaintenanceDate)
	})

	return rec
}

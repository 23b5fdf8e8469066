package session

import (
	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/telemetry"
)

// Page describes one dashboard page: its sampler, buffer sizes and the
// fields charted over time.
type Page struct {
	Name           string            `json:"name"`
	Title          string            `json:"title"`
	TableCapacity  int               `json:"table_capacity"`
	SeriesCapacity int               `json:"series_capacity"`
	Series         []string          `json:"series"`
	Factory        telemetry.Factory `json:"-"`
}

var catalog = []Page{
	{
		Name:           "overview",
		Title:          "Plant Overview",
		TableCapacity:  12,
		SeriesCapacity: 20,
		Series:         []string{"flow_m3s", "head_m"},
		Factory:        telemetry.NewOverview,
	},
	{
		Name:           "electrical",
		Title:          "Electrical Output",
		TableCapacity:  20,
		SeriesCapacity: 24,
		Series:         []string{"power_output_kw", "generator_current_a"},
		Factory:        telemetry.NewElectrical,
	},
	{
		Name:           "hydraulic",
		Title:          "Hydraulic Conditions",
		TableCapacity:  20,
		SeriesCapacity: 24,
		Series:         []string{"head_m", "flow_m3s", "efficiency_pct"},
		Factory:        telemetry.NewHydraulic,
	},
	{
		Name:           "mechanical",
		Title:          "Turbine Mechanics",
		TableCapacity:  20,
		SeriesCapacity: 24,
		Series:         []string{"rotational_speed", "torque", "bearing_temperature"},
		Factory:        telemetry.NewMechanical,
	},
	{
		Name:           "reservoir",
		Title:          "Reservoir Balance",
		TableCapacity:  20,
		SeriesCapacity: 30,
		Series:         []string{"water_level_m", "storage_volume_m3", "inflow_rate_m3s", "outflow_rate_m3s"},
		Factory:        telemetry.NewReservoir,
	},
	{
		Name:           "maintenance",
		Title:          "Turbine Maintenance",
		TableCapacity:  1,
		SeriesCapacity: 24,
		Series:         []string{"ok", "upcoming", "due"},
		Factory:        telemetry.NewMaintenance,
	},
}

// Pages returns the catalog in display order.
func Pages() []Page {
	pages := make([]Page, len(catalog))
	copy(pages, catalog)
	return pages
}

// PageNames returns the names of all catalog pages in display order.
func PageNames() []string {
	names := make([]string, len(catalog))
	for i, p := range catalog {
		names[i] = p.Name
	}
	return names
}

// LookupPage finds a catalog page by name.
func LookupPage(name string) (Page, error) {
	for _, p := range catalog {
		if p.Name == name {
			return p, nil
		}
	}

	return Page{}, errors.New().WithData(errors.ErrUnknownPage, struct {
		Page string
	}{
		Page: name,
	})
}

// Package alert checks telemetry records against range rules.
package alert

import (
	"fmt"
	"math"
	"sort"
	"time"

	"codeberg.org/mutker/plantsim/internal/telemetry"
)

type Severity string

const (
	SeverityWarning  Severity = "WARN"
	SeverityCritical Severity = "CRIT"
)

// criticalMargin is the fraction of the allowed band a value may overshoot
// before a warning becomes critical.
const criticalMargin = 0.1

// Rule bounds a single field. A nil bound is not checked.
type Rule struct {
	Min *float64 `json:"min,omitempty" mapstructure:"min"`
	Max *float64 `json:"max,omitempty" mapstructure:"max"`
}

// Range is shorthand for a Rule with both bounds set.
func Range(lo, hi float64) Rule {
	return Rule{Min: &lo, Max: &hi}
}

// Above returns a Rule with only a lower bound.
func Above(lo float64) Rule {
	return Rule{Min: &lo}
}

// Below returns a Rule with only an upper bound.
func Below(hi float64) Rule {
	return Rule{Max: &hi}
}

// Alert is one rule violation on one record.
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Page      string    `json:"page"`
	Field     string    `json:"field"`
	Value     float64   `json:"value"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}

// DefaultRules are the operating limits used when none are configured.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"frequency_hz":        Range(49.85, 50.15),
		"power_factor":        Above(0.9),
		"bearing_temperature": Below(85),
		"vibration":           Below(1.5),
		"efficiency_pct":      Above(86),
		"water_level_m":       Range(20, 120),
		"due":                 Below(2),
	}
}

type Detector struct {
	rules map[string]Rule
}

func NewDetector(rules map[string]Rule) *Detector {
	d := &Detector{rules: make(map[string]Rule, len(rules))}
	for field, rule := range rules {
		d.rules[field] = rule
	}

	return d
}

// Check returns the violations in rec, ordered by field name. A nil
// Detector reports nothing.
func (d *Detector) Check(page string, rec telemetry.Record) []Alert {
	if d == nil || rec == nil {
		return nil
	}

	var alerts []Alert
	for field, value := range rec.Values() {
		rule, ok := d.rules[field]
		if !ok {
			continue
		}

		if a, violated := rule.check(value); violated {
			a.Timestamp = rec.Time()
			a.Page = page
			a.Field = field
			a.Message = fmt.Sprintf("%s %s: value %.2f is outside %s", page, field, value, rule)
			alerts = append(alerts, a)
		}
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Field < alerts[j].Field
	})

	return alerts
}

func (r Rule) check(value float64) (Alert, bool) {
	var overshoot float64
	switch {
	case r.Min != nil && value < *r.Min:
		overshoot = *r.Min - value
	case r.Max != nil && value > *r.Max:
		overshoot = value - *r.Max
	default:
		return Alert{}, false
	}

	severity := SeverityWarning
	if overshoot > r.band()*criticalMargin {
		severity = SeverityCritical
	}

	return Alert{Value: value, Min: r.Min, Max: r.Max, Severity: severity}, true
}

// band is the width used to scale overshoot. One-sided rules use the
// magnitude of their bound.
func (r Rule) band() float64 {
	switch {
	case r.Min != nil && r.Max != nil:
		return *r.Max - *r.Min
	case r.Min != nil:
		return math.Abs(*r.Min)
	case r.Max != nil:
		return math.Abs(*r.Max)
	default:
		return 0
	}
}

func (r Rule) String() string {
	lo, hi := "-inf", "+inf"
	if r.Min != nil {
		lo = fmt.Sprintf("%.2f", *r.Min)
	}
	if r.Max != nil {
		hi = fmt.Sprintf("%.2f", *r.Max)
	}

	return "[" + lo + ", " + hi + "]"
}

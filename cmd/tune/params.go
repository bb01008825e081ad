package main

import (
	"github.com/pthm-cable/drift/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of pursuit and flee parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Pursuit
			{Name: "close_range", Path: "pursuit.close_range", Min: 400, Max: 2000, Default: 1000},
			{Name: "home_distance_multiplier", Path: "pursuit.home_distance_multiplier", Min: 1.0, Max: 5.0, Default: 2.5},
			{Name: "intercept_lead_cap", Path: "pursuit.intercept_lead_cap", Min: 1, Max: 15, Default: 6},
			// Agent
			{Name: "flee_threshold", Path: "agent.flee_threshold", Min: 0.05, Max: 0.5, Default: 0.20},
			{Name: "chase_trigger_multiplier", Path: "agent.chase_trigger_multiplier", Min: 1.1, Max: 3.0, Default: 1.5},
			// Chase budgets
			{Name: "pirate_max_chase_time", Path: "factions[pirate].max_chase_time", Min: 15, Max: 120, Default: 45},
			{Name: "lawful_max_chase_time", Path: "factions[lawful].max_chase_time", Min: 15, Max: 120, Default: 75},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config and refreshes its
// derived values. Order must match Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Pursuit.CloseRange = clamped[0]
	cfg.Pursuit.HomeDistanceMultiplier = clamped[1]
	cfg.Pursuit.InterceptLeadCap = clamped[2]
	cfg.Agent.FleeThreshold = clamped[3]
	cfg.Agent.ChaseTriggerMultiplier = clamped[4]
	for i := range cfg.Factions {
		if cfg.Factions[i].Pirate {
			cfg.Factions[i].MaxChaseTime = clamped[5]
		} else {
			cfg.Factions[i].MaxChaseTime = clamped[6]
		}
	}
	cfg.Refresh()
}

// ExtractFromConfig extracts current parameter values from a Config. The
// chase budgets come from the first pirate and first lawful faction.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	pirate, lawful := pv.Specs[5].Default, pv.Specs[6].Default
	pirateSeen, lawfulSeen := false, false
	for _, f := range cfg.Factions {
		if f.Pirate && !pirateSeen {
			pirate, pirateSeen = f.MaxChaseTime, true
		}
		if !f.Pirate && !lawfulSeen {
			lawful, lawfulSeen = f.MaxChaseTime, true
		}
	}
	return []float64{
		cfg.Pursuit.CloseRange,
		cfg.Pursuit.HomeDistanceMultiplier,
		cfg.Pursuit.InterceptLeadCap,
		cfg.Agent.FleeThreshold,
		cfg.Agent.ChaseTriggerMultiplier,
		pirate,
		lawful,
	}
}

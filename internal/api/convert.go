package api

import (
	"encoding/json"
	"fmt"
	"time"

	"fleetassign/internal/config"
	"fleetassign/internal/model"
	"fleetassign/internal/opt"
)

// toProblem converts wire DTOs into solver types, parsing RFC3339 times.
func toProblem(req *model.SolveRequest) (*opt.Problem, error) {
	orders := make([]opt.Order, 0, len(req.Orders))
	for i, o := range req.Orders {
		start, err := parseTime(o.StartTime)
		if err != nil {
			return nil, fmt.Errorf("orders[%d].startTime: %w", i, err)
		}
		end, err := parseTime(o.EndTime)
		if err != nil {
			return nil, fmt.Errorf("orders[%d].endTime: %w", i, err)
		}
		orders = append(orders, opt.Order{
			ID:       o.ID,
			Start:    start,
			End:      end,
			Priority: o.Priority,
			Tags:     o.Tags,
			Weight:   o.Weight,
			Volume:   o.Volume,
		})
	}
	drivers := make([]opt.Driver, 0, len(req.Drivers))
	for i, d := range req.Drivers {
		busy, err := toIntervals(d.Busy)
		if err != nil {
			return nil, fmt.Errorf("drivers[%d].busy: %w", i, err)
		}
		drivers = append(drivers, opt.Driver{
			ID:                d.ID,
			Busy:              busy,
			PreferredVehicles: d.PreferredVehicles,
			PreferredTags:     d.PreferredTags,
			MinBreak:          time.Duration(d.MinBreakSec) * time.Second,
		})
	}
	vehicles := make([]opt.Vehicle, 0, len(req.Vehicles))
	for i, v := range req.Vehicles {
		busy, err := toIntervals(v.Busy)
		if err != nil {
			return nil, fmt.Errorf("vehicles[%d].busy: %w", i, err)
		}
		vehicles = append(vehicles, opt.Vehicle{
			ID:        v.ID,
			Busy:      busy,
			MaxWeight: v.MaxWeight,
			MaxVolume: v.MaxVolume,
			Tags:      v.Tags,
			MinBreak:  time.Duration(v.MinBreakSec) * time.Second,
		})
	}
	return opt.NewProblem(orders, drivers, vehicles)
}

func toIntervals(in []model.IntervalIn) ([]opt.Interval, error) {
	out := make([]opt.Interval, 0, len(in))
	for i, iv := range in {
		start, err := parseTime(iv.Start)
		if err != nil {
			return nil, fmt.Errorf("[%d].start: %w", i, err)
		}
		end, err := parseTime(iv.End)
		if err != nil {
			return nil, fmt.Errorf("[%d].end: %w", i, err)
		}
		out = append(out, opt.Interval{Start: start, End: end})
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("not RFC3339: %q", s)
	}
	return t, nil
}

// applyOverrides layers a tenant override map onto the server defaults.
// Keys follow the JSON names of SolverDefaults; unknown keys are ignored.
func applyOverrides(def config.SolverDefaults, over map[string]any) config.SolverDefaults {
	if len(over) == 0 {
		return def
	}
	b, err := json.Marshal(over)
	if err != nil {
		return def
	}
	_ = json.Unmarshal(b, &def)
	return def
}

// solverConfig resolves the effective opt.Config for a request: server
// defaults, then tenant overrides, then per-request fields.
func solverConfig(def config.SolverDefaults, over map[string]any, in *model.SolveConfigIn) opt.Config {
	d := applyOverrides(def, over)
	cfg := opt.Config{
		PopulationSize:    d.PopulationSize,
		TimeLimit:         time.Duration(d.TimeLimitMs) * time.Millisecond,
		MaxGenerations:    d.MaxGenerations,
		EliteCount:        d.EliteCount,
		TournamentSize:    d.TournamentSize,
		MutationRate:      d.MutationRate,
		UnassignedPenalty: d.UnassignedPenalty,
		PreferenceBonus:   d.PreferenceBonus,
		BasePriority:      d.BasePriority,
		StallGenerations:  d.StallGenerations,
		Workers:           d.Workers,
	}
	if in == nil {
		return cfg
	}
	if in.PopulationSize > 0 {
		cfg.PopulationSize = in.PopulationSize
	}
	if in.TimeLimitMs > 0 {
		cfg.TimeLimit = time.Duration(in.TimeLimitMs) * time.Millisecond
	}
	if in.MaxGenerations > 0 {
		cfg.MaxGenerations = in.MaxGenerations
	}
	if in.EliteCount > 0 {
		cfg.EliteCount = in.EliteCount
	}
	if in.TournamentSize > 0 {
		cfg.TournamentSize = in.TournamentSize
	}
	if in.MutationRate != nil {
		cfg.MutationRate = *in.MutationRate
	}
	if in.UnassignedPenalty != nil {
		cfg.UnassignedPenalty = *in.UnassignedPenalty
	}
	if in.PreferenceBonus != nil {
		cfg.PreferenceBonus = *in.PreferenceBonus
	}
	if in.BasePriority > 0 {
		cfg.BasePriority = in.BasePriority
	}
	if in.StallGenerations > 0 {
		cfg.StallGenerations = in.StallGenerations
	}
	if in.RandomSeed != 0 {
		cfg.Seed = in.RandomSeed
	}
	if in.Workers > 0 {
		cfg.Workers = in.Workers
	}
	return cfg
}

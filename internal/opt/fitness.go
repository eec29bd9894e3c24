package opt

// contribution is the score an individual assignment adds: the order's
// priority (or the configured base) plus the preference bonus when the
// driver likes the vehicle.
func contribution(o *Order, d *Driver, v *Vehicle, cfg *Config) float64 {
	pr := cfg.BasePriority
	if o.Priority != nil {
		pr = *o.Priority
	}
	s := float64(pr)
	if Prefers(d, v) {
		s += cfg.PreferenceBonus
	}
	return s
}

// evaluate scores a chromosome. Unassigned orders are penalized only when
// some idle (driver, vehicle) pairing could still take them in this very
// plan; an order nothing could ever serve costs nothing. Solutions that
// waste available capacity therefore rank below solutions facing true
// scarcity.
func (p *Problem) evaluate(c *chromosome, cfg *Config) float64 {
	score := 0.0
	for _, id := range p.orderIDs {
		o := p.orderByID[id]
		if a, ok := c.assigned[id]; ok {
			score += contribution(o, p.driver(a.DriverID), p.vehicle(a.VehicleID), cfg)
			continue
		}
		if cfg.UnassignedPenalty > 0 && p.recoverable(c, o) {
			score -= cfg.UnassignedPenalty
		}
	}
	return score
}

// recoverable reports whether any statically feasible pairing for the order
// is still open against the chromosome's current schedules. Feasibility
// against a loaded schedule implies static feasibility, so one check covers
// both clauses of the penalty rule.
func (p *Problem) recoverable(c *chromosome, o *Order) bool {
	for _, pr := range p.pairs[o.ID] {
		if c.canPlace(o, &p.Drivers[pr.driver], &p.Vehicles[pr.vehicle]) {
			return true
		}
	}
	return false
}

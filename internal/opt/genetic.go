package opt

import "math/rand"

// Genetic operators. Every operator yields a feasible chromosome by
// construction: candidate placements are validated with canPlace before they
// are accepted, so no repair pass exists anywhere in the search.

// seedChromosome builds one initial solution: orders in a random sequence,
// each taking a uniformly sampled pairing from those still feasible given
// the partial plan. Orders with no open pairing stay unassigned.
func (p *Problem) seedChromosome(rng *rand.Rand) *chromosome {
	ids := append([]string(nil), p.orderIDs...)
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	c := newChromosome()
	for _, id := range ids {
		o := p.orderByID[id]
		open := p.openPairings(c, o)
		if len(open) == 0 {
			continue
		}
		pr := open[rng.Intn(len(open))]
		c.place(o, &p.Drivers[pr.driver], &p.Vehicles[pr.vehicle])
	}
	return c
}

// openPairings filters the order's statically feasible pairings down to
// those the chromosome's schedules still admit.
func (p *Problem) openPairings(c *chromosome, o *Order) []pairing {
	var open []pairing
	for _, pr := range p.pairs[o.ID] {
		if c.canPlace(o, &p.Drivers[pr.driver], &p.Vehicles[pr.vehicle]) {
			open = append(open, pr)
		}
	}
	return open
}

// tournament picks the fittest of k uniform samples.
func tournament(pop []*chromosome, k int, rng *rand.Rand) *chromosome {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < k; i++ {
		if c := pop[rng.Intn(len(pop))]; c.fitness > best.fitness {
			best = c
		}
	}
	return best
}

// crossover walks the union of both parents' assigned orders in ascending
// order id, preferring the parent whose assignment contributes more, and
// accepts a placement only if it stays feasible against what the offspring
// already holds. When the preferred choice conflicts the other parent's is
// tried; when both conflict the order is left unassigned.
func (p *Problem) crossover(a, b *chromosome, cfg *Config) *chromosome {
	child := newChromosome()
	for _, id := range p.orderIDs {
		o := p.orderByID[id]
		aa, aok := a.assigned[id]
		bb, bok := b.assigned[id]
		switch {
		case !aok && !bok:
			continue
		case aok && !bok:
			p.tryPlace(child, o, aa)
		case bok && !aok:
			p.tryPlace(child, o, bb)
		default:
			first, second := aa, bb
			ca := contribution(o, p.driver(aa.DriverID), p.vehicle(aa.VehicleID), cfg)
			cb := contribution(o, p.driver(bb.DriverID), p.vehicle(bb.VehicleID), cfg)
			if cb > ca {
				first, second = bb, aa
			}
			if !p.tryPlace(child, o, first) {
				p.tryPlace(child, o, second)
			}
		}
	}
	return child
}

func (p *Problem) tryPlace(c *chromosome, o *Order, a Assignment) bool {
	d := p.driver(a.DriverID)
	v := p.vehicle(a.VehicleID)
	if !c.canPlace(o, d, v) {
		return false
	}
	c.place(o, d, v)
	return true
}

// mutate applies one of three perturbations chosen uniformly. An operation
// that cannot produce a feasible result is skipped, never forced; the
// return value reports whether the chromosome actually changed.
func (p *Problem) mutate(c *chromosome, rng *rand.Rand) bool {
	switch rng.Intn(3) {
	case 0:
		return p.mutateUnassign(c, rng)
	case 1:
		return p.mutateReassign(c, rng)
	default:
		return p.mutateSwap(c, rng)
	}
}

func (p *Problem) mutateUnassign(c *chromosome, rng *rand.Rand) bool {
	ids := c.assignedIDs()
	if len(ids) == 0 {
		return false
	}
	c.remove(p, ids[rng.Intn(len(ids))])
	return true
}

func (p *Problem) mutateReassign(c *chromosome, rng *rand.Rand) bool {
	ids := c.unassignedIDs(p)
	if len(ids) == 0 {
		return false
	}
	o := p.orderByID[ids[rng.Intn(len(ids))]]
	open := p.openPairings(c, o)
	if len(open) == 0 {
		return false
	}
	pr := open[rng.Intn(len(open))]
	c.place(o, &p.Drivers[pr.driver], &p.Vehicles[pr.vehicle])
	return true
}

// mutateSwap exchanges the driver or the vehicle of two assignments when
// both swapped combinations remain feasible.
func (p *Problem) mutateSwap(c *chromosome, rng *rand.Rand) bool {
	ids := c.assignedIDs()
	if len(ids) < 2 {
		return false
	}
	i := rng.Intn(len(ids))
	j := rng.Intn(len(ids) - 1)
	if j >= i {
		j++
	}
	a1, a2 := c.assigned[ids[i]], c.assigned[ids[j]]
	o1, o2 := p.orderByID[a1.OrderID], p.orderByID[a2.OrderID]

	s1, s2 := a1, a2
	if rng.Intn(2) == 0 {
		s1.DriverID, s2.DriverID = a2.DriverID, a1.DriverID
	} else {
		s1.VehicleID, s2.VehicleID = a2.VehicleID, a1.VehicleID
	}

	c.remove(p, a1.OrderID)
	c.remove(p, a2.OrderID)
	if p.tryPlace(c, o1, s1) && p.tryPlace(c, o2, s2) {
		return true
	}
	// infeasible swap: restore the original placements
	c.remove(p, a1.OrderID)
	c.remove(p, a2.OrderID)
	p.tryPlace(c, o1, a1)
	p.tryPlace(c, o2, a2)
	return false
}

package opt

import "sort"

// chromosome is one candidate plan: assignments keyed by order id plus
// derived per-resource interval schedules. It is feasible by construction;
// place is only ever called after canPlace. Schedules are recomputable
// indices, not back-pointers, so cloning is a shallow map copy.
type chromosome struct {
	assigned map[string]Assignment
	dSched   map[string][]Interval
	vSched   map[string][]Interval
	fitness  float64
}

func newChromosome() *chromosome {
	return &chromosome{
		assigned: map[string]Assignment{},
		dSched:   map[string][]Interval{},
		vSched:   map[string][]Interval{},
	}
}

func (c *chromosome) clone() *chromosome {
	out := &chromosome{
		assigned: make(map[string]Assignment, len(c.assigned)),
		dSched:   make(map[string][]Interval, len(c.dSched)),
		vSched:   make(map[string][]Interval, len(c.vSched)),
		fitness:  c.fitness,
	}
	for k, v := range c.assigned {
		out.assigned[k] = v
	}
	for k, ivs := range c.dSched {
		out.dSched[k] = append([]Interval(nil), ivs...)
	}
	for k, ivs := range c.vSched {
		out.vSched[k] = append([]Interval(nil), ivs...)
	}
	return out
}

func (c *chromosome) canPlace(o *Order, d *Driver, v *Vehicle) bool {
	return CanAssign(d, v, o, c.dSched[d.ID], c.vSched[v.ID])
}

func (c *chromosome) place(o *Order, d *Driver, v *Vehicle) {
	c.assigned[o.ID] = Assignment{OrderID: o.ID, DriverID: d.ID, VehicleID: v.ID}
	c.dSched[d.ID] = insertInterval(c.dSched[d.ID], o.Window())
	c.vSched[v.ID] = insertInterval(c.vSched[v.ID], o.Window())
}

func (c *chromosome) remove(p *Problem, orderID string) {
	a, ok := c.assigned[orderID]
	if !ok {
		return
	}
	iv := p.orderByID[orderID].Window()
	delete(c.assigned, orderID)
	c.dSched[a.DriverID] = removeInterval(c.dSched[a.DriverID], iv)
	c.vSched[a.VehicleID] = removeInterval(c.vSched[a.VehicleID], iv)
}

// assignedIDs returns the assigned order ids ascending.
func (c *chromosome) assignedIDs() []string {
	ids := make([]string, 0, len(c.assigned))
	for id := range c.assigned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// unassignedIDs returns, ascending, the orders this chromosome left out.
func (c *chromosome) unassignedIDs(p *Problem) []string {
	var ids []string
	for _, id := range p.orderIDs {
		if _, ok := c.assigned[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// assignments returns the plan ordered by order id.
func (c *chromosome) assignments() []Assignment {
	out := make([]Assignment, 0, len(c.assigned))
	for _, id := range c.assignedIDs() {
		out = append(out, c.assigned[id])
	}
	return out
}

func insertInterval(ivs []Interval, iv Interval) []Interval {
	i := sort.Search(len(ivs), func(i int) bool { return !ivs[i].Start.Before(iv.Start) })
	ivs = append(ivs, Interval{})
	copy(ivs[i+1:], ivs[i:])
	ivs[i] = iv
	return ivs
}

func removeInterval(ivs []Interval, iv Interval) []Interval {
	for i, s := range ivs {
		if s.Start.Equal(iv.Start) && s.End.Equal(iv.End) {
			return append(ivs[:i], ivs[i+1:]...)
		}
	}
	return ivs
}

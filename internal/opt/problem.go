package opt

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvariant is returned when a plan about to be handed back fails the
// defensive feasibility re-check at the solver's exit boundary.
var ErrInvariant = errors.New("returned plan failed feasibility re-check")

type pairing struct{ driver, vehicle int }

// Problem is an immutable solving instance: validated inputs plus derived
// lookup indices shared by every chromosome.
type Problem struct {
	Orders   []Order
	Drivers  []Driver
	Vehicles []Vehicle

	orderByID map[string]*Order
	orderIDs  []string // ascending; the deterministic iteration order

	// pairs holds, per order id, every (driver, vehicle) combination that is
	// feasible against the resources' static busy intervals alone. Dynamic
	// schedule checks filter this further; an order with no static pairing
	// is genuinely infeasible and never penalized.
	pairs map[string][]pairing
}

// NewProblem validates inputs and builds the derived indices. Validation
// failures are fatal: no partial solve is attempted.
func NewProblem(orders []Order, drivers []Driver, vehicles []Vehicle) (*Problem, error) {
	p := &Problem{
		Orders:    orders,
		Drivers:   drivers,
		Vehicles:  vehicles,
		orderByID: make(map[string]*Order, len(orders)),
		pairs:     make(map[string][]pairing, len(orders)),
	}
	for i := range orders {
		o := &orders[i]
		if o.ID == "" {
			return nil, fmt.Errorf("order %d: empty id", i)
		}
		if _, dup := p.orderByID[o.ID]; dup {
			return nil, fmt.Errorf("duplicate order id %q", o.ID)
		}
		if !o.End.After(o.Start) {
			return nil, fmt.Errorf("order %q: end_time must be after start_time", o.ID)
		}
		if o.Weight < 0 {
			return nil, fmt.Errorf("order %q: negative weight", o.ID)
		}
		if o.Volume != nil && *o.Volume < 0 {
			return nil, fmt.Errorf("order %q: negative volume", o.ID)
		}
		p.orderByID[o.ID] = o
		p.orderIDs = append(p.orderIDs, o.ID)
	}
	sort.Strings(p.orderIDs)

	driverIDs := make(map[string]struct{}, len(drivers))
	for i := range drivers {
		d := &drivers[i]
		if d.ID == "" {
			return nil, fmt.Errorf("driver %d: empty id", i)
		}
		if _, dup := driverIDs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate driver id %q", d.ID)
		}
		driverIDs[d.ID] = struct{}{}
		if d.MinBreak < 0 {
			return nil, fmt.Errorf("driver %q: negative mandatory break", d.ID)
		}
		if err := validBusy(d.Busy); err != nil {
			return nil, fmt.Errorf("driver %q: %w", d.ID, err)
		}
	}
	vehicleIDs := make(map[string]struct{}, len(vehicles))
	for i := range vehicles {
		v := &vehicles[i]
		if v.ID == "" {
			return nil, fmt.Errorf("vehicle %d: empty id", i)
		}
		if _, dup := vehicleIDs[v.ID]; dup {
			return nil, fmt.Errorf("duplicate vehicle id %q", v.ID)
		}
		vehicleIDs[v.ID] = struct{}{}
		if v.MaxWeight < 0 {
			return nil, fmt.Errorf("vehicle %q: negative weight capacity", v.ID)
		}
		if v.MaxVolume != nil && *v.MaxVolume < 0 {
			return nil, fmt.Errorf("vehicle %q: negative volume capacity", v.ID)
		}
		if v.MinBreak < 0 {
			return nil, fmt.Errorf("vehicle %q: negative mandatory break", v.ID)
		}
		if err := validBusy(v.Busy); err != nil {
			return nil, fmt.Errorf("vehicle %q: %w", v.ID, err)
		}
	}

	p.precomputePairs()
	return p, nil
}

func validBusy(ivs []Interval) error {
	for _, iv := range ivs {
		if !iv.End.After(iv.Start) {
			return errors.New("busy interval end must be after start")
		}
	}
	return nil
}

func (p *Problem) precomputePairs() {
	for i := range p.Orders {
		o := &p.Orders[i]
		var okDrivers, okVehicles []int
		for di := range p.Drivers {
			if CanAssignDriver(&p.Drivers[di], o, nil) {
				okDrivers = append(okDrivers, di)
			}
		}
		for vi := range p.Vehicles {
			if CanAssignVehicle(&p.Vehicles[vi], o, nil) {
				okVehicles = append(okVehicles, vi)
			}
		}
		var prs []pairing
		for _, di := range okDrivers {
			for _, vi := range okVehicles {
				prs = append(prs, pairing{driver: di, vehicle: vi})
			}
		}
		p.pairs[o.ID] = prs
	}
}

// Verify independently re-checks a finished plan assignment by assignment,
// rebuilding schedules from scratch. Any breach of the hard constraints
// becomes an explicit error instead of a silently wrong answer.
func (p *Problem) Verify(assignments []Assignment) error {
	c := newChromosome()
	for _, a := range assignments {
		o, ok := p.orderByID[a.OrderID]
		if !ok {
			return fmt.Errorf("%w: unknown order %q", ErrInvariant, a.OrderID)
		}
		d := p.driver(a.DriverID)
		v := p.vehicle(a.VehicleID)
		if d == nil || v == nil {
			return fmt.Errorf("%w: unknown resource in assignment for order %q", ErrInvariant, a.OrderID)
		}
		if _, dup := c.assigned[a.OrderID]; dup {
			return fmt.Errorf("%w: order %q assigned twice", ErrInvariant, a.OrderID)
		}
		if !c.canPlace(o, d, v) {
			return fmt.Errorf("%w: order %q on driver %q / vehicle %q", ErrInvariant, a.OrderID, a.DriverID, a.VehicleID)
		}
		c.place(o, d, v)
	}
	return nil
}

func (p *Problem) driver(id string) *Driver {
	for i := range p.Drivers {
		if p.Drivers[i].ID == id {
			return &p.Drivers[i]
		}
	}
	return nil
}

func (p *Problem) vehicle(id string) *Vehicle {
	for i := range p.Vehicles {
		if p.Vehicles[i].ID == id {
			return &p.Vehicles[i]
		}
	}
	return nil
}

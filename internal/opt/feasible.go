package opt

import "time"

// Pure feasibility predicates. All are total and side-effect free; hard
// constraints live here, soft preference only affects scoring.

// OrdersOverlap reports whether two orders' [start,end) windows intersect.
// Touching endpoints do not count as overlap.
func OrdersOverlap(a, b *Order) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func intervalsOverlap(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// InsufficientBreak reports whether the idle gap between two non-overlapping
// intervals on the same resource is strictly shorter than minBreak.
// Overlapping intervals are a separate hard violation; here they report false.
func InsufficientBreak(a, b Interval, minBreak time.Duration) bool {
	if !a.End.After(b.Start) {
		return b.Start.Sub(a.End) < minBreak
	}
	if !b.End.After(a.Start) {
		return a.Start.Sub(b.End) < minBreak
	}
	return false
}

// IsOnBreak reports whether instant t falls inside a mandated rest window
// implied by the schedule: within minBreak after any interval ends, or
// within minBreak before one starts.
func IsOnBreak(sched []Interval, minBreak time.Duration, t time.Time) bool {
	if minBreak <= 0 {
		return false
	}
	for _, iv := range sched {
		if !t.Before(iv.End) && t.Before(iv.End.Add(minBreak)) {
			return true
		}
		if t.Before(iv.Start) && !t.Before(iv.Start.Add(-minBreak)) {
			return true
		}
	}
	return false
}

// fits reports whether iv can join sched without overlapping any interval
// or violating the minimum break on either side.
func fits(iv Interval, sched []Interval, minBreak time.Duration) bool {
	for _, s := range sched {
		if intervalsOverlap(iv, s) || InsufficientBreak(s, iv, minBreak) {
			return false
		}
	}
	return true
}

// CanAssignDriver reports whether the order fits the driver's static busy
// intervals and the already-assigned schedule, honoring the driver's
// mandatory break.
func CanAssignDriver(d *Driver, o *Order, assigned []Interval) bool {
	iv := o.Window()
	return fits(iv, d.Busy, d.MinBreak) && fits(iv, assigned, d.MinBreak)
}

// CanAssignVehicle applies the same temporal and break checks against the
// vehicle plus capacity and tag constraints. A nil MaxVolume means the
// vehicle is volume-unconstrained.
func CanAssignVehicle(v *Vehicle, o *Order, assigned []Interval) bool {
	iv := o.Window()
	if !fits(iv, v.Busy, v.MinBreak) || !fits(iv, assigned, v.MinBreak) {
		return false
	}
	if o.Weight > v.MaxWeight {
		return false
	}
	if o.Volume != nil && v.MaxVolume != nil && *o.Volume > *v.MaxVolume {
		return false
	}
	return tagsSatisfied(o.Tags, v.Tags)
}

// CanAssign is the conjunction of the driver and vehicle checks. Driver
// preference is deliberately not part of feasibility.
func CanAssign(d *Driver, v *Vehicle, o *Order, driverAssigned, vehicleAssigned []Interval) bool {
	return CanAssignDriver(d, o, driverAssigned) && CanAssignVehicle(v, o, vehicleAssigned)
}

// Prefers reports whether the driver's preference matches the vehicle,
// either by vehicle id or by vehicle tag affinity.
func Prefers(d *Driver, v *Vehicle) bool {
	for _, id := range d.PreferredVehicles {
		if id == v.ID {
			return true
		}
	}
	for _, want := range d.PreferredTags {
		for _, tag := range v.Tags {
			if want == tag {
				return true
			}
		}
	}
	return false
}

func tagsSatisfied(required, offered []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(offered))
	for _, t := range offered {
		set[t] = struct{}{}
	}
	for _, t := range required {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

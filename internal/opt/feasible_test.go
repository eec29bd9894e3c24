package opt

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 9, 5, 8, 0, 0, 0, time.UTC)

func at(minOffset int) time.Time { return t0.Add(time.Duration(minOffset) * time.Minute) }

func ord(id string, startMin, endMin int) Order {
	return Order{ID: id, Start: at(startMin), End: at(endMin), Weight: 1}
}

func iv(startMin, endMin int) Interval { return Interval{Start: at(startMin), End: at(endMin)} }

func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }

func TestOrdersOverlap(t *testing.T) {
	a := ord("a", 0, 60)
	b := ord("b", 30, 90)
	c := ord("c", 60, 120)
	if !OrdersOverlap(&a, &b) {
		t.Fatalf("expected overlap")
	}
	if OrdersOverlap(&a, &c) {
		t.Fatalf("touching endpoints must not overlap")
	}
	if !OrdersOverlap(&a, &a) {
		t.Fatalf("identical windows overlap")
	}
}

func TestInsufficientBreak(t *testing.T) {
	if !InsufficientBreak(iv(0, 60), iv(70, 120), 30*time.Minute) {
		t.Fatalf("10m gap < 30m break")
	}
	if InsufficientBreak(iv(0, 60), iv(90, 120), 30*time.Minute) {
		t.Fatalf("exact 30m gap is sufficient")
	}
	// argument order must not matter
	if !InsufficientBreak(iv(70, 120), iv(0, 60), 30*time.Minute) {
		t.Fatalf("10m gap < 30m break (reversed)")
	}
	// overlapping intervals are vacuous here
	if InsufficientBreak(iv(0, 60), iv(30, 90), 30*time.Minute) {
		t.Fatalf("overlap is not a break violation")
	}
}

func TestIsOnBreak(t *testing.T) {
	sched := []Interval{iv(0, 60)}
	if !IsOnBreak(sched, 30*time.Minute, at(70)) {
		t.Fatalf("70 is inside the post-assignment rest window")
	}
	if IsOnBreak(sched, 30*time.Minute, at(95)) {
		t.Fatalf("95 is past the rest window")
	}
	if IsOnBreak(sched, 0, at(61)) {
		t.Fatalf("zero break implies no rest window")
	}
}

func TestCanAssignDriver(t *testing.T) {
	d := Driver{ID: "d1", Busy: []Interval{iv(0, 60)}, MinBreak: 30 * time.Minute}
	o := ord("o1", 70, 120)
	if CanAssignDriver(&d, &o, nil) {
		t.Fatalf("gap to busy commitment violates break")
	}
	o2 := ord("o2", 90, 120)
	if !CanAssignDriver(&d, &o2, nil) {
		t.Fatalf("30m gap should be fine")
	}
	if CanAssignDriver(&d, &o2, []Interval{iv(100, 130)}) {
		t.Fatalf("overlap with assigned schedule")
	}
}

func TestCanAssignVehicleCapacityAndTags(t *testing.T) {
	v := Vehicle{ID: "v1", MaxWeight: 100, Tags: []string{"refrigerated"}}
	heavy := Order{ID: "h", Start: at(0), End: at(60), Weight: 150}
	if CanAssignVehicle(&v, &heavy, nil) {
		t.Fatalf("over weight capacity")
	}
	tagged := Order{ID: "t", Start: at(0), End: at(60), Weight: 10, Tags: []string{"refrigerated"}}
	if !CanAssignVehicle(&v, &tagged, nil) {
		t.Fatalf("tag satisfied, should assign")
	}
	tagged.Tags = []string{"refrigerated", "hazmat"}
	if CanAssignVehicle(&v, &tagged, nil) {
		t.Fatalf("hazmat not offered")
	}
}

func TestCanAssignVehicleVolume(t *testing.T) {
	capped := Vehicle{ID: "v1", MaxWeight: 100, MaxVolume: fptr(10)}
	open := Vehicle{ID: "v2", MaxWeight: 100}
	o := Order{ID: "o", Start: at(0), End: at(60), Weight: 1, Volume: fptr(20)}
	if CanAssignVehicle(&capped, &o, nil) {
		t.Fatalf("over volume capacity")
	}
	// absent capacity means unconstrained
	if !CanAssignVehicle(&open, &o, nil) {
		t.Fatalf("vehicle without MaxVolume is unconstrained")
	}
}

func TestCanAssignIsPureAndDeterministic(t *testing.T) {
	d := Driver{ID: "d1", MinBreak: 15 * time.Minute}
	v := Vehicle{ID: "v1", MaxWeight: 50}
	o := ord("o1", 0, 60)
	sched := []Interval{iv(120, 180)}
	first := CanAssign(&d, &v, &o, sched, sched)
	for i := 0; i < 10; i++ {
		if CanAssign(&d, &v, &o, sched, sched) != first {
			t.Fatalf("predicate not deterministic")
		}
	}
	if len(sched) != 1 || !sched[0].Start.Equal(at(120)) {
		t.Fatalf("predicate mutated its input")
	}
}

func TestPrefers(t *testing.T) {
	v := Vehicle{ID: "v1", Tags: []string{"van"}}
	if !Prefers(&Driver{PreferredVehicles: []string{"v1"}}, &v) {
		t.Fatalf("id preference")
	}
	if !Prefers(&Driver{PreferredTags: []string{"van"}}, &v) {
		t.Fatalf("tag preference")
	}
	if Prefers(&Driver{}, &v) {
		t.Fatalf("no preference declared")
	}
}

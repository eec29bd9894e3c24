// Package opt implements the assignment solver: a population-based
// (genetic) search over feasible order -> (driver, vehicle) plans under a
// wall-clock budget.
package opt

import "time"

// Interval is a half-open time window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Order is a unit of work to be assigned for its full window. Immutable
// once loaded into a solving run.
type Order struct {
	ID       string
	Start    time.Time
	End      time.Time
	Priority *int     // nil means the configured base priority
	Tags     []string // capability requirements, all must be offered by the vehicle
	Weight   float64
	Volume   *float64 // nil means no volume demand
}

// Window returns the order's service interval.
func (o *Order) Window() Interval { return Interval{Start: o.Start, End: o.End} }

// Driver is an assignable resource with prior commitments and a mandatory
// rest duration between consecutive assignments.
type Driver struct {
	ID                string
	Busy              []Interval
	PreferredVehicles []string
	PreferredTags     []string
	MinBreak          time.Duration
}

// Vehicle is an assignable resource with capacity and capability tags.
// MaxVolume nil means volume-unconstrained.
type Vehicle struct {
	ID        string
	Busy      []Interval
	MaxWeight float64
	MaxVolume *float64
	Tags      []string
	MinBreak  time.Duration
}

// Assignment binds one order to one driver and one vehicle for the order's
// full window.
type Assignment struct {
	OrderID   string `json:"orderId"`
	DriverID  string `json:"driverId"`
	VehicleID string `json:"vehicleId"`
}

// Progress is emitted once per completed generation.
type Progress struct {
	Generation int
	BestScore  float64
	Elapsed    time.Duration
}

// Config controls a solving run. Zero values mean "use the default" except
// where Validate says otherwise; DefaultConfig returns the documented
// defaults.
type Config struct {
	PopulationSize    int
	TimeLimit         time.Duration
	MaxGenerations    int // 0 = no generation cap
	EliteCount        int
	TournamentSize    int
	MutationRate      float64
	UnassignedPenalty float64 // per unassigned order that had an idle feasible pairing
	PreferenceBonus   float64
	BasePriority      int // substituted when an order carries no priority
	StallGenerations  int // 0 = no convergence cutoff
	Seed              int64
	Workers           int // parallel fitness evaluators; <=0 means GOMAXPROCS

	Progress func(Progress) `json:"-"`
}

// Stats reports search effort for one run.
type Stats struct {
	Evaluations   int `json:"evaluations"`
	Crossovers    int `json:"crossovers"`
	Mutations     int `json:"mutations"`
	MutationNoops int `json:"mutationNoops"`
	Seed          int64 `json:"seed"`
}

// Result is the best feasible plan found within the budget.
type Result struct {
	Assignments []Assignment  `json:"assignments"`
	Unassigned  []string      `json:"unassigned"`
	Score       float64       `json:"score"`
	Generations int           `json:"generations"`
	Elapsed     time.Duration `json:"elapsed"`
	Stats       Stats         `json:"stats"`
}

package model

// API request/response types for the solve service.

type IntervalIn struct {
    Start string `json:"start"` // RFC3339
    End   string `json:"end"`
}

type OrderIn struct {
    ID        string   `json:"id"`
    StartTime string   `json:"startTime"`
    EndTime   string   `json:"endTime"`
    Priority  *int     `json:"priority,omitempty"`
    Tags      []string `json:"tags,omitempty"`
    Weight    float64  `json:"weight"`
    Volume    *float64 `json:"volume,omitempty"`
}

type DriverIn struct {
    ID                string       `json:"id"`
    Busy              []IntervalIn `json:"busy,omitempty"`
    PreferredVehicles []string     `json:"preferredVehicles,omitempty"`
    PreferredTags     []string     `json:"preferredTags,omitempty"`
    MinBreakSec       int          `json:"minBreakSec,omitempty"`
}

type VehicleIn struct {
    ID          string       `json:"id"`
    Busy        []IntervalIn `json:"busy,omitempty"`
    MaxWeight   float64      `json:"maxWeight"`
    MaxVolume   *float64     `json:"maxVolume,omitempty"`
    Tags        []string     `json:"tags,omitempty"`
    MinBreakSec int          `json:"minBreakSec,omitempty"`
}

// SolveConfigIn mirrors opt.Config on the wire; zero/absent fields fall
// back to server defaults merged with tenant overrides.
type SolveConfigIn struct {
    PopulationSize    int      `json:"populationSize,omitempty"`
    TimeLimitMs       int      `json:"timeLimitMs,omitempty"`
    MaxGenerations    int      `json:"maxGenerations,omitempty"`
    EliteCount        int      `json:"eliteCount,omitempty"`
    TournamentSize    int      `json:"tournamentSize,omitempty"`
    MutationRate      *float64 `json:"mutationRate,omitempty"`
    UnassignedPenalty *float64 `json:"unassignedPenalty,omitempty"`
    PreferenceBonus   *float64 `json:"preferenceBonus,omitempty"`
    BasePriority      int      `json:"basePriority,omitempty"`
    StallGenerations  int      `json:"stallGenerations,omitempty"`
    RandomSeed        int64    `json:"randomSeed,omitempty"`
    Workers           int      `json:"workers,omitempty"`
}

type SolveRequest struct {
    TenantID string         `json:"tenantId,omitempty"`
    Orders   []OrderIn      `json:"orders"`
    Drivers  []DriverIn     `json:"drivers"`
    Vehicles []VehicleIn    `json:"vehicles"`
    Config   *SolveConfigIn `json:"config,omitempty"`
}

type AssignmentOut struct {
    OrderID   string `json:"orderId"`
    DriverID  string `json:"driverId"`
    VehicleID string `json:"vehicleId"`
}

type SolutionOut struct {
    Assignments []AssignmentOut `json:"assignments"`
    Unassigned  []string        `json:"unassigned"`
    Score       float64         `json:"score"`
    Generations int             `json:"generations"`
    ElapsedMs   int64           `json:"elapsedMs"`
    Seed        int64           `json:"seed,omitempty"`
}

// Run statuses
const (
    RunRunning   = "running"
    RunCompleted = "completed"
    RunFailed    = "failed"
)

type Run struct {
    ID          string       `json:"id"`
    TenantID    string       `json:"tenantId"`
    Status      string       `json:"status"`
    SubmittedAt string       `json:"submittedAt"`
    CompletedAt string       `json:"completedAt,omitempty"`
    Error       string       `json:"error,omitempty"`
    OrderCount  int          `json:"orderCount"`
    Result      *SolutionOut `json:"result,omitempty"`
}

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}

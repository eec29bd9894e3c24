package api

import (
	"fmt"

	"fleetassign/internal/model"
)

const (
	maxOrders    = 10000
	maxResources = 2000
)

func validateSolveRequest(req *model.SolveRequest) error {
	if len(req.Orders) == 0 {
		return fmt.Errorf("orders must not be empty")
	}
	if len(req.Orders) > maxOrders {
		return fmt.Errorf("too many orders (max %d)", maxOrders)
	}
	if len(req.Drivers) == 0 {
		return fmt.Errorf("drivers must not be empty")
	}
	if len(req.Vehicles) == 0 {
		return fmt.Errorf("vehicles must not be empty")
	}
	if len(req.Drivers) > maxResources || len(req.Vehicles) > maxResources {
		return fmt.Errorf("too many resources (max %d)", maxResources)
	}
	if c := req.Config; c != nil {
		if c.TimeLimitMs < 0 {
			return fmt.Errorf("timeLimitMs must be >= 0")
		}
		if c.TimeLimitMs > 300000 {
			return fmt.Errorf("timeLimitMs must be <= 300000")
		}
		if c.MaxGenerations < 0 {
			return fmt.Errorf("maxGenerations must be >= 0")
		}
		if c.PopulationSize < 0 {
			return fmt.Errorf("populationSize must be >= 0")
		}
		if c.MutationRate != nil && (*c.MutationRate < 0 || *c.MutationRate > 1) {
			return fmt.Errorf("mutationRate must be in [0,1]")
		}
		if c.UnassignedPenalty != nil && *c.UnassignedPenalty < 0 {
			return fmt.Errorf("unassignedPenalty must be >= 0")
		}
		if c.PreferenceBonus != nil && *c.PreferenceBonus < 0 {
			return fmt.Errorf("preferenceBonus must be >= 0")
		}
		if c.Workers < 0 {
			return fmt.Errorf("workers must be >= 0")
		}
	}
	return nil
}

package opt

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"
)

// DefaultConfig returns the documented solver defaults.
func DefaultConfig() Config {
	return Config{
		PopulationSize:    100,
		TimeLimit:         10 * time.Second,
		EliteCount:        1,
		TournamentSize:    3,
		MutationRate:      0.1,
		UnassignedPenalty: 0.5,
		PreferenceBonus:   0.1,
		BasePriority:      1,
	}
}

func (cfg *Config) withDefaults() {
	def := DefaultConfig()
	if cfg.PopulationSize == 0 {
		cfg.PopulationSize = def.PopulationSize
	}
	if cfg.TimeLimit == 0 && cfg.MaxGenerations == 0 {
		cfg.TimeLimit = def.TimeLimit
	}
	if cfg.EliteCount == 0 {
		cfg.EliteCount = def.EliteCount
	}
	if cfg.TournamentSize == 0 {
		cfg.TournamentSize = def.TournamentSize
	}
	if cfg.BasePriority == 0 {
		cfg.BasePriority = def.BasePriority
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
}

// Validate rejects configurations that could never run productively.
func (cfg *Config) Validate() error {
	if cfg.PopulationSize <= 0 {
		return fmt.Errorf("population_size must be positive")
	}
	if cfg.TimeLimit < 0 {
		return fmt.Errorf("time_limit must not be negative")
	}
	if cfg.TimeLimit == 0 && cfg.MaxGenerations <= 0 {
		return fmt.Errorf("either time_limit or max_generations must be set")
	}
	if cfg.MaxGenerations < 0 {
		return fmt.Errorf("max_generations must not be negative")
	}
	if cfg.EliteCount < 1 {
		return fmt.Errorf("elite_count must be at least 1")
	}
	if cfg.EliteCount >= cfg.PopulationSize {
		return fmt.Errorf("elite_count must leave room for offspring")
	}
	if cfg.TournamentSize < 2 {
		return fmt.Errorf("tournament_size must be at least 2")
	}
	if cfg.TournamentSize > cfg.PopulationSize {
		return fmt.Errorf("tournament_size larger than population_size")
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return fmt.Errorf("mutation_rate must be in [0,1]")
	}
	if cfg.UnassignedPenalty < 0 {
		return fmt.Errorf("unassigned_penalty must not be negative")
	}
	if cfg.PreferenceBonus < 0 {
		return fmt.Errorf("preference_bonus must not be negative")
	}
	return nil
}

// Solve runs the generational loop until the wall-clock budget or the
// generation cap is hit, whichever first, and returns the best feasible
// plan observed. All randomness flows from one seeded generator consumed
// only on the calling goroutine; fitness evaluation fans out to workers but
// is pure, so results are identical for any worker count.
func Solve(p *Problem, cfg Config) (Result, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	start := time.Now()
	deadline := start.Add(cfg.TimeLimit)
	stats := Stats{Seed: seed}

	pop := make([]*chromosome, cfg.PopulationSize)
	for i := range pop {
		pop[i] = p.seedChromosome(rng)
	}
	p.evaluateAll(pop, &cfg, &stats)

	best := fittest(pop).clone()
	gen := 0
	stall := 0
	for {
		if cfg.TimeLimit > 0 && !time.Now().Before(deadline) {
			break
		}
		if cfg.MaxGenerations > 0 && gen >= cfg.MaxGenerations {
			break
		}
		if cfg.StallGenerations > 0 && stall >= cfg.StallGenerations {
			break
		}

		// elites survive unchanged; the rest of the next generation is
		// offspring from tournament-selected parents
		next := make([]*chromosome, 0, cfg.PopulationSize)
		for _, i := range rankIndices(pop)[:cfg.EliteCount] {
			next = append(next, pop[i])
		}
		for len(next) < cfg.PopulationSize {
			p1 := tournament(pop, cfg.TournamentSize, rng)
			p2 := tournament(pop, cfg.TournamentSize, rng)
			child := p.crossover(p1, p2, &cfg)
			stats.Crossovers++
			if cfg.MutationRate > 0 && rng.Float64() < cfg.MutationRate {
				if p.mutate(child, rng) {
					stats.Mutations++
				} else {
					stats.MutationNoops++
				}
			}
			next = append(next, child)
		}
		p.evaluateAll(next[cfg.EliteCount:], &cfg, &stats)

		pop = next
		gen++
		if top := fittest(pop); top.fitness > best.fitness {
			best = top.clone()
			stall = 0
		} else {
			stall++
		}
		if cfg.Progress != nil {
			cfg.Progress(Progress{Generation: gen, BestScore: best.fitness, Elapsed: time.Since(start)})
		}
	}

	plan := best.assignments()
	if err := p.Verify(plan); err != nil {
		return Result{}, err
	}
	return Result{
		Assignments: plan,
		Unassigned:  best.unassignedIDs(p),
		Score:       best.fitness,
		Generations: gen,
		Elapsed:     time.Since(start),
		Stats:       stats,
	}, nil
}

// evaluateAll scores a batch of chromosomes, fanning out across workers.
// Each chromosome is evaluated by exactly one goroutine and nothing else is
// shared, so no locking is needed; the channel drain is the generation
// barrier.
func (p *Problem) evaluateAll(batch []*chromosome, cfg *Config, stats *Stats) {
	stats.Evaluations += len(batch)
	workers := cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}
	if workers <= 1 {
		for _, c := range batch {
			c.fitness = p.evaluate(c, cfg)
		}
		return
	}
	var wg sync.WaitGroup
	idx := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				batch[i].fitness = p.evaluate(batch[i], cfg)
			}
		}()
	}
	for i := range batch {
		idx <- i
	}
	close(idx)
	wg.Wait()
}

func fittest(pop []*chromosome) *chromosome {
	best := pop[0]
	for _, c := range pop[1:] {
		if c.fitness > best.fitness {
			best = c
		}
	}
	return best
}

// rankIndices orders population indices by fitness descending, stable so
// ties break on position and runs stay reproducible.
func rankIndices(pop []*chromosome) []int {
	idx := make([]int, len(pop))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return pop[idx[a]].fitness > pop[idx[b]].fitness })
	return idx
}

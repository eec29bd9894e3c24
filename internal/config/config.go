// Package config loads service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
    "fmt"
    "os"
    "strconv"

    yaml "gopkg.in/yaml.v3"
)

// SolverDefaults are the server-wide solver defaults applied to solve
// requests that leave fields unset. Tenant overrides layer on top.
type SolverDefaults struct {
    PopulationSize    int     `yaml:"populationSize" json:"populationSize"`
    TimeLimitMs       int     `yaml:"timeLimitMs" json:"timeLimitMs"`
    MaxGenerations    int     `yaml:"maxGenerations" json:"maxGenerations"`
    EliteCount        int     `yaml:"eliteCount" json:"eliteCount"`
    TournamentSize    int     `yaml:"tournamentSize" json:"tournamentSize"`
    MutationRate      float64 `yaml:"mutationRate" json:"mutationRate"`
    UnassignedPenalty float64 `yaml:"unassignedPenalty" json:"unassignedPenalty"`
    PreferenceBonus   float64 `yaml:"preferenceBonus" json:"preferenceBonus"`
    BasePriority      int     `yaml:"basePriority" json:"basePriority"`
    StallGenerations  int     `yaml:"stallGenerations" json:"stallGenerations"`
    Workers           int     `yaml:"workers" json:"workers"`
}

type Config struct {
    Port               string         `yaml:"port"`
    DatabaseURL        string         `yaml:"databaseUrl"`
    RedisURL           string         `yaml:"redisUrl"`
    AuthMode           string         `yaml:"authMode"`
    AuthHMACSecret     string         `yaml:"authHmacSecret"`
    RateRPS            float64        `yaml:"rateRps"`
    RateBurst          int            `yaml:"rateBurst"`
    WebhookMaxAttempts int            `yaml:"webhookMaxAttempts"`
    Solver             SolverDefaults `yaml:"solver"`
}

// Default returns the built-in configuration.
func Default() Config {
    return Config{
        Port:               "8080",
        RateRPS:            5,
        RateBurst:          10,
        WebhookMaxAttempts: 10,
        Solver: SolverDefaults{
            PopulationSize:    100,
            TimeLimitMs:       10000,
            EliteCount:        1,
            TournamentSize:    3,
            MutationRate:      0.1,
            UnassignedPenalty: 0.5,
            PreferenceBonus:   0.1,
            BasePriority:      1,
        },
    }
}

// Load reads the YAML file at path (skipped when path is empty or missing)
// and then applies environment overrides.
func Load(path string) (Config, error) {
    cfg := Default()
    if path != "" {
        data, err := os.ReadFile(path)
        if err != nil {
            if !os.IsNotExist(err) {
                return cfg, fmt.Errorf("read config: %w", err)
            }
        } else if err := yaml.Unmarshal(data, &cfg); err != nil {
            return cfg, fmt.Errorf("parse config: %w", err)
        }
    }
    cfg.applyEnv()
    return cfg, nil
}

func (c *Config) applyEnv() {
    if v := os.Getenv("PORT"); v != "" {
        c.Port = v
    }
    if v := os.Getenv("DATABASE_URL"); v != "" {
        c.DatabaseURL = v
    }
    if v := os.Getenv("REDIS_URL"); v != "" {
        c.RedisURL = v
    }
    if v := os.Getenv("AUTH_MODE"); v != "" {
        c.AuthMode = v
    }
    if v := os.Getenv("AUTH_HMAC_SECRET"); v != "" {
        c.AuthHMACSecret = v
    }
    if v := os.Getenv("RATE_RPS"); v != "" {
        if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
            c.RateRPS = f
        }
    }
    if v := os.Getenv("RATE_BURST"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 {
            c.RateBurst = n
        }
    }
    if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 {
            c.WebhookMaxAttempts = n
        }
    }
}

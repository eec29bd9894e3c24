package config

import (
    "os"
    "path/filepath"
    "testing"
)

func TestDefaults(t *testing.T) {
    cfg := Default()
    if cfg.Port != "8080" { t.Fatalf("port: %s", cfg.Port) }
    if cfg.Solver.PopulationSize != 100 || cfg.Solver.TimeLimitMs != 10000 {
        t.Fatalf("solver defaults: %+v", cfg.Solver)
    }
}

func TestLoadFileAndEnv(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "config.yaml")
    data := []byte("port: \"9090\"\nsolver:\n  populationSize: 40\n  mutationRate: 0.2\n")
    if err := os.WriteFile(path, data, 0o600); err != nil { t.Fatalf("write: %v", err) }
    t.Setenv("PORT", "7070")
    cfg, err := Load(path)
    if err != nil { t.Fatalf("Load: %v", err) }
    if cfg.Port != "7070" { t.Fatalf("env should override file, got %s", cfg.Port) }
    if cfg.Solver.PopulationSize != 40 { t.Fatalf("populationSize: %d", cfg.Solver.PopulationSize) }
    if cfg.Solver.MutationRate != 0.2 { t.Fatalf("mutationRate: %v", cfg.Solver.MutationRate) }
    // untouched fields keep defaults
    if cfg.Solver.TournamentSize != 3 { t.Fatalf("tournamentSize: %d", cfg.Solver.TournamentSize) }
}

func TestLoadMissingFileOK(t *testing.T) {
    if _, err := Load("/nonexistent/config.yaml"); err != nil {
        t.Fatalf("missing file must not fail: %v", err)
    }
}

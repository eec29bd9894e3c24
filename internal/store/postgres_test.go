package store

import (
    "context"
    "os"
    "testing"

    "fleetassign/internal/model"
)

// Requires TEST_DATABASE_URL pointing at a database with db/migrations applied.
func TestPostgresRunLifecycle(t *testing.T) {
    dsn := os.Getenv("TEST_DATABASE_URL")
    if dsn == "" {
        t.Skip("TEST_DATABASE_URL not set")
    }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    if err := p.MigrateDir("../../db/migrations"); err != nil { t.Fatalf("migrate: %v", err) }

    ctx := context.Background()
    run, err := p.CreateRun(ctx, "t_pgtest", 2, []byte(`{"orders":[]}`))
    if err != nil { t.Fatalf("CreateRun: %v", err) }
    if err := p.CompleteRun(ctx, "t_pgtest", run.ID, model.SolutionOut{Score: 2.5, Generations: 3}); err != nil {
        t.Fatalf("CompleteRun: %v", err)
    }
    got, err := p.GetRun(ctx, "t_pgtest", run.ID)
    if err != nil { t.Fatalf("GetRun: %v", err) }
    if got.Status != model.RunCompleted || got.Result == nil || got.Result.Score != 2.5 {
        t.Fatalf("run: %+v", got)
    }
    if err := p.CompleteRun(ctx, "t_pgtest", "run_missing", model.SolutionOut{}); err != ErrNotFound {
        t.Fatalf("expected ErrNotFound, got %v", err)
    }
}

package store

import (
    "context"
    "testing"
    "time"

    "fleetassign/internal/model"
)

func TestMemoryRunLifecycle(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    run, err := m.CreateRun(ctx, "t_test", 3, []byte(`{}`))
    if err != nil { t.Fatalf("CreateRun: %v", err) }
    if run.Status != model.RunRunning { t.Fatalf("status: %s", run.Status) }

    sol := model.SolutionOut{Score: 4.2, Generations: 10}
    if err := m.CompleteRun(ctx, "t_test", run.ID, sol); err != nil { t.Fatalf("CompleteRun: %v", err) }
    got, err := m.GetRun(ctx, "t_test", run.ID)
    if err != nil { t.Fatalf("GetRun: %v", err) }
    if got.Status != model.RunCompleted || got.Result == nil || got.Result.Score != 4.2 {
        t.Fatalf("completed run: %+v", got)
    }
    // tenant isolation
    if _, err := m.GetRun(ctx, "t_other", run.ID); err != ErrNotFound {
        t.Fatalf("expected ErrNotFound for foreign tenant, got %v", err)
    }
}

func TestMemoryListRunsFilters(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    a, _ := m.CreateRun(ctx, "t_test", 1, nil)
    b, _ := m.CreateRun(ctx, "t_test", 1, nil)
    _ = m.FailRun(ctx, "t_test", a.ID, "boom")
    runs, err := m.ListRuns(ctx, "t_test", model.RunFailed, 10)
    if err != nil { t.Fatalf("ListRuns: %v", err) }
    if len(runs) != 1 || runs[0].ID != a.ID { t.Fatalf("filter: %+v", runs) }
    runs, _ = m.ListRuns(ctx, "t_test", "", 10)
    if len(runs) != 2 || runs[0].ID != b.ID { t.Fatalf("newest first: %+v", runs) }
}

func TestMemorySubscriptionsAndWebhooks(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    sub, err := m.CreateSubscription(ctx, model.SubscriptionRequest{
        TenantID: "t_test", URL: "http://example.com/hook",
        Events: []string{"solve.completed"}, Secret: "s3cr3t",
    })
    if err != nil { t.Fatalf("CreateSubscription: %v", err) }

    subs, _ := m.GetSubscriptionsForEvent(ctx, "t_test", "solve.completed")
    if len(subs) != 1 { t.Fatalf("event match: %d", len(subs)) }
    subs, _ = m.GetSubscriptionsForEvent(ctx, "t_test", "solve.failed")
    if len(subs) != 0 { t.Fatalf("event mismatch should not match") }

    id, err := m.EnqueueWebhook(ctx, "t_test", sub.ID, "solve.completed", sub.URL, sub.Secret, []byte(`{"x":1}`))
    if err != nil { t.Fatalf("EnqueueWebhook: %v", err) }
    due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
    if len(due) != 1 || due[0].ID != id { t.Fatalf("due: %+v", due) }

    next := time.Now().Add(time.Minute)
    if err := m.MarkWebhookDelivery(ctx, id, false, &next, "timeout", 0, 12); err != nil { t.Fatalf("Mark: %v", err) }
    due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
    if len(due) != 0 { t.Fatalf("backed-off delivery still due") }

    if err := m.FailWebhookDelivery(ctx, id, "gone", 410, 5); err != nil { t.Fatalf("Fail: %v", err) }
    items, _ := m.ListWebhookDeliveries(ctx, "t_test", "failed", 10)
    if len(items) != 1 { t.Fatalf("failed list: %+v", items) }

    if err := m.DeleteSubscription(ctx, "t_test", sub.ID); err != nil { t.Fatalf("Delete: %v", err) }
    if err := m.DeleteSubscription(ctx, "t_test", sub.ID); err != ErrNotFound { t.Fatalf("double delete: %v", err) }
}

func TestMemorySolverConfig(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    if cfg, _ := m.GetSolverConfig(ctx, "t_test"); cfg != nil { t.Fatalf("expected nil config") }
    if err := m.SaveSolverConfig(ctx, "t_test", map[string]any{"populationSize": 50}); err != nil {
        t.Fatalf("Save: %v", err)
    }
    cfg, _ := m.GetSolverConfig(ctx, "t_test")
    if cfg["populationSize"] != 50 { t.Fatalf("config: %+v", cfg) }
}

package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"

    "fleetassign/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu         sync.Mutex
    runs       map[string]model.Run       // id -> run
    runsByTen  map[string][]string        // tenant -> run ids, submission order
    solverCfg  map[string]map[string]any  // tenant -> config overrides
    subs       map[string][]model.Subscription
    deliveries map[string]*memDelivery
    order      []string // delivery ids in enqueue order
}

// memDelivery augments WebhookDelivery with scheduling/outcome state.
type memDelivery struct {
    WebhookDelivery
    Status        string // pending, delivered, failed
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
}

func NewMemory() *Memory {
    return &Memory{
        runs:       map[string]model.Run{},
        runsByTen:  map[string][]string{},
        solverCfg:  map[string]map[string]any{},
        subs:       map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
    }
}

func (m *Memory) CreateRun(_ context.Context, tenantID string, orderCount int, _ []byte) (model.Run, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    run := model.Run{
        ID:          "run_" + uuid.NewString(),
        TenantID:    tenantID,
        Status:      model.RunRunning,
        SubmittedAt: time.Now().UTC().Format(time.RFC3339),
        OrderCount:  orderCount,
    }
    m.runs[run.ID] = run
    m.runsByTen[tenantID] = append(m.runsByTen[tenantID], run.ID)
    return run, nil
}

func (m *Memory) GetRun(_ context.Context, tenantID, id string) (model.Run, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    run, ok := m.runs[id]
    if !ok || run.TenantID != tenantID {
        return model.Run{}, ErrNotFound
    }
    return run, nil
}

func (m *Memory) ListRuns(_ context.Context, tenantID, status string, limit int) ([]model.Run, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if limit <= 0 {
        limit = 100
    }
    ids := m.runsByTen[tenantID]
    out := make([]model.Run, 0, len(ids))
    // newest first
    for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
        run := m.runs[ids[i]]
        if status != "" && run.Status != status {
            continue
        }
        out = append(out, run)
    }
    return out, nil
}

func (m *Memory) CompleteRun(_ context.Context, tenantID, id string, sol model.SolutionOut) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    run, ok := m.runs[id]
    if !ok || run.TenantID != tenantID {
        return ErrNotFound
    }
    run.Status = model.RunCompleted
    run.CompletedAt = time.Now().UTC().Format(time.RFC3339)
    run.Result = &sol
    m.runs[id] = run
    return nil
}

func (m *Memory) FailRun(_ context.Context, tenantID, id, reason string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    run, ok := m.runs[id]
    if !ok || run.TenantID != tenantID {
        return ErrNotFound
    }
    run.Status = model.RunFailed
    run.CompletedAt = time.Now().UTC().Format(time.RFC3339)
    run.Error = reason
    m.runs[id] = run
    return nil
}

func (m *Memory) RunStats(_ context.Context, tenantID string) (map[string]any, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    counts := map[string]int{}
    var scoreSum float64
    var completed int
    for _, id := range m.runsByTen[tenantID] {
        run := m.runs[id]
        counts[run.Status]++
        if run.Status == model.RunCompleted && run.Result != nil {
            completed++
            scoreSum += run.Result.Score
        }
    }
    stats := map[string]any{"counts": counts}
    if completed > 0 {
        stats["avgScore"] = scoreSum / float64(completed)
    }
    return stats, nil
}

func (m *Memory) GetSolverConfig(_ context.Context, tenantID string) (map[string]any, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    cfg := m.solverCfg[tenantID]
    if cfg == nil {
        return nil, nil
    }
    out := make(map[string]any, len(cfg))
    for k, v := range cfg {
        out[k] = v
    }
    return out, nil
}

func (m *Memory) SaveSolverConfig(_ context.Context, tenantID string, cfg map[string]any) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    cp := make(map[string]any, len(cfg))
    for k, v := range cfg {
        cp[k] = v
    }
    m.solverCfg[tenantID] = cp
    return nil
}

func (m *Memory) CreateSubscription(_ context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    sub := model.Subscription{
        ID:       "sub_" + uuid.NewString(),
        TenantID: req.TenantID,
        URL:      req.URL,
        Events:   append([]string(nil), req.Events...),
        Secret:   req.Secret,
    }
    m.subs[req.TenantID] = append(m.subs[req.TenantID], sub)
    return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(_ context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events {
            if e == eventType || e == "*" {
                out = append(out, s)
                break
            }
        }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(_ context.Context, tenantID string, limit int) ([]model.Subscription, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if limit <= 0 {
        limit = 100
    }
    subs := m.subs[tenantID]
    if len(subs) > limit {
        subs = subs[:limit]
    }
    out := make([]model.Subscription, len(subs))
    copy(out, subs)
    for i := range out {
        out[i].Secret = "" // do not leak secrets on list
    }
    return out, nil
}

func (m *Memory) DeleteSubscription(_ context.Context, tenantID, id string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    subs := m.subs[tenantID]
    for i, s := range subs {
        if s.ID == id {
            m.subs[tenantID] = append(subs[:i], subs[i+1:]...)
            return nil
        }
    }
    return ErrNotFound
}

func (m *Memory) EnqueueWebhook(_ context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    id := "whd_" + uuid.NewString()
    m.deliveries[id] = &memDelivery{
        WebhookDelivery: WebhookDelivery{
            ID: id, TenantID: tenantID, SubscriptionID: subscriptionID,
            EventType: eventType, URL: url, Secret: secret,
            Payload: append([]byte(nil), payload...),
        },
        Status: "pending",
    }
    m.order = append(m.order, id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(_ context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    now := time.Now()
    var out []WebhookDelivery
    for _, id := range m.order {
        d := m.deliveries[id]
        if d == nil || d.Status != "pending" || d.NextAttemptAt.After(now) {
            continue
        }
        out = append(out, d.WebhookDelivery)
        if len(out) >= limit {
            break
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(_ context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok {
        return ErrNotFound
    }
    d.Attempts++
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
    } else if nextAttemptAt != nil {
        d.NextAttemptAt = *nextAttemptAt
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(_ context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok {
        return ErrNotFound
    }
    d.Attempts++
    d.Status = "failed"
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    return nil
}

func (m *Memory) ListWebhookDeliveries(_ context.Context, tenantID, status string, limit int) ([]map[string]any, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if limit <= 0 {
        limit = 100
    }
    var out []map[string]any
    for _, id := range m.order {
        d := m.deliveries[id]
        if d == nil || d.TenantID != tenantID {
            continue
        }
        if status != "" && d.Status != status {
            continue
        }
        out = append(out, map[string]any{
            "id": d.ID, "eventType": d.EventType, "url": d.URL,
            "status": d.Status, "attempts": d.Attempts,
            "lastError": d.LastError, "responseCode": d.ResponseCode,
        })
        if len(out) >= limit {
            break
        }
    }
    return out, nil
}

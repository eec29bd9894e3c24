package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "fleetassign/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// Ping reports database connectivity; used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error {
    return p.db.PingContext(ctx)
}

// MigrateDir applies *.sql files in lexical order. Dev helper, not a real
// migration tool: files are assumed idempotent (CREATE TABLE IF NOT EXISTS).
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return err
    }
    var files []string
    for _, e := range entries {
        if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
            files = append(files, filepath.Join(dir, e.Name()))
        }
    }
    sort.Strings(files)
    for _, f := range files {
        data, err := os.ReadFile(f)
        if err != nil {
            return err
        }
        if _, err := p.db.Exec(string(data)); err != nil {
            return fmt.Errorf("migrate %s: %w", f, err)
        }
    }
    return nil
}

func (p *Postgres) CreateRun(ctx context.Context, tenantID string, orderCount int, request []byte) (model.Run, error) {
    run := model.Run{
        ID:          "run_" + uuid.NewString(),
        TenantID:    tenantID,
        Status:      model.RunRunning,
        SubmittedAt: time.Now().UTC().Format(time.RFC3339),
        OrderCount:  orderCount,
    }
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO solve_runs (id, tenant_id, status, submitted_at, order_count, request)
         VALUES ($1,$2,$3,now(),$4,$5)`,
        run.ID, tenantID, run.Status, orderCount, request)
    if err != nil {
        return model.Run{}, err
    }
    return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
    row := p.db.QueryRowContext(ctx,
        `SELECT id, tenant_id, status, to_char(submitted_at at time zone 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
                coalesce(to_char(completed_at at time zone 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), ''),
                coalesce(error, ''), order_count, result
         FROM solve_runs WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    var run model.Run
    var result []byte
    if err := row.Scan(&run.ID, &run.TenantID, &run.Status, &run.SubmittedAt, &run.CompletedAt, &run.Error, &run.OrderCount, &result); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.Run{}, ErrNotFound
        }
        return model.Run{}, err
    }
    if len(result) > 0 {
        var sol model.SolutionOut
        if err := json.Unmarshal(result, &sol); err == nil {
            run.Result = &sol
        }
    }
    return run, nil
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID, status string, limit int) ([]model.Run, error) {
    if limit <= 0 {
        limit = 100
    }
    rows, err := p.db.QueryContext(ctx,
        `SELECT id, tenant_id, status, to_char(submitted_at at time zone 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
                coalesce(error, ''), order_count
         FROM solve_runs
         WHERE tenant_id=$1 AND ($2='' OR status=$2)
         ORDER BY submitted_at DESC LIMIT $3`, tenantID, status, limit)
    if err != nil {
        return nil, err
    }
    defer func() { _ = rows.Close() }()
    var out []model.Run
    for rows.Next() {
        var run model.Run
        if err := rows.Scan(&run.ID, &run.TenantID, &run.Status, &run.SubmittedAt, &run.Error, &run.OrderCount); err != nil {
            return nil, err
        }
        out = append(out, run)
    }
    return out, rows.Err()
}

func (p *Postgres) CompleteRun(ctx context.Context, tenantID, id string, sol model.SolutionOut) error {
    body, err := json.Marshal(sol)
    if err != nil {
        return err
    }
    res, err := p.db.ExecContext(ctx,
        `UPDATE solve_runs SET status=$3, completed_at=now(), result=$4
         WHERE tenant_id=$1 AND id=$2`, tenantID, id, model.RunCompleted, body)
    if err != nil {
        return err
    }
    return requireRow(res)
}

func (p *Postgres) FailRun(ctx context.Context, tenantID, id, reason string) error {
    res, err := p.db.ExecContext(ctx,
        `UPDATE solve_runs SET status=$3, completed_at=now(), error=$4
         WHERE tenant_id=$1 AND id=$2`, tenantID, id, model.RunFailed, reason)
    if err != nil {
        return err
    }
    return requireRow(res)
}

func (p *Postgres) RunStats(ctx context.Context, tenantID string) (map[string]any, error) {
    rows, err := p.db.QueryContext(ctx,
        `SELECT status, count(*), avg((result->>'score')::float)
         FROM solve_runs WHERE tenant_id=$1 GROUP BY status`, tenantID)
    if err != nil {
        return nil, err
    }
    defer func() { _ = rows.Close() }()
    counts := map[string]int{}
    stats := map[string]any{"counts": counts}
    for rows.Next() {
        var status string
        var n int
        var avg sql.NullFloat64
        if err := rows.Scan(&status, &n, &avg); err != nil {
            return nil, err
        }
        counts[status] = n
        if status == model.RunCompleted && avg.Valid {
            stats["avgScore"] = avg.Float64
        }
    }
    return stats, rows.Err()
}

func (p *Postgres) GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    var body []byte
    err := p.db.QueryRowContext(ctx,
        `SELECT config FROM solver_configs WHERE tenant_id=$1`, tenantID).Scan(&body)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    var cfg map[string]any
    if err := json.Unmarshal(body, &cfg); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (p *Postgres) SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    body, err := json.Marshal(cfg)
    if err != nil {
        return err
    }
    _, err = p.db.ExecContext(ctx,
        `INSERT INTO solver_configs (tenant_id, config, updated_at) VALUES ($1,$2,now())
         ON CONFLICT (tenant_id) DO UPDATE SET config=excluded.config, updated_at=now()`,
        tenantID, body)
    return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    sub := model.Subscription{
        ID:       "sub_" + uuid.NewString(),
        TenantID: req.TenantID,
        URL:      req.URL,
        Events:   append([]string(nil), req.Events...),
        Secret:   req.Secret,
    }
    events, err := json.Marshal(sub.Events)
    if err != nil {
        return model.Subscription{}, err
    }
    _, err = p.db.ExecContext(ctx,
        `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
        sub.ID, sub.TenantID, sub.URL, events, sub.Secret)
    if err != nil {
        return model.Subscription{}, err
    }
    return sub, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx,
        `SELECT id, tenant_id, url, events, secret FROM subscriptions
         WHERE tenant_id=$1 AND (events @> to_jsonb(ARRAY[$2::text]) OR events @> '["*"]'::jsonb)`,
        tenantID, eventType)
    if err != nil {
        return nil, err
    }
    defer func() { _ = rows.Close() }()
    return scanSubscriptions(rows)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID string, limit int) ([]model.Subscription, error) {
    if limit <= 0 {
        limit = 100
    }
    rows, err := p.db.QueryContext(ctx,
        `SELECT id, tenant_id, url, events, '' FROM subscriptions WHERE tenant_id=$1 LIMIT $2`,
        tenantID, limit)
    if err != nil {
        return nil, err
    }
    defer func() { _ = rows.Close() }()
    return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
    var out []model.Subscription
    for rows.Next() {
        var sub model.Subscription
        var events []byte
        if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.URL, &events, &sub.Secret); err != nil {
            return nil, err
        }
        _ = json.Unmarshal(events, &sub.Events)
        out = append(out, sub)
    }
    return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx,
        `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil {
        return err
    }
    return requireRow(res)
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := "whd_" + uuid.NewString()
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`,
        id, tenantID, subscriptionID, eventType, url, secret, payload)
    if err != nil {
        return "", err
    }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx,
        `SELECT id, tenant_id, subscription_id, event_type, url, secret, payload, attempts
         FROM webhook_deliveries
         WHERE status='pending' AND next_attempt_at <= now()
         ORDER BY next_attempt_at LIMIT $1`, limit)
    if err != nil {
        return nil, err
    }
    defer func() { _ = rows.Close() }()
    var out []WebhookDelivery
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Attempts); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    status := "pending"
    if success {
        status = "delivered"
    }
    var next any
    if nextAttemptAt != nil {
        next = *nextAttemptAt
    }
    _, err := p.db.ExecContext(ctx,
        `UPDATE webhook_deliveries
         SET status=$2, attempts=attempts+1, next_attempt_at=coalesce($3, next_attempt_at),
             last_error=$4, response_code=$5, latency_ms=$6
         WHERE id=$1`, id, status, next, lastError, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx,
        `UPDATE webhook_deliveries
         SET status='failed', attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4
         WHERE id=$1`, id, lastError, responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status string, limit int) ([]map[string]any, error) {
    if limit <= 0 {
        limit = 100
    }
    rows, err := p.db.QueryContext(ctx,
        `SELECT id, event_type, url, status, attempts, coalesce(last_error,''), coalesce(response_code,0)
         FROM webhook_deliveries
         WHERE tenant_id=$1 AND ($2='' OR status=$2)
         ORDER BY next_attempt_at DESC LIMIT $3`, tenantID, status, limit)
    if err != nil {
        return nil, err
    }
    defer func() { _ = rows.Close() }()
    var out []map[string]any
    for rows.Next() {
        var id, eventType, url, st, lastErr string
        var attempts, code int
        if err := rows.Scan(&id, &eventType, &url, &st, &attempts, &lastErr, &code); err != nil {
            return nil, err
        }
        out = append(out, map[string]any{
            "id": id, "eventType": eventType, "url": url,
            "status": st, "attempts": attempts,
            "lastError": lastErr, "responseCode": code,
        })
    }
    return out, rows.Err()
}

func requireRow(res sql.Result) error {
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}

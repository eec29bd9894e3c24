package api

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "golang.org/x/time/rate"

    "fleetassign/internal/config"
    "fleetassign/internal/model"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    s, err := NewServer(config.Default())
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

func solveBody() []byte {
    return []byte(`{
        "tenantId": "t_test",
        "orders": [{"id":"o1","startTime":"2024-09-05T08:00:00Z","endTime":"2024-09-05T09:00:00Z","weight":1}],
        "drivers": [{"id":"d1"}],
        "vehicles": [{"id":"v1","maxWeight":5}],
        "config": {"populationSize":10,"timeLimitMs":200,"maxGenerations":30,"randomSeed":1,"workers":1}
    }`)
}

func postSolve(t *testing.T, s *Server, body []byte) *httptest.ResponseRecorder {
    t.Helper()
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "dispatcher")
    s.SolveHandler(rr, req)
    return rr
}

// waitForRun polls until the run leaves the running state.
func waitForRun(t *testing.T, s *Server, id string) model.Run {
    t.Helper()
    deadline := time.Now().Add(3 * time.Second)
    for time.Now().Before(deadline) {
        rr := httptest.NewRecorder()
        req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+id, nil)
        req.Header.Set("X-Tenant-Id", "t_test")
        s.RunByIDHandler(rr, req)
        if rr.Code != 200 { t.Fatalf("get run: %d", rr.Code) }
        var run model.Run
        if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil { t.Fatalf("decode run: %v", err) }
        if run.Status != model.RunRunning {
            return run
        }
        time.Sleep(20 * time.Millisecond)
    }
    t.Fatalf("run %s did not finish in time", id)
    return model.Run{}
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestSolveAsyncLifecycle(t *testing.T) {
    s := newTestServer(t)
    rr := postSolve(t, s, solveBody())
    if rr.Code != http.StatusAccepted { t.Fatalf("solve: got %d body %s", rr.Code, rr.Body.String()) }
    var ack struct {
        RunID  string `json:"runId"`
        Status string `json:"status"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &ack); err != nil { t.Fatalf("decode ack: %v", err) }
    if ack.RunID == "" || ack.Status != model.RunRunning { t.Fatalf("ack: %+v", ack) }

    run := waitForRun(t, s, ack.RunID)
    if run.Status != model.RunCompleted { t.Fatalf("run status: %s (%s)", run.Status, run.Error) }
    if run.Result == nil { t.Fatal("completed run missing result") }
    if len(run.Result.Assignments) != 1 || run.Result.Score != 1 {
        t.Fatalf("result: %+v", run.Result)
    }
    if len(run.Result.Unassigned) != 0 { t.Fatalf("unassigned: %v", run.Result.Unassigned) }
}

func TestSolveValidation(t *testing.T) {
    s := newTestServer(t)
    cases := []string{
        `{"orders":[],"drivers":[{"id":"d1"}],"vehicles":[{"id":"v1"}]}`,
        `{"orders":[{"id":"o1","startTime":"bad","endTime":"2024-09-05T09:00:00Z","weight":1}],"drivers":[{"id":"d1"}],"vehicles":[{"id":"v1"}]}`,
        `{"orders":[{"id":"o1","startTime":"2024-09-05T09:00:00Z","endTime":"2024-09-05T08:00:00Z","weight":1}],"drivers":[{"id":"d1"}],"vehicles":[{"id":"v1"}]}`,
        `{"orders":[{"id":"o1","startTime":"2024-09-05T08:00:00Z","endTime":"2024-09-05T09:00:00Z","weight":1}],"drivers":[{"id":"d1"}],"vehicles":[{"id":"v1"}],"config":{"mutationRate":1.5}}`,
        `not json`,
    }
    for i, body := range cases {
        rr := postSolve(t, s, []byte(body))
        if rr.Code != http.StatusBadRequest {
            t.Fatalf("case %d: got %d, want 400 (body %s)", i, rr.Code, rr.Body.String())
        }
    }
}

func TestSolveForbiddenRole(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(solveBody()))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "viewer")
    s.SolveHandler(rr, req)
    if rr.Code != 403 { t.Fatalf("got %d, want 403", rr.Code) }
}

func TestSolveRateLimited(t *testing.T) {
    s := newTestServer(t)
    s.Limiter = rate.NewLimiter(0, 0)
    rr := postSolve(t, s, solveBody())
    if rr.Code != http.StatusTooManyRequests { t.Fatalf("got %d, want 429", rr.Code) }
}

func TestRunsIndexAndNotFound(t *testing.T) {
    s := newTestServer(t)
    rr := postSolve(t, s, solveBody())
    if rr.Code != http.StatusAccepted { t.Fatalf("solve: %d", rr.Code) }
    var ack struct{ RunID string `json:"runId"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &ack)
    waitForRun(t, s, ack.RunID)

    rr = httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=5", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.RunsIndexHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("runs index: %d", rr.Code) }
    var idx struct{ Items []model.Run `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &idx); err != nil { t.Fatalf("decode index: %v", err) }
    if len(idx.Items) == 0 { t.Fatal("expected at least one run") }

    // other tenants must not see the run
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/runs/"+ack.RunID, nil)
    req.Header.Set("X-Tenant-Id", "t_other")
    s.RunByIDHandler(rr, req)
    if rr.Code != 404 { t.Fatalf("cross-tenant get: %d, want 404", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/runs/run_missing", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.RunByIDHandler(rr, req)
    if rr.Code != 404 { t.Fatalf("missing run: %d, want 404", rr.Code) }
}

func TestSolverConfigOverrides(t *testing.T) {
    s := newTestServer(t)
    // set a tenant override
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPut, "/v1/admin/solver/config", bytes.NewReader([]byte(`{"config":{"populationSize":33}}`)))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.AdminSolverConfigHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("put config: %d", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/solver/config", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.SolverConfigHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("get config: %d", rr.Code) }
    var out struct{ Defaults config.SolverDefaults `json:"defaults"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil { t.Fatalf("decode config: %v", err) }
    if out.Defaults.PopulationSize != 33 { t.Fatalf("override not applied: %+v", out.Defaults) }
    if out.Defaults.TournamentSize != config.Default().Solver.TournamentSize {
        t.Fatalf("untouched default changed: %+v", out.Defaults)
    }

    // non-admin cannot write
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPut, "/v1/admin/solver/config", bytes.NewReader([]byte(`{"config":{}}`)))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "dispatcher")
    s.AdminSolverConfigHandler(rr, req)
    if rr.Code != 403 { t.Fatalf("non-admin put: %d, want 403", rr.Code) }
}

func TestSolveCompletionEnqueuesWebhook(t *testing.T) {
    s := newTestServer(t)
    subBody := []byte(`{"tenantId":"t_test","url":"https://example.invalid/webhook","events":["solve.completed"],"secret":"shh"}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(subBody))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("create sub: %d", rr.Code) }

    rr = postSolve(t, s, solveBody())
    if rr.Code != http.StatusAccepted { t.Fatalf("solve: %d", rr.Code) }
    var ack struct{ RunID string `json:"runId"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &ack)
    waitForRun(t, s, ack.RunID)

    // delivery enqueue happens right after completion; allow a beat
    deadline := time.Now().Add(time.Second)
    for time.Now().Before(deadline) {
        rr = httptest.NewRecorder()
        req = httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries?limit=5", nil)
        req.Header.Set("X-Tenant-Id", "t_test")
        req.Header.Set("X-Role", "admin")
        s.WebhookDeliveriesHandler(rr, req)
        if rr.Code != 200 { t.Fatalf("deliveries: %d", rr.Code) }
        var dres struct{ Items []map[string]any `json:"items"` }
        if err := json.Unmarshal(rr.Body.Bytes(), &dres); err != nil { t.Fatalf("decode deliveries: %v", err) }
        if len(dres.Items) > 0 {
            if et, ok := dres.Items[0]["eventType"].(string); !ok || et != "solve.completed" {
                t.Fatalf("eventType: %v", dres.Items[0]["eventType"])
            }
            return
        }
        time.Sleep(20 * time.Millisecond)
    }
    t.Fatal("expected at least one delivery")
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests.
type sseRecorder struct {
    hdr  http.Header
    buf  bytes.Buffer
    code int
}

func (r *sseRecorder) Header() http.Header { if r.hdr == nil { r.hdr = http.Header{} }; return r.hdr }
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) { return r.buf.Write(p) }
func (r *sseRecorder) Flush() {}

func TestRunEventsSSE(t *testing.T) {
    s := newTestServer(t)
    rr := postSolve(t, s, solveBody())
    if rr.Code != http.StatusAccepted { t.Fatalf("solve: %d", rr.Code) }
    var ack struct{ RunID string `json:"runId"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &ack)
    rid := ack.RunID
    waitForRun(t, s, rid)

    sseReq := httptest.NewRequest(http.MethodGet, "/v1/runs/"+rid+"/events/stream", nil)
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    sseReq = sseReq.WithContext(ctx)
    sseReq.Header.Set("X-Tenant-Id", "t_test")

    rec := &sseRecorder{}
    done := make(chan struct{})
    go func() {
        s.RunByIDHandler(rec, sseReq)
        close(done)
    }()

    // Give handler time to subscribe and send heartbeat
    time.Sleep(50 * time.Millisecond)
    s.Broker.Publish(rid, SSEEvent{Type: "solve.progress", Data: map[string]any{"runId": rid, "generation": 3}})

    deadline := time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) {
        if bytes.Contains(rec.buf.Bytes(), []byte("event: solve.progress")) {
            break
        }
        time.Sleep(10 * time.Millisecond)
    }
    if !bytes.Contains(rec.buf.Bytes(), []byte("event: solve.progress")) {
        t.Fatalf("SSE did not contain expected event. Body: %s", rec.buf.String())
    }
    cancel()
    select {
    case <-done:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("handler did not exit after cancel")
    }
}

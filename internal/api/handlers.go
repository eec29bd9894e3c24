package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "fleetassign/internal/buildinfo"
    "fleetassign/internal/metrics"
    "fleetassign/internal/model"
    "fleetassign/internal/opt"
    "fleetassign/internal/store"
)

// SolveHandler handles POST /v1/solve. The run executes asynchronously; the
// response carries the run id for polling or streaming.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    if s.Limiter != nil && !s.Limiter.Allow() {
        writeProblem(w, http.StatusTooManyRequests, "Rate limited", "solve submission rate exceeded", r.URL.Path)
        return
    }
    pr := s.getPrincipal(r)
    if !pr.CanSolve() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
    var req model.SolveRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.TenantID == "" { req.TenantID = pr.Tenant }
    if err := validateSolveRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
        return
    }
    prob, err := toProblem(&req)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
        return
    }
    over, _ := s.Store.GetSolverConfig(r.Context(), req.TenantID)
    cfg := solverConfig(s.Cfg.Solver, over, req.Config)
    if err := cfg.Validate(); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid solver config", err.Error(), r.URL.Path)
        return
    }
    raw, _ := json.Marshal(req)
    run, err := s.Store.CreateRun(r.Context(), req.TenantID, len(req.Orders), raw)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
        return
    }
    go s.runSolve(run, prob, cfg)
    writeJSON(w, http.StatusAccepted, map[string]any{"runId": run.ID, "status": run.Status})
}

// runSolve executes one run to completion in the background and publishes
// progress and terminal events.
func (s *Server) runSolve(run model.Run, prob *opt.Problem, cfg opt.Config) {
    cfg.Progress = func(p opt.Progress) {
        s.Broker.Publish(run.ID, SSEEvent{Type: "solve.progress", Data: map[string]any{
            "runId":      run.ID,
            "generation": p.Generation,
            "bestScore":  p.BestScore,
            "elapsedMs":  p.Elapsed.Milliseconds(),
        }})
    }
    res, err := opt.Solve(prob, cfg)
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err != nil {
        metrics.SolveRuns.WithLabelValues("failed").Inc()
        _ = s.Store.FailRun(ctx, run.TenantID, run.ID, err.Error())
        data := map[string]any{"runId": run.ID, "error": err.Error()}
        s.Broker.Publish(run.ID, SSEEvent{Type: "solve.failed", Data: data})
        s.Pub.Emit(ctx, run.TenantID, "solve.failed", data)
        return
    }
    sol := toSolutionOut(res)
    metrics.SolveRuns.WithLabelValues("completed").Inc()
    metrics.SolveDuration.Observe(res.Elapsed.Seconds())
    metrics.SolveGenerations.Observe(float64(res.Generations))
    metrics.SolveUnassigned.Observe(float64(len(res.Unassigned)))
    if err := s.Store.CompleteRun(ctx, run.TenantID, run.ID, sol); err != nil {
        return
    }
    data := map[string]any{
        "runId":       run.ID,
        "score":       sol.Score,
        "assigned":    len(sol.Assignments),
        "unassigned":  len(sol.Unassigned),
        "generations": sol.Generations,
        "elapsedMs":   sol.ElapsedMs,
    }
    s.Broker.Publish(run.ID, SSEEvent{Type: "solve.completed", Data: data})
    s.Pub.Emit(ctx, run.TenantID, "solve.completed", data)
}

func toSolutionOut(res opt.Result) model.SolutionOut {
    assigns := make([]model.AssignmentOut, 0, len(res.Assignments))
    for _, a := range res.Assignments {
        assigns = append(assigns, model.AssignmentOut{OrderID: a.OrderID, DriverID: a.DriverID, VehicleID: a.VehicleID})
    }
    unassigned := res.Unassigned
    if unassigned == nil { unassigned = []string{} }
    return model.SolutionOut{
        Assignments: assigns,
        Unassigned:  unassigned,
        Score:       res.Score,
        Generations: res.Generations,
        ElapsedMs:   res.Elapsed.Milliseconds(),
        Seed:        res.Stats.Seed,
    }
}

// RunsIndexHandler handles GET /v1/runs
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/runs" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    status := r.URL.Query().Get("status")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, err := s.Store.ListRuns(r.Context(), tenant, status, limit)
    if err != nil { writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items})
}

// RunByIDHandler handles GET /v1/runs/{id} and GET /v1/runs/{id}/events/stream
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    if len(parts) > 1 && parts[1] == "events" && len(parts) > 2 && parts[2] == "stream" {
        s.runEventsSSE(w, r, id)
        return
    }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    run, err := s.Store.GetRun(r.Context(), tenant, id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Run not found", "", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, run)
}

// runEventsSSE streams solve progress for one run over Server-Sent Events.
func (s *Server) runEventsSSE(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    if _, err := s.Store.GetRun(r.Context(), tenant, id); err != nil {
        writeProblem(w, 404, "Run not found", "", r.URL.Path)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// SolverConfigHandler returns the effective solver defaults for the tenant
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    pr := s.getPrincipal(r)
    over, _ := s.Store.GetSolverConfig(r.Context(), pr.Tenant)
    defaults := applyOverrides(s.Cfg.Solver, over)
    writeJSON(w, 200, map[string]any{"defaults": defaults})
}

// AdminSolverConfigHandler gets/sets per-tenant solver overrides
func (s *Server) AdminSolverConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/solver/config" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    pr := s.getPrincipal(r)
    if !pr.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodGet:
        cfg, _ := s.Store.GetSolverConfig(r.Context(), pr.Tenant)
        if cfg == nil { cfg = map[string]any{} }
        writeJSON(w, 200, map[string]any{"config": cfg})
    case http.MethodPut:
        var body struct{ Config map[string]any `json:"config"` }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
        if err := s.Store.SaveSolverConfig(r.Context(), pr.Tenant, body.Config); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]bool{"ok": true})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    pr := s.getPrincipal(r)
    if !pr.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodPost:
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = pr.Tenant }
        if req.URL == "" || len(req.Events) == 0 {
            writeProblem(w, 400, "Invalid subscription", "url and events required", r.URL.Path)
            return
        }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, err := s.Store.ListSubscriptions(r.Context(), pr.Tenant, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    pr := s.getPrincipal(r)
    if !pr.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), pr.Tenant, id); err != nil {
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
        writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
        return
    }
    w.WriteHeader(204)
}

// RunStatsHandler handles GET /v1/admin/runs/stats
func (s *Server) RunStatsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/runs/stats" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    pr := s.getPrincipal(r)
    if !pr.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    stats, err := s.Store.RunStats(r.Context(), pr.Tenant)
    if err != nil { writeProblem(w, 500, "Stats failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, stats)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    pr := s.getPrincipal(r)
    if !pr.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, err := s.Store.ListWebhookDeliveries(r.Context(), pr.Tenant, status, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

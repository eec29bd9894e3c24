package api

import (
    "context"
    "net/http"
    "strings"

    "golang.org/x/time/rate"

    "fleetassign/internal/auth"
    "fleetassign/internal/config"
    "fleetassign/internal/store"
    "fleetassign/internal/webhooks"
)

type Server struct {
    Cfg    config.Config
    Store  store.Store
    Pub    *webhooks.Publisher
    Auth   *auth.Verifier
    Broker EventBroker
    // Limiter throttles solve submissions across all tenants.
    Limiter *rate.Limiter
}

// NewServer creates a Server. With no DatabaseURL it uses the in-memory store.
func NewServer(cfg config.Config) (*Server, error) {
    var s store.Store
    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, err
        }
        if err := sp.MigrateDir("db/migrations"); err != nil {
            return nil, err
        }
        s = sp
    }
    var broker EventBroker
    if cfg.RedisURL != "" {
        if rb, err := NewRedisBroker(cfg.RedisURL); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        broker = NewBroker()
    }
    return &Server{
        Cfg:     cfg,
        Store:   s,
        Pub:     webhooks.NewPublisher(s),
        Auth:    auth.New(cfg.AuthMode, cfg.AuthHMACSecret),
        Broker:  broker,
        Limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
    }, nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
    tenant := s.getPrincipal(r).Tenant
    ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
    return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts)
}

package store

import (
    "context"
    "errors"
    "time"

    "fleetassign/internal/model"
)

// WebhookDelivery is one pending outbound delivery.
type WebhookDelivery struct {
    ID             string
    TenantID       string
    SubscriptionID string
    EventType      string
    URL            string
    Secret         string
    Payload        []byte
    Attempts       int
}

// Store is the persistence interface used by the API server.
type Store interface {
    // Solve runs
    CreateRun(ctx context.Context, tenantID string, orderCount int, request []byte) (model.Run, error)
    GetRun(ctx context.Context, tenantID, id string) (model.Run, error)
    ListRuns(ctx context.Context, tenantID, status string, limit int) ([]model.Run, error)
    CompleteRun(ctx context.Context, tenantID, id string, sol model.SolutionOut) error
    FailRun(ctx context.Context, tenantID, id, reason string) error
    RunStats(ctx context.Context, tenantID string) (map[string]any, error)

    // Solver config overrides per tenant
    GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error)
    SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID string, limit int) ([]model.Subscription, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status string, limit int) ([]map[string]any, error)
}

var ErrNotFound = errors.New("not found")

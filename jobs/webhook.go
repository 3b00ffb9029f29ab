package jobs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookEndpoint is a tenant's registered delivery target.
type WebhookEndpoint struct {
	URL    string
	Secret string
}

// EndpointSource resolves the webhook endpoint for a tenant.
type EndpointSource interface {
	WebhookEndpoint(ctx context.Context, tenantID uuid.UUID) (WebhookEndpoint, bool, error)
}

// PGEndpointSource reads webhook settings from the tenants table.
type PGEndpointSource struct {
	pool *pgxpool.Pool
}

// NewPGEndpointSource constructs PGEndpointSource.
func NewPGEndpointSource(pool *pgxpool.Pool) *PGEndpointSource {
	return &PGEndpointSource{pool: pool}
}

// WebhookEndpoint returns the tenant's endpoint; found is false when the
// tenant has not configured one.
func (s *PGEndpointSource) WebhookEndpoint(ctx context.Context, tenantID uuid.UUID) (WebhookEndpoint, bool, error) {
	var endpoint WebhookEndpoint
	err := s.pool.QueryRow(ctx, `SELECT webhook_url, webhook_secret FROM tenants WHERE id=$1 AND webhook_url <> ''`, tenantID).
		Scan(&endpoint.URL, &endpoint.Secret)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WebhookEndpoint{}, false, nil
		}
		return WebhookEndpoint{}, false, err
	}
	return endpoint, true, nil
}

// WebhookDispatcher posts signed event payloads to tenant endpoints.
type WebhookDispatcher struct {
	endpoints EndpointSource
	client    *http.Client
	logger    *slog.Logger
}

// NewWebhookDispatcher constructs WebhookDispatcher.
func NewWebhookDispatcher(endpoints EndpointSource, logger *slog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// HandleDispatch processes TaskTypeWebhookDispatch tasks. Tenants without
// a configured endpoint are skipped silently.
func (d *WebhookDispatcher) HandleDispatch(ctx context.Context, t *asynq.Task) error {
	var payload WebhookPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	endpoint, found, err := d.endpoints.WebhookEndpoint(ctx, payload.TenantID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return asynq.SkipRetry
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return asynq.SkipRetry
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Barrelbook-Event", payload.EventType)
	req.Header.Set("X-Barrelbook-Signature", Sign(endpoint.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.logger.Warn("webhook rejected",
			slog.String("tenant", payload.TenantID.String()),
			slog.String("event", payload.EventType),
			slog.Int("status", resp.StatusCode))
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of body under the endpoint secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Package upstream provides the platform fetch adapters. Each adapter calls
// one external advertising API for a date range and returns campaigns already
// mapped into the canonical stats+funnel vocabulary; nothing downstream parses
// platform-specific payloads.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
)

// FetchAdapter is the contract the resolver depends on.
type FetchAdapter interface {
	Platform() metrics.Platform
	FetchRange(ctx context.Context, clientID string, start, end time.Time) (*metrics.RangePayload, error)
}

// newHTTPClient returns the shared client shape for all adapters. The hard
// timeout doubles as the resolution's upstream deadline.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: config.UpstreamTimeout}
}

// classifyStatus maps an upstream HTTP status onto the engine's error
// taxonomy. Auth failures are terminal; rate limits and server errors are
// transient.
func classifyStatus(platform metrics.Platform, status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s returned status %d: %w", platform, status, metrics.ErrUpstreamAuthInvalid)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%s returned status %d: %w", platform, status, metrics.ErrUpstreamUnavailable)
	default:
		return fmt.Errorf("%s returned unexpected status %d: %w", platform, status, metrics.ErrUpstreamUnavailable)
	}
}

// doWithRetry executes the request, retrying transient failures with a short
// linear backoff. Auth failures and context cancellation are never retried.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error), platform metrics.Platform, logger *logging.ChanneledLogger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= config.UpstreamMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("upstream fetch canceled: %w", metrics.ErrUpstreamUnavailable)
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = fmt.Errorf("%s request failed: %v: %w", platform, err, metrics.ErrUpstreamUnavailable)
			if logger != nil {
				logger.Upstream().Warn("Upstream request failed", "platform", platform, "attempt", attempt, "error", err.Error())
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = classifyStatus(platform, resp.StatusCode)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, lastErr
		}
		if logger != nil {
			logger.Upstream().Warn("Upstream returned retryable status", "platform", platform, "attempt", attempt, "status", resp.StatusCode)
		}
	}

	return nil, lastErr
}

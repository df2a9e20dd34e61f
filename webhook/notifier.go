// Package webhook delivers signed terminal-transaction notifications to
// institution endpoints and defines their retry policy.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/types"
)

const userAgent = "FundManagement-Webhook/1.0"

// RetryPolicy shapes the delivery retry schedule.
type RetryPolicy struct {
	BaseDelay   time.Duration
	Multiplier  int
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy is the conventional schedule: 5s, 10s, 20s, ... capped
// at an hour, five attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   5 * time.Second,
		Multiplier:  2,
		MaxDelay:    3600 * time.Second,
		MaxAttempts: 5,
	}
}

// NextDelay returns how long to wait after the given number of failed
// attempts: base·multiplier^(attempts−1), capped at MaxDelay.
func (p RetryPolicy) NextDelay(attempts int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= time.Duration(p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Notifier posts signed webhook payloads. Safe for concurrent use.
type Notifier struct {
	http *http.Client
}

// NewNotifier creates a notifier whose deliveries time out after the given
// duration (30s when zero).
func NewNotifier(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{
		http: &http.Client{Timeout: timeout},
	}
}

// Deliver signs and posts one callback row to its URL with the secret of
// the owning institution. Returns the HTTP status received; a non-nil error
// means the request never completed.
func (n *Notifier) Deliver(ctx context.Context, cb *types.ClientCallback, secret string) (int, error) {
	timestampMs := time.Now().UnixMilli()
	signature := Sign(secret, timestampMs, cb.Payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cb.URL, bytes.NewReader(cb.Payload))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Timestamp", fmt.Sprintf("%d", timestampMs))
	req.Header.Set("X-Transaction-Reference", cb.Reference)

	resp, err := n.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook transport: %w", err)
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if err := resp.Body.Close(); err != nil {
			log.Warnw("failed to close webhook response body", "error", err)
		}
	}()

	log.Debugw("webhook delivery attempt",
		"callback", cb.ID,
		"reference", cb.Reference,
		"url", cb.URL,
		"status", resp.StatusCode)
	return resp.StatusCode, nil
}

// Delivered reports whether an HTTP status counts as a successful delivery.
func Delivered(status int) bool {
	return status >= 200 && status < 300
}

// Package notify delivers job results to an optional webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"videogen/internal/infra"
)

const DefaultTimeout = 10 * time.Second

// Webhook posts one JSON callback per call. Delivery is best effort: a
// failure is logged and dropped.
type Webhook struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  infra.Logger
}

type Options struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
}

func NewWebhook(opts Options) *Webhook {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Webhook{
		url:     strings.TrimSpace(opts.URL),
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Enabled reports whether a target URL is configured.
func (w *Webhook) Enabled() bool { return w.url != "" }

// Notify sends {"jobId": jobID, ...payload}. A payload key named jobId is
// overridden.
func (w *Webhook) Notify(ctx context.Context, jobID string, payload map[string]any) {
	if !w.Enabled() {
		return
	}
	if err := w.send(ctx, jobID, payload); err != nil {
		w.logger.Warn().Err(err).Str("job_id", jobID).Msg("notify: webhook delivery failed")
		return
	}
	w.logger.Debug().Str("job_id", jobID).Msg("notify: webhook delivered")
}

func (w *Webhook) send(ctx context.Context, jobID string, payload map[string]any) error {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["jobId"] = jobID

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DeliveryRequest describes one JSON POST to a webhook-style sink.
type DeliveryRequest struct {
	// Name prefixes error messages, e.g. "slack".
	Name       string
	URL        string
	Body       []byte
	RetryLimit int
	Client     *http.Client
}

// Deliver posts the body, retrying with linear backoff until it succeeds, the retry
// budget is spent or ctx ends.
func Deliver(ctx context.Context, req DeliveryRequest) error {
	hc := req.Client
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}

	attempts := max(req.RetryLimit, 0) + 1
	var lastErr error
	for attempt := range attempts {
		err := post(ctx, hc, req)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func post(ctx context.Context, hc *http.Client, req DeliveryRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", req.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		closeErr := resp.Body.Close()
		if readErr != nil {
			return errors.Join(fmt.Errorf("read %s error response: %w", req.Name, readErr), closeErr)
		}
		return fmt.Errorf("%s %s: %s", req.Name, resp.Status, strings.TrimSpace(string(respBody)))
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return errors.Join(fmt.Errorf("drain %s response body: %w", req.Name, err), resp.Body.Close())
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}
	return nil
}

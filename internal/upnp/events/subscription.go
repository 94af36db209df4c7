package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrSubscriptionExpired indicates the device no longer knows the SID
// (HTTP 412); the caller must re-subscribe from scratch.
var ErrSubscriptionExpired = errors.New("subscription expired")

// SubscriptionClient issues UPnP GENA subscription requests.
type SubscriptionClient struct {
	httpClient *http.Client
}

// NewSubscriptionClient creates a subscription client.
func NewSubscriptionClient(timeout time.Duration) *SubscriptionClient {
	return &SubscriptionClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Subscribe sends a SUBSCRIBE request to a service's event URL. Returns the
// subscription ID (SID) and the timeout granted by the device.
func (c *SubscriptionClient) Subscribe(ctx context.Context, eventSubURL, callbackURL string, timeoutSec int) (sid string, actualTimeout int, err error) {
	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", eventSubURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("CALLBACK", fmt.Sprintf("<%s>", callbackURL))
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("TIMEOUT", fmt.Sprintf("Second-%d", timeoutSec))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("subscribe request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("subscribe failed: %s", resp.Status)
	}

	sid = strings.TrimSpace(resp.Header.Get("SID"))
	if sid == "" {
		return "", 0, fmt.Errorf("no SID in response")
	}

	actualTimeout = parseTimeout(resp.Header.Get("TIMEOUT"), timeoutSec)
	return sid, actualTimeout, nil
}

// Renew sends a subscription renewal request.
func (c *SubscriptionClient) Renew(ctx context.Context, eventSubURL, sid string, timeoutSec int) (actualTimeout int, err error) {
	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", eventSubURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	// Renewals carry only SID and TIMEOUT, no CALLBACK or NT.
	req.Header.Set("SID", sid)
	req.Header.Set("TIMEOUT", fmt.Sprintf("Second-%d", timeoutSec))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("renew request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusPreconditionFailed {
		return 0, ErrSubscriptionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("renew failed: %s", resp.Status)
	}

	return parseTimeout(resp.Header.Get("TIMEOUT"), timeoutSec), nil
}

// Unsubscribe sends an UNSUBSCRIBE request. Network errors and 412 are
// swallowed; at shutdown the device may already be gone.
func (c *SubscriptionClient) Unsubscribe(ctx context.Context, eventSubURL, sid string) error {
	req, err := http.NewRequestWithContext(ctx, "UNSUBSCRIBE", eventSubURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("SID", sid)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusPreconditionFailed {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unsubscribe failed: %s", resp.Status)
	}
	return nil
}

// parseTimeout extracts the seconds from a "Second-NNN" header value.
func parseTimeout(header string, fallback int) int {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, "infinite") {
		return fallback
	}
	if idx := strings.IndexByte(header, '-'); idx >= 0 {
		if parsed, err := strconv.Atoi(header[idx+1:]); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// Package homegraph calls the assistant platform's device graph API so the
// bridge can ask for a re-SYNC after provisioning changes and push state
// snapshots without waiting for a QUERY.
package homegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hiroag/irhub-core/internal/infrastructure/config"
	"github.com/hiroag/irhub-core/internal/infrastructure/logging"
)

// requestTimeout bounds a single HomeGraph API call.
const requestTimeout = 10 * time.Second

// Client posts request-sync and report-state calls to the HomeGraph API.
//
// When the feature is disabled in config every method is a no-op returning
// ErrDisabled, so callers can wire the client unconditionally.
type Client struct {
	cfg    config.HomeGraphConfig
	http   *http.Client
	logger *logging.Logger
}

// New creates a HomeGraph client from configuration.
func New(cfg config.HomeGraphConfig, logger *logging.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// Enabled reports whether HomeGraph calls are configured.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// RequestSync asks the platform to re-issue a SYNC intent for the user,
// picking up device additions and removals.
func (c *Client) RequestSync(ctx context.Context, agentUserID string) error {
	body := map[string]any{"agentUserId": agentUserID}
	return c.post(ctx, "/v1/devices:requestSync", body)
}

// ReportState pushes a state snapshot for one or more devices so the
// platform does not need to QUERY.
//
// The devices payload uses the QUERY response shape: alias ID to state map.
func (c *Client) ReportState(ctx context.Context, agentUserID string, devices map[string]map[string]any) error {
	body := map[string]any{
		"agentUserId": agentUserID,
		"requestId":   uuid.NewString(),
		"payload": map[string]any{
			"devices": map[string]any{"states": devices},
		},
	}
	return c.post(ctx, "/v1/devices:reportStateAndNotification", body)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding homegraph request: %w", err)
	}

	url := c.cfg.BaseURL + path + "?key=" + c.cfg.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building homegraph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s returned %d", ErrRequestFailed, path, resp.StatusCode)
	}

	c.logger.Debug("homegraph call succeeded", "path", path, "status", resp.StatusCode)
	return nil
}

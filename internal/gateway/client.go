// Package gateway implements the HTTP client to the device-automation
// backend. Legacy response-envelope normalization lives entirely here so
// the rest of the panel only sees canonical typed results.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/Pimboto/automation-bot-ui/internal/common"
	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// Client talks JSON over HTTP to the backend with bearer-token auth.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// NewClient creates a backend gateway client from configuration.
func NewClient(config *common.BackendConfig, logger arbor.ILogger) interfaces.BackendGateway {
	return &Client{
		baseURL: config.URL,
		token:   config.Token,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout(),
		},
		// Pace outgoing calls so a dense polling tick cannot stampede the
		// backend. 20 req/s with a small burst is far above normal load.
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		logger:  logger,
	}
}

// ListDevices returns the currently connected devices.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	body, err := c.get(ctx, "/api/devices", nil)
	if err != nil {
		return nil, err
	}
	var devices []models.Device
	if err := decodeList(body, &devices, "devices"); err != nil {
		return nil, fmt.Errorf("failed to decode device list: %w", err)
	}
	return devices, nil
}

// ListSessions returns all automation sessions known to the backend.
func (c *Client) ListSessions(ctx context.Context) ([]models.AutomationSession, error) {
	body, err := c.get(ctx, "/api/sessions", nil)
	if err != nil {
		return nil, err
	}
	var sessions []models.AutomationSession
	if err := decodeList(body, &sessions, "sessions"); err != nil {
		return nil, fmt.Errorf("failed to decode session list: %w", err)
	}
	return sessions, nil
}

// GetSession returns the current state of one session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.AutomationSession, error) {
	body, err := c.get(ctx, "/api/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}
	var session models.AutomationSession
	if err := decodeObject(body, &session, "session"); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &session, nil
}

// GetSessionLogs returns the session's log tail bounded to limit lines,
// filtered server-side by level unless level is LogLevelAll.
func (c *Client) GetSessionLogs(ctx context.Context, sessionID string, limit int, level models.LogLevel) ([]models.AutomationLog, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if level != "" && level != models.LogLevelAll {
		query.Set("level", string(level))
	}

	body, err := c.get(ctx, "/api/sessions/"+url.PathEscape(sessionID)+"/logs", query)
	if err != nil {
		return nil, err
	}
	var logs []models.AutomationLog
	if err := decodeList(body, &logs, "logs"); err != nil {
		return nil, fmt.Errorf("failed to decode logs for session %s: %w", sessionID, err)
	}
	return logs, nil
}

// StartAutomation launches a flow on a device.
func (c *Client) StartAutomation(ctx context.Context, req models.StartRequest) (*models.AutomationSession, error) {
	body, err := c.post(ctx, "/api/automation/start", req)
	if err != nil {
		return nil, err
	}
	var session models.AutomationSession
	if err := decodeObject(body, &session, "session"); err != nil {
		return nil, fmt.Errorf("failed to decode started session: %w", err)
	}
	return &session, nil
}

// StopAutomation asks the backend to stop a running session.
func (c *Client) StopAutomation(ctx context.Context, sessionID string) error {
	_, err := c.post(ctx, "/api/automation/"+url.PathEscape(sessionID)+"/stop", nil)
	return err
}

// ListFlows returns the backend's flow configurations.
func (c *Client) ListFlows(ctx context.Context) ([]models.FlowConfig, error) {
	body, err := c.get(ctx, "/api/flows", nil)
	if err != nil {
		return nil, err
	}
	var flows []models.FlowConfig
	if err := decodeList(body, &flows, "flows"); err != nil {
		return nil, fmt.Errorf("failed to decode flow list: %w", err)
	}
	return flows, nil
}

// GetMetrics returns the backend's aggregate metric groups.
func (c *Client) GetMetrics(ctx context.Context) (*models.BackendMetrics, error) {
	body, err := c.get(ctx, "/api/metrics", nil)
	if err != nil {
		return nil, err
	}
	var metrics models.BackendMetrics
	if err := decodeObject(body, &metrics, "metrics"); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	return &metrics, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, nil, payload)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("request cancelled while rate limited: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, resp.StatusCode),
			Path:       path,
		}
	}

	return body, nil
}

// BackendError is a non-2xx response from the backend.
type BackendError struct {
	StatusCode int
	Message    string
	Path       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s returned %d: %s", e.Path, e.StatusCode, e.Message)
}

func errorMessage(body []byte, statusCode int) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return http.StatusText(statusCode)
}

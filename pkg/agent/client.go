package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/voluzi/cloudvitals/pkg/metrics"
)

var (
	// httpClient is shared by every Client.
	httpClient = &http.Client{
		Timeout: 30 * time.Second,
	}
)

// Client talks to a running agent.
type Client struct {
	url string
}

// NewClient creates a client for the agent listening on host:port.
func NewClient(host string, port int) *Client {
	return &Client{url: fmt.Sprintf("http://%s:%d", host, port)}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}, target interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(b))
	}

	if target == nil {
		return nil
	}
	return json.Unmarshal(b, target)
}

// Health returns nil when the agent answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// GetMetrics returns the latest host sample.
func (c *Client) GetMetrics(ctx context.Context) (*metrics.Sample, error) {
	var sample metrics.Sample
	if err := c.do(ctx, http.MethodGet, "/metrics", nil, &sample); err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	return &sample, nil
}

// StartStress starts a load generator for class. A zero duration runs it until
// stopped.
func (c *Client) StartStress(ctx context.Context, class string, duration time.Duration) (*StartStressResponse, error) {
	seconds := duration.Seconds()
	req := StartStressRequest{Class: &class, Duration: &seconds}

	var resp StartStressResponse
	if err := c.do(ctx, http.MethodPost, "/stress", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) StopStress(ctx context.Context, class string) error {
	return c.do(ctx, http.MethodDelete, "/stress/"+url.PathEscape(class), nil, nil)
}

// ListStress returns the running jobs and recently finished ones.
func (c *Client) ListStress(ctx context.Context) (*StressStatus, error) {
	var status StressStatus
	if err := c.do(ctx, http.MethodGet, "/stress", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

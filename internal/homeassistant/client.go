package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/prometheus/client_golang/prometheus"
)

// Client calls the Home Assistant REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client for the Home Assistant instance at url,
// authenticating with token. If m is not nil, all requests are instrumented.
func NewClient(url, token string, m metrics.RequestMetrics) *Client {
	var rt http.RoundTripper = authenticator{token: token, next: http.DefaultTransport}
	if m != nil {
		rt = roundtripper.New(
			roundtripper.WithRequestMetrics(m),
			roundtripper.WithRoundTripper(rt),
		)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{Transport: rt},
	}
}

// NewCallMetrics returns RequestMetrics for Home Assistant API calls. Service
// call paths are collapsed so the metric's path label stays low-cardinality.
func NewCallMetrics(namespace, subsystem string, labels prometheus.Labels) metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace:   namespace,
		Subsystem:   subsystem,
		ConstLabels: labels,
		LabelValues: func(request *http.Request, statusCode int) (string, string, string) {
			const servicesPath = "/api/services"
			path := request.URL.Path
			if strings.HasPrefix(path, servicesPath) {
				path = servicesPath
			}
			return request.Method, path, strconv.Itoa(statusCode)
		},
	})
}

type authenticator struct {
	token string
	next  http.RoundTripper
}

func (a authenticator) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+a.token)
	return a.next.RoundTrip(req)
}

// TurnOn turns an entity on. For lights, data can carry service data such as
// brightness_pct or flash.
func (c *Client) TurnOn(ctx context.Context, entityID string, data map[string]any) error {
	domain, _, found := strings.Cut(entityID, ".")
	if !found {
		return fmt.Errorf("invalid entity id %q", entityID)
	}
	payload := map[string]any{"entity_id": entityID}
	for k, v := range data {
		payload[k] = v
	}
	return c.CallService(ctx, domain, "turn_on", payload)
}

// TurnOff turns an entity off.
func (c *Client) TurnOff(ctx context.Context, entityID string) error {
	domain, _, found := strings.Cut(entityID, ".")
	if !found {
		return fmt.Errorf("invalid entity id %q", entityID)
	}
	return c.CallService(ctx, domain, "turn_off", map[string]any{"entity_id": entityID})
}

// ActivateScene activates a scene entity.
func (c *Client) ActivateScene(ctx context.Context, sceneID string) error {
	return c.CallService(ctx, "scene", "turn_on", map[string]any{"entity_id": sceneID})
}

// CallService calls an arbitrary Home Assistant service.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode service data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/services/"+domain+"/"+service, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s.%s: %w", domain, service, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("call %s.%s: %s", domain, service, resp.Status)
	}
	return nil
}

// GetStates returns the current state of all entities.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/states", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get states: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get states: %s", resp.Status)
	}
	var states []State
	if err = json.NewDecoder(resp.Body).Decode(&states); err != nil {
		return nil, fmt.Errorf("decode states: %w", err)
	}
	return states, nil
}

package gardenremote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/logx"
	"github.com/google/uuid"
)

// Client is the HTTP implementation of garden.PlantService.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option is a functional option for the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient creates a plant service client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AllPlants implements garden.PlantService.
func (c *Client) AllPlants(ctx context.Context) ([]garden.Plant, error) {
	var plants []garden.Plant
	if err := c.get(ctx, "/plants", nil, &plants); err != nil {
		return nil, err
	}
	return plants, nil
}

// PlantsByZone implements garden.PlantService.
func (c *Client) PlantsByZone(ctx context.Context, zone garden.Zone) ([]garden.Plant, error) {
	var plants []garden.Plant
	query := url.Values{"zone": {strconv.Itoa(int(zone))}}
	if err := c.get(ctx, "/plants", query, &plants); err != nil {
		return nil, err
	}
	return plants, nil
}

// orderPayload is the wire shape of the custom order endpoint.
type orderPayload struct {
	PlantOrder []string `json:"plantOrder"`
}

// CustomPlantOrder implements garden.PlantService.
func (c *Client) CustomPlantOrder(ctx context.Context) (garden.PlantOrder, error) {
	var payload orderPayload
	if err := c.get(ctx, "/plants/order", nil, &payload); err != nil {
		return nil, err
	}
	return garden.PlantOrder(payload.PlantOrder), nil
}

// get performs a GET against path and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return remoteErrors.NewWithCause(ErrRequest, err).WithDetail("url", target)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return remoteErrors.NewWithCause(ErrRequest, err).
			WithDetail("url", target).
			WithDetail("request_id", requestID)
	}
	defer resp.Body.Close()

	logx.WithFields(logx.Fields{
		"url":        target,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(started).Milliseconds(),
		"request_id": requestID,
	}).Debug("plant service request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remoteErrors.NewWithMessage(ErrStatus,
			fmt.Sprintf("plant service returned %d", resp.StatusCode)).
			WithDetail("url", target).
			WithDetail("request_id", requestID)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return remoteErrors.NewWithCause(ErrDecode, err).WithDetail("url", target)
	}
	return nil
}

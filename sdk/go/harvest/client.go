package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the server (e.g. "http://localhost:8080").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the simulator API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty or not absolute.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("harvest: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("harvest: BaseURL must be an absolute URL: %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}, nil
}

// UploadDataset registers csv under name, replacing any series already
// registered under it. format is "table" or "dnrm"; empty means table.
func (c *Client) UploadDataset(ctx context.Context, name, format string, csv io.Reader) (*Dataset, error) {
	params := url.Values{}
	params.Set("name", name)
	if format != "" {
		params.Set("format", format)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/datasets?"+params.Encode(), csv)
	if err != nil {
		return nil, fmt.Errorf("harvest: create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")

	var resp Dataset
	if err := c.doRequest(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Datasets lists the registered datasets, ordered by name.
func (c *Client) Datasets(ctx context.Context) ([]Dataset, error) {
	var resp []Dataset
	if err := c.get(ctx, "/v1/datasets", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Simulate runs a simulation. An empty DemandMode means constant demand.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (*SimulationResponse, error) {
	var resp SimulationResponse
	if err := c.post(ctx, "/v1/simulations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun retrieves a stored run.
func (c *Client) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var resp Run
	if err := c.get(ctx, "/v1/simulations/"+id.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns returns stored runs, newest first. Nil opts list the first page
// of every dataset.
func (c *Client) ListRuns(ctx context.Context, opts *ListOptions) (*RunList, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Dataset != "" {
			params.Set("dataset", opts.Dataset)
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	path := "/v1/simulations"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("harvest: create request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("harvest: decode list: %w", err)
	}
	return &RunList{Runs: env.Data, HasMore: env.HasMore, Limit: env.Limit, Offset: env.Offset}, nil
}

// Health reports server health. An unhealthy server returns its report along
// with an *Error carrying status 503.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("harvest: create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("harvest: GET /health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("harvest: read response body: %w", err)
	}
	var h Health
	if err := decodeData(body, &h); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return &h, &Error{StatusCode: resp.StatusCode, Code: "SERVICE_UNAVAILABLE", Message: h.Status}
	}
	return &h, nil
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("harvest: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("harvest: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("harvest: create request: %w", err)
	}
	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	return decodeData(body, dest)
}

// do sends req and returns the body of a successful response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("harvest: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("harvest: read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

// decodeData unwraps the server's { "data": ... } envelope into dest.
func decodeData(body []byte, dest any) error {
	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("harvest: decode response envelope: %w", err)
	}
	if envelope.Data == nil {
		return fmt.Errorf("harvest: response has no data")
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("harvest: decode response: %w", err)
	}
	return nil
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}

// Package client talks to the remote flow server and the two flow validators.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/flowjson"
	"github.com/meikuraledutech/apiflow/registry"
)

const (
	// DefaultFlowServer is the flow persistence endpoint.
	DefaultFlowServer = "http://localhost/apiflowserver.php"

	// DefaultValidateFlat is the flat validator endpoint.
	DefaultValidateFlat = "http://localhost/validation/flowvalidation.php"

	// DefaultValidateNested is the nested, OR-aware validator endpoint.
	DefaultValidateNested = "http://localhost/validation/flowvalidationandor.php"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default request rate in requests per second.
	DefaultRateLimit = 5.0

	maxBody = 16 << 20
)

// Mode selects a validator.
type Mode string

const (
	ModeFlat   Mode = "flat"
	ModeNested Mode = "nested"
)

// ParseMode parses a validation mode name. Empty means flat.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFlat:
		return ModeFlat, nil
	case ModeNested:
		return ModeNested, nil
	}
	return "", fmt.Errorf("client: unknown validation mode %q (want flat or nested)", s)
}

// Client is a rate-limited HTTP client for the flow server and validators.
// It implements apiflow.Store.
type Client struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	flowServer     string
	validateFlat   string
	validateNested string
	registry       *registry.Registry
	logger         *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithFlowServer sets the flow persistence endpoint.
func WithFlowServer(u string) ClientOption {
	return func(c *Client) {
		c.flowServer = u
	}
}

// WithValidationURLs sets the flat and nested validator endpoints.
func WithValidationURLs(flat, nested string) ClientOption {
	return func(c *Client) {
		c.validateFlat = flat
		c.validateNested = nested
	}
}

// WithRateLimit sets the request rate. Zero or negative disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRegistry sets the registry used to re-stamp icons.
func WithRegistry(r *registry.Registry) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.registry = r
		}
	}
}

// NewClient creates a flow server client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		limiter:        rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		flowServer:     DefaultFlowServer,
		validateFlat:   DefaultValidateFlat,
		validateNested: DefaultValidateNested,
		registry:       registry.Default(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ apiflow.Store = (*Client)(nil)

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

// looseInt accepts a JSON number or a numeric string.
type looseInt int

func (i *looseInt) UnmarshalJSON(b []byte) error {
	var s looseString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*i = 0
		return nil
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		return err
	}
	*i = looseInt(n)
	return nil
}

type summaryResponse struct {
	ID      looseString `json:"id"`
	Name    string      `json:"name"`
	Status  string      `json:"status"`
	Version looseInt    `json:"version"`
}

type flowResponse struct {
	ID   looseString     `json:"id"`
	Name string          `json:"name"`
	Flow *flowjson.Graph `json:"flow"`
}

type saveResponse struct {
	Success bool        `json:"success"`
	ID      looseString `json:"id"`
	Error   string      `json:"error"`
}

// ListFlows returns the summaries of all flows on the server.
func (c *Client) ListFlows(ctx context.Context) ([]apiflow.Summary, error) {
	body, err := c.do(ctx, http.MethodGet, c.flowServer, nil)
	if err != nil {
		return nil, err
	}
	var rows []summaryResponse
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: flow list: %v", ErrInvalidResponse, err)
	}

	out := make([]apiflow.Summary, len(rows))
	for i, r := range rows {
		out[i] = apiflow.Summary{
			ID:      string(r.ID),
			Name:    r.Name,
			Status:  r.Status,
			Version: int(r.Version),
		}
	}
	return out, nil
}

// GetFlow loads a flow. A response without a flow key means it does not
// exist and yields nil, nil.
func (c *Client) GetFlow(ctx context.Context, id string) (*apiflow.Flow, error) {
	u, err := url.Parse(c.flowServer)
	if err != nil {
		return nil, fmt.Errorf("client: flow server url: %w", err)
	}
	q := u.Query()
	q.Set("id", id)
	u.RawQuery = q.Encode()

	body, err := c.do(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var resp flowResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: flow %s: %v", ErrInvalidResponse, id, err)
	}
	if resp.Flow == nil {
		return nil, nil
	}

	f := flowjson.Deserialize(flowjson.Document{ID: id, Name: resp.Name, Flow: *resp.Flow}, c.registry)
	return f, nil
}

// SaveFlow creates or updates a flow depending on whether it has an id.
// It returns the id the server reports, or the flow's own id when none is sent back.
func (c *Client) SaveFlow(ctx context.Context, f *apiflow.Flow) (string, error) {
	if f.Name == "" {
		return "", apiflow.ErrNameRequired
	}
	body, err := c.do(ctx, http.MethodPost, c.flowServer, flowjson.Serialize(f, c.registry))
	if err != nil {
		return "", err
	}
	var resp saveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: save: %v", ErrInvalidResponse, err)
	}
	if !resp.Success {
		return "", &APIError{StatusCode: http.StatusOK, Code: "save_failed", Message: resp.Error}
	}
	if resp.ID != "" {
		return string(resp.ID), nil
	}
	if f.IsNew() {
		return "", fmt.Errorf("%w: save succeeded without an id", ErrInvalidResponse)
	}
	return f.ID, nil
}

// DeleteFlow always fails: the flow server has no delete operation.
func (c *Client) DeleteFlow(ctx context.Context, id string) error {
	return fmt.Errorf("client: delete flow %s: %w", id, ErrUnsupported)
}

// Validate posts a document to the validator for mode and returns its
// result verbatim.
func (c *Client) Validate(ctx context.Context, mode Mode, doc flowjson.Document) (json.RawMessage, error) {
	endpoint := c.validateFlat
	if mode == ModeNested {
		endpoint = c.validateNested
	}
	body, err := c.do(ctx, http.MethodPost, endpoint, doc)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: validator returned non-JSON body", ErrInvalidResponse)
	}
	return json.RawMessage(body), nil
}

// do performs one rate-limited request and returns the response body.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("client: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("flow server request failed", "method", method, "url", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}
	c.logger.Debug("flow server request", "method", method, "url", endpoint,
		"status", resp.StatusCode, "duration", time.Since(start))

	if err := checkHTTPErrors(resp, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg := http.StatusText(resp.StatusCode)
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Code: "api_error", Message: msg}
	}
	return nil
}

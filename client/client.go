// Package client talks to the flowchart REST API. It keeps no state beyond
// its configuration; the editor's graph store is the only local copy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flowpad/flowpad/config"
	"github.com/flowpad/flowpad/graph"
)

const (
	defaultBaseURL   = "http://localhost:8000/api"
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "flowpad"
)

type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client, e.g. with an
// httptest server's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds each request. It applies to a copy of the HTTP client,
// so a shared client passed to WithHTTPClient is left as it was.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.http.Timeout != c.timeout {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// NewFromConfig builds a client from the api section of the project config.
func NewFromConfig(cfg *config.Config) *Client {
	return New(
		WithBaseURL(cfg.API.BaseURL),
		WithTimeout(time.Duration(cfg.API.TimeoutMs)*time.Millisecond),
	)
}

// BaseURL returns the API root the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List returns the summaries of every flowchart.
func (c *Client) List(ctx context.Context) ([]graph.Summary, error) {
	var out []graph.Summary
	if err := c.do(ctx, http.MethodGet, c.collectionURL(), "", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []graph.Summary{}
	}
	return out, nil
}

// Fetch returns the full flowchart with its nodes and edges.
func (c *Client) Fetch(ctx context.Context, id string) (*graph.Flowchart, error) {
	var out graph.Flowchart
	if err := c.do(ctx, http.MethodGet, c.itemURL(id), id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create stores a new flowchart and returns it with its generated id.
func (c *Client) Create(ctx context.Context, doc graph.Document) (*graph.Flowchart, error) {
	var out graph.Flowchart
	if err := c.do(ctx, http.MethodPost, c.collectionURL(), "", doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Save replaces the title and graph of a flowchart. Saving the same document
// twice leaves the backend in the same state as saving it once.
func (c *Client) Save(ctx context.Context, id string, doc graph.Document) (*graph.Flowchart, error) {
	var out graph.Flowchart
	if err := c.do(ctx, http.MethodPut, c.itemURL(id), id, doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type renameRequest struct {
	Title string `json:"title"`
}

// Rename changes only the title; the stored graph is left as is.
func (c *Client) Rename(ctx context.Context, id, title string) (*graph.Flowchart, error) {
	var out graph.Flowchart
	if err := c.do(ctx, http.MethodPut, c.itemURL(id), id, renameRequest{Title: title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.itemURL(id), id, nil, nil)
}

// Validate asks the backend to check the stored graph. A graph with dangling
// edges comes back as a *ValidationError.
func (c *Client) Validate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodGet, c.itemURL(id)+"validate_graph/", id, nil, nil)
}

func (c *Client) OutgoingEdges(ctx context.Context, id, nodeID string) ([]graph.Edge, error) {
	var out []graph.Edge
	u := c.itemURL(id) + "outgoing_edges/?node_id=" + url.QueryEscape(nodeID)
	if err := c.do(ctx, http.MethodGet, u, id, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ConnectedNodes(ctx context.Context, id, nodeID string) ([]graph.Node, error) {
	var out []graph.Node
	u := c.itemURL(id) + "connected_nodes/?node_id=" + url.QueryEscape(nodeID)
	if err := c.do(ctx, http.MethodGet, u, id, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks that the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.List(ctx)
	return err
}

func (c *Client) collectionURL() string {
	return c.baseURL + "/flowcharts/"
}

func (c *Client) itemURL(id string) string {
	return c.baseURL + "/flowcharts/" + url.PathEscape(id) + "/"
}

type errorResponse struct {
	Error        string       `json:"error"`
	Message      string       `json:"message"`
	Errors       []string     `json:"errors"`
	InvalidEdges []graph.Edge `json:"invalid_edges"`
}

// do sends one request and maps the outcome onto the error taxonomy. id is
// only used to label NotFoundError.
func (c *Client) do(ctx context.Context, method, u, id string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: method, URL: u, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: method, URL: u, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, id, respBody)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(status int, id string, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	switch status {
	case http.StatusNotFound:
		return &NotFoundError{ID: id}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		msg := er.Message
		if msg == "" {
			msg = er.Error
		}
		return &ValidationError{
			Message:      msg,
			Problems:     er.Errors,
			InvalidEdges: er.InvalidEdges,
		}
	default:
		msg := strings.TrimSpace(string(body))
		if er.Error != "" {
			msg = er.Error
		} else if er.Message != "" {
			msg = er.Message
		}
		return &APIError{StatusCode: status, Body: msg}
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds every registry call
	DefaultTimeout = 30 * time.Second

	// PingInterval is the fixed delay between readiness probes
	PingInterval = 300 * time.Millisecond

	apiPrefix = "/v2"
)

// Config holds the registry address and client settings
type Config struct {
	Host      string
	Port      int
	Timeout   time.Duration
	UserAgent string
}

// Client is a typed wrapper around the registry HTTP contract. It is safe
// for concurrent use.
type Client struct {
	endpoint  string
	http      *http.Client
	timeout   time.Duration
	userAgent string
	logger    zerolog.Logger
}

// New creates a client for the registry at cfg.Host:cfg.Port. Port 443
// selects https; ports 80 and 443 are left out of the URL.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ice-client/dev"
	}

	scheme := "http"
	if cfg.Port == 443 {
		scheme = "https"
	}
	host := cfg.Host
	if cfg.Port != 0 && cfg.Port != 80 && cfg.Port != 443 {
		host = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	return &Client{
		endpoint:  scheme + "://" + host,
		http:      &http.Client{},
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		logger:    log.WithComponent("client"),
	}
}

// NewFromEndpoint creates a client from a URL such as http://10.0.0.1:5000
func NewFromEndpoint(endpoint string, cfg Config) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid registry endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid registry endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid registry endpoint %q: missing host", endpoint)
	}

	c := New(cfg)
	c.endpoint = u.Scheme + "://" + u.Host
	return c, nil
}

// Endpoint returns the registry base URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do performs one request against the versioned API. A nil out discards
// the response body.
func (c *Client) do(method, path string, query url.Values, in, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.doContext(ctx, method, path, query, in, out)
}

func (c *Client) doContext(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.endpoint + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &APIError{Reason: "failed to encode request", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &APIError{Reason: "failed to build request", Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Reason: fmt.Sprintf("%s %s failed", method, path), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Reason: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newResponseError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = strings.TrimSpace(string(data))
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Reason: "malformed response body", Body: data, Err: err}
	}
	return nil
}

// Ping reports whether the registry answers on its root document
func (c *Client) Ping() bool {
	return c.ping(context.Background())
}

func (c *Client) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.doContext(ctx, http.MethodGet, "/", nil, nil, nil) == nil
}

// PingWithRetries pings up to attempts times with a fixed delay and no
// jitter, returning as soon as one ping succeeds
func (c *Client) PingWithRetries(attempts int) bool {
	if attempts < 1 {
		attempts = 1
	}
	ctx := context.Background()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if !c.ping(ctx) {
			return struct{}{}, fmt.Errorf("registry at %s not answering", c.endpoint)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(PingInterval)),
		backoff.WithMaxTries(uint(attempts)),
	)
	if err != nil {
		c.logger.Debug().Err(err).Int("attempts", attempts).Msg("Registry not ready")
		return false
	}
	return true
}

// GetMyIP returns the caller address as observed by the registry
func (c *Client) GetMyIP() (string, error) {
	var ip string
	if err := c.do(http.MethodGet, "/my_ip", nil, nil, &ip); err != nil {
		return "", err
	}
	return ip, nil
}

type createdBody struct {
	ID      string    `json:"_id"`
	Created time.Time `json:"_created"`
	Updated time.Time `json:"_updated"`
	ETag    string    `json:"_etag"`
}

type listBody[T any] struct {
	Items []T `json:"_items"`
}

// submit POSTs the transport form of doc and stores the assigned metadata
// back into it
func (c *Client) submit(resource string, doc types.Document) (string, error) {
	body, err := types.ToDocument(doc)
	if err != nil {
		return "", &APIError{Reason: "failed to encode document", Err: err}
	}

	var created createdBody
	if err := c.do(http.MethodPost, "/"+resource, nil, body, &created); err != nil {
		return "", err
	}

	meta := doc.Meta()
	meta.ID = created.ID
	meta.Created = created.Created
	meta.Updated = created.Updated
	meta.ETag = created.ETag
	return created.ID, nil
}

func whereQuery(where map[string]any) (url.Values, error) {
	if len(where) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(where)
	if err != nil {
		return nil, &APIError{Reason: "failed to encode filter", Err: err}
	}
	return url.Values{"where": {string(data)}}, nil
}

// SubmitSession stores a new session and returns its id
func (c *Client) SubmitSession(session *types.Session) (string, error) {
	return c.submit(types.ResourceSessions, session)
}

// GetSession fetches a session by id
func (c *Client) GetSession(id string) (*types.Session, error) {
	var session types.Session
	if err := c.do(http.MethodGet, "/sessions/"+url.PathEscape(id), nil, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions lists sessions matching the optional equality filter
func (c *Client) ListSessions(where map[string]any) ([]*types.Session, error) {
	query, err := whereQuery(where)
	if err != nil {
		return nil, err
	}
	var list listBody[*types.Session]
	if err := c.do(http.MethodGet, "/sessions", query, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// DeleteSession deletes every instance of the session and then the
// session. The instance cascade is repeated here even though the registry
// performs it too. It is best effort: an instance that cannot be deleted is
// logged and skipped, and the session delete is always issued. A session
// that no longer exists is not an error.
func (c *Client) DeleteSession(id string) error {
	instances, err := c.ListInstances(id)
	if err != nil {
		return err
	}
	for _, instance := range instances {
		err := c.DeleteInstance(instance.ID)
		if err == nil || IsNotFound(err) {
			continue
		}
		c.logger.Warn().Err(err).
			Str("session_id", id).
			Str("instance_id", instance.ID).
			Msg("Failed to delete instance during session cascade")
	}

	err = c.do(http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil, nil)
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// SubmitInstance stores a new instance and returns its id
func (c *Client) SubmitInstance(instance *types.Instance) (string, error) {
	return c.submit(types.ResourceInstances, instance)
}

// GetInstance fetches an instance by id
func (c *Client) GetInstance(id string) (*types.Instance, error) {
	var instance types.Instance
	if err := c.do(http.MethodGet, "/instances/"+url.PathEscape(id), nil, nil, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

// ListInstances lists the instances of a session, or every instance when
// sessionID is empty
func (c *Client) ListInstances(sessionID string) ([]*types.Instance, error) {
	var where map[string]any
	if sessionID != "" {
		where = map[string]any{"session_id": sessionID}
	}
	query, err := whereQuery(where)
	if err != nil {
		return nil, err
	}
	var list listBody[*types.Instance]
	if err := c.do(http.MethodGet, "/instances", query, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// DeleteInstance deletes an instance. Deleting a missing instance returns
// an APIError for which IsNotFound is true.
func (c *Client) DeleteInstance(id string) error {
	return c.do(http.MethodDelete, "/instances/"+url.PathEscape(id), nil, nil, nil)
}

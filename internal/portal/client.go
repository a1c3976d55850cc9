package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nhle/managemyhealth/internal/model"
)

// defaultTimeout bounds every individual portal call.
const defaultTimeout = 10 * time.Second

// Client is a thin HTTP client for the ManageMyHealth patient portal API.
// It owns one Session and attaches its bearer token to every data call.
// Calls are never retried; failures are returned as *Error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	session    *Session
}

// NewClient creates a portal client for the given account. Zero values in
// cfg fall back to the production host, a 10 second timeout and no rate
// limit.
func NewClient(cfg model.PortalConfig, creds Credentials) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = model.DefaultBaseURL
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	httpClient := &http.Client{Timeout: timeout}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    limiter,
		session:    newSession(baseURL, creds, httpClient, limiter),
	}
}

// Session returns the authentication session owned by this client.
func (c *Client) Session() *Session {
	return c.session
}

// Login authenticates with the portal, replacing any held token.
func (c *Client) Login(ctx context.Context) error {
	return c.session.Login(ctx)
}

// post sends an authenticated JSON POST and unmarshals the JSON response
// into result. An empty response body leaves result untouched.
func (c *Client) post(
	ctx context.Context,
	op string,
	path string,
	body interface{},
	result interface{},
) error {
	tok, err := c.session.ensureToken(ctx)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return genericError(op, fmt.Errorf("marshaling request body: %w", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return commError(op, 0, err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, bodyReader,
	)
	if err != nil {
		return genericError(op, fmt.Errorf("creating request: %w", err))
	}

	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return commError(op, 0, fmt.Errorf("executing request POST %s: %w", path, err))
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return commError(op, resp.StatusCode, fmt.Errorf("reading response body: %w", readErr))
	}

	if resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden {
		c.session.invalidate(tok)
		return authError(op, resp.StatusCode, fmt.Errorf(
			"access denied on POST %s", path,
		))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return commError(op, resp.StatusCode, fmt.Errorf(
			"unexpected status on POST %s: %s", path, snippet(respBody),
		))
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return genericError(op, fmt.Errorf(
			"unmarshaling response from POST %s: %w", path, err,
		))
	}

	return nil
}

// snippet trims a response body for inclusion in an error message.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

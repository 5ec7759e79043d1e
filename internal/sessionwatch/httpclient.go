package sessionwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HTTPClient implements Client against the session endpoints of a running
// API. It holds the bearer token and swaps it for the fresh one an extension
// returns.
type HTTPClient struct {
	base string
	http *http.Client

	mu    sync.Mutex
	token string
}

// NewHTTPClient builds a client for the API at base (e.g. "http://localhost:8080")
// authenticated with token.
func NewHTTPClient(base, token string) *HTTPClient {
	return &HTTPClient{
		base:  base,
		http:  &http.Client{Timeout: 10 * time.Second},
		token: token,
	}
}

// Token returns the current session token.
func (c *HTTPClient) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *HTTPClient) do(ctx context.Context, method, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// Validate calls the session validation endpoint and reports remaining
// lifetime. Any non-200 answer means the session is gone.
func (c *HTTPClient) Validate(ctx context.Context) (time.Duration, error) {
	var body struct {
		Valid            bool `json:"valid"`
		RemainingSeconds int  `json:"remaining_seconds"`
	}
	code, err := c.do(ctx, http.MethodGet, "/api/session/validate", &body)
	if err != nil {
		return 0, err
	}
	if code != http.StatusOK || !body.Valid {
		return 0, fmt.Errorf("sessionwatch: validation answered %d", code)
	}
	return time.Duration(body.RemainingSeconds) * time.Second, nil
}

// Extend renews the session and adopts the reissued token.
func (c *HTTPClient) Extend(ctx context.Context) (time.Duration, error) {
	var body struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	code, err := c.do(ctx, http.MethodPost, "/api/session/extend", &body)
	if err != nil {
		return 0, err
	}
	if code != http.StatusOK || body.Token == "" {
		return 0, fmt.Errorf("sessionwatch: extension answered %d", code)
	}
	c.mu.Lock()
	c.token = body.Token
	c.mu.Unlock()
	return time.Until(body.ExpiresAt), nil
}

// SignOut terminates the session.
func (c *HTTPClient) SignOut(ctx context.Context) error {
	code, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("sessionwatch: logout answered %d", code)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)

package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/steam-news/internal/config"
	"github.com/steam-news/pkg/logger"
	"github.com/steam-news/pkg/ratelimit"
)

// ErrStatus is returned when the API answers with a non-2xx status
var ErrStatus = errors.New("unexpected status")

// Client talks to the Steam Web API
type Client struct {
	baseURL    string
	apiKey     string
	newsCount  int
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
	now        func() time.Time
}

// NewClient creates a new Steam Web API client
func NewClient(cfg config.SteamConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	count := cfg.NewsCount
	if count <= 0 {
		count = 25
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:    cfg.APIKey,
		newsCount: count,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: ratelimit.NewDefaultLimiter(cfg.RequestsPerSecond, cfg.Burst),
		log:     log.WithComponent("steam"),
		now:     time.Now,
	}
}

// Name returns the source name
func (c *Client) Name() string {
	return "steam"
}

// get performs a rate limited GET and decodes the JSON body into dst
func (c *Client) get(ctx context.Context, limiter, path string, query url.Values, dst interface{}) (http.Header, error) {
	if err := c.limiter.Wait(ctx, limiter); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w %s: %s", ErrStatus, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return resp.Header, nil
}

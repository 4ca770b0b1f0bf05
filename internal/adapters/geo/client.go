package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikey/decoy-alerts/internal/core"
	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a provider response is read
const maxResponseBytes = 64 << 10

// lookupResponse is the subset of the provider payload we use
type lookupResponse struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Client resolves IP addresses through an ipinfo-style HTTP API
// (GET {baseURL}/{ip}/json)
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new reverse-geo client. timeout bounds each lookup.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ResolveGeo returns "City, Region, Country" for ip, or the placeholder
// location when the lookup cannot be completed
func (c *Client) ResolveGeo(ctx context.Context, ip string) core.GeoResult {
	location, err := c.lookup(ctx, ip)
	if err != nil {
		c.logger.Debug("Geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return core.GeoDegraded(err)
	}
	return core.GeoResolved(location)
}

func (c *Client) lookup(ctx context.Context, ip string) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("invalid IP address %q", ip)
	}

	endpoint := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(parsed.String()))
	if c.token != "" {
		endpoint += "?token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("geo provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload lookupResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	location := formatLocation(payload)
	if location == "" {
		return "", errors.New("geo provider returned no location fields")
	}
	return location, nil
}

func formatLocation(r lookupResponse) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.City, r.Region, r.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

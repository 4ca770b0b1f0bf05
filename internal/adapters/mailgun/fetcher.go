package mailgun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikey/decoy-alerts/internal/core"
	"go.uber.org/zap"
)

const (
	// maxErrorBytes bounds how much of an error response is kept for logging
	maxErrorBytes = 4 << 10

	// maxRedirects bounds the redirects followed while fetching a message
	maxRedirects = 3

	// DefaultSmallMessageThreshold is the size below which a retrieved message is suspicious
	DefaultSmallMessageThreshold = 100
)

// DefaultAllowedHosts are the Mailgun API and message storage hosts.
// A leading "*." matches any subdomain.
var DefaultAllowedHosts = []string{
	"api.mailgun.net",
	"api.eu.mailgun.net",
	"*.api.mailgun.net",
	"*.api.eu.mailgun.net",
	"storage.mailgun.net",
}

// ErrHostNotAllowed is returned for message URLs outside the allowed hosts
var ErrHostNotAllowed = errors.New("message URL host not allowed")

// Fetcher retrieves stored messages from Mailgun using the message URL
// delivered with each inbound webhook. The URL comes from an untrusted
// form field, so credentials are only sent to allowed https hosts.
type Fetcher struct {
	apiKey         string
	httpClient     *http.Client
	allowedHosts   []string
	smallThreshold int
	maxBytes       int64
	logger         *zap.Logger
}

// NewFetcher creates a new raw message fetcher. An empty allowedHosts
// falls back to DefaultAllowedHosts.
func NewFetcher(apiKey string, timeout time.Duration, smallThreshold int, maxBytes int64, allowedHosts []string, logger *zap.Logger) *Fetcher {
	if smallThreshold <= 0 {
		smallThreshold = DefaultSmallMessageThreshold
	}
	if len(allowedHosts) == 0 {
		allowedHosts = DefaultAllowedHosts
	}

	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}

	f := &Fetcher{
		apiKey:         apiKey,
		allowedHosts:   hosts,
		smallThreshold: smallThreshold,
		maxBytes:       maxBytes,
		logger:         logger,
	}
	f.httpClient = &http.Client{Timeout: timeout, CheckRedirect: f.checkRedirect}
	return f
}

// SetTransport replaces the HTTP transport, e.g. to trust a test certificate
func (f *Fetcher) SetTransport(rt http.RoundTripper) {
	f.httpClient.Transport = rt
}

// FetchRawMessage downloads the original MIME message. Any failure yields
// an absent result with the cause attached; the caller decides how loudly
// to report it.
func (f *Fetcher) FetchRawMessage(ctx context.Context, referenceURL string) core.RawMessageResult {
	if strings.TrimSpace(referenceURL) == "" {
		return core.RawMessageAbsent(nil)
	}

	data, err := f.fetch(ctx, referenceURL)
	if err != nil {
		f.logger.Debug("Raw message fetch failed",
			zap.String("call", core.CallRawMessage),
			zap.String("message_url", redactURL(referenceURL)),
			zap.Error(err))
		return core.RawMessageAbsent(err)
	}

	f.logger.Info("Fetched raw message", zap.Int("bytes", len(data)))
	if len(data) < f.smallThreshold {
		// Keep the bytes; a tiny message is still evidence
		f.logger.Warn("Raw message suspiciously small, content may be truncated",
			zap.Int("bytes", len(data)),
			zap.Int("threshold", f.smallThreshold))
	}

	return core.RawMessageFetched(data)
}

func (f *Fetcher) fetch(ctx context.Context, referenceURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(referenceURL))
	if err != nil {
		return nil, fmt.Errorf("invalid message URL: %w", err)
	}
	if err := f.checkURL(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth("api", f.apiKey)
	req.Header.Set("Accept", "message/rfc2822")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, fmt.Errorf("mailgun returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, errors.New("raw message exceeds size limit")
	}
	return data, nil
}

// checkURL admits only https URLs without userinfo on an allowed host
func (f *Fetcher) checkURL(u *url.URL) error {
	if u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not https", ErrHostNotAllowed, u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("%w: URL carries credentials", ErrHostNotAllowed)
	}
	host := strings.ToLower(u.Hostname())
	if !f.hostAllowed(host) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	return nil
}

func (f *Fetcher) hostAllowed(host string) bool {
	if host == "" {
		return false
	}
	for _, allowed := range f.allowedHosts {
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}

// checkRedirect applies the same host rules to every redirect target
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("too many redirects")
	}
	return f.checkURL(req.URL)
}

// redactURL drops credentials and query strings before logging
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// Package resolver looks up a video's title on the upstream host by scraping
// its watch page.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/flixtube/catalog/internal/metrics"
	"github.com/flixtube/catalog/internal/videoid"
)

// ErrNotFound covers every way a lookup can fail: bad id, unreachable host,
// open circuit, or a page without a title.
var ErrNotFound = errors.New("video could not be found")

// ErrUnavailable is wrapped alongside ErrNotFound when the host could not
// answer at all (5xx, transport error, open circuit). Retrying may succeed.
var ErrUnavailable = errors.New("video host unavailable")

// Answers from a reachable host; these do not count against the breaker.
var (
	errNoTitle      = errors.New("could not extract video title")
	errClientStatus = errors.New("upstream rejected request")
)

const maxPageBytes = 4 << 20

// Metadata is what the upstream host tells us about a video.
type Metadata struct {
	Title        string
	ThumbnailURL string
}

// Config configures a Client.
type Config struct {
	BaseURL    string        // e.g. https://www.youtube.com
	Timeout    time.Duration // connect + read bound for one page fetch
	RatePerSec float64       // <= 0 disables limiting
}

// Client fetches watch pages through a rate limiter and a circuit breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[Metadata]
	logger     *zap.Logger
}

// NewClient creates a resolver client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
	metrics.ResolverBreakerState.Set(0)
	c.cb = gobreaker.NewCircuitBreaker[Metadata](gobreaker.Settings{
		Name:        "video-resolver",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNoTitle) || errors.Is(err, errClientStatus)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("resolver circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.ResolverBreakerState.Set(float64(to))
		},
	})
	return c
}

// Resolve returns the title and thumbnail for a bare external id.
func (c *Client) Resolve(ctx context.Context, externalID string) (Metadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w: %w", ErrNotFound, ErrUnavailable, err)
	}
	md, err := c.cb.Execute(func() (Metadata, error) {
		return c.fetch(ctx, externalID)
	})
	switch {
	case err == nil:
		metrics.ResolverRequests.WithLabelValues("success").Inc()
		return md, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ResolverRequests.WithLabelValues("rejected").Inc()
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(err, errNoTitle), errors.Is(err, errClientStatus):
		metrics.ResolverRequests.WithLabelValues("not_found").Inc()
	default:
		metrics.ResolverRequests.WithLabelValues("failure").Inc()
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.logger.Info("resolve failed", zap.String("external_id", externalID), zap.Error(err))
	return Metadata{}, fmt.Errorf("%w: %w", ErrNotFound, err)
}

func (c *Client) fetch(ctx context.Context, externalID string) (Metadata, error) {
	pageURL := c.baseURL + "/watch?v=" + url.QueryEscape(externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept-Language", "en")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return Metadata{}, fmt.Errorf("%w: status %d", errClientStatus, resp.StatusCode)
		}
		return Metadata{}, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	title, err := extractTitle(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Title: title, ThumbnailURL: videoid.ThumbnailURL(externalID)}, nil
}

// extractTitle returns the content of the first <meta name="title"> element.
func extractTitle(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	if title, ok := findMetaTitle(doc); ok {
		return title, nil
	}
	return "", errNoTitle
}

func findMetaTitle(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "meta" {
		var name, content string
		var hasContent bool
		for _, a := range n.Attr {
			switch strings.ToLower(a.Key) {
			case "name":
				name = a.Val
			case "content":
				content, hasContent = a.Val, true
			}
		}
		if strings.EqualFold(name, "title") && hasContent {
			return strings.TrimSpace(content), true
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if title, ok := findMetaTitle(child); ok {
			return title, true
		}
	}
	return "", false
}

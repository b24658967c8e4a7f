package catalogsite

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"archivist/internal/config"
	"archivist/internal/services"
)

const (
	defaultAttempts = 3
	// The site only honours 10 or 25 results per page.
	defaultPerPage = 25
)

// Client fetches search result pages.
type Client struct {
	searchURL  string
	siteURL    string
	collection string
	userAgent  string
	perPage    int
	httpClient *http.Client
	attempts   int
	sleeper    func(context.Context, time.Duration) error
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper replaces the retry backoff sleep.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleeper = sleep
		}
	}
}

// New builds a client from the source config section.
func New(cfg config.Source, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(cfg.SearchURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "configure", fmt.Sprintf("invalid search url %q", cfg.SearchURL), err)
	}
	perPage := cfg.ItemsPerPage
	if perPage != 10 && perPage != 25 {
		perPage = defaultPerPage
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		searchURL:  parsed.Scheme + "://" + parsed.Host + parsed.Path,
		siteURL:    parsed.Scheme + "://" + parsed.Host,
		collection: cfg.Collection,
		userAgent:  cfg.UserAgent,
		perPage:    perPage,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   defaultAttempts,
		sleeper:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PerPage reports the page size requested from the site.
func (c *Client) PerPage() int {
	return c.perPage
}

// PageURL builds the search URL for a zero-based page. The collection filter
// must be encoded with %20 rather than '+', so the query is assembled by hand.
func (c *Client) PageURL(page int) string {
	var b strings.Builder
	b.WriteString(c.searchURL)
	b.WriteString("?search_api_fulltext=&title=&name=&cmu_date_ft=&cmu_subject=")
	b.WriteString("&sort_by=search_api_relevance&sort_order=DESC&items_per_page=")
	b.WriteString(strconv.Itoa(c.perPage))
	b.WriteString("&search_advanced%5B0%5D=")
	b.WriteString("cmu_collection%3A" + url.PathEscape(c.collection))
	if page > 0 {
		b.WriteString("&page=")
		b.WriteString(strconv.Itoa(page))
	}
	return b.String()
}

// FetchPage downloads and parses one results page, retrying transient
// failures with exponential backoff.
func (c *Client) FetchPage(ctx context.Context, page int) (Page, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleeper(ctx, time.Duration(1<<(attempt-1))*time.Second); err != nil {
				return Page{}, err
			}
		}
		result, err := c.fetchOnce(ctx, page)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, services.ErrTransient) && !errors.Is(err, services.ErrTimeout) {
			break
		}
	}
	return Page{}, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, page int) (Page, error) {
	op := fmt.Sprintf("fetch page %d", page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PageURL(page), nil)
	if err != nil {
		return Page{}, services.Wrap(services.ErrValidation, "ingest", op, "build request", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Page{}, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return Page{}, services.Wrap(services.ErrTimeout, "ingest", op, "request timed out", err)
		}
		return Page{}, services.Wrap(services.ErrTransient, "ingest", op, "request failed", err)
	}
	defer resp.Body.Close()

	if marker := services.StatusMarker(resp.StatusCode); marker != nil {
		return Page{}, services.Wrap(marker, "ingest", op, "catalog returned "+resp.Status, nil)
	}
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return Page{}, services.Wrap(services.ErrExternalTool, "ingest", op, "decode charset", err)
	}
	parsed, err := ParsePage(body, c.siteURL, c.collection)
	if err != nil {
		return Page{}, services.Wrap(services.ErrExternalTool, "ingest", op, "parse page", err)
	}
	return parsed, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

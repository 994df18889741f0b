package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/models"
)

const (
	DefaultBaseURL = "https://tcgcsv.com/tcgplayer"

	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second

	userAgent = "PackVault-TCG-Sync/1.0"
)

// Client fetches catalog data from the upstream TCG price API.
// Stateless between calls; safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxAttempts int
	backoffBase time.Duration
	logger      logger.Logger
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithRetry(maxAttempts int, backoffBase time.Duration) ClientOption {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.backoffBase = backoffBase
	}
}

func NewClient(baseURL string, l logger.Logger, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		logger:      l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx upstream response, kept after retries are
// exhausted or when the status is not retryable. Unwraps to ErrUpstream.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return apperrors.ErrUpstream
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// FetchJSON gets url and decodes the body into v. 429 and 5xx responses
// are retried with exponential backoff; other failures propagate on the
// first attempt.
func (c *Client) FetchJSON(ctx context.Context, url string, v any) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, err := c.fetchOnce(ctx, url, v)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(status) || attempt == c.maxAttempts {
			return lastErr
		}

		backoff := c.backoffBase << (attempt - 1)
		c.logger.Warn("Upstream fetch failed, retrying",
			"url", url, "status", status, "attempt", attempt, "backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// fetchOnce returns the HTTP status alongside the error so the caller
// can decide retryability. Status is 0 for transport failures.
func (c *Client) fetchOnce(ctx context.Context, url string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", url, err)
	}
	return resp.StatusCode, nil
}

// envelope is the common wrapper of every catalog API response
type envelope struct {
	Success bool            `json:"success"`
	Errors  []string        `json:"errors"`
	Results json.RawMessage `json:"results"`
}

func (c *Client) fetchResults(ctx context.Context, url string, out any) error {
	var env envelope
	if err := c.FetchJSON(ctx, url, &env); err != nil {
		return err
	}
	if !env.Success {
		msg := strings.Join(env.Errors, "; ")
		if msg == "" {
			msg = "unsuccessful response"
		}
		return fmt.Errorf("%w: %s: %s", apperrors.ErrUpstream, url, msg)
	}
	if len(env.Results) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Results, out); err != nil {
		return fmt.Errorf("decode results of %s: %w", url, err)
	}
	return nil
}

// Category is one game line upstream, e.g. Magic or Pokemon
type Category struct {
	CategoryID int64  `json:"categoryId"`
	Name       string `json:"name"`
}

// Group is one product set within a category
type Group struct {
	GroupID int64  `json:"groupId"`
	Name    string `json:"name"`
}

// Product is the upstream wire shape of one catalog product
type Product struct {
	ProductID    int64                  `json:"productId"`
	Name         string                 `json:"name"`
	CleanName    string                 `json:"cleanName"`
	ImageURL     string                 `json:"imageUrl"`
	CategoryID   int64                  `json:"categoryId"`
	GroupID      int64                  `json:"groupId"`
	URL          string                 `json:"url"`
	ImageCount   int                    `json:"imageCount"`
	PresaleInfo  *PresaleInfo           `json:"presaleInfo"`
	ExtendedData []models.ExtendedField `json:"extendedData"`
	ModifiedOn   string                 `json:"modifiedOn"`
}

type PresaleInfo struct {
	IsPresale  bool   `json:"isPresale"`
	ReleasedOn string `json:"releasedOn"`
	Note       string `json:"note"`
}

// Price is the upstream wire shape of one price row. Absent price
// points come through as JSON null.
type Price struct {
	ProductID      int64    `json:"productId"`
	SubTypeName    string   `json:"subTypeName"`
	LowPrice       *float64 `json:"lowPrice"`
	MidPrice       *float64 `json:"midPrice"`
	HighPrice      *float64 `json:"highPrice"`
	MarketPrice    *float64 `json:"marketPrice"`
	DirectLowPrice *float64 `json:"directLowPrice"`
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.fetchResults(ctx, c.baseURL+"/categories", &categories)
	return categories, err
}

// CategoriesToSync resolves categories by name, case insensitive.
// Hardcoded upstream category ids never appear in config.
func (c *Client) CategoriesToSync(ctx context.Context, names []string) ([]Category, error) {
	all, err := c.Categories(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(n)] = true
	}

	matched := make([]Category, 0, len(names))
	for _, cat := range all {
		if wanted[strings.ToLower(cat.Name)] {
			matched = append(matched, cat)
		}
	}

	if len(matched) == 0 && len(names) > 0 {
		c.logger.Warn("No upstream categories matched", "names", strings.Join(names, ", "))
	}
	return matched, nil
}

func (c *Client) Groups(ctx context.Context, categoryID int64) ([]Group, error) {
	var groups []Group
	err := c.fetchResults(ctx, fmt.Sprintf("%s/%d/groups", c.baseURL, categoryID), &groups)
	return groups, err
}

func (c *Client) Products(ctx context.Context, categoryID, groupID int64) ([]Product, error) {
	var products []Product
	err := c.fetchResults(ctx, fmt.Sprintf("%s/%d/%d/products", c.baseURL, categoryID, groupID), &products)
	return products, err
}

func (c *Client) Prices(ctx context.Context, categoryID, groupID int64) ([]Price, error) {
	var prices []Price
	err := c.fetchResults(ctx, fmt.Sprintf("%s/%d/%d/prices", c.baseURL, categoryID, groupID), &prices)
	return prices, err
}

package raindrop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"raindrop_sync/internal/apperr"
	"raindrop_sync/internal/config"
	"raindrop_sync/internal/models"

	"go.uber.org/zap"
)

const (
	MaxHops = 10
	// Collection 0 lists bookmarks from every collection except Trash.
	allCollections = 0
	errorBodyLimit = 512
)

type envelope[T any] struct {
	Result       *bool  `json:"result"`
	ErrorMessage string `json:"errorMessage"`
	Items        []T    `json:"items"`
}

func (e *envelope[T]) failed() bool {
	return e.Result != nil && !*e.Result
}

type Client struct {
	base      string
	userAgent string
	perPage   int
	maxPages  int
	http      *http.Client
	log       *zap.Logger
}

func NewHTTPClient(cfg config.HTTPConfig) *http.Client {
	return &http.Client{
		Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxHops {
				return fmt.Errorf("stopped after %d redirects (MaxHops exceeded)", MaxHops)
			}
			return nil
		},
	}
}

func NewClient(apiBase string, cfg config.HTTPConfig, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:      strings.TrimRight(apiBase, "/"),
		userAgent: cfg.UserAgent,
		perPage:   cfg.PerPage,
		maxPages:  cfg.MaxPages,
		http:      httpClient,
		log:       log,
	}
}

// Collections returns root collections followed by nested ones.
func (c *Client) Collections(ctx context.Context, accessToken string) ([]models.Collection, error) {
	root, err := getItems[models.Collection](ctx, c, "/collections", nil, accessToken)
	if err != nil {
		return nil, apperr.New(apperr.KindAPI, "fetch root collections", err)
	}
	c.log.Info("Fetched top-level collections", zap.Int("count", len(root)))

	children, err := getItems[models.Collection](ctx, c, "/collections/childrens", nil, accessToken)
	if err != nil {
		return nil, apperr.New(apperr.KindAPI, "fetch child collections", err)
	}
	c.log.Info("Fetched sub-collections", zap.Int("count", len(children)))

	return append(root, children...), nil
}

// Bookmarks pages through every bookmark until the API returns an empty page.
// It also returns the number of requests made.
func (c *Client) Bookmarks(ctx context.Context, accessToken string) ([]models.Bookmark, int, error) {
	var all []models.Bookmark
	path := "/raindrops/" + strconv.Itoa(allCollections)

	for page := 0; ; page++ {
		if c.maxPages > 0 && page >= c.maxPages {
			c.log.Warn("Stopped paging at configured limit", zap.Int("max_pages", c.maxPages))
			return all, page, nil
		}

		q := url.Values{"page": {strconv.Itoa(page)}}
		if c.perPage > 0 {
			q.Set("perpage", strconv.Itoa(c.perPage))
		}

		items, err := getItems[models.Bookmark](ctx, c, path, q, accessToken)
		if err != nil {
			return nil, page, apperr.New(apperr.KindAPI, fmt.Sprintf("fetch bookmarks page %d", page), err)
		}
		c.log.Info("Fetched bookmarks page", zap.Int("page", page), zap.Int("count", len(items)))

		if len(items) == 0 {
			c.log.Info("Fetched all bookmarks", zap.Int("total", len(all)))
			return all, page + 1, nil
		}
		all = append(all, items...)
	}
}

func getItems[T any](ctx context.Context, c *Client, path string, query url.Values, accessToken string) ([]T, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, fmt.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	if env.failed() {
		return nil, fmt.Errorf("GET %s: API reported failure: %s", path, env.ErrorMessage)
	}
	return env.Items, nil
}

package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/infra/httpclient"
	"media-acquisition-service/pkg/keypool"
)

// errQuotaExceeded marks a response that burned the key, not the request.
var errQuotaExceeded = errors.New("search quota exceeded")

// Config holds the search client settings on top of the HTTP client
// configuration.
type Config struct {
	Client     httpclient.ClientConfig
	MaxResults int
	SearchCost int
	LookupCost int
	CacheTTL   time.Duration
}

// Client implements domain.TrackSearcher against the Data API. A search
// costs two calls: /search for candidates and /videos for their
// durations.
type Client struct {
	client     *resty.Client
	cb         *gobreaker.CircuitBreaker[*resty.Response]
	keys       *keypool.Pool
	cache      domain.Cache
	cacheTTL   time.Duration
	maxResults int
	searchCost int
	lookupCost int
	logger     *zap.Logger
}

// New creates the search client. cache may be nil to disable result
// caching.
func New(cfg Config, keys *keypool.Pool, cache domain.Cache, logger *zap.Logger) *Client {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	searchCost := cfg.SearchCost
	if searchCost <= 0 {
		searchCost = 100
	}
	lookupCost := cfg.LookupCost
	if lookupCost <= 0 {
		lookupCost = 1
	}

	return &Client{
		client:     httpclient.NewRestyClient(cfg.Client),
		cb:         httpclient.NewCircuitBreaker[*resty.Response]("youtube-search", cfg.Client.CB, logger),
		keys:       keys,
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
		maxResults: maxResults,
		searchCost: searchCost,
		lookupCost: lookupCost,
		logger:     logger,
	}
}

// Search returns up to limit candidates for the query. A key rejected for
// quota is pinned and the search retries on the next key; the search only
// fails once every key has been rejected.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.SearchCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty search query")
	}
	if limit <= 0 || limit > c.maxResults {
		limit = c.maxResults
	}

	cacheKey := fmt.Sprintf("search:%s:%d", query, limit)
	if cached := c.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	var (
		items   []searchItem
		lastErr error
	)
	for attempt := 0; attempt < c.keys.Len(); attempt++ {
		key, err := c.keys.Take(c.searchCost)
		if err != nil {
			return nil, fmt.Errorf("taking search key: %w", err)
		}

		items, lastErr = c.searchOnce(ctx, key, query, limit)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, errQuotaExceeded) {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("searching %q: %w", query, lastErr)
	}

	candidates := make([]domain.SearchCandidate, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID.VideoID == "" {
			continue
		}
		ids = append(ids, item.ID.VideoID)
		candidates = append(candidates, domain.SearchCandidate{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			Channel:     item.Snippet.ChannelTitle,
			Description: item.Snippet.Description,
		})
	}

	// Durations are enrichment for ranking; a failed lookup degrades to
	// unscored durations instead of failing the search.
	if durations := c.durations(ctx, ids); durations != nil {
		for i := range candidates {
			candidates[i].DurationSeconds = durations[candidates[i].ID]
		}
	}

	c.toCache(ctx, cacheKey, candidates)

	c.logger.Info("track search completed",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)))

	return candidates, nil
}

func (c *Client) searchOnce(ctx context.Context, key, query string, limit int) ([]searchItem, error) {
	resp, err := c.cb.Execute(func() (*resty.Response, error) {
		var result searchResponse
		r, reqErr := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"part":       "snippet",
				"q":          query,
				"type":       "video",
				"maxResults": strconv.Itoa(limit),
				"key":        key,
			}).
			SetResult(&result).
			Get("/search")
		if reqErr != nil {
			return nil, reqErr
		}

		switch {
		case r.StatusCode() == 403 || r.StatusCode() == 429:
			c.keys.MarkExhausted(key)
			c.logger.Warn("search key exhausted", zap.Int("status", r.StatusCode()))
			return nil, errQuotaExceeded
		case r.IsError():
			return nil, fmt.Errorf("search returned status %d", r.StatusCode())
		}

		return r, nil
	})
	if err != nil {
		return nil, err
	}

	return resp.Result().(*searchResponse).Items, nil
}

// durations fetches per-video durations, logging instead of failing.
func (c *Client) durations(ctx context.Context, ids []string) map[string]float64 {
	if len(ids) == 0 {
		return nil
	}

	key, err := c.keys.Take(c.lookupCost)
	if err != nil {
		return nil
	}

	var result videosResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part": "contentDetails",
			"id":   strings.Join(ids, ","),
			"key":  key,
		}).
		SetResult(&result).
		Get("/videos")
	if err != nil {
		c.logger.Warn("duration lookup failed", zap.Error(err))
		return nil
	}
	if resp.StatusCode() == 403 || resp.StatusCode() == 429 {
		c.keys.MarkExhausted(key)
		return nil
	}
	if resp.IsError() {
		c.logger.Warn("duration lookup failed", zap.Int("status", resp.StatusCode()))
		return nil
	}

	out := make(map[string]float64, len(result.Items))
	for _, item := range result.Items {
		out[item.ID] = parseISODuration(item.ContentDetails.Duration)
	}
	return out
}

func (c *Client) fromCache(ctx context.Context, key string) []domain.SearchCandidate {
	if c.cache == nil {
		return nil
	}

	data, err := c.cache.Get(ctx, key)
	if err != nil || data == nil {
		return nil
	}

	var candidates []domain.SearchCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil
	}

	c.logger.Debug("search cache hit", zap.String("key", key))

	return candidates
}

func (c *Client) toCache(ctx context.Context, key string, candidates []domain.SearchCandidate) {
	if c.cache == nil || len(candidates) == 0 {
		return
	}

	data, err := json.Marshal(candidates)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		c.logger.Debug("search cache write failed", zap.Error(err))
	}
}

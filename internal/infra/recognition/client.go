package recognition

import (
	"context"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/infra/httpclient"
)

// minScore is the lowest lookup confidence accepted as a match.
const minScore = 0.5

// Config holds the recognition client settings.
type Config struct {
	Client     httpclient.ClientConfig
	APIKey     string
	FpcalcPath string
}

// Client implements domain.Recognizer. Recognition is strictly best
// effort: tool and upstream failures come back as no-match, never as
// pipeline errors. Only context cancellation propagates.
type Client struct {
	client        *resty.Client
	cb            *gobreaker.CircuitBreaker[*resty.Response]
	fingerprinter *Fingerprinter
	apiKey        string
	logger        *zap.Logger
}

// New creates the recognition client.
func New(cfg Config, runner Runner, logger *zap.Logger) *Client {
	return &Client{
		client:        httpclient.NewRestyClient(cfg.Client),
		cb:            httpclient.NewCircuitBreaker[*resty.Response]("recognition", cfg.Client.CB, logger),
		fingerprinter: NewFingerprinter(cfg.FpcalcPath, cfg.Client.Timeout, runner, logger),
		apiKey:        cfg.APIKey,
		logger:        logger,
	}
}

// lookupResponse is the lookup payload subset we read.
type lookupResponse struct {
	Status  string         `json:"status"`
	Results []lookupResult `json:"results"`
}

type lookupResult struct {
	Score      float64     `json:"score"`
	Recordings []recording `json:"recordings"`
}

type recording struct {
	Title   string   `json:"title"`
	Artists []artist `json:"artists"`
}

type artist struct {
	Name string `json:"name"`
}

// Recognize identifies the track in the audio file. (nil, nil) covers
// every non-match: unavailable tooling, upstream failure, an empty result
// set and low-confidence results alike.
func (c *Client) Recognize(ctx context.Context, audioPath string) (*domain.TrackMatch, error) {
	if !c.fingerprinter.Available() {
		return nil, nil
	}

	fp, err := c.fingerprinter.Compute(ctx, audioPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("fingerprinting failed", zap.String("path", audioPath), zap.Error(err))
		return nil, nil
	}

	result, err := c.lookup(ctx, fp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("recognition lookup failed", zap.Error(err))
		return nil, nil
	}

	match := bestMatch(result)
	if match == nil {
		c.logger.Info("no track match", zap.String("path", audioPath))
		return nil, nil
	}

	c.logger.Info("track recognized",
		zap.String("title", match.Title),
		zap.String("artist", match.Artist))

	return match, nil
}

func (c *Client) lookup(ctx context.Context, fp *Fingerprint) (*lookupResponse, error) {
	resp, err := c.cb.Execute(func() (*resty.Response, error) {
		var result lookupResponse
		r, reqErr := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"client":      c.apiKey,
				"duration":    strconv.Itoa(int(fp.Duration)),
				"fingerprint": fp.Value,
				"meta":        "recordings",
			}).
			SetResult(&result).
			Get("/lookup")
		if reqErr != nil {
			return nil, reqErr
		}
		if r.IsError() {
			return nil, errStatus(r.StatusCode())
		}

		return r, nil
	})
	if err != nil {
		return nil, err
	}

	return resp.Result().(*lookupResponse), nil
}

type errStatus int

func (e errStatus) Error() string {
	return "lookup returned status " + strconv.Itoa(int(e))
}

// bestMatch picks the highest-confidence result carrying a titled
// recording.
func bestMatch(resp *lookupResponse) *domain.TrackMatch {
	if resp.Status != "ok" {
		return nil
	}

	var (
		best      *domain.TrackMatch
		bestScore float64
	)
	for _, result := range resp.Results {
		if result.Score < minScore || result.Score < bestScore {
			continue
		}
		for _, rec := range result.Recordings {
			if rec.Title == "" {
				continue
			}
			match := &domain.TrackMatch{Title: rec.Title}
			if len(rec.Artists) > 0 {
				match.Artist = rec.Artists[0].Name
			}
			best = match
			bestScore = result.Score
			break
		}
	}

	return best
}

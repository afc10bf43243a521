// Package apify implements the hosted-scraper acquisition backend. It is
// the fallback for content the local tools cannot reach without an
// authenticated session.
package apify

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/infra/httpclient"
	"media-acquisition-service/pkg/keypool"
)

// Config holds the actor to run and the HTTP client settings.
type Config struct {
	Client  httpclient.ClientConfig
	ActorID string
}

// Backend runs a hosted scraper actor synchronously and downloads the
// media URL it reports.
type Backend struct {
	actorID string
	client  *resty.Client
	cb      *gobreaker.CircuitBreaker[*resty.Response]
	tokens  *keypool.Pool
	logger  *zap.Logger
}

// New creates the scraper backend. The token pool provides per-request
// credentials and absorbs quota exhaustion.
func New(cfg Config, tokens *keypool.Pool, logger *zap.Logger) *Backend {
	return &Backend{
		actorID: cfg.ActorID,
		client:  httpclient.NewRestyClient(cfg.Client),
		cb:      httpclient.NewCircuitBreaker[*resty.Response]("apify", cfg.Client.CB, logger),
		tokens:  tokens,
		logger:  logger,
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "apify"
}

// Supports reports the content kinds the scraper actor handles.
func (b *Backend) Supports(kind domain.ContentKind) bool {
	return kind != domain.KindTrack && kind != domain.KindVideo
}

// actorInput is the request body for a scraper run.
type actorInput struct {
	DirectURLs   []string `json:"directUrls"`
	ResultsType  string   `json:"resultsType"`
	ResultsLimit int      `json:"resultsLimit"`
}

// datasetItem is one scraped result. Only the delivery-relevant fields
// are read.
type datasetItem struct {
	Caption       string  `json:"caption"`
	VideoURL      string  `json:"videoUrl"`
	DisplayURL    string  `json:"displayUrl"`
	VideoDuration float64 `json:"videoDuration"`
}

// Fetch runs the actor for ref and downloads the reported media into
// destDir.
func (b *Backend) Fetch(ctx context.Context, ref domain.MediaRef, destDir string) (*domain.Artifact, error) {
	source := ref.CanonicalURL()
	if source == "" {
		return nil, fmt.Errorf("no fetchable URL for %s", ref.Key())
	}

	token, err := b.tokens.Take(1)
	if err != nil {
		return nil, fmt.Errorf("taking scraper token: %w", err)
	}

	items, err := b.runActor(ctx, token, source, ref)
	if err != nil {
		return nil, err
	}

	item, mediaURL := pickMedia(items)
	if mediaURL == "" {
		return nil, fmt.Errorf("scraper returned no usable media for %s", ref.Key())
	}

	dest := filepath.Join(destDir, uuid.NewString()+mediaExt(mediaURL))
	if err := b.download(ctx, mediaURL, dest); err != nil {
		return nil, fmt.Errorf("downloading scraped media for %s: %w", ref.Key(), err)
	}

	b.logger.Info("backend fetch completed",
		zap.String("backend", b.Name()),
		zap.String("ref", ref.Key()),
		zap.String("file", filepath.Base(dest)))

	return &domain.Artifact{
		Path:            dest,
		Title:           item.Caption,
		DurationSeconds: item.VideoDuration,
	}, nil
}

// Classify maps a fetch failure onto the retry classes by its text.
func (b *Backend) Classify(err error) domain.ErrorClass {
	return domain.ClassifyError(err)
}

func (b *Backend) runActor(ctx context.Context, token, source string, ref domain.MediaRef) ([]datasetItem, error) {
	resp, err := b.cb.Execute(func() (*resty.Response, error) {
		var items []datasetItem
		r, reqErr := b.client.R().
			SetContext(ctx).
			SetQueryParam("token", token).
			SetBody(actorInput{
				DirectURLs:   []string{source},
				ResultsType:  "posts",
				ResultsLimit: 1,
			}).
			SetResult(&items).
			Post("/v2/acts/" + b.actorID + "/run-sync-get-dataset-items")
		if reqErr != nil {
			return nil, reqErr
		}

		switch code := r.StatusCode(); {
		case code == 401 || code == 402 || code == 403 || code == 429:
			// Token out of credits or blocked: pin it and let the rotor
			// move on.
			b.tokens.MarkExhausted(token)
			b.logger.Warn("scraper token exhausted",
				zap.String("ref", ref.Key()),
				zap.Int("status", code))
			return nil, fmt.Errorf("actor run quota exhausted (status %d)", code)
		case r.IsError():
			return nil, fmt.Errorf("actor run returned status %d", code)
		}

		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("running actor for %s: %w", ref.Key(), err)
	}

	return *resp.Result().(*[]datasetItem), nil
}

func (b *Backend) download(ctx context.Context, mediaURL, dest string) error {
	resp, err := b.client.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(mediaURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("media download returned status %d", resp.StatusCode())
	}

	return nil
}

// pickMedia returns the first item carrying a media URL, preferring video
// over the still image.
func pickMedia(items []datasetItem) (datasetItem, string) {
	for _, item := range items {
		if item.VideoURL != "" {
			return item, item.VideoURL
		}
	}
	for _, item := range items {
		if item.DisplayURL != "" {
			return item, item.DisplayURL
		}
	}
	return datasetItem{}, ""
}

// mediaExt derives the file extension from the media URL, defaulting to
// .mp4 for extensionless CDN paths.
func mediaExt(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return ".mp4"
	}
	if ext := path.Ext(u.Path); ext != "" {
		return ext
	}
	return ".mp4"
}

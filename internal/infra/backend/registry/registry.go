// Package registry assembles the per-platform acquisition backend chains
// from configuration.
package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"media-acquisition-service/internal/config"
	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/infra/backend/apify"
	"media-acquisition-service/internal/infra/backend/gallerydl"
	"media-acquisition-service/internal/infra/backend/ytdlp"
	"media-acquisition-service/internal/infra/httpclient"
	"media-acquisition-service/pkg/keypool"
)

// Runner executes an external tool as a subprocess. Passed through to the
// subprocess backends.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// NewChains builds the ordered fallback chain for every platform. Backends
// appearing in several chains share one instance, so their circuit breaker
// and token accounting stay global. An unknown backend name is an error,
// not a skip: a typo must not silently shorten a chain.
func NewChains(cfg config.BackendConfig, scraperTokens *keypool.Pool, runner Runner, logger *zap.Logger) (map[domain.Platform][]domain.Backend, error) {
	built := make(map[string]domain.Backend, 4)

	build := func(name string) (domain.Backend, error) {
		if b, ok := built[name]; ok {
			return b, nil
		}

		var b domain.Backend
		switch name {
		case "ytdlp":
			b = ytdlp.New(ytdlpConfig(cfg.Ytdlp), runner, logger)
		case "ytdlp-cookies":
			b = ytdlp.NewWithCookies(ytdlpConfig(cfg.Ytdlp), runner, logger)
		case "gallerydl":
			b = gallerydl.New(gallerydl.Config{
				Path:    cfg.GalleryDL.Path,
				Timeout: cfg.GalleryDL.Timeout,
			}, runner, logger)
		case "apify":
			b = apify.New(apify.Config{
				ActorID: cfg.Apify.ActorID,
				Client: httpclient.ClientConfig{
					BaseURL: cfg.Apify.BaseURL,
					Timeout: cfg.Apify.Timeout,
					Retry: httpclient.RetryConfig{
						MaxAttempts: cfg.Apify.Retry.MaxAttempts,
						WaitTime:    cfg.Apify.Retry.WaitTime,
						MaxWaitTime: cfg.Apify.Retry.MaxWaitTime,
					},
					CB: httpclient.CBConfig{
						MaxRequests:  cfg.Apify.CB.MaxRequests,
						Interval:     cfg.Apify.CB.Interval,
						Timeout:      cfg.Apify.CB.Timeout,
						FailureRatio: cfg.Apify.CB.FailureRatio,
					},
				},
			}, scraperTokens, logger)
		default:
			return nil, fmt.Errorf("unknown backend %q", name)
		}

		built[name] = b

		return b, nil
	}

	chains := make(map[domain.Platform][]domain.Backend, 3)
	for platform, names := range map[domain.Platform][]string{
		domain.PlatformInstagram: cfg.Chains.Instagram,
		domain.PlatformYouTube:   cfg.Chains.YouTube,
		domain.PlatformTikTok:    cfg.Chains.TikTok,
	} {
		for _, name := range names {
			backend, err := build(name)
			if err != nil {
				return nil, fmt.Errorf("building %s chain: %w", platform, err)
			}
			chains[platform] = append(chains[platform], backend)
		}
	}

	return chains, nil
}

func ytdlpConfig(cfg config.YtdlpConfig) ytdlp.Config {
	return ytdlp.Config{
		Path:        cfg.Path,
		CookiesFile: cfg.CookiesFile,
		Timeout:     cfg.Timeout,
	}
}

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"media-acquisition-service/internal/config"
	"media-acquisition-service/internal/domain"
	"media-acquisition-service/pkg/keypool"
)

type noopRunner struct{}

func (noopRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
	return nil, nil, nil
}

func testBackendConfig() config.BackendConfig {
	return config.BackendConfig{
		Chains: config.ChainsConfig{
			Instagram: []string{"ytdlp", "gallerydl", "apify"},
			YouTube:   []string{"ytdlp", "ytdlp-cookies"},
			TikTok:    []string{"ytdlp"},
		},
		Ytdlp:     config.YtdlpConfig{Path: "yt-dlp", CookiesFile: "/etc/app/cookies.txt", Timeout: time.Minute},
		GalleryDL: config.GalleryDLConfig{Path: "gallery-dl", Timeout: time.Minute},
		Apify: config.ApifyConfig{
			BaseURL: "https://apify.example.com",
			ActorID: "acme~insta-scraper",
			Timeout: time.Minute,
		},
	}
}

func chainNames(chain []domain.Backend) []string {
	names := make([]string, len(chain))
	for i, b := range chain {
		names[i] = b.Name()
	}
	return names
}

func TestNewChains_BuildsConfiguredOrder(t *testing.T) {
	tokens := keypool.New([]string{"token-a"}, 100, 24*time.Hour)

	chains, err := NewChains(testBackendConfig(), tokens, noopRunner{}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{"ytdlp", "gallerydl", "apify"}, chainNames(chains[domain.PlatformInstagram]))
	assert.Equal(t, []string{"ytdlp", "ytdlp-cookies"}, chainNames(chains[domain.PlatformYouTube]))
	assert.Equal(t, []string{"ytdlp"}, chainNames(chains[domain.PlatformTikTok]))
}

func TestNewChains_SharesBackendInstances(t *testing.T) {
	tokens := keypool.New(nil, 100, 24*time.Hour)

	chains, err := NewChains(testBackendConfig(), tokens, noopRunner{}, zap.NewNop())
	require.NoError(t, err)

	// The same ytdlp instance backs every chain that names it.
	assert.Same(t, chains[domain.PlatformInstagram][0], chains[domain.PlatformYouTube][0])
	assert.Same(t, chains[domain.PlatformInstagram][0], chains[domain.PlatformTikTok][0])
}

func TestNewChains_UnknownBackend(t *testing.T) {
	cfg := testBackendConfig()
	cfg.Chains.TikTok = []string{"ytdlp", "carrier-pigeon"}

	_, err := NewChains(cfg, keypool.New(nil, 1, time.Hour), noopRunner{}, zap.NewNop())

	require.Error(t, err)
	assert.ErrorContains(t, err, `unknown backend "carrier-pigeon"`)
	assert.ErrorContains(t, err, "tiktok chain")
}

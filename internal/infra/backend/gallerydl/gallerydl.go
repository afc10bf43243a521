// Package gallerydl implements the gallery-dl subprocess acquisition
// backend. It covers the gallery-style content yt-dlp skips, stories in
// particular.
package gallerydl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
)

// Runner executes an external tool as a subprocess.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Config holds gallery-dl invocation settings.
type Config struct {
	Path    string
	Timeout time.Duration
}

// Backend drives one gallery-dl run per fetch.
type Backend struct {
	path    string
	timeout time.Duration
	runner  Runner
	logger  *zap.Logger
}

// New creates the gallery-dl backend.
func New(cfg Config, runner Runner, logger *zap.Logger) *Backend {
	path := cfg.Path
	if path == "" {
		path = "gallery-dl"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Backend{
		path:    path,
		timeout: timeout,
		runner:  runner,
		logger:  logger,
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "gallerydl"
}

// Supports reports the content kinds gallery-dl can fetch. Full videos and
// music tracks belong to yt-dlp.
func (b *Backend) Supports(kind domain.ContentKind) bool {
	return kind != domain.KindVideo && kind != domain.KindTrack
}

// Fetch downloads ref into a fresh subdirectory of destDir and returns
// the largest downloaded file as the artifact. Multi-file posts keep
// their primary media that way.
func (b *Backend) Fetch(ctx context.Context, ref domain.MediaRef, destDir string) (*domain.Artifact, error) {
	source := ref.CanonicalURL()
	if source == "" {
		return nil, fmt.Errorf("no fetchable URL for %s", ref.Key())
	}

	runDir := filepath.Join(destDir, uuid.NewString())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if _, _, err := b.runner.Run(runCtx, b.path, "-D", runDir, source); err != nil {
		return nil, fmt.Errorf("running gallery-dl for %s: %w", ref.Key(), err)
	}

	path, err := largestFile(runDir)
	if err != nil {
		return nil, fmt.Errorf("gallery-dl output for %s: %w", ref.Key(), err)
	}

	b.logger.Info("backend fetch completed",
		zap.String("backend", b.Name()),
		zap.String("ref", ref.Key()),
		zap.String("file", filepath.Base(path)))

	// gallery-dl prints no machine-readable metadata in this mode; the
	// pipeline titles the entry from the reference instead.
	return &domain.Artifact{Path: path}, nil
}

// Classify maps a fetch failure onto the retry classes by its text.
func (b *Backend) Classify(err error) domain.ErrorClass {
	return domain.ClassifyError(err)
}

func largestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var (
		best string
		size int64 = -1
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		if info.Size() > size {
			best = filepath.Join(dir, e.Name())
			size = info.Size()
		}
	}

	if best == "" {
		return "", fmt.Errorf("no files downloaded")
	}
	return best, nil
}

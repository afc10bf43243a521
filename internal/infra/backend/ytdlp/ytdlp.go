// Package ytdlp implements the yt-dlp subprocess acquisition backend.
package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
)

// Runner executes an external tool as a subprocess.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Config holds yt-dlp invocation settings.
type Config struct {
	Path        string
	CookiesFile string
	Timeout     time.Duration
}

// Backend drives one yt-dlp run per fetch. The cookies variant runs
// authenticated, which survives the bot checks anonymous runs trip on.
type Backend struct {
	name    string
	path    string
	cookies string
	timeout time.Duration
	runner  Runner
	logger  *zap.Logger
}

// New creates the anonymous yt-dlp backend.
func New(cfg Config, runner Runner, logger *zap.Logger) *Backend {
	return newBackend("ytdlp", cfg, "", runner, logger)
}

// NewWithCookies creates the authenticated yt-dlp backend reading the
// configured cookies file.
func NewWithCookies(cfg Config, runner Runner, logger *zap.Logger) *Backend {
	return newBackend("ytdlp-cookies", cfg, cfg.CookiesFile, runner, logger)
}

func newBackend(name string, cfg Config, cookies string, runner Runner, logger *zap.Logger) *Backend {
	path := cfg.Path
	if path == "" {
		path = "yt-dlp"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}

	return &Backend{
		name:    name,
		path:    path,
		cookies: cookies,
		timeout: timeout,
		runner:  runner,
		logger:  logger,
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return b.name
}

// Supports reports the content kinds yt-dlp can fetch. Stories need an
// authenticated gallery client instead.
func (b *Backend) Supports(kind domain.ContentKind) bool {
	return kind != domain.KindStory
}

// printedMeta is the subset of yt-dlp's --print-json output we keep.
type printedMeta struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// Fetch downloads ref into destDir and returns the artifact together with
// the metadata yt-dlp printed.
func (b *Backend) Fetch(ctx context.Context, ref domain.MediaRef, destDir string) (*domain.Artifact, error) {
	source := ref.CanonicalURL()
	if source == "" {
		return nil, fmt.Errorf("no fetchable URL for %s", ref.Key())
	}

	base := uuid.NewString()
	args := []string{
		"--no-playlist",
		"--print-json",
		"-o", filepath.Join(destDir, base+".%(ext)s"),
	}
	if b.cookies != "" {
		args = append(args, "--cookies", b.cookies)
	}
	args = append(args, source)

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	stdout, _, err := b.runner.Run(runCtx, b.path, args...)
	if err != nil {
		return nil, fmt.Errorf("running %s for %s: %w", b.name, ref.Key(), err)
	}

	path, err := findOutput(destDir, base)
	if err != nil {
		return nil, fmt.Errorf("%s output for %s: %w", b.name, ref.Key(), err)
	}

	// Metadata is best effort: a download with unparseable metadata still
	// counts as fetched.
	var meta printedMeta
	if line := firstJSONLine(stdout); line != "" {
		if jsonErr := json.Unmarshal([]byte(line), &meta); jsonErr != nil {
			b.logger.Debug("unparseable yt-dlp metadata",
				zap.String("ref", ref.Key()),
				zap.Error(jsonErr))
		}
	}

	b.logger.Info("backend fetch completed",
		zap.String("backend", b.name),
		zap.String("ref", ref.Key()),
		zap.String("file", filepath.Base(path)))

	return &domain.Artifact{
		Path:            path,
		Title:           meta.Title,
		DurationSeconds: meta.Duration,
	}, nil
}

// Classify maps a fetch failure onto the retry classes by its text.
func (b *Backend) Classify(err error) domain.ErrorClass {
	return domain.ClassifyError(err)
}

// findOutput locates the downloaded file for the run's unique basename.
// yt-dlp leaves .part files behind on interrupted downloads; those never
// count as output.
func findOutput(destDir, base string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(destDir, base+".*"))
	if err != nil {
		return "", err
	}

	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}

	return "", fmt.Errorf("no output file produced")
}

// firstJSONLine returns the first line of out that looks like a JSON
// object. yt-dlp interleaves progress noise with the printed metadata.
func firstJSONLine(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") {
			return line
		}
	}
	return ""
}

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
)

const (
	// minClipBytes rejects header-only outputs from a silently failed encode.
	minClipBytes = 1024
	// minClipSeconds rejects clips too short to fingerprint.
	minClipSeconds = 0.1
)

// extractStrategy is one encoder parameter set for clip extraction.
type extractStrategy struct {
	name string
	args func(src, dst string, maxSeconds int) []string
}

// extractStrategies are tried in order until one produces a valid clip.
// Sources with odd containers or broken timestamps often fail the strict
// sets but survive the permissive ones.
var extractStrategies = []extractStrategy{
	{
		name: "high quality",
		args: func(src, dst string, maxSeconds int) []string {
			return withLimit([]string{
				"-y", "-i", src,
				"-vn", "-map", "0:a:0",
				"-acodec", "libmp3lame",
				"-b:a", "192k",
				"-ar", "44100",
				"-ac", "2",
				"-avoid_negative_ts", "make_zero",
				"-fflags", "+genpts",
			}, dst, maxSeconds)
		},
	},
	{
		name: "compatible",
		args: func(src, dst string, maxSeconds int) []string {
			return withLimit([]string{
				"-y", "-i", src,
				"-vn",
				"-acodec", "libmp3lame",
				"-ab", "128k",
			}, dst, maxSeconds)
		},
	},
	{
		name: "quality auto",
		args: func(src, dst string, maxSeconds int) []string {
			return withLimit([]string{
				"-y", "-i", src,
				"-vn",
				"-q:a", "2",
				"-ar", "44100",
			}, dst, maxSeconds)
		},
	},
	{
		name: "minimal",
		args: func(src, dst string, maxSeconds int) []string {
			return withLimit([]string{
				"-y", "-i", src,
				"-vn",
				"-acodec", "mp3",
				"-f", "mp3",
			}, dst, maxSeconds)
		},
	},
}

func withLimit(args []string, dst string, maxSeconds int) []string {
	if maxSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(maxSeconds))
	}
	return append(args, dst)
}

// Extractor produces MP3 clips from media files via an ordered list of
// ffmpeg strategies.
type Extractor struct {
	ffmpeg  string
	probe   *Probe
	timeout time.Duration
	runner  Runner
	logger  *zap.Logger
}

// NewExtractor builds an Extractor sharing the probe's runner.
func NewExtractor(cfg Config, probe *Probe, runner Runner, logger *zap.Logger) *Extractor {
	binary := cfg.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Extractor{
		ffmpeg:  binary,
		probe:   probe,
		timeout: timeout,
		runner:  runner,
		logger:  logger,
	}
}

// ExtractClip writes an MP3 clip of at most maxSeconds next to sourcePath
// and returns its path. Each strategy's output is validated before being
// accepted; failed outputs are removed so partial files never leak to
// callers.
func (e *Extractor) ExtractClip(ctx context.Context, sourcePath string, maxSeconds int) (string, error) {
	dst := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".clip.mp3"

	var (
		tried   int
		lastErr error
	)

	for _, s := range extractStrategies {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		_ = os.Remove(dst)

		if err := e.runStrategy(ctx, s, sourcePath, dst, maxSeconds); err != nil {
			tried++
			lastErr = err
			e.logger.Debug("extraction strategy failed",
				zap.String("strategy", s.name),
				zap.String("source", sourcePath),
				zap.Error(err))
			continue
		}

		if err := e.validateClip(ctx, dst); err != nil {
			_ = os.Remove(dst)
			tried++
			lastErr = err
			e.logger.Debug("extracted clip rejected",
				zap.String("strategy", s.name),
				zap.String("source", sourcePath),
				zap.Error(err))
			continue
		}

		e.logger.Info("extracted audio clip",
			zap.String("source", sourcePath),
			zap.String("strategy", s.name))
		return dst, nil
	}

	_ = os.Remove(dst)

	return "", &domain.ExtractionError{
		Source:  sourcePath,
		Tried:   tried,
		LastErr: lastErr,
	}
}

func (e *Extractor) runStrategy(ctx context.Context, s extractStrategy, src, dst string, maxSeconds int) error {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	_, _, err := e.runner.Run(runCtx, e.ffmpeg, s.args(src, dst, maxSeconds)...)
	return err
}

// validateClip accepts a clip only when it exists, is larger than a bare
// header and, when ffprobe is available, decodes to a complete audio
// stream of usable length.
func (e *Extractor) validateClip(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat clip: %w", err)
	}
	if info.Size() < minClipBytes {
		return fmt.Errorf("clip too small: %d bytes", info.Size())
	}

	if !e.probe.Available() {
		return nil
	}

	report, err := e.probe.Inspect(ctx, path)
	if err != nil {
		return fmt.Errorf("probing clip: %w", err)
	}

	audio := report.FirstAudio()
	if audio == nil {
		return errors.New("clip has no audio stream")
	}
	if audio.CodecName == "" || audio.Channels == 0 || audio.SampleRate == "" {
		return errors.New("clip audio parameters incomplete")
	}
	if dur := report.DurationSeconds(); dur < minClipSeconds {
		return fmt.Errorf("clip duration %.2fs below minimum", dur)
	}

	return nil
}

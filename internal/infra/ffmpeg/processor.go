package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
)

// acceptedVideoCodecs are delivered as-is; anything else is re-encoded so
// downstream players can handle the file.
var acceptedVideoCodecs = map[string]struct{}{
	"h264": {},
	"avc1": {},
}

// Processor implements stream inspection and best-effort normalization on
// top of ffprobe/ffmpeg.
type Processor struct {
	probe   *Probe
	ffmpeg  string
	timeout time.Duration
	runner  Runner
	logger  *zap.Logger
}

// NewProcessor builds a Processor sharing the probe's runner.
func NewProcessor(cfg Config, probe *Probe, runner Runner, logger *zap.Logger) *Processor {
	binary := cfg.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Processor{
		probe:   probe,
		ffmpeg:  binary,
		timeout: timeout,
		runner:  runner,
		logger:  logger,
	}
}

// DetectAudio reports audio presence via three probing strategies, from
// cheapest to most thorough. It returns unknown only when ffprobe itself
// is unavailable; probe failures with the tool present count as absent.
func (p *Processor) DetectAudio(ctx context.Context, path string) domain.AudioPresence {
	if !p.probe.Available() {
		p.logger.Warn("ffprobe unavailable, audio presence unknown", zap.String("path", path))
		return domain.AudioUnknown
	}

	// Strategy 1: audio stream listing.
	if indexes, err := p.probe.AudioStreamIndexes(ctx, path); err == nil && len(indexes) > 0 {
		return domain.AudioPresent
	}

	// Strategy 2: full probe with codec, channel count and sample rate all
	// reported for the first audio stream.
	if report, err := p.probe.Inspect(ctx, path); err == nil {
		if s := report.FirstAudio(); s != nil && s.CodecName != "" && s.Channels > 0 && s.SampleRate != "" {
			return domain.AudioPresent
		}
	}

	// Strategy 3: a positive duration on the first audio stream.
	if dur, err := p.probe.FirstAudioDuration(ctx, path); err == nil && dur > 0 {
		return domain.AudioPresent
	}

	return domain.AudioAbsent
}

// HasVideoStream reports whether path carries a real video stream.
// Embedded cover art does not count.
func (p *Processor) HasVideoStream(ctx context.Context, path string) (bool, error) {
	report, err := p.probe.Inspect(ctx, path)
	if err != nil {
		return false, err
	}
	return report.FirstVideo() != nil, nil
}

// Normalize re-encodes path to H.264/AAC with faststart when the video
// codec is not broadly playable. Normalization is best effort: any probe
// or encode failure returns the original path untouched.
func (p *Processor) Normalize(ctx context.Context, path string) (string, error) {
	if ctx.Err() != nil {
		return path, ctx.Err()
	}

	report, err := p.probe.Inspect(ctx, path)
	if err != nil {
		p.logger.Debug("normalize skipped, probe failed", zap.String("path", path), zap.Error(err))
		return path, nil
	}

	video := report.FirstVideo()
	if video == nil {
		return path, nil
	}
	if _, ok := acceptedVideoCodecs[video.CodecName]; ok {
		return path, nil
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".h264.mp4"

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, _, err = p.runner.Run(runCtx, p.ffmpeg,
		"-y", "-i", path,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-movflags", "+faststart",
		out,
	)
	if err != nil {
		p.logger.Warn("normalize failed, keeping original",
			zap.String("path", path),
			zap.String("codec", video.CodecName),
			zap.Error(err))
		_ = os.Remove(out)
		return path, nil
	}

	if info, statErr := os.Stat(out); statErr != nil || info.Size() == 0 {
		_ = os.Remove(out)
		return path, nil
	}

	p.logger.Info("normalized video",
		zap.String("path", path),
		zap.String("from_codec", video.CodecName))

	return out, nil
}

package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config carries the tool locations and the per-invocation time budget
// shared by the probe, processor and extractor.
type Config struct {
	FFprobePath string
	FFmpegPath  string
	Timeout     time.Duration
}

// Report is the parsed output of an ffprobe inspection.
type Report struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single media stream. Numeric fields ffprobe emits as
// strings stay strings and are converted on demand.
type Stream struct {
	Index       int         `json:"index"`
	CodecType   string      `json:"codec_type"`
	CodecName   string      `json:"codec_name"`
	Channels    int         `json:"channels"`
	SampleRate  string      `json:"sample_rate"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Duration    string      `json:"duration"`
	Disposition Disposition `json:"disposition"`
}

// Disposition carries the stream flags we care about. attached_pic marks
// embedded cover art, which ffprobe reports as a video stream.
type Disposition struct {
	AttachedPic int `json:"attached_pic"`
}

// Format describes the container.
type Format struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// FirstAudio returns the first audio stream, or nil.
func (r *Report) FirstAudio() *Stream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			return &r.Streams[i]
		}
	}
	return nil
}

// FirstVideo returns the first real video stream, skipping attached cover
// art, or nil.
func (r *Report) FirstVideo() *Stream {
	for i := range r.Streams {
		s := &r.Streams[i]
		if s.CodecType == "video" && s.Disposition.AttachedPic == 0 {
			return s
		}
	}
	return nil
}

// DurationSeconds returns the container duration, preferring the format
// entry and falling back to the longest stream. Zero means unknown.
func (r *Report) DurationSeconds() float64 {
	if d := parseSeconds(r.Format.Duration); d > 0 {
		return d
	}
	var max float64
	for _, s := range r.Streams {
		if d := parseSeconds(s.Duration); d > max {
			max = d
		}
	}
	return max
}

func parseSeconds(s string) float64 {
	if s == "" || s == "N/A" {
		return 0
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return d
}

// Probe invokes ffprobe against local media files.
type Probe struct {
	binary    string
	timeout   time.Duration
	runner    Runner
	available bool
	logger    *zap.Logger
}

// NewProbe builds a Probe and records whether the binary is reachable. A
// missing binary is not an error here: callers degrade per operation.
func NewProbe(cfg Config, runner Runner, logger *zap.Logger) *Probe {
	binary := cfg.FFprobePath
	if binary == "" {
		binary = "ffprobe"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	_, lookErr := exec.LookPath(binary)
	if lookErr != nil {
		logger.Warn("ffprobe not found, stream inspection degraded", zap.String("binary", binary))
	}

	return &Probe{
		binary:    binary,
		timeout:   timeout,
		runner:    runner,
		available: lookErr == nil,
		logger:    logger,
	}
}

// Available reports whether the ffprobe binary was found on PATH.
func (p *Probe) Available() bool {
	return p.available
}

// Inspect runs a full format and stream probe on path.
func (p *Probe) Inspect(ctx context.Context, path string) (*Report, error) {
	out, err := p.run(ctx,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	var report Report
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("parsing probe output for %s: %w", path, err)
	}

	return &report, nil
}

// AudioStreamIndexes lists the indexes of audio streams in path. This is
// the cheapest positive audio check.
func (p *Probe) AudioStreamIndexes(ctx context.Context, path string) ([]string, error) {
	out, err := p.run(ctx,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audio streams of %s: %w", path, err)
	}

	var indexes []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			indexes = append(indexes, line)
		}
	}
	return indexes, nil
}

// FirstAudioDuration probes the duration of the first audio stream. Zero
// with nil error means ffprobe reported no usable duration.
func (p *Probe) FirstAudioDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=duration",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probing audio duration of %s: %w", path, err)
	}
	return parseSeconds(strings.TrimSpace(string(out))), nil
}

func (p *Probe) run(ctx context.Context, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stdout, _, err := p.runner.Run(runCtx, p.binary, args...)
	return stdout, err
}

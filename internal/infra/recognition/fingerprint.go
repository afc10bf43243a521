// Package recognition identifies music tracks from audio samples using
// chromaprint fingerprints and a hosted lookup service.
package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Runner executes an external tool as a subprocess.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Fingerprint is the chromaprint digest of an audio sample.
type Fingerprint struct {
	Duration float64 `json:"duration"`
	Value    string  `json:"fingerprint"`
}

// Fingerprinter computes fingerprints with fpcalc.
type Fingerprinter struct {
	path      string
	timeout   time.Duration
	runner    Runner
	available bool
	logger    *zap.Logger
}

// NewFingerprinter builds a Fingerprinter and records whether fpcalc is
// reachable.
func NewFingerprinter(path string, timeout time.Duration, runner Runner, logger *zap.Logger) *Fingerprinter {
	if path == "" {
		path = "fpcalc"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	_, lookErr := exec.LookPath(path)
	if lookErr != nil {
		logger.Warn("fpcalc not found, track recognition disabled", zap.String("binary", path))
	}

	return &Fingerprinter{
		path:      path,
		timeout:   timeout,
		runner:    runner,
		available: lookErr == nil,
		logger:    logger,
	}
}

// Available reports whether the fpcalc binary was found on PATH.
func (f *Fingerprinter) Available() bool {
	return f.available
}

// Compute fingerprints the audio file at path.
func (f *Fingerprinter) Compute(ctx context.Context, path string) (*Fingerprint, error) {
	runCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	stdout, _, err := f.runner.Run(runCtx, f.path, "-json", path)
	if err != nil {
		return nil, fmt.Errorf("running fpcalc on %s: %w", path, err)
	}

	var fp Fingerprint
	if err := json.Unmarshal(stdout, &fp); err != nil {
		return nil, fmt.Errorf("parsing fpcalc output for %s: %w", path, err)
	}
	if fp.Value == "" {
		return nil, fmt.Errorf("fpcalc produced no fingerprint for %s", path)
	}

	return &fp, nil
}

// Package ffmpeg wraps the external ffprobe/ffmpeg tools as bounded
// subprocesses: stream inspection, audio presence detection, clip
// extraction and container normalization.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external tool as a subprocess. The indirection keeps
// tool behavior scriptable in tests.
type Runner interface {
	// Run executes name with args and returns captured stdout/stderr. The
	// context bounds the subprocess lifetime.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs tools via os/exec.
type ExecRunner struct{}

// Run executes the tool, folding trailing stderr into the error for
// diagnosable failures.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%s: %w: %s", name, err, tail(msg, 500))
		} else {
			err = fmt.Errorf("%s: %w", name, err)
		}
	}

	return stdout.Bytes(), stderr.Bytes(), err
}

// tail returns the last max bytes of s; tool stderr can run to pages.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max:]
}

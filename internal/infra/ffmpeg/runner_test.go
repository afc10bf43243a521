package ffmpeg

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fakeRunner scripts tool behavior per test and records every invocation.
type fakeRunner struct {
	mu    sync.Mutex
	calls []fakeCall
	run   func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

type fakeCall struct {
	name string
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{name: name, args: args})
	f.mu.Unlock()
	return f.run(ctx, name, args...)
}

func (f *fakeRunner) countCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func newTestProbe(runner Runner, available bool) *Probe {
	return &Probe{
		binary:    "ffprobe",
		timeout:   5 * time.Second,
		runner:    runner,
		available: available,
		logger:    zap.NewNop(),
	}
}

const probeH264JSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "44100"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "183.40", "size": "8123456"}
}`

const probeVP9JSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "vp9", "width": 1280, "height": 720},
    {"index": 1, "codec_type": "audio", "codec_name": "opus", "channels": 2, "sample_rate": "48000"}
  ],
  "format": {"format_name": "matroska,webm", "duration": "95.1"}
}`

const probeAudioOnlyJSON = `{
  "streams": [
    {"index": 0, "codec_type": "audio", "codec_name": "mp3", "channels": 2, "sample_rate": "44100", "duration": "30.0"}
  ],
  "format": {"format_name": "mp3", "duration": "30.0"}
}`

const probeCoverArtJSON = `{
  "streams": [
    {"index": 0, "codec_type": "audio", "codec_name": "mp3", "channels": 2, "sample_rate": "44100"},
    {"index": 1, "codec_type": "video", "codec_name": "mjpeg", "disposition": {"attached_pic": 1}}
  ],
  "format": {"format_name": "mp3", "duration": "201.2"}
}`

const probeNoAudioJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 640, "height": 480, "duration": "12.0"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.0"}
}`

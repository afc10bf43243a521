package telegram

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/infra/httpclient"
)

const testAPIBase = "https://tg.example.com/bottest-token/"

func newTestStore() *Store {
	cfg := Config{
		Token:  "test-token",
		ChatID: "-1001234567890",
		Client: httpclient.ClientConfig{
			BaseURL: "https://tg.example.com",
			Timeout: 5 * time.Second,
			CB: httpclient.CBConfig{
				MaxRequests:  5,
				Interval:     60 * time.Second,
				Timeout:      15 * time.Second,
				FailureRatio: 0.9,
			},
		},
	}

	store := New(cfg, zap.NewNop())
	httpmock.ActivateNonDefault(store.client.GetClient())

	return store
}

func writeArtifact(t *testing.T, name string) *domain.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("media-bytes"), 0o600))
	return &domain.Artifact{Path: path, Title: "Sunset reel", DurationSeconds: 42}
}

func reelRef() domain.MediaRef {
	return domain.MediaRef{Platform: domain.PlatformInstagram, CanonicalID: "DAbC9xYz", Kind: domain.KindReel}
}

func sentResponse(slot string, fileID string) map[string]any {
	return map[string]any{
		"ok":     true,
		"result": map[string]any{slot: map[string]string{"file_id": fileID}},
	}
}

func TestUpload_VideoRoutesToSendVideo(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testAPIBase+"sendVideo",
		httpmock.NewJsonResponderOrPanic(200, sentResponse("video", "video-file-id")))

	store := newTestStore()
	handle, err := store.Upload(context.Background(), writeArtifact(t, "reel.mp4"), reelRef())
	require.NoError(t, err)

	assert.Equal(t, "video-file-id", handle)
}

func TestUpload_AudioRoutesToSendAudio(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	var form map[string]string
	httpmock.RegisterResponder("POST", testAPIBase+"sendAudio",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseMultipartForm(1<<20))
			form = map[string]string{
				"chat_id":  req.FormValue("chat_id"),
				"caption":  req.FormValue("caption"),
				"duration": req.FormValue("duration"),
			}
			return httpmock.NewJsonResponse(200, sentResponse("audio", "audio-file-id"))
		})

	store := newTestStore()
	handle, err := store.Upload(context.Background(), writeArtifact(t, "track.mp3"), reelRef())
	require.NoError(t, err)

	assert.Equal(t, "audio-file-id", handle)
	assert.Equal(t, "-1001234567890", form["chat_id"])
	assert.Equal(t, "Sunset reel", form["caption"])
	assert.Equal(t, "42", form["duration"])
}

func TestUpload_PhotoPicksLargestSize(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	payload := map[string]any{
		"ok": true,
		"result": map[string]any{
			"photo": []map[string]string{
				{"file_id": "small"},
				{"file_id": "medium"},
				{"file_id": "large"},
			},
		},
	}
	httpmock.RegisterResponder("POST", testAPIBase+"sendPhoto",
		httpmock.NewJsonResponderOrPanic(200, payload))

	store := newTestStore()
	handle, err := store.Upload(context.Background(), writeArtifact(t, "post.jpg"), reelRef())
	require.NoError(t, err)

	assert.Equal(t, "large", handle)
}

func TestUpload_UnknownExtensionFallsBackToDocument(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testAPIBase+"sendDocument",
		httpmock.NewJsonResponderOrPanic(200, sentResponse("document", "doc-file-id")))

	store := newTestStore()
	handle, err := store.Upload(context.Background(), writeArtifact(t, "archive.bin"), reelRef())
	require.NoError(t, err)

	assert.Equal(t, "doc-file-id", handle)
}

func TestUpload_APIRejectionWrapsUploadError(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	payload := map[string]any{"ok": false, "description": "Request Entity Too Large"}
	httpmock.RegisterResponder("POST", testAPIBase+"sendVideo",
		httpmock.NewJsonResponderOrPanic(413, payload))

	store := newTestStore()
	_, err := store.Upload(context.Background(), writeArtifact(t, "reel.mp4"), reelRef())

	var uploadErr *domain.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, reelRef(), uploadErr.Ref)
	assert.ErrorContains(t, err, "Request Entity Too Large")
}

func TestUpload_MissingFileWrapsUploadError(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	store := newTestStore()
	artifact := &domain.Artifact{Path: "/nonexistent/file.mp4"}

	_, err := store.Upload(context.Background(), artifact, reelRef())

	var uploadErr *domain.UploadError
	require.ErrorAs(t, err, &uploadErr)
}

func TestUpload_MissingFileIDInResponse(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testAPIBase+"sendVideo",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{"ok": true, "result": map[string]any{}}))

	store := newTestStore()
	_, err := store.Upload(context.Background(), writeArtifact(t, "reel.mp4"), reelRef())

	var uploadErr *domain.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.ErrorContains(t, err, "no file id")
}

func TestUpload_CircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testAPIBase+"sendVideo",
		httpmock.NewStringResponder(502, "Bad Gateway"))

	store := newTestStore()
	for i := 0; i < 3; i++ {
		_, err := store.Upload(context.Background(), writeArtifact(t, "reel.mp4"), reelRef())
		require.Error(t, err)
	}
	require.Equal(t, 3, httpmock.GetTotalCallCount())

	// Breaker is open now; the next upload fails without an HTTP call.
	_, err := store.Upload(context.Background(), writeArtifact(t, "reel.mp4"), reelRef())

	var uploadErr *domain.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.ErrorContains(t, err, "circuit breaker is open")
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestUpload_RetriesServerErrors(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("POST", testAPIBase+"sendVideo",
		func(*http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(503, "Service Unavailable"), nil
			}
			return httpmock.NewJsonResponse(200, sentResponse("video", "video-file-id"))
		})

	cfg := Config{
		Token:  "test-token",
		ChatID: "-1001234567890",
		Client: httpclient.ClientConfig{
			BaseURL: "https://tg.example.com",
			Timeout: 5 * time.Second,
			Retry: httpclient.RetryConfig{
				MaxAttempts: 2,
				WaitTime:    10 * time.Millisecond,
				MaxWaitTime: 50 * time.Millisecond,
			},
			CB: httpclient.CBConfig{
				MaxRequests:  5,
				Interval:     60 * time.Second,
				Timeout:      15 * time.Second,
				FailureRatio: 0.9,
			},
		},
	}
	store := New(cfg, zap.NewNop())
	httpmock.ActivateNonDefault(store.client.GetClient())

	handle, err := store.Upload(context.Background(), writeArtifact(t, "reel.mp4"), reelRef())
	require.NoError(t, err)

	assert.Equal(t, "video-file-id", handle)
	assert.Equal(t, 3, calls, "two 5xx attempts then success")
}

func TestMethodFor(t *testing.T) {
	tests := []struct {
		path       string
		wantMethod string
		wantField  string
	}{
		{path: "clip.mp3", wantMethod: "sendAudio", wantField: "audio"},
		{path: "clip.M4A", wantMethod: "sendAudio", wantField: "audio"},
		{path: "reel.mp4", wantMethod: "sendVideo", wantField: "video"},
		{path: "story.webm", wantMethod: "sendVideo", wantField: "video"},
		{path: "post.jpeg", wantMethod: "sendPhoto", wantField: "photo"},
		{path: "data.bin", wantMethod: "sendDocument", wantField: "document"},
		{path: "noext", wantMethod: "sendDocument", wantField: "document"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			method, field := methodFor(tt.path)
			assert.Equal(t, tt.wantMethod, method)
			assert.Equal(t, tt.wantField, field)
		})
	}
}

// Package telegram implements the delivery blob store on the Telegram Bot
// API. An upload yields a reusable file id, so cached entries re-deliver
// without moving bytes again.
package telegram

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/infra/httpclient"
)

// captionLimit is the Bot API's maximum caption length.
const captionLimit = 1024

// Config holds the blob store settings.
type Config struct {
	Client httpclient.ClientConfig
	Token  string
	ChatID string
}

// Store implements domain.BlobStore.
type Store struct {
	client *resty.Client
	cb     *gobreaker.CircuitBreaker[*resty.Response]
	token  string
	chatID string
	logger *zap.Logger
}

// New creates the blob store.
func New(cfg Config, logger *zap.Logger) *Store {
	return &Store{
		client: httpclient.NewRestyClient(cfg.Client),
		cb:     httpclient.NewCircuitBreaker[*resty.Response]("telegram", cfg.Client.CB, logger),
		token:  cfg.Token,
		chatID: cfg.ChatID,
		logger: logger,
	}
}

// sendResponse is the Bot API envelope.
type sendResponse struct {
	OK          bool    `json:"ok"`
	Description string  `json:"description"`
	Result      message `json:"result"`
}

type message struct {
	Audio    *fileRef  `json:"audio"`
	Video    *fileRef  `json:"video"`
	Document *fileRef  `json:"document"`
	Photo    []fileRef `json:"photo"`
}

type fileRef struct {
	FileID string `json:"file_id"`
}

// Upload sends the artifact to the configured chat and returns the file
// id Telegram assigned. The send method follows the file type so players
// render the media natively.
func (s *Store) Upload(ctx context.Context, artifact *domain.Artifact, ref domain.MediaRef) (string, error) {
	method, field := methodFor(artifact.Path)

	form := map[string]string{"chat_id": s.chatID}
	if caption := trimCaption(artifact.Title); caption != "" {
		form["caption"] = caption
	}
	if method == "sendAudio" && artifact.DurationSeconds > 0 {
		form["duration"] = strconv.Itoa(int(artifact.DurationSeconds))
	}

	resp, err := s.cb.Execute(func() (*resty.Response, error) {
		var result sendResponse
		r, reqErr := s.client.R().
			SetContext(ctx).
			SetFile(field, artifact.Path).
			SetFormData(form).
			SetResult(&result).
			SetError(&result).
			Post("/bot" + s.token + "/" + method)
		if reqErr != nil {
			return nil, reqErr
		}
		if r.IsError() || !result.OK {
			return nil, fmt.Errorf("%s returned status %d: %s", method, r.StatusCode(), result.Description)
		}

		return r, nil
	})
	if err != nil {
		return "", &domain.UploadError{Ref: ref, Err: err}
	}

	fileID := deliveredFileID(resp.Result().(*sendResponse).Result)
	if fileID == "" {
		return "", &domain.UploadError{Ref: ref, Err: fmt.Errorf("%s response carried no file id", method)}
	}

	s.logger.Info("artifact uploaded",
		zap.String("ref", ref.Key()),
		zap.String("method", method))

	return fileID, nil
}

// methodFor maps the artifact's extension to the Bot API send method and
// its multipart field name.
func methodFor(path string) (method, field string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".flac", ".wav":
		return "sendAudio", "audio"
	case ".mp4", ".mov", ".webm", ".mkv", ".avi":
		return "sendVideo", "video"
	case ".jpg", ".jpeg", ".png", ".webp":
		return "sendPhoto", "photo"
	default:
		return "sendDocument", "document"
	}
}

// deliveredFileID extracts the file id from whichever slot the send
// method filled. Photos come back as a size ladder; the last entry is the
// largest.
func deliveredFileID(m message) string {
	switch {
	case m.Audio != nil:
		return m.Audio.FileID
	case m.Video != nil:
		return m.Video.FileID
	case m.Document != nil:
		return m.Document.FileID
	case len(m.Photo) > 0:
		return m.Photo[len(m.Photo)-1].FileID
	default:
		return ""
	}
}

func trimCaption(title string) string {
	title = strings.TrimSpace(title)
	if len(title) > captionLimit {
		return title[:captionLimit]
	}
	return title
}

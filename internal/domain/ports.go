package domain

import (
	"context"
	"time"
)

// CacheRepository defines the persistence interface for acquisition cache
// entries, keyed by (platform, canonical_id).
// Implementations: internal/infra/postgres/repository.go
type CacheRepository interface {
	// Get retrieves the entry for the composite key. Returns nil when absent.
	Get(ctx context.Context, platform Platform, canonicalID string) (*CacheEntry, error)

	// Upsert creates or updates the entry for its composite key. The stored
	// delivery handle is only replaced when the stored one is empty.
	Upsert(ctx context.Context, entry *CacheEntry) error

	// FindByLinked retrieves the most recent entry whose linked canonical id
	// equals canonicalID. Returns nil when none exists.
	FindByLinked(ctx context.Context, canonicalID string) (*CacheEntry, error)

	// Link sets the linked canonical id on an existing entry.
	Link(ctx context.Context, platform Platform, canonicalID, linkedCanonicalID string) error

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)

	// CountByPlatform returns entry counts grouped by platform.
	CountByPlatform(ctx context.Context) (map[Platform]int64, error)

	// CountRecognized returns the number of entries carrying a recognized track.
	CountRecognized(ctx context.Context) (int64, error)
}

// Backend is one concrete fetcher in a platform's fallback chain.
// Implementations: internal/infra/backend/ytdlp, internal/infra/backend/gallerydl,
// internal/infra/backend/apify
type Backend interface {
	// Name returns the unique identifier for this backend.
	Name() string

	// Supports reports whether the backend can fetch the given content kind.
	Supports(kind ContentKind) bool

	// Fetch downloads the referenced media into destDir and returns the
	// local artifact.
	Fetch(ctx context.Context, ref MediaRef, destDir string) (*Artifact, error)

	// Classify buckets a Fetch error for the chain executor.
	Classify(err error) ErrorClass
}

// BlobStore uploads artifacts to durable storage.
// Implementations: internal/infra/blob/telegram
type BlobStore interface {
	// Upload stores the artifact and returns a stable opaque delivery handle
	// usable later for re-delivery without re-upload.
	Upload(ctx context.Context, artifact *Artifact, ref MediaRef) (string, error)
}

// Recognizer identifies a music track from an audio sample.
// Implementations: internal/infra/recognition
type Recognizer interface {
	// Recognize returns the identified track, or (nil, nil) when the sample
	// could not be identified. A no-match is a normal outcome, not an error.
	Recognize(ctx context.Context, audioPath string) (*TrackMatch, error)
}

// TrackSearcher finds platform candidates for a track query.
// Implementations: internal/infra/search/youtube
type TrackSearcher interface {
	// Search returns up to limit candidates for the query, in platform order.
	Search(ctx context.Context, query string, limit int) ([]SearchCandidate, error)
}

// MediaProcessor validates fetched artifacts and inspects their streams.
// Implementations: internal/infra/ffmpeg
type MediaProcessor interface {
	// Normalize re-encodes an artifact whose video codec is outside the
	// accepted set. Best-effort: on any probe or transcode failure the
	// original path is returned unchanged.
	Normalize(ctx context.Context, path string) (string, error)

	// DetectAudio reports whether the file carries an audio stream.
	DetectAudio(ctx context.Context, path string) AudioPresence

	// HasVideoStream reports whether the file carries a video stream.
	HasVideoStream(ctx context.Context, path string) (bool, error)
}

// ClipExtractor produces a bounded audio clip from a media file.
// Implementations: internal/infra/ffmpeg
type ClipExtractor interface {
	// ExtractClip writes an audio clip of at most maxSeconds next to the
	// source and returns its path.
	ExtractClip(ctx context.Context, sourcePath string, maxSeconds int) (string, error)
}

// Cache defines the interface for caching operations.
// Implementations: internal/infra/redis/cache.go
type Cache interface {
	// Get retrieves a value by key. Returns nil if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Clear removes all cached values.
	Clear(ctx context.Context) error
}

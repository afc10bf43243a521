// Package domain contains the core business logic and entities.
// This package has no external dependencies (only stdlib).
package domain

import (
	"time"
)

// Platform identifies the hosting platform a media reference points at.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

// Platforms returns every supported platform in a stable order.
func Platforms() []Platform {
	return []Platform{PlatformInstagram, PlatformYouTube, PlatformTikTok}
}

// ContentKind classifies what a canonical reference points at.
type ContentKind string

const (
	KindPost    ContentKind = "post"
	KindReel    ContentKind = "reel"
	KindStory   ContentKind = "story"
	KindVideo   ContentKind = "video"
	KindTrack   ContentKind = "track"
	KindUnknown ContentKind = "unknown"
)

// AudioPresence is the three-valued outcome of audio detection.
// AudioUnknown means "could not be determined" (the probing tool was
// unavailable), distinct from AudioAbsent ("determined to have no audio").
type AudioPresence string

const (
	AudioPresent AudioPresence = "present"
	AudioAbsent  AudioPresence = "absent"
	AudioUnknown AudioPresence = "unknown"
)

// MediaRef is the canonical reference derived deterministically from a raw
// source reference. Immutable once created; (Platform, CanonicalID) is the
// cache key.
type MediaRef struct {
	Platform    Platform    `json:"platform"`
	CanonicalID string      `json:"canonical_id"`
	Kind        ContentKind `json:"kind"`

	// SourceURL is the normalized reference the ref was resolved from.
	// Provenance only: it is not part of the identity and may be empty for
	// refs built from a known platform id.
	SourceURL string `json:"source_url,omitempty"`
}

// Key returns the composite cache key for this reference.
func (r MediaRef) Key() string {
	return string(r.Platform) + ":" + r.CanonicalID
}

// TrackMatch is a music track identified by acoustic recognition.
type TrackMatch struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// SearchQuery builds the "{artist} {title}" phrasing used to look the track
// up on a media platform.
func (t TrackMatch) SearchQuery() string {
	switch {
	case t.Artist == "":
		return t.Title
	case t.Title == "":
		return t.Artist
	default:
		return t.Artist + " " + t.Title
	}
}

// CacheEntry is one durably stored acquisition. Exactly one entry exists per
// (Platform, CanonicalID) pair; writes go through an upsert, never an insert
// of a duplicate row.
type CacheEntry struct {
	ID          string      `json:"id"` // Internal UUID
	CanonicalID string      `json:"canonical_id"`
	Platform    Platform    `json:"platform"`
	Kind        ContentKind `json:"kind"`

	Title           string        `json:"title"`
	DeliveryHandle  string        `json:"delivery_handle"`
	DurationSeconds float64       `json:"duration_seconds,omitempty"` // 0 = unknown
	HasAudio        AudioPresence `json:"has_audio"`

	// Track is set when acoustic recognition identified the media.
	Track *TrackMatch `json:"recognized_track,omitempty"`

	// LinkedCanonicalID points a secondary entry back at the canonical id of
	// the request that produced it.
	LinkedCanonicalID string `json:"linked_canonical_id,omitempty"`

	// AcquiredVia names the backend that produced the artifact; AttemptTrail
	// records every backend tried as "name:outcome".
	AcquiredVia  string   `json:"acquired_via,omitempty"`
	AttemptTrail []string `json:"attempt_trail,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCacheEntry creates a CacheEntry for a freshly uploaded artifact.
func NewCacheEntry(ref MediaRef, title, deliveryHandle string) *CacheEntry {
	now := time.Now().UTC()
	return &CacheEntry{
		CanonicalID:    ref.CanonicalID,
		Platform:       ref.Platform,
		Kind:           ref.Kind,
		Title:          title,
		DeliveryHandle: deliveryHandle,
		HasAudio:       AudioUnknown,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Ref reconstructs the canonical reference of the entry.
func (e *CacheEntry) Ref() MediaRef {
	return MediaRef{Platform: e.Platform, CanonicalID: e.CanonicalID, Kind: e.Kind}
}

// Artifact is a media file a backend fetched to local disk.
type Artifact struct {
	Path            string
	Title           string
	DurationSeconds float64
}

// Acquisition is the outcome of a successful pipeline run, either fresh or
// served from the cache.
type Acquisition struct {
	Ref               MediaRef      `json:"ref"`
	DeliveryHandle    string        `json:"delivery_handle"`
	Title             string        `json:"title"`
	DurationSeconds   float64       `json:"duration_seconds,omitempty"`
	HasAudio          AudioPresence `json:"has_audio"`
	RecognizedTrack   *TrackMatch   `json:"recognized_track,omitempty"`
	LinkedCanonicalID string        `json:"linked_canonical_id,omitempty"`
	FromCache         bool          `json:"from_cache"`
}

// AcquisitionFromEntry builds the caller-facing result for a cache entry.
func AcquisitionFromEntry(e *CacheEntry, fromCache bool) *Acquisition {
	return &Acquisition{
		Ref:               e.Ref(),
		DeliveryHandle:    e.DeliveryHandle,
		Title:             e.Title,
		DurationSeconds:   e.DurationSeconds,
		HasAudio:          e.HasAudio,
		RecognizedTrack:   e.Track,
		LinkedCanonicalID: e.LinkedCanonicalID,
		FromCache:         fromCache,
	}
}

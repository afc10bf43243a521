package postgres

import (
	"time"

	"media-acquisition-service/internal/domain"

	"github.com/lib/pq"
)

// MediaEntryModel is the GORM model for the media_entries table.
type MediaEntryModel struct {
	ID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Platform    string `gorm:"type:varchar(20);not null;index:idx_platform_canonical,unique"`
	CanonicalID string `gorm:"type:varchar(100);not null;index:idx_platform_canonical,unique"`
	Kind        string `gorm:"type:varchar(20);not null"`

	Title          string `gorm:"type:varchar(500)"`
	DeliveryHandle string `gorm:"type:varchar(255)"`

	// Stream facts
	DurationSeconds float64 `gorm:"type:decimal(10,2);default:0"`
	HasAudio        string  `gorm:"type:varchar(10);not null;default:'unknown'"`

	// Recognition outcome; empty track_title means no recognized track.
	TrackTitle  string `gorm:"type:varchar(300)"`
	TrackArtist string `gorm:"type:varchar(300)"`

	LinkedCanonicalID string `gorm:"type:varchar(100);index"`

	// Provenance
	AcquiredVia  string         `gorm:"type:varchar(50)"`
	AttemptTrail pq.StringArray `gorm:"type:text[]"`

	// Timestamps
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for MediaEntryModel.
func (MediaEntryModel) TableName() string {
	return "media_entries"
}

// ToDomain converts MediaEntryModel to domain.CacheEntry.
func (m *MediaEntryModel) ToDomain() *domain.CacheEntry {
	var track *domain.TrackMatch
	if m.TrackTitle != "" {
		track = &domain.TrackMatch{Title: m.TrackTitle, Artist: m.TrackArtist}
	}

	return &domain.CacheEntry{
		ID:                m.ID,
		CanonicalID:       m.CanonicalID,
		Platform:          domain.Platform(m.Platform),
		Kind:              domain.ContentKind(m.Kind),
		Title:             m.Title,
		DeliveryHandle:    m.DeliveryHandle,
		DurationSeconds:   m.DurationSeconds,
		HasAudio:          domain.AudioPresence(m.HasAudio),
		Track:             track,
		LinkedCanonicalID: m.LinkedCanonicalID,
		AcquiredVia:       m.AcquiredVia,
		AttemptTrail:      m.AttemptTrail,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain creates a MediaEntryModel from domain.CacheEntry.
func FromDomain(e *domain.CacheEntry) *MediaEntryModel {
	model := &MediaEntryModel{
		ID:                e.ID,
		Platform:          string(e.Platform),
		CanonicalID:       e.CanonicalID,
		Kind:              string(e.Kind),
		Title:             e.Title,
		DeliveryHandle:    e.DeliveryHandle,
		DurationSeconds:   e.DurationSeconds,
		HasAudio:          string(e.HasAudio),
		LinkedCanonicalID: e.LinkedCanonicalID,
		AcquiredVia:       e.AcquiredVia,
		AttemptTrail:      e.AttemptTrail,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
	if e.Track != nil {
		model.TrackTitle = e.Track.Title
		model.TrackArtist = e.Track.Artist
	}

	return model
}

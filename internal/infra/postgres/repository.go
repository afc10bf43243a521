package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"media-acquisition-service/internal/domain"
)

// Repository implements domain.CacheRepository using PostgreSQL.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves the entry for the composite (platform, canonical_id) key.
func (r *Repository) Get(ctx context.Context, platform domain.Platform, canonicalID string) (*domain.CacheEntry, error) {
	var model MediaEntryModel
	err := r.db.WithContext(ctx).
		Where("platform = ? AND canonical_id = ?", string(platform), canonicalID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Not found
		}

		return nil, fmt.Errorf("getting media entry: %w", err)
	}

	return model.ToDomain(), nil
}

// Upsert creates or updates the entry for its composite key.
//
// The stored delivery handle is only replaced when the stored one is empty,
// so a repeated acquisition never invalidates a handle that was already
// given out.
func (r *Repository) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	model := FromDomain(entry)
	model.UpdatedAt = time.Now().UTC()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform"}, {Name: "canonical_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"kind":  model.Kind,
			"title": model.Title,
			"delivery_handle": gorm.Expr(
				"CASE WHEN media_entries.delivery_handle = '' THEN ? ELSE media_entries.delivery_handle END",
				model.DeliveryHandle,
			),
			"duration_seconds":    model.DurationSeconds,
			"has_audio":           model.HasAudio,
			"track_title":         model.TrackTitle,
			"track_artist":        model.TrackArtist,
			"linked_canonical_id": model.LinkedCanonicalID,
			"acquired_via":        model.AcquiredVia,
			"attempt_trail":       model.AttemptTrail,
			"updated_at":          model.UpdatedAt,
		}),
	}).Create(model).Error

	if err != nil {
		return fmt.Errorf("upserting media entry: %w", err)
	}

	// Update the domain object with database-generated fields
	entry.ID = model.ID
	entry.CreatedAt = model.CreatedAt
	entry.UpdatedAt = model.UpdatedAt

	return nil
}

// FindByLinked retrieves the most recent entry whose linked canonical id
// equals canonicalID.
func (r *Repository) FindByLinked(ctx context.Context, canonicalID string) (*domain.CacheEntry, error) {
	var model MediaEntryModel
	err := r.db.WithContext(ctx).
		Where("linked_canonical_id = ?", canonicalID).
		Order("updated_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Not found
		}

		return nil, fmt.Errorf("finding linked media entry: %w", err)
	}

	return model.ToDomain(), nil
}

// Link sets the linked canonical id on an existing entry.
func (r *Repository) Link(ctx context.Context, platform domain.Platform, canonicalID, linkedCanonicalID string) error {
	err := r.db.WithContext(ctx).Model(&MediaEntryModel{}).
		Where("platform = ? AND canonical_id = ?", string(platform), canonicalID).
		Updates(map[string]interface{}{
			"linked_canonical_id": linkedCanonicalID,
			"updated_at":          time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("linking media entry: %w", err)
	}

	return nil
}

// Count returns the total number of entries.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&MediaEntryModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting media entries: %w", err)
	}

	return count, nil
}

// CountByPlatform returns entry counts grouped by platform.
func (r *Repository) CountByPlatform(ctx context.Context) (map[domain.Platform]int64, error) {
	type platformCount struct {
		Platform string
		Total    int64
	}

	var rows []platformCount
	err := r.db.WithContext(ctx).Model(&MediaEntryModel{}).
		Select("platform, COUNT(*) AS total").
		Group("platform").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting media entries by platform: %w", err)
	}

	counts := make(map[domain.Platform]int64, len(rows))
	for _, row := range rows {
		counts[domain.Platform(row.Platform)] = row.Total
	}

	return counts, nil
}

// CountRecognized returns the number of entries carrying a recognized track.
func (r *Repository) CountRecognized(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&MediaEntryModel{}).
		Where("track_title <> ''").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting recognized media entries: %w", err)
	}

	return count, nil
}

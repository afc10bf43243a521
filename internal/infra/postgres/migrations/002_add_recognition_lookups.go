package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// addRecognitionLookups adds the indexes backing the recognition flow.
//
// A recognized track entry points back at the canonical id of the request
// that produced it via linked_canonical_id. The secondary resolution loop
// looks entries up by that column before re-running recognition, and the
// dashboard counts entries whose track_title is set. Both are partial
// indexes: the vast majority of rows carry neither value.
func addRecognitionLookups() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "002_add_recognition_lookups",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_media_entries_linked
				ON media_entries(linked_canonical_id, updated_at DESC)
				WHERE linked_canonical_id <> ''
			`).Error; err != nil {
				return err
			}

			if err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_media_entries_recognized
				ON media_entries(track_title)
				WHERE track_title <> ''
			`).Error; err != nil {
				return err
			}

			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			_ = tx.Exec(`DROP INDEX IF EXISTS idx_media_entries_recognized`).Error
			_ = tx.Exec(`DROP INDEX IF EXISTS idx_media_entries_linked`).Error
			return nil
		},
	}
}

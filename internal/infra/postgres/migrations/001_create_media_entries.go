package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// createMediaEntriesTable creates the media_entries table with all indexes.
func createMediaEntriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "001_create_media_entries",
		Migrate: func(tx *gorm.DB) error {
			// Create table
			err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS media_entries (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					platform VARCHAR(20) NOT NULL,
					canonical_id VARCHAR(100) NOT NULL,
					kind VARCHAR(20) NOT NULL,
					title VARCHAR(500),
					delivery_handle VARCHAR(255),

					-- Stream facts
					duration_seconds DECIMAL(10,2) DEFAULT 0,
					has_audio VARCHAR(10) NOT NULL DEFAULT 'unknown',

					-- Recognition outcome
					track_title VARCHAR(300),
					track_artist VARCHAR(300),
					linked_canonical_id VARCHAR(100),

					-- Provenance
					acquired_via VARCHAR(50),
					attempt_trail TEXT[],

					-- Timestamps
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

					-- Unique constraint for upsert
					CONSTRAINT uq_platform_canonical UNIQUE (platform, canonical_id)
				);
			`).Error
			if err != nil {
				return err
			}

			// Create indexes
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_media_entries_platform ON media_entries(platform);",
				"CREATE INDEX IF NOT EXISTS idx_media_entries_updated_at ON media_entries(updated_at DESC);",
			}

			for _, idx := range indexes {
				if err := tx.Exec(idx).Error; err != nil {
					return err
				}
			}

			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS media_entries;").Error
		},
	}
}

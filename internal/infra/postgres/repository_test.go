package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"media-acquisition-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresDriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupTestDB creates a PostgreSQL testcontainer and returns a connected GORM DB
//
// Prerequisites:
//   - Docker must be running
//   - OR skip integration tests with: go test -short
func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	ctx := context.Background()

	pgContainer, err := postgresContainer.Run(ctx,
		"postgres:16-alpine",
		postgresContainer.WithDatabase("testdb"),
		postgresContainer.WithUsername("testuser"),
		postgresContainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf(`Failed to start PostgreSQL container: %v

Docker Prerequisites:
1. Ensure Docker is running
2. OR skip integration tests: go test -short

`, err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, err := gorm.Open(postgresDriver.Open(connStr), &gorm.Config{
		Logger: nil, // Silent logger for tests
	})
	require.NoError(t, err, "Failed to connect to test database")

	err = db.AutoMigrate(&MediaEntryModel{})
	require.NoError(t, err, "Failed to run migrations")

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

// createTestEntry is a factory function for creating test cache entries
func createTestEntry(platform domain.Platform, canonicalID string) *domain.CacheEntry {
	return &domain.CacheEntry{
		Platform:        platform,
		CanonicalID:     canonicalID,
		Kind:            domain.KindVideo,
		Title:           "Test Clip",
		DeliveryHandle:  "handle-" + canonicalID,
		DurationSeconds: 42.5,
		HasAudio:        domain.AudioPresent,
		AcquiredVia:     "ytdlp",
		AttemptTrail:    []string{"ytdlp:ok"},
	}
}

// TestUpsert_InsertNew verifies that Upsert creates a new record
func TestUpsert_InsertNew(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	entry := createTestEntry(domain.PlatformTikTok, "7301234567890123456")

	err := repo.Upsert(ctx, entry)
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID, "ID should be generated")
	assert.False(t, entry.UpdatedAt.IsZero(), "UpdatedAt should be set")

	var model MediaEntryModel
	err = db.Where("platform = ? AND canonical_id = ?", "tiktok", "7301234567890123456").First(&model).Error
	require.NoError(t, err)
	assert.Equal(t, entry.ID, model.ID)
	assert.Equal(t, "Test Clip", model.Title)
	assert.Equal(t, "handle-7301234567890123456", model.DeliveryHandle)
	assert.Equal(t, "present", model.HasAudio)
	assert.Equal(t, []string{"ytdlp:ok"}, []string(model.AttemptTrail))
}

// TestUpsert_KeepsStoredDeliveryHandle verifies the fill-missing rule: a
// non-empty stored handle survives later upserts, an empty one is filled in.
func TestUpsert_KeepsStoredDeliveryHandle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	entry := createTestEntry(domain.PlatformInstagram, "DHxQzAbCdEf")
	entry.DeliveryHandle = "first-handle"
	require.NoError(t, repo.Upsert(ctx, entry))

	// A repeated acquisition must not replace the handle callers already hold.
	again := createTestEntry(domain.PlatformInstagram, "DHxQzAbCdEf")
	again.DeliveryHandle = "second-handle"
	again.Title = "Updated Clip"
	require.NoError(t, repo.Upsert(ctx, again))

	stored, err := repo.Get(ctx, domain.PlatformInstagram, "DHxQzAbCdEf")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "first-handle", stored.DeliveryHandle, "stored handle should win")
	assert.Equal(t, "Updated Clip", stored.Title, "other fields should update")

	// An empty stored handle is the one case where the new value lands.
	bare := createTestEntry(domain.PlatformInstagram, "DIyRsTuVwXy")
	bare.DeliveryHandle = ""
	require.NoError(t, repo.Upsert(ctx, bare))

	filled := createTestEntry(domain.PlatformInstagram, "DIyRsTuVwXy")
	filled.DeliveryHandle = "late-handle"
	require.NoError(t, repo.Upsert(ctx, filled))

	stored, err = repo.Get(ctx, domain.PlatformInstagram, "DIyRsTuVwXy")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "late-handle", stored.DeliveryHandle, "empty handle should be filled")
}

// TestUpsert_PrimaryKeyStability verifies ID doesn't change across updates
func TestUpsert_PrimaryKeyStability(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	entry := createTestEntry(domain.PlatformYouTube, "dQw4w9WgXcQ")
	require.NoError(t, repo.Upsert(ctx, entry))

	originalID := entry.ID
	assert.NotEmpty(t, originalID, "Original ID should be generated")

	for i, title := range []string{"First Update", "Second Update", "Third Update"} {
		entry.Title = title
		require.NoError(t, repo.Upsert(ctx, entry), "Update %d should succeed", i+1)
		assert.Equal(t, originalID, entry.ID,
			"ID should remain unchanged after update %d", i+1)
	}

	var count int64
	err := db.Model(&MediaEntryModel{}).
		Where("platform = ? AND canonical_id = ?", "youtube", "dQw4w9WgXcQ").
		Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "Should have exactly 1 record")

	var model MediaEntryModel
	err = db.Where("id = ?", originalID).First(&model).Error
	require.NoError(t, err)
	assert.Equal(t, "Third Update", model.Title, "Should have latest update")
}

// TestUpsert_ConcurrentOperations verifies goroutine safety
func TestUpsert_ConcurrentOperations(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	const goroutines = 10
	var wg sync.WaitGroup
	errChan := make(chan error, goroutines)

	// Launch goroutines that all upsert the same platform + canonical_id
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(iteration int) {
			defer wg.Done()

			entry := createTestEntry(domain.PlatformTikTok, "concurrent_test")
			entry.Title = "Concurrent Title " + string(rune('A'+iteration))

			if err := repo.Upsert(ctx, entry); err != nil {
				errChan <- err
			}
		}(i)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	assert.Empty(t, errs, "No errors should occur during concurrent upserts")

	var count int64
	err := db.Model(&MediaEntryModel{}).
		Where("platform = ? AND canonical_id = ?", "tiktok", "concurrent_test").
		Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "Should have exactly 1 record after concurrent upserts")

	var model MediaEntryModel
	err = db.Where("platform = ? AND canonical_id = ?", "tiktok", "concurrent_test").
		First(&model).Error
	require.NoError(t, err)
	assert.NotEmpty(t, model.ID, "Should have valid ID")
	assert.NotEmpty(t, model.Title, "Should have a title")
}

// TestGet_NotFound verifies a miss maps to (nil, nil)
func TestGet_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)

	entry, err := repo.Get(context.Background(), domain.PlatformYouTube, "missing")
	require.NoError(t, err)
	assert.Nil(t, entry, "Missing entry should return nil without error")
}

// TestGet_RoundTrip verifies a full entry survives storage and retrieval
func TestGet_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	entry := createTestEntry(domain.PlatformYouTube, "dQw4w9WgXcQ")
	entry.Kind = domain.KindTrack
	entry.Track = &domain.TrackMatch{Title: "Starlight", Artist: "Nova"}
	entry.LinkedCanonicalID = "7301234567890123456"
	entry.AttemptTrail = []string{"ytdlp:fatal", "ytdlp-cookies:ok"}
	entry.AcquiredVia = "ytdlp-cookies"
	require.NoError(t, repo.Upsert(ctx, entry))

	got, err := repo.Get(ctx, domain.PlatformYouTube, "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, domain.KindTrack, got.Kind)
	assert.Equal(t, "Test Clip", got.Title)
	assert.Equal(t, 42.5, got.DurationSeconds)
	assert.Equal(t, domain.AudioPresent, got.HasAudio)
	require.NotNil(t, got.Track, "recognized track should round-trip")
	assert.Equal(t, "Starlight", got.Track.Title)
	assert.Equal(t, "Nova", got.Track.Artist)
	assert.Equal(t, "7301234567890123456", got.LinkedCanonicalID)
	assert.Equal(t, "ytdlp-cookies", got.AcquiredVia)
	assert.Equal(t, []string{"ytdlp:fatal", "ytdlp-cookies:ok"}, got.AttemptTrail)
}

// TestFindByLinked verifies lookup by the originating canonical id
func TestFindByLinked(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	// No link yet
	got, err := repo.FindByLinked(ctx, "origin_123")
	require.NoError(t, err)
	assert.Nil(t, got)

	older := createTestEntry(domain.PlatformYouTube, "older_track_1")
	older.LinkedCanonicalID = "origin_123"
	require.NoError(t, repo.Upsert(ctx, older))

	time.Sleep(10 * time.Millisecond)

	newer := createTestEntry(domain.PlatformYouTube, "newer_track_2")
	newer.LinkedCanonicalID = "origin_123"
	require.NoError(t, repo.Upsert(ctx, newer))

	got, err = repo.FindByLinked(ctx, "origin_123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "newer_track_2", got.CanonicalID, "most recently updated entry should win")
}

// TestLink verifies linking an existing entry to its originating request
func TestLink(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	entry := createTestEntry(domain.PlatformYouTube, "dQw4w9WgXcQ")
	require.NoError(t, repo.Upsert(ctx, entry))
	require.Empty(t, entry.LinkedCanonicalID)

	err := repo.Link(ctx, domain.PlatformYouTube, "dQw4w9WgXcQ", "origin_reel_9")
	require.NoError(t, err)

	got, err := repo.Get(ctx, domain.PlatformYouTube, "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "origin_reel_9", got.LinkedCanonicalID)
}

// TestCounts verifies the dashboard counters
func TestCounts(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	entries := []*domain.CacheEntry{
		createTestEntry(domain.PlatformTikTok, "vid_1"),
		createTestEntry(domain.PlatformTikTok, "vid_2"),
		createTestEntry(domain.PlatformInstagram, "reel_1"),
		createTestEntry(domain.PlatformYouTube, "track_1"),
	}
	entries[3].Track = &domain.TrackMatch{Title: "Starlight", Artist: "Nova"}

	for _, e := range entries {
		require.NoError(t, repo.Upsert(ctx, e))
	}

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	byPlatform, err := repo.CountByPlatform(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), byPlatform[domain.PlatformTikTok])
	assert.Equal(t, int64(1), byPlatform[domain.PlatformInstagram])
	assert.Equal(t, int64(1), byPlatform[domain.PlatformYouTube])

	recognized, err := repo.CountRecognized(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), recognized)
}

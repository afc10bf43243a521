// Package service provides application use cases.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
	"media-acquisition-service/pkg/flight"
)

// AcquisitionConfig holds the pipeline settings.
type AcquisitionConfig struct {
	// ScratchDir is the root for per-request download directories.
	ScratchDir string

	// PipelineTimeout bounds one full acquisition run, applied inside the
	// single-flight execution so joiners share the bound.
	PipelineTimeout time.Duration
}

// AcquisitionService turns a source reference into a durably stored,
// re-deliverable media entry. One upload per canonical reference: concurrent
// requests for the same reference share a single pipeline run, and completed
// runs are served from the cache.
type AcquisitionService struct {
	cfg       AcquisitionConfig
	repo      domain.CacheRepository
	chain     *ChainExecutor
	store     domain.BlobStore
	processor domain.MediaProcessor
	flight    *flight.Group[*domain.Acquisition]
	logger    *zap.Logger
}

// NewAcquisitionService creates a new AcquisitionService.
func NewAcquisitionService(
	cfg AcquisitionConfig,
	repo domain.CacheRepository,
	chain *ChainExecutor,
	store domain.BlobStore,
	processor domain.MediaProcessor,
	logger *zap.Logger,
) *AcquisitionService {
	return &AcquisitionService{
		cfg:       cfg,
		repo:      repo,
		chain:     chain,
		store:     store,
		processor: processor,
		flight:    flight.New[*domain.Acquisition](),
		logger:    logger,
	}
}

// Acquire resolves a raw source reference and runs the acquisition pipeline
// for it.
func (s *AcquisitionService) Acquire(ctx context.Context, raw string) (*domain.Acquisition, error) {
	ref, err := domain.Resolve(raw)
	if err != nil {
		return nil, err
	}

	return s.AcquireRef(ctx, ref)
}

// AcquireRef runs the acquisition pipeline for an already resolved
// reference. Concurrent calls for the same (platform, canonical_id) collapse
// into one run.
func (s *AcquisitionService) AcquireRef(ctx context.Context, ref domain.MediaRef) (*domain.Acquisition, error) {
	acq, shared, err := s.flight.Do(ctx, ref.Key(), func(runCtx context.Context) (*domain.Acquisition, error) {
		if s.cfg.PipelineTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, s.cfg.PipelineTimeout)
			defer cancel()
		}

		return s.acquire(runCtx, ref)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		s.logger.Debug("joined in-flight acquisition", zap.String("ref", ref.Key()))
	}

	return acq, nil
}

// Lookup returns the cached acquisition for a composite key, or nil when the
// reference was never acquired.
func (s *AcquisitionService) Lookup(ctx context.Context, platform domain.Platform, canonicalID string) (*domain.Acquisition, error) {
	entry, err := s.repo.Get(ctx, platform, canonicalID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	return domain.AcquisitionFromEntry(entry, true), nil
}

// Chains returns the configured backend names per platform, in chain order.
func (s *AcquisitionService) Chains() map[domain.Platform][]string {
	return s.chain.Names()
}

// CacheStats summarizes the durable cache for the operations dashboard.
type CacheStats struct {
	Total      int64
	ByPlatform map[domain.Platform]int64
	Recognized int64
}

// Stats reads the cache counters.
func (s *AcquisitionService) Stats(ctx context.Context) (*CacheStats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	byPlatform, err := s.repo.CountByPlatform(ctx)
	if err != nil {
		return nil, err
	}

	recognized, err := s.repo.CountRecognized(ctx)
	if err != nil {
		return nil, err
	}

	return &CacheStats{Total: total, ByPlatform: byPlatform, Recognized: recognized}, nil
}

// acquire is one pipeline run: cache lookup, chain fetch, post-processing,
// upload, cache write. Runs at most once per key at a time.
func (s *AcquisitionService) acquire(ctx context.Context, ref domain.MediaRef) (*domain.Acquisition, error) {
	start := time.Now()

	entry, err := s.repo.Get(ctx, ref.Platform, ref.CanonicalID)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil && entry.DeliveryHandle != "" {
		s.logger.Info("cache hit",
			zap.String("ref", ref.Key()),
			zap.String("kind", string(ref.Kind)),
		)

		return domain.AcquisitionFromEntry(entry, true), nil
	}

	outcome, cleanup, err := s.fetchArtifact(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	artifact := outcome.Artifact

	// Best effort: a codec outside the broadly playable set gets re-encoded,
	// anything else (including still images) passes through untouched.
	path, err := s.processor.Normalize(ctx, artifact.Path)
	if err != nil {
		return nil, err
	}
	artifact.Path = path

	presence := s.processor.DetectAudio(ctx, artifact.Path)

	title := strings.TrimSpace(artifact.Title)
	if title == "" {
		title = ref.CanonicalID
	}
	artifact.Title = title

	handle, err := s.store.Upload(ctx, artifact, ref)
	if err != nil {
		// No cache write: a row must never point at an upload that did not
		// complete.
		return nil, err
	}

	fresh := domain.NewCacheEntry(ref, title, handle)
	fresh.DurationSeconds = artifact.DurationSeconds
	fresh.HasAudio = presence
	fresh.AcquiredVia = outcome.Backend
	fresh.AttemptTrail = outcome.Trail
	if entry != nil {
		// Refetch of a row that never got a handle; keep what it learned.
		fresh.Track = entry.Track
		fresh.LinkedCanonicalID = entry.LinkedCanonicalID
	}

	if err := s.repo.Upsert(ctx, fresh); err != nil {
		// The caller still gets its handle; the entry is rebuilt on the next
		// request for this reference.
		s.logger.Error("cache write failed",
			zap.String("ref", ref.Key()),
			zap.Error(err),
		)
	}

	s.logger.Info("acquisition completed",
		zap.String("ref", ref.Key()),
		zap.String("backend", outcome.Backend),
		zap.String("has_audio", string(presence)),
		zap.Duration("duration", time.Since(start)),
	)

	return domain.AcquisitionFromEntry(fresh, false), nil
}

// fetchArtifact runs the backend chain into a fresh scratch subdirectory.
// The returned cleanup removes the subdirectory and everything in it; the
// caller invokes it once done with the artifact.
func (s *AcquisitionService) fetchArtifact(ctx context.Context, ref domain.MediaRef) (*ChainOutcome, func(), error) {
	dir := filepath.Join(s.cfg.ScratchDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating scratch dir: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("scratch cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}

	outcome, err := s.chain.Run(ctx, ref, dir)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return outcome, cleanup, nil
}

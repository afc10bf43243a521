package service

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
)

// RecognitionConfig holds the recognition flow settings.
type RecognitionConfig struct {
	// ClipSeconds bounds the audio clip handed to the fingerprinter.
	ClipSeconds int

	// MaxCandidates caps the platform search when looking the recognized
	// track up.
	MaxCandidates int
}

// RecognitionService identifies the music in a media sample and acquires the
// identified track as a regular cache entry linked back to its origin.
//
// The flow never recurses: the track acquisition at the end is a plain
// AcquireRef, which has no path back into recognition.
type RecognitionService struct {
	cfg        RecognitionConfig
	acquirer   *AcquisitionService
	repo       domain.CacheRepository
	processor  domain.MediaProcessor
	extractor  domain.ClipExtractor
	recognizer domain.Recognizer
	searcher   domain.TrackSearcher
	logger     *zap.Logger
}

// NewRecognitionService creates a new RecognitionService.
func NewRecognitionService(
	cfg RecognitionConfig,
	acquirer *AcquisitionService,
	repo domain.CacheRepository,
	processor domain.MediaProcessor,
	extractor domain.ClipExtractor,
	recognizer domain.Recognizer,
	searcher domain.TrackSearcher,
	logger *zap.Logger,
) *RecognitionService {
	if cfg.ClipSeconds <= 0 {
		cfg.ClipSeconds = 30
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}

	return &RecognitionService{
		cfg:        cfg,
		acquirer:   acquirer,
		repo:       repo,
		processor:  processor,
		extractor:  extractor,
		recognizer: recognizer,
		searcher:   searcher,
		logger:     logger,
	}
}

// RecognizeAndAcquire identifies the music in the referenced media and
// returns the acquired track. The reference is either a platform URL (the
// sample is chain-fetched, and an earlier recognition of the same reference
// short-circuits through its linked entry) or a path to a readable local
// file (used as the sample directly, with no origin to link back to).
//
// An unidentifiable sample returns domain.ErrNoMatch.
func (s *RecognitionService) RecognizeAndAcquire(ctx context.Context, reference string) (*domain.Acquisition, error) {
	ref, resolveErr := domain.Resolve(reference)
	if resolveErr == nil {
		linked, err := s.repo.FindByLinked(ctx, ref.CanonicalID)
		if err != nil {
			return nil, fmt.Errorf("linked entry lookup: %w", err)
		}
		if linked != nil {
			s.logger.Info("recognition short-circuit, track already linked",
				zap.String("origin", ref.Key()),
				zap.String("track", linked.Ref().Key()),
			)

			return domain.AcquisitionFromEntry(linked, true), nil
		}

		return s.recognizeRemote(ctx, ref)
	}

	if info, err := os.Stat(reference); err == nil && info.Mode().IsRegular() {
		return s.recognizeLocal(ctx, reference)
	}

	// Neither a platform reference nor a readable file.
	return nil, resolveErr
}

// recognizeRemote fetches a sample of the referenced media through the
// backend chain (no upload) and runs recognition on it.
func (s *RecognitionService) recognizeRemote(ctx context.Context, ref domain.MediaRef) (*domain.Acquisition, error) {
	outcome, cleanup, err := s.acquirer.fetchArtifact(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	track, err := s.recognizeSample(ctx, outcome.Artifact.Path)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, domain.ErrNoMatch
	}

	return s.resolveTrack(ctx, *track, &ref)
}

// recognizeLocal runs recognition on a caller-provided sample file. The file
// is left in place; only the derived clip is removed.
func (s *RecognitionService) recognizeLocal(ctx context.Context, path string) (*domain.Acquisition, error) {
	track, err := s.recognizeSample(ctx, path)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, domain.ErrNoMatch
	}

	// Ad-hoc samples have no canonical origin to link back to.
	return s.resolveTrack(ctx, *track, nil)
}

// recognizeSample extracts a bounded audio clip when the sample carries a
// video stream, then fingerprints it. (nil, nil) means no match.
func (s *RecognitionService) recognizeSample(ctx context.Context, sample string) (*domain.TrackMatch, error) {
	audioPath := sample

	hasVideo, err := s.processor.HasVideoStream(ctx, sample)
	if err != nil {
		// Probe failures are not fatal here: hand the sample to the
		// fingerprinter as-is and let it decide.
		s.logger.Warn("sample probe failed, using sample directly",
			zap.String("sample", sample),
			zap.Error(err),
		)
		hasVideo = false
	}

	if hasVideo {
		clip, err := s.extractor.ExtractClip(ctx, sample, s.cfg.ClipSeconds)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = os.Remove(clip)
		}()
		audioPath = clip
	}

	track, err := s.recognizer.Recognize(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	if track != nil {
		s.logger.Info("track recognized",
			zap.String("title", track.Title),
			zap.String("artist", track.Artist),
		)
	}

	return track, nil
}

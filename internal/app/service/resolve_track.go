package service

import (
	"context"

	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
)

// resolveTrack turns a recognized track into a cached acquisition: search
// the platform for candidates, rank them, acquire the winner through the
// regular pipeline, then link the new entry back to the originating request
// and record the match on it. origin is nil for ad-hoc samples.
func (s *RecognitionService) resolveTrack(ctx context.Context, track domain.TrackMatch, origin *domain.MediaRef) (*domain.Acquisition, error) {
	query := track.SearchQuery()

	candidates, err := s.searcher.Search(ctx, query, s.cfg.MaxCandidates)
	if err != nil {
		return nil, err
	}

	winner, ok := domain.RankCandidates(candidates, track)
	if !ok {
		// Recognition worked but the platform has nothing to deliver; to the
		// caller that is the same dead end as an unidentified sample.
		s.logger.Warn("no search candidates for recognized track",
			zap.String("query", query),
		)

		return nil, domain.ErrNoMatch
	}

	s.logger.Info("track candidate selected",
		zap.String("query", query),
		zap.String("video_id", winner.ID),
		zap.String("title", winner.Title),
	)

	trackRef := domain.MediaRef{
		Platform:    domain.PlatformYouTube,
		CanonicalID: winner.ID,
		Kind:        domain.KindTrack,
	}

	acq, err := s.acquirer.AcquireRef(ctx, trackRef)
	if err != nil {
		return nil, err
	}

	s.recordMatch(ctx, trackRef, track, origin)

	acq.RecognizedTrack = &track
	if origin != nil {
		acq.LinkedCanonicalID = origin.CanonicalID
	}

	return acq, nil
}

// recordMatch writes what recognition learned onto the acquired entry: the
// track metadata, and the pointer back to the originating canonical id. Both
// writes are best effort; the acquisition itself already succeeded.
func (s *RecognitionService) recordMatch(ctx context.Context, trackRef domain.MediaRef, track domain.TrackMatch, origin *domain.MediaRef) {
	entry, err := s.repo.Get(ctx, trackRef.Platform, trackRef.CanonicalID)
	if err != nil || entry == nil {
		s.logger.Warn("recognized entry not readable, match not recorded",
			zap.String("ref", trackRef.Key()),
			zap.Error(err),
		)

		return
	}

	entry.Track = &track
	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.logger.Warn("recording track match failed",
			zap.String("ref", trackRef.Key()),
			zap.Error(err),
		)
	}

	if origin != nil {
		if err := s.repo.Link(ctx, trackRef.Platform, trackRef.CanonicalID, origin.CanonicalID); err != nil {
			s.logger.Warn("linking entry to origin failed",
				zap.String("ref", trackRef.Key()),
				zap.String("origin", origin.Key()),
				zap.Error(err),
			)
		}
	}
}

package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
)

// fakeRecognizer is a scriptable domain.Recognizer.
type fakeRecognizer struct {
	mu         sync.Mutex
	track      *domain.TrackMatch
	err        error
	calls      int
	lastSample string
}

func (r *fakeRecognizer) Recognize(_ context.Context, audioPath string) (*domain.TrackMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lastSample = audioPath
	return r.track, r.err
}

func (r *fakeRecognizer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// fakeSearcher is a scriptable domain.TrackSearcher.
type fakeSearcher struct {
	mu         sync.Mutex
	candidates []domain.SearchCandidate
	err        error
	calls      int
	lastQuery  string
	lastLimit  int
}

func (s *fakeSearcher) Search(_ context.Context, query string, limit int) ([]domain.SearchCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastQuery = query
	s.lastLimit = limit
	return s.candidates, s.err
}

func (s *fakeSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeExtractor is a scriptable domain.ClipExtractor.
type fakeExtractor struct {
	mu         sync.Mutex
	err        error
	calls      int
	lastSource string
	lastMax    int
}

func (e *fakeExtractor) ExtractClip(_ context.Context, sourcePath string, maxSeconds int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.lastSource = sourcePath
	e.lastMax = maxSeconds
	if e.err != nil {
		return "", e.err
	}
	return sourcePath + ".clip.mp3", nil
}

func (e *fakeExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// recognitionFixture bundles a RecognitionService with its fakes.
type recognitionFixture struct {
	pipeline   *testPipeline
	svc        *RecognitionService
	recognizer *fakeRecognizer
	searcher   *fakeSearcher
	extractor  *fakeExtractor
}

func newRecognitionFixture(t *testing.T, chains map[domain.Platform][]domain.Backend) *recognitionFixture {
	t.Helper()

	p := newTestPipeline(t, chains)
	recognizer := &fakeRecognizer{}
	searcher := &fakeSearcher{}
	extractor := &fakeExtractor{}

	svc := NewRecognitionService(
		RecognitionConfig{ClipSeconds: 30, MaxCandidates: 5},
		p.svc,
		p.repo,
		p.proc,
		extractor,
		recognizer,
		searcher,
		zap.NewNop(),
	)

	return &recognitionFixture{
		pipeline:   p,
		svc:        svc,
		recognizer: recognizer,
		searcher:   searcher,
		extractor:  extractor,
	}
}

func starlightCandidates() []domain.SearchCandidate {
	return []domain.SearchCandidate{
		{ID: "vid-live", Title: "Starlight (Live at the Arena)", Channel: "concertfan", DurationSeconds: 312},
		{ID: "vid-good", Title: "Nova - Starlight (Official Audio)", Channel: "Nova", DurationSeconds: 213},
	}
}

func TestRecognizeAndAcquire_FullLoop(t *testing.T) {
	backend := &fakeBackend{name: "ytdlp", title: "dance clip"}
	chains := map[domain.Platform][]domain.Backend{
		domain.PlatformTikTok:  {backend},
		domain.PlatformYouTube: {backend},
	}
	f := newRecognitionFixture(t, chains)
	f.pipeline.proc.hasVideo = true
	f.recognizer.track = &domain.TrackMatch{Title: "Starlight", Artist: "Nova"}
	f.searcher.candidates = starlightCandidates()

	acq, err := f.svc.RecognizeAndAcquire(context.Background(), "https://www.tiktok.com/@dancer/video/7301234567890123456")
	require.NoError(t, err)
	require.NotNil(t, acq)

	// The sample fetch and the track acquisition each ran the chain once,
	// but only the track was uploaded.
	assert.Equal(t, 2, backend.fetchCount())
	assert.Equal(t, 1, f.pipeline.store.uploadCount())

	// A 30s clip was cut from the video sample and fingerprinted.
	assert.Equal(t, 1, f.extractor.callCount())
	assert.Equal(t, 30, f.extractor.lastMax)
	assert.Equal(t, "media.mp4", filepath.Base(f.extractor.lastSource))
	assert.Equal(t, f.extractor.lastSource+".clip.mp3", f.recognizer.lastSample)

	// Ranking picked the official audio over the earlier live cut.
	assert.Equal(t, "Nova Starlight", f.searcher.lastQuery)
	assert.Equal(t, 5, f.searcher.lastLimit)
	assert.Equal(t, domain.PlatformYouTube, acq.Ref.Platform)
	assert.Equal(t, "vid-good", acq.Ref.CanonicalID)
	assert.Equal(t, domain.KindTrack, acq.Ref.Kind)

	require.NotNil(t, acq.RecognizedTrack)
	assert.Equal(t, "Starlight", acq.RecognizedTrack.Title)
	assert.Equal(t, "7301234567890123456", acq.LinkedCanonicalID)

	// The stored entry carries the match and points back at the origin.
	entry := f.pipeline.repo.stored(domain.PlatformYouTube, "vid-good")
	require.NotNil(t, entry)
	require.NotNil(t, entry.Track)
	assert.Equal(t, "Nova", entry.Track.Artist)
	assert.Equal(t, "7301234567890123456", entry.LinkedCanonicalID)
	assert.Equal(t, 1, f.pipeline.repo.linkCount())
}

func TestRecognizeAndAcquire_LinkedShortCircuit(t *testing.T) {
	backend := &fakeBackend{name: "ytdlp"}
	f := newRecognitionFixture(t, singleChain(domain.PlatformTikTok, backend))

	f.pipeline.repo.seed(&domain.CacheEntry{
		Platform:          domain.PlatformYouTube,
		CanonicalID:       "vid-good",
		Kind:              domain.KindTrack,
		Title:             "Nova - Starlight",
		DeliveryHandle:    "stored-handle",
		Track:             &domain.TrackMatch{Title: "Starlight", Artist: "Nova"},
		LinkedCanonicalID: "7301234567890123456",
	})

	acq, err := f.svc.RecognizeAndAcquire(context.Background(), "https://www.tiktok.com/@dancer/video/7301234567890123456")
	require.NoError(t, err)
	require.NotNil(t, acq)

	assert.True(t, acq.FromCache)
	assert.Equal(t, "stored-handle", acq.DeliveryHandle)
	assert.Equal(t, "vid-good", acq.Ref.CanonicalID)

	assert.Equal(t, 0, backend.fetchCount(), "short-circuit must not fetch a sample")
	assert.Equal(t, 0, f.recognizer.callCount(), "short-circuit must not re-recognize")
}

func TestRecognizeAndAcquire_NoMatch(t *testing.T) {
	backend := &fakeBackend{name: "ytdlp"}
	f := newRecognitionFixture(t, singleChain(domain.PlatformTikTok, backend))
	f.pipeline.proc.hasVideo = true
	// recognizer returns (nil, nil): sample fingerprinted but unknown

	acq, err := f.svc.RecognizeAndAcquire(context.Background(), "https://www.tiktok.com/@dancer/video/7301234567890123456")
	require.ErrorIs(t, err, domain.ErrNoMatch)
	assert.Nil(t, acq)

	assert.Equal(t, 1, f.recognizer.callCount())
	assert.Equal(t, 0, f.searcher.callCount(), "no search without a match")
	assert.Equal(t, 0, f.pipeline.store.uploadCount())
}

func TestRecognizeAndAcquire_NoCandidates(t *testing.T) {
	backend := &fakeBackend{name: "ytdlp"}
	f := newRecognitionFixture(t, singleChain(domain.PlatformTikTok, backend))
	f.pipeline.proc.hasVideo = true
	f.recognizer.track = &domain.TrackMatch{Title: "Starlight", Artist: "Nova"}
	// searcher returns nothing

	acq, err := f.svc.RecognizeAndAcquire(context.Background(), "https://www.tiktok.com/@dancer/video/7301234567890123456")
	require.ErrorIs(t, err, domain.ErrNoMatch)
	assert.Nil(t, acq)

	assert.Equal(t, 1, f.searcher.callCount())
	assert.Equal(t, 0, f.pipeline.store.uploadCount())
}

func TestRecognizeAndAcquire_SearchErrorPropagates(t *testing.T) {
	backend := &fakeBackend{name: "ytdlp"}
	f := newRecognitionFixture(t, singleChain(domain.PlatformTikTok, backend))
	f.pipeline.proc.hasVideo = true
	f.recognizer.track = &domain.TrackMatch{Title: "Starlight", Artist: "Nova"}
	f.searcher.err = errors.New("search quota exhausted")

	_, err := f.svc.RecognizeAndAcquire(context.Background(), "https://www.tiktok.com/@dancer/video/7301234567890123456")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoMatch)
	assert.Equal(t, 0, f.pipeline.store.uploadCount())
}

func TestRecognizeAndAcquire_LocalFile(t *testing.T) {
	backend := &fakeBackend{name: "ytdlp", title: "Nova - Starlight"}
	f := newRecognitionFixture(t, singleChain(domain.PlatformYouTube, backend))
	f.recognizer.track = &domain.TrackMatch{Title: "Starlight", Artist: "Nova"}
	f.searcher.candidates = starlightCandidates()

	sample := filepath.Join(t.TempDir(), "voice-memo.mp3")
	require.NoError(t, os.WriteFile(sample, []byte("audio bytes"), 0o644))

	acq, err := f.svc.RecognizeAndAcquire(context.Background(), sample)
	require.NoError(t, err)
	require.NotNil(t, acq)

	// Audio sample: no clip extraction, fingerprinted as-is.
	assert.Equal(t, 0, f.extractor.callCount())
	assert.Equal(t, sample, f.recognizer.lastSample)

	// Ad-hoc samples have no origin to link back to.
	assert.Empty(t, acq.LinkedCanonicalID)
	assert.Equal(t, 0, f.pipeline.repo.linkCount())

	entry := f.pipeline.repo.stored(domain.PlatformYouTube, "vid-good")
	require.NotNil(t, entry)
	require.NotNil(t, entry.Track)
	assert.Empty(t, entry.LinkedCanonicalID)

	// The caller's file is not ours to delete.
	_, statErr := os.Stat(sample)
	assert.NoError(t, statErr)
}

func TestRecognizeAndAcquire_ExtractionFailure(t *testing.T) {
	backend := &fakeBackend{name: "ytdlp"}
	f := newRecognitionFixture(t, singleChain(domain.PlatformTikTok, backend))
	f.pipeline.proc.hasVideo = true
	f.extractor.err = &domain.ExtractionError{Source: "media.mp4", Tried: 4}

	_, err := f.svc.RecognizeAndAcquire(context.Background(), "https://www.tiktok.com/@dancer/video/7301234567890123456")
	require.Error(t, err)

	var extErr *domain.ExtractionError
	assert.ErrorAs(t, err, &extErr)
	assert.Equal(t, 0, f.recognizer.callCount(), "no fingerprinting without a clip")
}

func TestRecognizeAndAcquire_UnresolvableReference(t *testing.T) {
	f := newRecognitionFixture(t, nil)

	_, err := f.svc.RecognizeAndAcquire(context.Background(), "not a url and not a file")
	require.Error(t, err)

	var resErr *domain.ResolutionError
	assert.ErrorAs(t, err, &resErr)
}

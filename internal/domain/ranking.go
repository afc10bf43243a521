// Package domain contains the core business logic and entities.
package domain

import "strings"

// SearchCandidate is one platform search result considered by the secondary
// resolution loop.
type SearchCandidate struct {
	ID              string
	Title           string
	Channel         string
	Description     string
	DurationSeconds float64 // 0 = unknown
}

// Ranking weights. Duration bounds describe a plausible song length.
const (
	weightTitleHasTrack  = 10
	weightTitleHasArtist = 10
	weightChannelArtist  = 8
	weightDescription    = 3
	weightSongDuration   = 5
	penaltyOddDuration   = 5
	weightOfficial       = 5
	penaltyNoise         = 3

	songMinSeconds     = 60
	songMaxSeconds     = 480
	overlongSeconds    = 600
	tooShortSeconds    = 30
)

var (
	officialMarkers = []string{"official", "audio", "music video"}
	noiseMarkers    = []string{"live", "cover", "remix", "karaoke", "instrumental"}
)

// ScoreCandidate computes the match score of a search candidate against a
// recognized track.
//
// Formula:
//
//	+10 title contains the track title
//	+10 title contains the artist
//	 +8 channel contains the artist
//	 +3 description contains the artist or the title
//	 +5 duration within [60s, 480s]
//	 -5 duration above 600s or below 30s (far outside a song length)
//	 +5 an official marker ("official", "audio", "music video") in the title
//	 -3 a noise marker ("live", "cover", "remix", "karaoke", "instrumental") in the title
//
// All text matching is case-insensitive. Unknown durations (0) are not
// scored either way.
func ScoreCandidate(c SearchCandidate, track TrackMatch) int {
	title := strings.ToLower(c.Title)
	channel := strings.ToLower(c.Channel)
	description := strings.ToLower(c.Description)
	wantTitle := strings.ToLower(track.Title)
	wantArtist := strings.ToLower(track.Artist)

	score := 0

	if wantTitle != "" && strings.Contains(title, wantTitle) {
		score += weightTitleHasTrack
	}
	if wantArtist != "" && strings.Contains(title, wantArtist) {
		score += weightTitleHasArtist
	}
	if wantArtist != "" && strings.Contains(channel, wantArtist) {
		score += weightChannelArtist
	}
	if (wantArtist != "" && strings.Contains(description, wantArtist)) ||
		(wantTitle != "" && strings.Contains(description, wantTitle)) {
		score += weightDescription
	}

	if c.DurationSeconds > 0 {
		switch {
		case c.DurationSeconds >= songMinSeconds && c.DurationSeconds <= songMaxSeconds:
			score += weightSongDuration
		case c.DurationSeconds > overlongSeconds || c.DurationSeconds < tooShortSeconds:
			score -= penaltyOddDuration
		}
	}

	if containsAny(title, officialMarkers) {
		score += weightOfficial
	}
	if containsAny(title, noiseMarkers) {
		score -= penaltyNoise
	}

	return score
}

// RankCandidates picks the best candidate for the track: the highest score
// wins, ties go to the earlier candidate. When no candidate scores above
// zero, the first candidate is the fallback (platform ordering is already a
// weak relevance signal). ok is false only for an empty slice.
func RankCandidates(candidates []SearchCandidate, track TrackMatch) (SearchCandidate, bool) {
	if len(candidates) == 0 {
		return SearchCandidate{}, false
	}

	best := candidates[0]
	bestScore := ScoreCandidate(best, track)
	for _, c := range candidates[1:] {
		if s := ScoreCandidate(c, track); s > bestScore {
			best, bestScore = c, s
		}
	}

	if bestScore <= 0 {
		return candidates[0], true
	}
	return best, true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

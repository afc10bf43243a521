package dto

import (
	"media-acquisition-service/internal/app/service"
	"media-acquisition-service/internal/domain"
	"media-acquisition-service/pkg/keypool"
)

// TrackResponse is a recognized music track.
type TrackResponse struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// AcquisitionResponse represents one acquired media item.
type AcquisitionResponse struct {
	Platform        string  `json:"platform"`
	CanonicalID     string  `json:"canonical_id"`
	Kind            string  `json:"kind"`
	Title           string  `json:"title"`
	DeliveryHandle  string  `json:"delivery_handle"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	HasAudio        string  `json:"has_audio"`

	// Recognition outcome, when the secondary loop ran.
	RecognizedTrack   *TrackResponse `json:"recognized_track,omitempty"`
	LinkedCanonicalID string         `json:"linked_canonical_id,omitempty"`

	FromCache bool `json:"from_cache"`
}

// FromAcquisition converts a domain.Acquisition to AcquisitionResponse.
func FromAcquisition(a *domain.Acquisition) AcquisitionResponse {
	resp := AcquisitionResponse{
		Platform:          string(a.Ref.Platform),
		CanonicalID:       a.Ref.CanonicalID,
		Kind:              string(a.Ref.Kind),
		Title:             a.Title,
		DeliveryHandle:    a.DeliveryHandle,
		DurationSeconds:   a.DurationSeconds,
		HasAudio:          string(a.HasAudio),
		LinkedCanonicalID: a.LinkedCanonicalID,
		FromCache:         a.FromCache,
	}

	if a.RecognizedTrack != nil {
		resp.RecognizedTrack = &TrackResponse{
			Title:  a.RecognizedTrack.Title,
			Artist: a.RecognizedTrack.Artist,
		}
	}

	return resp
}

// BackendsResponse lists the configured fallback chain per platform.
type BackendsResponse struct {
	Chains map[string][]string `json:"chains"`
}

// FromChains converts the executor's chain listing to BackendsResponse.
func FromChains(chains map[domain.Platform][]string) BackendsResponse {
	out := make(map[string][]string, len(chains))
	for platform, names := range chains {
		out[string(platform)] = names
	}

	return BackendsResponse{Chains: out}
}

// CredentialUsage is one credential's consumption within its pool. Keys are
// masked before they leave the process.
type CredentialUsage struct {
	Key       string `json:"key"`
	Used      int    `json:"used"`
	Exhausted bool   `json:"exhausted"`
}

// CredentialsResponse groups credential usage by pool name.
type CredentialsResponse struct {
	Pools map[string][]CredentialUsage `json:"pools"`
}

// FromSnapshots converts raw pool snapshots to CredentialsResponse, masking
// every key.
func FromSnapshots(snapshots map[string][]keypool.Usage) CredentialsResponse {
	pools := make(map[string][]CredentialUsage, len(snapshots))
	for name, usages := range snapshots {
		masked := make([]CredentialUsage, len(usages))
		for i, u := range usages {
			masked[i] = CredentialUsage{
				Key:       maskKey(u.Key),
				Used:      u.Used,
				Exhausted: u.Exhausted,
			}
		}
		pools[name] = masked
	}

	return CredentialsResponse{Pools: pools}
}

// maskKey hides the middle of a credential, keeping just enough to tell
// pool entries apart.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "********"
	}

	return key[:4] + "..." + key[len(key)-4:]
}

// SweepResponse reports an admin-triggered janitor run.
type SweepResponse struct {
	Removed int `json:"removed"`
}

// StatsResponse represents dashboard stats.
type StatsResponse struct {
	TotalEntries int64            `json:"total_entries"`
	ByPlatform   map[string]int64 `json:"by_platform"`
	Recognized   int64            `json:"recognized"`
}

// FromStats converts service.CacheStats to StatsResponse.
func FromStats(stats *service.CacheStats) StatsResponse {
	byPlatform := make(map[string]int64, len(stats.ByPlatform))
	for platform, n := range stats.ByPlatform {
		byPlatform[string(platform)] = n
	}

	return StatsResponse{
		TotalEntries: stats.Total,
		ByPlatform:   byPlatform,
		Recognized:   stats.Recognized,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

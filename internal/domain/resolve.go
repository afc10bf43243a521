package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

// pathPattern binds a platform path regexp to the kind it yields. The first
// capture group is the canonical id.
type pathPattern struct {
	re   *regexp.Regexp
	kind ContentKind
}

var (
	instagramPatterns = []pathPattern{
		{regexp.MustCompile(`^/reels?/([A-Za-z0-9_-]+)`), KindReel},
		{regexp.MustCompile(`^/p/([A-Za-z0-9_-]+)`), KindPost},
		{regexp.MustCompile(`^/tv/([A-Za-z0-9_-]+)`), KindPost},
		{regexp.MustCompile(`^/stories/[^/]+/(\d+)`), KindStory},
	}

	tiktokPatterns = []pathPattern{
		{regexp.MustCompile(`^/@[^/]+/video/(\d+)`), KindVideo},
		{regexp.MustCompile(`^/v/(\d+)`), KindVideo},
	}

	youtubeIDRe = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
)

// Resolve turns a raw source reference into its canonical form.
//
// The reference is normalized (scheme defaulted, host lowered, query and
// fragment ignored except for platform-significant parameters) and matched
// against the platform's path patterns. A reference on a known platform that
// matches no pattern still resolves: the canonical id falls back to a stable
// hash of the normalized reference with KindUnknown, so every syntactically
// valid reference gets a cache slot. Only a reference whose platform cannot
// be determined fails, with *ResolutionError.
func Resolve(raw string) (MediaRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return MediaRef{}, &ResolutionError{Reference: raw, Reason: "empty reference"}
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Hostname() == "" {
		return MediaRef{}, &ResolutionError{Reference: raw, Reason: "not a URL"}
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	// Mobile hosts alias the canonical ones; vm./vt. short-link hosts are
	// real subdomains and stay.
	host = strings.TrimPrefix(host, "m.")

	platform, ok := platformForHost(host)
	if !ok {
		return MediaRef{}, &ResolutionError{Reference: raw, Reason: "unknown platform"}
	}

	var (
		id   string
		kind ContentKind
	)
	switch platform {
	case PlatformInstagram:
		id, kind, ok = matchPatterns(instagramPatterns, u.Path)
	case PlatformYouTube:
		id, kind, ok = resolveYouTube(u, host)
	case PlatformTikTok:
		id, kind, ok = matchPatterns(tiktokPatterns, u.Path)
	default:
		ok = false
	}
	if ok {
		return MediaRef{Platform: platform, CanonicalID: id, Kind: kind, SourceURL: trimmed}, nil
	}

	// Known platform, unrecognized path (short links, new URL shapes):
	// hash the normalized reference so the content still gets a cache slot.
	return MediaRef{
		Platform:    platform,
		CanonicalID: hashID(host, u.Path),
		Kind:        KindUnknown,
		SourceURL:   trimmed,
	}, nil
}

func platformForHost(host string) (Platform, bool) {
	switch {
	case hostMatches(host, "instagram.com"), hostMatches(host, "instagr.am"):
		return PlatformInstagram, true
	case hostMatches(host, "youtube.com"), host == "youtu.be", hostMatches(host, "youtube-nocookie.com"):
		return PlatformYouTube, true
	case hostMatches(host, "tiktok.com"):
		return PlatformTikTok, true
	default:
		return "", false
	}
}

// hostMatches reports whether host is domain or one of its subdomains.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func matchPatterns(patterns []pathPattern, path string) (string, ContentKind, bool) {
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(path); m != nil {
			return m[1], p.kind, true
		}
	}
	return "", "", false
}

func resolveYouTube(u *url.URL, host string) (string, ContentKind, bool) {
	kind := KindVideo
	if strings.HasPrefix(host, "music.") {
		kind = KindTrack
	}

	if host == "youtu.be" {
		if id := firstSegment(u.Path); youtubeIDRe.MatchString(id) {
			return id, kind, true
		}
		return "", "", false
	}

	if v := u.Query().Get("v"); youtubeIDRe.MatchString(v) {
		return v, kind, true
	}

	for _, prefix := range []string{"/shorts/", "/embed/", "/live/", "/v/"} {
		if rest, found := strings.CutPrefix(u.Path, prefix); found {
			if id := firstSegment("/" + rest); youtubeIDRe.MatchString(id) {
				return id, kind, true
			}
		}
	}

	return "", "", false
}

// CanonicalURL rebuilds the platform URL a backend can fetch. Known kinds
// map back to their canonical pattern; everything else falls back to the
// recorded SourceURL. Empty when neither is possible.
func (r MediaRef) CanonicalURL() string {
	switch r.Platform {
	case PlatformInstagram:
		switch r.Kind {
		case KindReel:
			return "https://www.instagram.com/reel/" + r.CanonicalID + "/"
		case KindPost:
			return "https://www.instagram.com/p/" + r.CanonicalID + "/"
		}
	case PlatformYouTube:
		switch r.Kind {
		case KindTrack:
			return "https://music.youtube.com/watch?v=" + r.CanonicalID
		case KindVideo:
			return "https://www.youtube.com/watch?v=" + r.CanonicalID
		}
	case PlatformTikTok:
		if r.Kind == KindVideo {
			return "https://www.tiktok.com/@/video/" + r.CanonicalID
		}
	}

	return r.SourceURL
}

// firstSegment returns the first path segment without leading slash.
func firstSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

// hashID derives a stable 16-hex-char id from the normalized reference.
func hashID(host, path string) string {
	normalized := "https://" + host + strings.TrimSuffix(path, "/")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

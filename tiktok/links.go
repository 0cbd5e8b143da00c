// Package tiktok classifies, parses and canonicalizes TikTok video links.
package tiktok

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	videoPathRegexp  = regexp.MustCompile(`/video/(\d+)`)
	legacyPathRegexp = regexp.MustCompile(`/v/(\d+)(?:\.html)?(?:$|[/?#])`)
	shortPathRegexp  = regexp.MustCompile(`^/t/[A-Za-z0-9_-]+/?$`)
)

var (
	videoIDParams   = []string{"item_id", "share_item_id", "video_id", "aweme_id"}
	numericIDRegexp = regexp.MustCompile(`^\d{8,}$`)
)

var shortHosts = map[string]bool{
	"vm.tiktok.com": true,
	"vt.tiktok.com": true,
}

// parse accepts scheme-less input such as "vm.tiktok.com/ZM123/".
func parse(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

func hostOf(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// IsShortLink reports whether raw is a redirect-wrapped share link
// (vm.tiktok.com/<code>, vt.tiktok.com/<code>, tiktok.com/t/<code>). Links
// that already carry a numeric video id are never short.
func IsShortLink(raw string) bool {
	if _, ok := ExtractVideoID(raw); ok {
		return false
	}
	u, ok := parse(raw)
	if !ok {
		return false
	}
	host := hostOf(u)
	if shortHosts[host] {
		return strings.Trim(u.Path, "/") != ""
	}
	if host == "tiktok.com" || host == "m.tiktok.com" {
		return shortPathRegexp.MatchString(u.Path)
	}
	return false
}

// ExtractVideoID returns the numeric id from /video/{digits} or /v/{digits}
// links. Short links carry no id until resolved.
func ExtractVideoID(raw string) (string, bool) {
	u, ok := parse(raw)
	if !ok {
		return "", false
	}
	if m := videoPathRegexp.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	if m := legacyPathRegexp.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	return "", false
}

// CanonicalVideoURL builds the canonical form for a video id. Without a
// handle the legacy mobile form is used, which TikTok still redirects.
func CanonicalVideoURL(handle, id string) string {
	handle = strings.TrimLeft(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "https://m.tiktok.com/v/" + id + ".html"
	}
	return "https://www.tiktok.com/@" + handle + "/video/" + id
}

// Canonicalize picks the best available URL for a video: the resolved URL
// (without tracking query), then a canonical URL synthesized from an id found
// in the resolved or raw URL, then raw unchanged. It returns nil only when raw
// is empty.
func Canonicalize(raw, handle string, resolved *string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if resolved != nil && strings.TrimSpace(*resolved) != "" {
		if clean, ok := stripQuery(*resolved); ok {
			return &clean
		}
	}

	candidates := []string{raw}
	if resolved != nil {
		candidates = []string{*resolved, raw}
	}
	for _, candidate := range candidates {
		if id, ok := ExtractVideoID(candidate); ok {
			canonical := CanonicalVideoURL(handleFrom(candidate, handle), id)
			return &canonical
		}
	}
	for _, candidate := range candidates {
		if id, ok := queryVideoID(candidate); ok {
			canonical := CanonicalVideoURL(handleFrom(candidate, handle), id)
			return &canonical
		}
	}

	return &raw
}

// queryVideoID finds an id carried in share-link query parameters.
func queryVideoID(raw string) (string, bool) {
	u, ok := parse(raw)
	if !ok {
		return "", false
	}
	q := u.Query()
	for _, key := range videoIDParams {
		if id := q.Get(key); numericIDRegexp.MatchString(id) {
			return id, true
		}
	}
	return "", false
}

func stripQuery(raw string) (string, bool) {
	u, ok := parse(raw)
	if !ok {
		return "", false
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), true
}

// handleFrom prefers the handle embedded in a /@handle/video/ path.
func handleFrom(raw, fallback string) string {
	u, ok := parse(raw)
	if !ok {
		return fallback
	}
	for _, segment := range strings.Split(u.Path, "/") {
		if strings.HasPrefix(segment, "@") && len(segment) > 1 {
			return segment[1:]
		}
	}
	return fallback
}

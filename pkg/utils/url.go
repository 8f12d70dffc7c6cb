package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/user/site-auditor/internal/entity"
	"golang.org/x/net/publicsuffix"
)

// TemplateMarkers are substrings that identify unrendered template or CMS
// placeholder URLs. Such URLs are counted as skipped and never fetched.
var TemplateMarkers = []string{"[", "]", "%22", "{{", "}}", "%7B%7B", "AUD_BRAND"}

// SocialDomains are registrable domains treated as social-network targets.
var SocialDomains = map[string]struct{}{
	"facebook.com":  {},
	"instagram.com": {},
	"youtube.com":   {},
	"youtu.be":      {},
	"linkedin.com":  {},
	"twitter.com":   {},
	"x.com":         {},
}

// HashURL creates a SHA256 hash of a URL string.
// This is useful for creating consistent, safe keys for Redis.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(relative)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(relURL).String(), nil
}

// Normalize resolves raw against base and returns its canonical form: no
// fragment, lower-case scheme and host, no default port, and no trailing
// slash except on the root path.
func Normalize(base *url.URL, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndexByte(u.Host, ':')]
	}
	if u.Host != "" && u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
		u.RawPath = strings.TrimRight(u.RawPath, "/")
	}
	return u.String(), nil
}

// MustParseSite parses a site base URL, returning nil when it is invalid.
func MustParseSite(site string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(site))
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

// IsInternal reports whether the normalized URL lives under site.
func IsInternal(normalized string, site *url.URL) bool {
	if site == nil {
		return false
	}
	base, err := Normalize(nil, site.String())
	if err != nil {
		return false
	}
	trimmed := strings.TrimSuffix(base, "/")
	return normalized == base || normalized == trimmed || strings.HasPrefix(normalized, trimmed+"/")
}

// Classify canonicalizes raw and assigns its link kind relative to site.
func Classify(raw string, site *url.URL) entity.URL {
	out := entity.URL{Raw: raw, Kind: entity.KindInvalid}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out
	}
	if i := strings.IndexByte(trimmed, '#'); i >= 0 {
		trimmed = strings.TrimSpace(trimmed[:i])
		if trimmed == "" {
			out.Kind = entity.KindAnchor
			return out
		}
	}

	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "tel:"):
		out.Kind, out.Normalized = entity.KindTelephone, trimmed
		return out
	case strings.HasPrefix(lower, "mailto:"):
		out.Kind, out.Normalized = entity.KindEmail, trimmed
		return out
	case strings.HasPrefix(lower, "sms:"):
		out.Kind, out.Normalized = entity.KindSMS, trimmed
		return out
	case strings.HasPrefix(lower, "javascript"):
		out.Kind, out.Normalized = entity.KindScript, trimmed
		return out
	}

	normalized, err := Normalize(site, trimmed)
	if err != nil {
		return out
	}
	out.Normalized = normalized
	if IsInternal(normalized, site) {
		out.Kind = entity.KindPage
	} else {
		out.Kind = entity.KindExternal
	}
	return out
}

// IsTemplateURL reports whether raw carries a template placeholder marker.
func IsTemplateURL(raw string, extra ...string) bool {
	for _, m := range TemplateMarkers {
		if strings.Contains(raw, m) {
			return true
		}
	}
	for _, m := range extra {
		if m != "" && strings.Contains(raw, m) {
			return true
		}
	}
	return false
}

// IsSocial reports whether href points at a known social network.
func IsSocial(href string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		domain = host
	}
	_, ok := SocialDomains[domain]
	return ok
}

// Host returns the lower-case hostname of rawURL, or "" when it has none.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// SameDocument reports whether a and b name the same page once normalized.
func SameDocument(a, b string) bool {
	na, errA := Normalize(nil, a)
	nb, errB := Normalize(nil, b)
	if errA != nil || errB != nil {
		return a == b
	}
	return na == nb
}

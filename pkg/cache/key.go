package cache

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
)

// Key identifies one cached aggregation result.
type Key struct {
	// Domain is the tenant domain (e.g., "example.com").
	Domain string

	// BasePath is the collection path (plus query) on the tenant site.
	BasePath string

	// Category and Tag are optional upstream filters.
	Category string
	Tag      string

	// FeaturedOnly marks results narrowed to starred items. Filtered and
	// unfiltered results cache separately.
	FeaturedOnly bool
}

// Normalize returns the canonical form of the key: domain lowercased with a
// leading "www." stripped, base reduced to path+query even when a full URL
// was supplied, empty filters treated as absent.
func (k Key) Normalize() Key {
	return Key{
		Domain:       NormalizeDomain(k.Domain),
		BasePath:     NormalizeBasePath(k.BasePath),
		Category:     strings.TrimSpace(k.Category),
		Tag:          strings.TrimSpace(k.Tag),
		FeaturedOnly: k.FeaturedOnly,
	}
}

// Tenant returns the normalized tenant domain the entry belongs to.
func (k Key) Tenant() string {
	return NormalizeDomain(k.Domain)
}

// String generates a deterministic key string over the normalized fields.
// Fields are query-encoded, so a user-controlled value can never imitate
// another field and collide with a different query.
func (k Key) String() string {
	n := k.Normalize()

	v := url.Values{}
	v.Set("domain", n.Domain)
	v.Set("base", n.BasePath)
	if n.Category != "" {
		v.Set("category", n.Category)
	}
	if n.Tag != "" {
		v.Set("tag", n.Tag)
	}
	if n.FeaturedOnly {
		v.Set("featured", "true")
	}

	return "summary?" + v.Encode()
}

// Hash returns the md5 hex digest of the canonical key string. Collision
// resistance is all that is needed here; the hash is not security-sensitive.
func (k Key) Hash() string {
	sum := md5.Sum([]byte(k.String()))
	return hex.EncodeToString(sum[:])
}

// NormalizeDomain lowercases a tenant domain and strips a leading "www.".
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(d, "www.")
}

// NormalizeBasePath reduces a base to path+query, discarding scheme and
// host when a full URL was supplied. Unparseable input is passed through.
func NormalizeBasePath(base string) string {
	raw := strings.TrimSpace(base)

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	p := u.EscapedPath()
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

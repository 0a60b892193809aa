// Package mikan converts raw upstream RSS/HTML into the normalized item
// shape the filter pipeline and download controller operate on
// (spec.md §4.3 Feed Parser).
package mikan

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// NormalizeHash upper-cases and, when given a 32-char base32 BitTorrent
// info-hash, converts it to the canonical 40-char hex form. All stored
// and compared hashes are uppercase hex (spec §4.3 torrent-hash
// normalization); applying it twice is a no-op.
func NormalizeHash(hash string) string {
	hash = strings.TrimSpace(hash)
	switch len(hash) {
	case 32:
		if decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(hash)); err == nil && len(decoded) == 20 {
			return strings.ToUpper(hex.EncodeToString(decoded))
		}
	case 40:
		return strings.ToUpper(hash)
	}
	return strings.ToUpper(hash)
}

// IsValidHash reports whether hash is a well-formed 40-char hex info-hash
// once normalized.
func IsValidHash(hash string) bool {
	hash = NormalizeHash(hash)
	if len(hash) != 40 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// ExtractHashFromMagnet pulls the info-hash out of a magnet URI's
// `xt=urn:btih:<hash>` parameter, normalizing it. Returns ok=false if the
// magnet has no recognizable btih parameter.
func ExtractHashFromMagnet(magnet string) (hash string, ok bool) {
	u, err := url.Parse(magnet)
	if err != nil {
		return "", false
	}
	for _, xt := range u.Query()["xt"] {
		const prefix = "urn:btih:"
		if strings.HasPrefix(strings.ToLower(xt), prefix) {
			candidate := NormalizeHash(xt[len(prefix):])
			if IsValidHash(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

// BuildMagnetLink synthesizes a magnet URI from a normalized hash and
// display name, used when an RSS item carries a torrent_url enclosure but
// no magnet link of its own (spec §4.3: "magnet_link ... if present or
// synthesized from hash").
func BuildMagnetLink(hash, title string) string {
	return fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", NormalizeHash(hash), url.QueryEscape(title))
}

package mikan

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Resolution values recognized by ParseResolution.
const (
	Resolution1080p = "1080p"
	Resolution720p  = "720p"
	Resolution4K    = "4K"
)

var (
	resolution4KRe   = regexp.MustCompile(`(?i)\b(2160p|4k|uhd)\b`)
	resolution1080Re = regexp.MustCompile(`(?i)\b1080p?\b`)
	resolution720Re  = regexp.MustCompile(`(?i)\b720p?\b`)

	subgroupBracketRe = regexp.MustCompile(`^[\[\【]([^\]\】]+)[\]\】]`)

	episodeRe = regexp.MustCompile(`(?i)(?:\[|第|\s)(\d{1,4})(?:\.\d+)?(?:话|集|v\d)?(?:\]|\s|$)`)

	collectionRe = regexp.MustCompile(`(?i)合集|合輯|batch|complete|\[\s*\d{1,3}\s*[-~]\s*\d{1,3}\s*\]`)

	subtitleKeywords = []string{
		"简日内嵌", "繁日内嵌", "简日双语", "繁日双语",
		"简体内嵌", "繁体内嵌", "简体", "繁体", "简日", "繁日",
		"内嵌", "外挂", "CHS", "CHT", "GB", "BIG5",
	}
)

// NormalizeTitle folds fullwidth characters to their halfwidth equivalents.
// Brackets with no halfwidth form, such as 【】, are left as they are, so the
// subgroup regex matches both 【】 and [] explicitly.
func NormalizeTitle(title string) string {
	return width.Narrow.String(title)
}

// ParseResolution extracts a normalized resolution token from a release
// title, or "" if none is recognized (spec §4.3).
func ParseResolution(title string) string {
	switch {
	case resolution4KRe.MatchString(title):
		return Resolution4K
	case resolution1080Re.MatchString(title):
		return Resolution1080p
	case resolution720Re.MatchString(title):
		return Resolution720p
	default:
		return ""
	}
}

// ParseSubgroup extracts the first bracketed prefix of a release title,
// the convention fansub groups use to identify themselves (spec §4.3:
// "subgroup (first bracketed prefix)").
func ParseSubgroup(title string) string {
	normalized := NormalizeTitle(strings.TrimSpace(title))
	m := subgroupBracketRe.FindStringSubmatch(normalized)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ParseSubtitleType performs a keyword search for the subtitle-track
// descriptors fansub groups embed in titles (spec §4.3).
func ParseSubtitleType(title string) string {
	for _, kw := range subtitleKeywords {
		if strings.Contains(title, kw) {
			return kw
		}
	}
	return ""
}

// ParseEpisode extracts an integer episode number from a title, or
// (0, false) if none is found.
func ParseEpisode(title string) (int, bool) {
	normalized := NormalizeTitle(title)
	m := episodeRe.FindStringSubmatch(normalized)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsCollection reports whether a title matches a batch/合集 pattern or an
// explicit episode range, meaning it bundles multiple episodes rather
// than carrying a single episode number (spec §4.3).
func IsCollection(title string) bool {
	return collectionRe.MatchString(NormalizeTitle(title))
}

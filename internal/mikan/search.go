package mikan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SearchResult is one (mikan_bangumi_id, title) hit from the upstream
// search page.
type SearchResult struct {
	MikanBangumiID string
	Title          string
}

// ParseSearchPage scrapes Mikan's `/Home/Search` results page for anime
// matches, extracting the bangumi id from each result's link href
// (spec §4.2 SearchAnime; §4.3 "the same library/approach" as RSS
// parsing, applied to HTML instead of XML).
func ParseSearchPage(html string) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析搜索页面失败: %w", err)
	}

	var results []SearchResult
	doc.Find("a.an-text").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		id, ok := bangumiIDFromHref(href)
		if !ok {
			return
		}
		title := strings.TrimSpace(s.Text())
		if title == "" {
			return
		}
		results = append(results, SearchResult{MikanBangumiID: id, Title: title})
	})
	return results, nil
}

// SubgroupRow is one subgroup scraped off an anime's bangumi page.
type SubgroupRow struct {
	SubgroupID   string
	SubgroupName string
}

// ParseSubgroupsFromBangumiPage scrapes an anime's `/Home/Bangumi/{id}`
// page for the set of subgroups currently releasing it, used to populate
// subgroup mapping rows (spec §4.3/§4.8 SubgroupMapping).
func ParseSubgroupsFromBangumiPage(html string) ([]SubgroupRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析字幕组页面失败: %w", err)
	}

	seen := make(map[string]bool)
	var rows []SubgroupRow
	doc.Find("a.subgroup-name, div.subgroup-text a").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		id, ok := subgroupIDFromHref(href)
		if !ok || seen[id] {
			return
		}
		name := strings.TrimSpace(s.Text())
		if name == "" {
			return
		}
		seen[id] = true
		rows = append(rows, SubgroupRow{SubgroupID: id, SubgroupName: name})
	})
	return rows, nil
}

func bangumiIDFromHref(href string) (string, bool) {
	const marker = "/Home/Bangumi/"
	idx := strings.Index(href, marker)
	if idx < 0 {
		return "", false
	}
	rest := href[idx+len(marker):]
	id := strings.SplitN(rest, "#", 2)[0]
	id = strings.SplitN(id, "/", 2)[0]
	if id == "" {
		return "", false
	}
	if _, err := strconv.Atoi(id); err != nil {
		return "", false
	}
	return id, true
}

func subgroupIDFromHref(href string) (string, bool) {
	const marker = "#"
	idx := strings.LastIndex(href, marker)
	if idx < 0 || idx+1 >= len(href) {
		return "", false
	}
	id := href[idx+1:]
	if id == "" {
		return "", false
	}
	return id, true
}

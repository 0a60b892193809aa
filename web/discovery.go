package web

import (
	"net/http"
	"strconv"

	"github.com/sunerpy/akari/internal/apperr"
)

// apiSearchUpstream implements "search upstream by title" (spec §6,
// §4.2 SearchAnime).
func (s *Server) apiSearchUpstream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, apperr.Validation("q is required", nil))
		return
	}
	results, err := s.check.SearchUpstream(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, results)
}

// apiFetchParsedFeed implements "fetch parsed feed by mikan_bangumi_id"
// (spec §6, §4.3). bangumi_id and season_name drive episode-offset
// normalization the same way a subscription's own check would.
func (s *Server) apiFetchParsedFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	mikanBangumiID := q.Get("mikan_bangumi_id")
	if mikanBangumiID == "" {
		writeError(w, apperr.Validation("mikan_bangumi_id is required", nil))
		return
	}
	var bangumiID int64
	if v := q.Get("bangumi_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, apperr.Validation("invalid bangumi_id", err))
			return
		}
		bangumiID = parsed
	}
	resp, err := s.check.FetchParsedFeed(r.Context(), mikanBangumiID, q.Get("subgroup_id"), bangumiID, q.Get("season_name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

// apiSubgroups implements "list subgroups" (spec §6, §4.3), re-scraping the
// anime's Mikan page and syncing the mapping table before returning it.
func (s *Server) apiSubgroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mikanBangumiID := r.URL.Query().Get("mikan_bangumi_id")
	if mikanBangumiID == "" {
		writeError(w, apperr.Validation("mikan_bangumi_id is required", nil))
		return
	}
	rows, err := s.check.SyncSubgroups(r.Context(), mikanBangumiID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rows)
}

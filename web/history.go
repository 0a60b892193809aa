package web

import (
	"net/http"
	"strconv"

	"github.com/sunerpy/akari/internal/apperr"
)

// apiHistory implements "query download history by subscription or by
// manual-anime bangumi_id" (spec §6). One of subscription_id or bangumi_id
// is required; when both are given, subscription_id is used.
func (s *Server) apiHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	subParam, bangumiParam := q.Get("subscription_id"), q.Get("bangumi_id")
	switch {
	case subParam != "":
		id, err := strconv.ParseUint(subParam, 10, 64)
		if err != nil {
			writeError(w, apperr.Validation("invalid subscription_id", err))
			return
		}
		rows, err := s.store.ListHistoryBySubscription(uint(id))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, rows)
	case bangumiParam != "":
		id, err := strconv.ParseInt(bangumiParam, 10, 64)
		if err != nil {
			writeError(w, apperr.Validation("invalid bangumi_id", err))
			return
		}
		rows, err := s.store.ListHistoryByBangumiID(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, rows)
	default:
		writeError(w, apperr.Validation("subscription_id or bangumi_id is required", nil))
	}
}

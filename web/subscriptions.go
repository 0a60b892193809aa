package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sunerpy/akari/internal/apperr"
	"github.com/sunerpy/akari/models"
)

// apiSubscriptions implements list (GET) and create (POST) on the
// subscription collection (spec §6 "List / ... create ... subscription").
func (s *Server) apiSubscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		subs, err := s.store.ListSubscriptions()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, subs)
	case http.MethodPost:
		var sub models.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeError(w, apperr.Validation("invalid subscription body", err))
			return
		}
		if strings.TrimSpace(sub.Title) == "" {
			writeError(w, apperr.Validation("title is required", nil))
			return
		}
		if err := s.store.UpsertSubscription(&sub); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, sub)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// apiEnsureSubscription implements the idempotent-upsert-keyed-by-bangumi_id
// operation (spec §6 "Ensure subscription").
func (s *Server) apiEnsureSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		BangumiID      int64  `json:"bangumiId"`
		Title          string `json:"title"`
		MikanBangumiID string `json:"mikanBangumiId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid ensure-subscription body", err))
		return
	}
	if req.BangumiID <= 0 || strings.TrimSpace(req.Title) == "" {
		writeError(w, apperr.Validation("bangumiId and title are required", nil))
		return
	}
	sub, err := s.store.EnsureSubscription(req.BangumiID, req.Title, req.MikanBangumiID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, sub)
}

// apiSubscriptionDetail implements get/update/delete on one subscription,
// plus cancellation with optional file deletion via
// DELETE /api/subscriptions/{id}?delete_files=true (spec §6 "Cancel
// subscription with optional deletion of downloaded files").
func (s *Server) apiSubscriptionDetail(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/subscriptions/")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		writeError(w, apperr.Validation("invalid subscription id", err))
		return
	}

	switch r.Method {
	case http.MethodGet:
		sub, err := s.store.GetSubscriptionByID(uint(id))
		if err != nil {
			writeError(w, err)
			return
		}
		if sub == nil {
			writeError(w, apperr.NotFound("subscription not found", nil))
			return
		}
		writeJSON(w, sub)
	case http.MethodPut, http.MethodPatch:
		existing, err := s.store.GetSubscriptionByID(uint(id))
		if err != nil {
			writeError(w, err)
			return
		}
		if existing == nil {
			writeError(w, apperr.NotFound("subscription not found", nil))
			return
		}
		if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
			writeError(w, apperr.Validation("invalid subscription body", err))
			return
		}
		existing.ID = uint(id)
		if err := s.store.UpsertSubscription(existing); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, existing)
	case http.MethodDelete:
		s.cancelSubscription(w, r, uint(id))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// cancelSubscription removes the subscription row and, when delete_files is
// requested, pushes a torrent-client delete for every history row attributed
// to it that carries a hash, whatever its status. A per-torrent delete failure is logged and skipped
// rather than aborting the cancellation — the subscription row is always
// removed (spec §7 propagation policy: this loop is best-effort cleanup,
// not the operation's success criterion).
func (s *Server) cancelSubscription(w http.ResponseWriter, r *http.Request, id uint) {
	deleteFiles := r.URL.Query().Get("delete_files") == "true"
	if deleteFiles {
		rows, err := s.store.ListHistoryBySubscription(id)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, row := range rows {
			if row.TorrentHash == "" {
				continue
			}
			if err := s.torrent.Delete(r.Context(), row.TorrentHash, true); err != nil {
				s.logger.Warn("torrent delete during cancellation failed",
					zap.String("torrent_hash", row.TorrentHash), zap.Error(err))
			}
		}
	}
	if err := s.store.DeleteSubscription(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "cancelled"})
}

package web

import (
	"net/http"
	"strconv"

	"github.com/sunerpy/akari/internal/apperr"
)

// apiTriggerCheck implements "trigger check (single subscription or all)"
// (spec §6). A single subscription id bypasses the scheduler's interval via
// KickSubscription; omitting subscription_id triggers every enabled
// subscription the same way, one kick per row.
func (s *Server) apiTriggerCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	idParam := r.URL.Query().Get("subscription_id")
	if idParam == "" {
		subs, err := s.storeListEnabled()
		if err != nil {
			writeError(w, err)
			return
		}
		kicked := 0
		for _, id := range subs {
			if s.sched.KickSubscription(id) {
				kicked++
			}
		}
		writeJSON(w, map[string]int{"kicked": kicked})
		return
	}
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		writeError(w, apperr.Validation("invalid subscription_id", err))
		return
	}
	sub, err := s.store.GetSubscriptionByID(uint(id))
	if err != nil {
		writeError(w, err)
		return
	}
	if sub == nil {
		writeError(w, apperr.NotFound("subscription not found", nil))
		return
	}
	ok := s.sched.KickSubscription(uint(id))
	writeJSON(w, map[string]bool{"kicked": ok})
}

// storeListEnabled lists every id to kick for a trigger-all request. It
// reuses ListSubscriptions rather than requiring a second store method —
// the scheduler's own fair-selection cap still applies to the regular tick,
// this is only the on-demand path.
func (s *Server) storeListEnabled() ([]uint, error) {
	subs, err := s.store.ListSubscriptions()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(subs))
	for _, sub := range subs {
		if sub.IsEnabled && !sub.IsManualSentinel() {
			ids = append(ids, sub.ID)
		}
	}
	return ids, nil
}

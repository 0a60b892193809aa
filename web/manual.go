package web

import (
	"encoding/json"
	"net/http"

	"github.com/sunerpy/akari/internal/apperr"
	"github.com/sunerpy/akari/internal/filter"
)

// apiSubmitManual implements "submit a manual torrent download" (spec §6,
// §4.5 Manual path). The request may carry a torrent URL, a magnet link, or
// a bare hash; SubmitManual uses the given hash, else the magnet link's
// info-hash, and rejects the request before it ever reaches the torrent
// client if neither yields one. A torrent URL alone is not enough: no hash is
// derived from it.
func (s *Server) apiSubmitManual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Title          string `json:"title"`
		TorrentURL     string `json:"torrentUrl"`
		MagnetLink     string `json:"magnetLink"`
		TorrentHash    string `json:"torrentHash"`
		FileSize       int64  `json:"fileSize"`
		AnimeBangumiID int64  `json:"animeBangumiId"`
		AnimeTitle     string `json:"animeTitle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid manual-download body", err))
		return
	}
	item := filter.Item{
		Title:       req.Title,
		TorrentURL:  req.TorrentURL,
		MagnetLink:  req.MagnetLink,
		TorrentHash: req.TorrentHash,
		FileSize:    req.FileSize,
		CanDownload: true,
	}
	outcome := s.check.SubmitManual(r.Context(), item, req.AnimeBangumiID, req.AnimeTitle)
	if outcome.Error != nil && outcome.Row == nil {
		writeError(w, outcome.Error)
		return
	}
	writeJSON(w, outcome.Row)
}

package qbit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/sunerpy/akari/internal/apperr"
)

// TorrentInfo is one entry from qBittorrent's torrent list, trimmed to
// the fields the reconciler needs (spec §4.7).
type TorrentInfo struct {
	Hash          string  `json:"hash"`
	Name          string  `json:"name"`
	State         string  `json:"state"`
	Progress      float64 `json:"progress"`
	DownloadSpeed int64   `json:"dlspeed"`
	ETA           int64   `json:"eta"`
	NumSeeds      int     `json:"num_seeds"`
	NumLeechs     int     `json:"num_leechs"`
	SavePath      string  `json:"save_path"`
	Category      string  `json:"category"`
}

// AddOptions configures an AddTorrent call. All fields are optional.
type AddOptions struct {
	SavePath string
	Category string
	Paused   bool
}

// AddTorrent submits a torrent by URL or magnet link (spec §4.6
// AddTorrent). qBittorrent accepts both through the same "urls" field.
func (c *Client) AddTorrent(ctx context.Context, urlOrMagnet string, opts AddOptions) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("urls", urlOrMagnet); err != nil {
		return apperr.Validation("writing urls field", err)
	}
	if opts.SavePath != "" {
		if err := writer.WriteField("savepath", opts.SavePath); err != nil {
			return apperr.Validation("writing savepath field", err)
		}
	}
	if opts.Category != "" {
		if err := writer.WriteField("category", opts.Category); err != nil {
			return apperr.Validation("writing category field", err)
		}
	}
	if err := writer.WriteField("paused", fmt.Sprintf("%t", opts.Paused)); err != nil {
		return apperr.Validation("writing paused field", err)
	}
	if err := writer.Close(); err != nil {
		return apperr.Validation("closing multipart writer", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v2/torrents/add", body, writer.FormDataContentType())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp, respBody)
	}
	return nil
}

// AddTorrentFile submits a raw .torrent file's bytes (the manual-upload
// path, spec §4.5 manual download support).
func (c *Client) AddTorrentFile(ctx context.Context, fileData []byte, opts AddOptions) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("torrents", "upload.torrent")
	if err != nil {
		return apperr.Validation("creating torrent file field", err)
	}
	if _, err := part.Write(fileData); err != nil {
		return apperr.Validation("writing torrent file data", err)
	}
	if opts.SavePath != "" {
		if err := writer.WriteField("savepath", opts.SavePath); err != nil {
			return apperr.Validation("writing savepath field", err)
		}
	}
	if opts.Category != "" {
		if err := writer.WriteField("category", opts.Category); err != nil {
			return apperr.Validation("writing category field", err)
		}
	}
	if err := writer.WriteField("paused", fmt.Sprintf("%t", opts.Paused)); err != nil {
		return apperr.Validation("writing paused field", err)
	}
	if err := writer.Close(); err != nil {
		return apperr.Validation("closing multipart writer", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v2/torrents/add", body, writer.FormDataContentType())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp, respBody)
	}
	return nil
}

// ListTorrents returns every torrent qBittorrent currently tracks,
// optionally scoped to one category, with every hash normalized to
// upper-case hex (spec §4.7 "hash case bug avoidance").
func (c *Client) ListTorrents(ctx context.Context, category string) ([]TorrentInfo, error) {
	path := "/api/v2/torrents/info"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp, body)
	}

	var torrents []TorrentInfo
	if err := json.NewDecoder(resp.Body).Decode(&torrents); err != nil {
		return nil, apperr.UpstreamUnavailable("decoding torrent list", err, 0)
	}
	for i := range torrents {
		torrents[i].Hash = normalizeHash(torrents[i].Hash)
	}
	return torrents, nil
}

// GetTorrent fetches a single torrent's properties by hash, returning
// apperr.ErrNotFound if qBittorrent no longer knows about it.
func (c *Client) GetTorrent(ctx context.Context, hash string) (*TorrentInfo, error) {
	torrents, err := c.ListTorrents(ctx, "")
	if err != nil {
		return nil, err
	}
	hash = normalizeHash(hash)
	for i := range torrents {
		if torrents[i].Hash == hash {
			return &torrents[i], nil
		}
	}
	return nil, apperr.NotFound("torrent not found", fmt.Errorf("hash %s", hash))
}

// Pause pauses a torrent by hash.
func (c *Client) Pause(ctx context.Context, hash string) error {
	return c.postHashAction(ctx, "/api/v2/torrents/pause", hash)
}

// Resume resumes a paused torrent by hash.
func (c *Client) Resume(ctx context.Context, hash string) error {
	return c.postHashAction(ctx, "/api/v2/torrents/resume", hash)
}

// Delete removes a torrent by hash, optionally deleting its downloaded
// files as well.
func (c *Client) Delete(ctx context.Context, hash string, deleteFiles bool) error {
	data := "hashes=" + normalizeHash(hash) + fmt.Sprintf("&deleteFiles=%t", deleteFiles)
	resp, err := c.do(ctx, http.MethodPost, "/api/v2/torrents/delete", strings.NewReader(data), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp, body)
	}
	return nil
}

func (c *Client) postHashAction(ctx context.Context, path, hash string) error {
	data := "hashes=" + normalizeHash(hash)
	resp, err := c.do(ctx, http.MethodPost, path, strings.NewReader(data), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp, body)
	}
	return nil
}

// AddedTorrent is the composite result of AddTorrentWithTracking: the
// caller's intended hash, confirmed or rejected.
type AddedTorrent struct {
	Hash string
}

// AddTorrentWithTracking submits a torrent and returns the hash the
// download controller should persist against (spec §4.5/§4.6 composite
// operation). It trusts the caller-supplied hash (derived from the feed
// item or computed from the .torrent file) rather than re-querying
// qBittorrent immediately after add, since the torrent may not appear in
// /torrents/info until the next reconciler tick.
func (c *Client) AddTorrentWithTracking(ctx context.Context, urlOrMagnet, hash string, opts AddOptions) (*AddedTorrent, error) {
	if hash == "" {
		return nil, apperr.Validation("missing torrent hash", fmt.Errorf("no hash derivable from %q", urlOrMagnet))
	}
	if err := c.AddTorrent(ctx, urlOrMagnet, opts); err != nil {
		return nil, err
	}
	return &AddedTorrent{Hash: normalizeHash(hash)}, nil
}

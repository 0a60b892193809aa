package qbit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunerpy/akari/internal/apperr"
)

func loginOKHandler(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/auth/login" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Ok."))
			return
		}
		next(w, r)
	}
}

func TestLoginSuccess(t *testing.T) {
	srv := httptest.NewServer(loginOKHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, c.ensureSession(context.Background()))
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Fails."))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "wrong", time.Millisecond)
	require.NoError(t, err)
	err = c.ensureSession(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrUpstreamRejected))
}

func TestDoRetriesOnceAfter403(t *testing.T) {
	var logins int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/auth/login" {
			logins++
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Ok."))
			return
		}
		if logins == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	torrents, err := c.ListTorrents(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, torrents)
	assert.Equal(t, 2, logins)
}

func TestDoRetryPreservesBodyOnPost(t *testing.T) {
	var logins int
	var forbidden bool
	var retriedBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/auth/login" {
			logins++
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Ok."))
			return
		}
		if !forbidden {
			forbidden = true
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body, _ := io.ReadAll(r.Body)
		retriedBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	err = c.Delete(context.Background(), "aaaabbbbccccddddeeeeffffaaaabbbbccccdddd", true)
	require.NoError(t, err)
	assert.Equal(t, 2, logins)
	assert.Contains(t, retriedBody, "hashes=AAAABBBBCCCCDDDDEEEEFFFFAAAABBBBCCCCDDDD")
	assert.Contains(t, retriedBody, "deleteFiles=true")
}

func TestAddTorrent(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(loginOKHandler(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotURL = r.FormValue("urls")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	err = c.AddTorrent(context.Background(), "magnet:?xt=urn:btih:ABC", AddOptions{Category: "anime"})
	require.NoError(t, err)
	assert.Equal(t, "magnet:?xt=urn:btih:ABC", gotURL)
}

func TestAddTorrentRejected(t *testing.T) {
	srv := httptest.NewServer(loginOKHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad torrent"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	err = c.AddTorrent(context.Background(), "magnet:?xt=urn:btih:ABC", AddOptions{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrUpstreamRejected))
}

func TestListTorrentsNormalizesHash(t *testing.T) {
	srv := httptest.NewServer(loginOKHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"hash":"abc123","state":"downloading","progress":0.5}]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	torrents, err := c.ListTorrents(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, torrents, 1)
	assert.Equal(t, "ABC123", torrents[0].Hash)
}

func TestGetTorrentNotFound(t *testing.T) {
	srv := httptest.NewServer(loginOKHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	_, err = c.GetTorrent(context.Background(), "deadbeef")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestPauseResumeDelete(t *testing.T) {
	var lastPath string
	srv := httptest.NewServer(loginOKHandler(func(w http.ResponseWriter, r *http.Request) {
		lastPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, c.Pause(context.Background(), "abc"))
	assert.Equal(t, "/api/v2/torrents/pause", lastPath)

	require.NoError(t, c.Resume(context.Background(), "abc"))
	assert.Equal(t, "/api/v2/torrents/resume", lastPath)

	require.NoError(t, c.Delete(context.Background(), "abc", true))
	assert.Equal(t, "/api/v2/torrents/delete", lastPath)
}

func TestAddTorrentWithTrackingRejectsEmptyHash(t *testing.T) {
	c, err := New("http://example.invalid", "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	_, err = c.AddTorrentWithTracking(context.Background(), "magnet:?xt=urn:btih:ABC", "", AddOptions{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrValidation))
}

func TestAddTorrentWithTrackingNormalizesHash(t *testing.T) {
	srv := httptest.NewServer(loginOKHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	added, err := c.AddTorrentWithTracking(context.Background(), "magnet:?xt=urn:btih:abc123", "abc123", AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", added.Hash)
}

func TestServerErrorClassifiedUnavailable(t *testing.T) {
	srv := httptest.NewServer(loginOKHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "admin", "pw", time.Millisecond)
	require.NoError(t, err)
	_, err = c.ListTorrents(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrUpstreamUnavailable))
}

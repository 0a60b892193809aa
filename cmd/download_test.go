package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunerpy/akari/config"
	"github.com/sunerpy/akari/global"
	"github.com/sunerpy/akari/thirdpart/qbit"
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

func TestDownloadPushSubmitsMagnet(t *testing.T) {
	setupCmdTest(t)
	srv := httptest.NewServer(loginOKHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	global.GlobalCfg = &config.Config{
		Mikan: config.MikanConfig{BaseURL: "https://mikanani.me"},
		TorrentClient: config.TorrentClientConfig{
			Host: srv.URL, Username: "admin", Password: "pw", Category: "akari",
		},
	}

	downloadAnimeBangumiID = 42
	downloadAnimeTitle = "Example Anime"
	downloadPushCmd.Run(&cobra.Command{}, []string{"magnet:?xt=urn:btih:ABCDEF1234567890ABCDEF1234567890ABCDEF12"})

	rows, err := global.GlobalDB.ListHistoryByBangumiID(42)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ABCDEF1234567890ABCDEF1234567890ABCDEF12", rows[0].TorrentHash)
}

func TestBuildCheckServiceWiresClient(t *testing.T) {
	global.GlobalCfg = &config.Config{
		Mikan:         config.MikanConfig{BaseURL: "https://mikanani.me"},
		TorrentClient: config.TorrentClientConfig{Host: "http://127.0.0.1", Port: 0, Category: "akari"},
	}
	setupCmdTest(t)
	client, err := qbit.New(global.GlobalCfg.TorrentClient.BaseURL(), "", "", time.Millisecond)
	require.NoError(t, err)
	svc := buildCheckService(client)
	require.NotNil(t, svc)
	assert.Equal(t, qbit.AddOptions{Category: "akari"}, svc.AddOptions())
}

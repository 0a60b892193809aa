/*
Copyright © 2024 sunerpy <nkuzhangshn@gmail.com>
Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:
The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.
THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sunerpy/akari/global"
	"github.com/sunerpy/akari/internal/filter"
	"github.com/sunerpy/akari/internal/mikan"
	"github.com/sunerpy/akari/thirdpart/qbit"
)

var (
	downloadAnimeBangumiID int64
	downloadAnimeTitle     string
)

var downloadCmd = &cobra.Command{
	Use:              "download",
	Short:            "Manually push a torrent or magnet link",
	PersistentPreRun: PersistentCheckCfg,
}

var downloadPushCmd = &cobra.Command{
	Use:     "push <url|magnet>",
	Short:   "Submit a manual download (spec §6 manual-download operation)",
	Args:    cobra.ExactArgs(1),
	Example: `  akari download push "magnet:?xt=urn:btih:...&dn=Example" --anime-bangumi-id 3416 --anime-title "Example Anime"`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := global.GlobalCfg
		qbitClient, err := qbit.New(cfg.TorrentClient.BaseURL(), cfg.TorrentClient.Username, cfg.TorrentClient.Password, 200*time.Millisecond)
		if err != nil {
			color.Red("初始化 qBittorrent 客户端失败: %v", err)
			os.Exit(1)
		}
		checkSvc := buildCheckService(qbitClient)

		item := filter.Item{Title: downloadAnimeTitle, CanDownload: true}
		raw := strings.TrimSpace(args[0])
		if strings.HasPrefix(raw, "magnet:") {
			item.MagnetLink = raw
			if hash, ok := mikan.ExtractHashFromMagnet(raw); ok {
				item.TorrentHash = hash
			}
		} else {
			item.TorrentURL = raw
		}

		outcome := checkSvc.SubmitManual(context.Background(), item, downloadAnimeBangumiID, downloadAnimeTitle)
		if outcome.Error != nil && outcome.Row == nil {
			color.Red("提交手动下载失败: %v", outcome.Error)
			os.Exit(1)
		}
		color.Green("已提交: %s (hash=%s)", outcome.Row.Title, outcome.Row.TorrentHash)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.AddCommand(downloadPushCmd)
	downloadPushCmd.Flags().Int64Var(&downloadAnimeBangumiID, "anime-bangumi-id", 0, "bangumi id to attribute this download to")
	downloadPushCmd.Flags().StringVar(&downloadAnimeTitle, "anime-title", "", "anime title to attribute this download to")
}

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
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sunerpy/akari/global"
	"github.com/sunerpy/akari/internal/check"
	"github.com/sunerpy/akari/internal/fetcher"
	"github.com/sunerpy/akari/internal/metadata"
	"github.com/sunerpy/akari/internal/reconciler"
	"github.com/sunerpy/akari/internal/scheduler"
	"github.com/sunerpy/akari/thirdpart/qbit"
	"github.com/sunerpy/akari/web"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动调度器、进度协调器和 HTTP API（常驻运行）",
	Long: `serve boots the three long-lived components described in spec.md §4:
the fair-selection scheduler that polls subscriptions, the progress
reconciler that keeps download history in sync with qBittorrent, and the
HTTP API that the §6 operations are served from.`,
	Example: `  akari serve
  akari serve --host 0.0.0.0 --port 8787`,
	PreRun: PersistentCheckCfg,
	Run:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "HTTP API 绑定主机")
	serveCmd.Flags().IntVar(&servePort, "port", 8787, "HTTP API 监听端口")
}

// buildCheckService wires the fetcher, metadata provider, download
// controller and torrent client into one internal/check.Service — the
// composition root the scheduler and the web API both drive.
func buildCheckService(qbitClient *qbit.Client) *check.Service {
	cfg := global.GlobalCfg
	f := fetcher.New(cfg.Global.FeedFetchTimeout(), cfg.Global.FeedCacheTTL(), 500)
	return check.New(f, metadata.NoopProvider{}, global.GlobalDB, qbitClient, check.Options{
		MikanBaseURL: cfg.Mikan.BaseURL,
		FeedCacheTTL: cfg.Global.FeedCacheTTL(),
		SavePath:     cfg.TorrentClient.DefaultSavePath,
		Category:     cfg.TorrentClient.Category,
	}, logger)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := global.GlobalCfg
	qbitClient, err := qbit.New(cfg.TorrentClient.BaseURL(), cfg.TorrentClient.Username, cfg.TorrentClient.Password, 200*time.Millisecond)
	if err != nil {
		color.Red("初始化 qBittorrent 客户端失败: %v", err)
		os.Exit(1)
	}

	checkSvc := buildCheckService(qbitClient)

	sched := scheduler.New(global.GlobalDB, checkSvc.Check, scheduler.Options{
		StartupDelay: cfg.Global.StartupDelay(),
		Interval:     cfg.Global.PollingInterval(),
		MaxPerPoll:   cfg.Global.MaxPerPoll(),
		PoolSize:     cfg.Global.MaxFetches(),
	}, logger)

	recon := reconciler.New(qbitClient, global.GlobalDB, cfg.Global.ProgressSyncInterval(), logger)

	if cfg.Global.EnablePolling {
		sched.Start()
		defer sched.Stop()
	} else {
		sLogger().Warn("轮询已在配置中禁用 (global.enable_polling = false)")
	}
	recon.Start()
	defer recon.Stop()

	srv := web.NewServer(global.GlobalDB, checkSvc, qbitClient, sched, cfg.TorrentClient.Category, logger)
	addr := fmt.Sprintf("%s:%d", serveHost, servePort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		sLogger().Warn("收到退出信号，正在退出...")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(addr) }()

	sLogger().Infof("akari 已启动，HTTP API 监听于 %s", addr)
	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("HTTP 服务退出", zap.Error(err))
		}
	case <-ctx.Done():
		sLogger().Info("正在关闭调度器和进度协调器...")
	}
}

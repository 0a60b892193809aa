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
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sunerpy/akari/global"
	"github.com/sunerpy/akari/models"
)

var (
	historySubID     uint
	historyBangumiID int64
)

var historyCmd = &cobra.Command{
	Use:              "history",
	Short:            "Query download history",
	PersistentPreRun: PersistentCheckCfg,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Please specify a subcommand. Use 'akari history --help' for more information.")
		_ = cmd.Usage()
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List download history for a subscription or a bangumi id",
	Example: `  akari history list --sub-id 3
  akari history list --bangumi-id 3416`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			rows []models.DownloadHistory
			err  error
		)
		switch {
		case historySubID != 0:
			rows, err = global.GlobalDB.ListHistoryBySubscription(historySubID)
		case historyBangumiID != 0:
			rows, err = global.GlobalDB.ListHistoryByBangumiID(historyBangumiID)
		default:
			color.Red("必须指定 --sub-id 或 --bangumi-id 其中之一")
			os.Exit(1)
		}
		if err != nil {
			color.Red("查询下载历史失败: %v", err)
			os.Exit(1)
		}
		for _, r := range rows {
			fmt.Printf("%s\t%s\t%s\tprogress=%.1f%%\t%s\n", r.TorrentHash, r.Status, r.Source, r.Progress, r.Title)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyListCmd.Flags().UintVar(&historySubID, "sub-id", 0, "subscription row id")
	historyListCmd.Flags().Int64Var(&historyBangumiID, "bangumi-id", 0, "bangumi id (subscription or manual)")
}

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
)

var subCmd = &cobra.Command{
	Use:              "sub",
	Short:            "Manage anime subscriptions",
	PersistentPreRun: PersistentCheckCfg,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Please specify a subcommand. Use 'akari sub --help' for more information.")
		_ = cmd.Usage()
	},
}

var subListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List every subscription",
	Example: `  akari sub list`,
	Run: func(cmd *cobra.Command, args []string) {
		subs, err := global.GlobalDB.ListSubscriptions()
		if err != nil {
			color.Red("读取订阅列表失败: %v", err)
			os.Exit(1)
		}
		for _, s := range subs {
			if s.IsManualSentinel() {
				continue
			}
			state := "enabled"
			if !s.IsEnabled {
				state = "disabled"
			}
			fmt.Printf("#%d\tbangumi_id=%d\t%s\t%s\tdownloads=%d\n", s.ID, s.BangumiID, s.Title, state, s.DownloadCount)
		}
	},
}

var (
	ensureBangumiID int64
	ensureTitle     string
	ensureMikanID   string
)

var subEnsureCmd = &cobra.Command{
	Use:     "ensure",
	Short:   "Idempotently create or fetch a subscription by bangumi id",
	Example: `  akari sub ensure --bangumi-id 3416 --title "Example Anime" --mikan-id 3416`,
	Run: func(cmd *cobra.Command, args []string) {
		sub, err := global.GlobalDB.EnsureSubscription(ensureBangumiID, ensureTitle, ensureMikanID)
		if err != nil {
			color.Red("创建订阅失败: %v", err)
			os.Exit(1)
		}
		color.Green("订阅已就绪: #%d %s", sub.ID, sub.Title)
	},
}

var subRemoveID uint

var subRemoveCmd = &cobra.Command{
	Use:     "rm",
	Short:   "Delete a subscription (download history is kept)",
	Example: `  akari sub rm --id 3`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := global.GlobalDB.DeleteSubscription(subRemoveID); err != nil {
			color.Red("删除订阅失败: %v", err)
			os.Exit(1)
		}
		color.Green("订阅 #%d 已删除", subRemoveID)
	},
}

var kickSubID uint

var subKickCmd = &cobra.Command{
	Use:     "kick",
	Short:   "Kick a subscription onto the scheduler's worker pool out-of-band",
	Long:    "kick only works against a running 'akari serve' process's in-memory scheduler; this subcommand is a thin wrapper exposed for completeness and always reports that it must be invoked through the HTTP API's trigger-check operation instead.",
	Example: `  akari sub kick --id 3`,
	Run: func(cmd *cobra.Command, args []string) {
		color.Yellow("kick 需要通过正在运行的 akari serve 的 HTTP API 触发: POST /api/check?subscription_id=%d", kickSubID)
	},
}

func init() {
	rootCmd.AddCommand(subCmd)
	subCmd.AddCommand(subListCmd, subEnsureCmd, subRemoveCmd, subKickCmd)

	subEnsureCmd.Flags().Int64Var(&ensureBangumiID, "bangumi-id", 0, "external bangumi id")
	subEnsureCmd.Flags().StringVar(&ensureTitle, "title", "", "display title")
	subEnsureCmd.Flags().StringVar(&ensureMikanID, "mikan-id", "", "Mikan bangumi id")
	_ = subEnsureCmd.MarkFlagRequired("bangumi-id")
	_ = subEnsureCmd.MarkFlagRequired("title")

	subRemoveCmd.Flags().UintVar(&subRemoveID, "id", 0, "subscription row id")
	_ = subRemoveCmd.MarkFlagRequired("id")

	subKickCmd.Flags().UintVar(&kickSubID, "id", 0, "subscription row id")
	_ = subKickCmd.MarkFlagRequired("id")
}

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
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sunerpy/akari/config"
)

const defaultConfigTOML = `[global]
polling_interval_minutes = 30
max_subscriptions_per_poll = 50
startup_delay_seconds = 30
enable_polling = true
feed_fetch_timeout_seconds = 30
progress_sync_interval_seconds = 30
max_concurrent_fetches = 3
feed_cache_ttl_seconds = 10

[mikan]
base_url = "https://mikanani.me"

[torrent_client]
host = "http://127.0.0.1"
port = 8080
username = "admin"
password = "adminadmin"
default_save_path = ""
category = "akari"
tags = "akari"
`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the akari configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Please specify a subcommand. Use 'akari config --help' for more information.")
		_ = cmd.Usage()
	},
}

var configInitCmd = &cobra.Command{
	Use:     "init",
	Short:   "初始化运行所需目录和配置文件",
	Long:    "创建 ~/.akari 目录及默认 config.toml，用于首次运行前的准备",
	Example: `  akari config init`,
	Run:     initConfigAndDBFile,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

func checkAndInitWorkDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("无法创建工作目录: %v", err)
		}
		color.Green("创建配置目录: %s", dir)
	}
	configPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(defaultConfigTOML), 0o644); err != nil {
			return fmt.Errorf("无法写入默认配置文件: %v", err)
		}
		color.Green("创建默认配置文件: %s", configPath)
	}
	return nil
}

func initConfigAndDBFile(cmd *cobra.Command, args []string) {
	home, err := os.UserHomeDir()
	if err != nil {
		color.Red("无法获取用户主目录: %v", err)
		os.Exit(1)
	}
	if err := checkAndInitWorkDir(filepath.Join(home, config.WorkDir)); err != nil {
		color.Red("初始化配置失败: %v", err)
		os.Exit(1)
	}
	color.Green("目录初始化成功！请编辑 config.toml 填入 qBittorrent 信息后运行 akari serve")
}

package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	glogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"

	"github.com/sunerpy/akari/config"
	"github.com/sunerpy/akari/global"
	"github.com/sunerpy/akari/models"
)

const (
	configDirName = ".akari"
	configName    = "config.toml"
	appVersion    = "dev"
)

var (
	once    sync.Once
	initErr error
)

func initViper(cfgFile string) error {
	if global.GlobalViper == nil {
		global.GlobalViper = viper.New()
	}
	v := global.GlobalViper
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("解析用户目录失败: %w", err)
	}
	global.GlobalDirCfg = &config.DirConf{
		HomeDir: home,
		WorkDir: filepath.Join(home, configDirName),
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigType("toml")
		v.AddConfigPath(global.GlobalDirCfg.WorkDir)
		v.SetConfigName(configName)
	}
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("配置解析失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置文件验证失败: %w", err)
	}
	global.GlobalCfg = &cfg
	global.GlobalDirCfg.DownloadDir = filepath.Join(global.GlobalDirCfg.WorkDir, cfg.TorrentClient.DefaultSavePath)
	return nil
}

// InitRuntime wires global.GlobalCfg, global.GlobalLogger and global.GlobalDB
// from the TOML config file (cfgFile, or ~/.akari/config.toml when empty).
// It runs at most once per process; subsequent calls return the logger and
// error captured by the first run.
func InitRuntime(cfgFile string) (*zap.Logger, error) {
	once.Do(func() {
		if err := initViper(cfgFile); err != nil {
			initErr = err
			return
		}
		logger, err := config.DefaultZapConfig.InitLogger()
		if err != nil {
			initErr = fmt.Errorf("初始化日志失败: %w", err)
			return
		}
		global.GlobalLogger = logger

		gormLg := zapgorm2.Logger{
			ZapLogger:     logger,
			LogLevel:      glogger.Silent,
			SlowThreshold: 0,
		}
		global.GlobalDB, err = models.NewDBWithVersion(gormLg, appVersion)
		if err != nil {
			initErr = fmt.Errorf("初始化数据库失败: %w", err)
			return
		}
	})
	return global.GlobalLogger, initErr
}

func GetLogger() *zap.Logger { return global.GlobalLogger }

// FatalOnError wraps InitRuntime for commands that can't continue without a
// live config; it prints the failure the way the teacher's cobra commands do
// and exits through cobra.CheckErr.
func FatalOnError(cfgFile string) *zap.Logger {
	logger, err := InitRuntime(cfgFile)
	if err != nil {
		color.Red("启动初始化失败: %v", err)
		cobra.CheckErr(err)
	}
	return logger
}

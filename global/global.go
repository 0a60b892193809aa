package global

import (
	"github.com/spf13/viper"
	"github.com/sunerpy/akari/config"
	"github.com/sunerpy/akari/models"
	"go.uber.org/zap"
)

var (
	GlobalCfg    *config.Config
	GlobalLogger *zap.Logger
	GlobalDB     *models.AnimeDB
	GlobalDirCfg *config.DirConf
	GlobalViper  *viper.Viper
)

func GetGlobalConfig() *config.Config {
	return GlobalCfg
}

func GetLogger() *zap.Logger {
	return GlobalLogger
}

func GetSlogger() *zap.SugaredLogger {
	if GlobalLogger == nil {
		return zap.NewNop().Sugar()
	}
	return GlobalLogger.Sugar()
}

func InitLogger(l *zap.Logger) {
	GlobalLogger = l
}

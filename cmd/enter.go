package cmd

import (
	"go.uber.org/zap"

	"github.com/sunerpy/akari/global"
)

func sLogger() *zap.SugaredLogger {
	return global.GetSlogger()
}

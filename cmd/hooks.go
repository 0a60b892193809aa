package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sunerpy/akari/core"
)

// PersistentCheckCfg is the PreRun every command that touches the runtime
// (config, database, scheduler, torrent client) installs: it loads
// ~/.akari/config.toml (or --config), wires global.GlobalLogger/GlobalDB,
// and exits with a readable message if any of that fails — the same
// fail-fast contract the teacher's PersistentCheckCfg gave its commands,
// now delegated to core.FatalOnError instead of re-deriving the same
// file-existence checks by hand.
func PersistentCheckCfg(cmd *cobra.Command, args []string) {
	logger = core.FatalOnError(cfgFile)
}

var logger *zap.Logger

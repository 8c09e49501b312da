package main

import (
	"os"

	"github.com/spf13/cobra"

	"keywordgate/pkg/config"
	"keywordgate/pkg/logging"
)

var (
	cfgFile  string
	logLevel string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "keywordgate",
		Short:         "keywordgate filters log streams by keyword",
		Long:          `keywordgate matches log lines against a keyword set in a single pass and forwards, drops or masks them.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (defaults are used when empty)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(), newMatchCmd())
	return root
}

// loadConfig resolves the config file and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logging.Init("keywordgate", cfg.Log.Level, cfg.Log.JSON)
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

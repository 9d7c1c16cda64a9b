// Package main implements hydrctl, the driver-side command line for the
// state hydration engine: encode payloads into tokens, stage them at a
// running application, wait on the published result, and manage the replay
// guard.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"statehydrate/internal/config"
	"statehydrate/internal/logging"
)

var (
	cfgPath   string
	debugMode bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hydrctl",
	Short: "Inject validated state snapshots into a running application",
	Long: `hydrctl drives the state hydration engine from the test side:
it encodes JSON or YAML payloads into URL-safe tokens, stages them in an
application's page-preparation queue, waits for the published hydration
result, and maintains the durable replay guard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if debugMode {
			cfg.Logging.Debug = true
		}
		if err := logging.Initialize(cfg.Logging); err != nil {
			return err
		}
		logger = logging.Get(logging.CategoryBoot)
		logger.Debug("config loaded", zap.String("path", cfgPath), zap.String("target", cfg.Target.BaseURL))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(".hydrctl", "config.yaml"), "config file path")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "verbose debug logging")

	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(awaitCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(replayCmd)
}

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

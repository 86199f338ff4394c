package main

import (
	"fmt"
	"os"
	"path/filepath"

	"agentcluster/internal/config"
	"agentcluster/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	// Logger
	logger *zap.Logger

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "agentcluster",
	Short: "agentcluster - adaptive multi-agent build orchestrator",
	Long: `agentcluster drives a simulated cluster of specialist agents through a
phased build: architecture, tool scan, gap analysis, fragmentation and
dynamic tool generation, a 50-line validation cycle and finalization.

Free-text intents are compiled into tool-call lists by the GodCodeRX agent.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			if workspace, err = os.Getwd(); err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}
		if configPath == "" {
			configPath = filepath.Join(workspace, ".agentcluster", "config.yaml")
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		settings := cfg.Logging.Settings()
		if verbose {
			settings.Level = "debug"
		}
		if err := logging.Initialize(workspace, settings); err != nil {
			return err
		}
		logger.Debug("configuration loaded", zap.String("path", configPath), zap.String("workspace", workspace))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.agentcluster/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(intentCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

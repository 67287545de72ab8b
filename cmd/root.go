package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-dualcam/internal/config"
	xlog "github.com/kartoza/kartoza-dualcam/internal/log"
)

var (
	version    = "dev"
	debugMode  bool
	configPath string
	listenAddr string
	cfg        *config.Config
	logFile    *os.File
)

// SetVersion sets the application version (called from main)
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "kartoza-dualcam",
	Short: "Dual-camera clip recorder",
	Long: `Kartoza DualCam records short clips from one or two cameras at once.

It supports:
  - Single-camera and simultaneous front + back recording
  - A countdown before each take and a total recording budget
  - Flash, zoom and camera flip while streaming
  - A local HTTP control API so other terminals and scripts can drive a session

Running without a subcommand opens the interactive camera screen.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logToFile(); err != nil {
			return err
		}
		return runTUI(cmd.Context())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/"+config.DefaultConfigDir+"/"+config.ConfigFileName+")")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "Control API address (default from config, \"off\" to disable)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kartoza-dualcam %s\n", version)
	},
}

func loadConfig() error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if debugMode {
		level = "debug"
	}
	xlog.Configure(xlog.Config{Level: level, Console: true})
	return nil
}

// logToFile sends logs to the config directory so they do not tear the
// full-screen UI.
func logToFile() error {
	dir := config.GetConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "dualcam.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	level := cfg.LogLevel
	if debugMode {
		level = "debug"
	}
	xlog.Configure(xlog.Config{Level: level, Output: f})
	return nil
}

// apiAddr returns the control API address, or "" when disabled.
func apiAddr() string {
	addr := listenAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	if addr == "off" {
		return ""
	}
	return addr
}

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"knexport/pkg/config"
	"knexport/pkg/logger"
	"knexport/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	baseURL       string
	statusFile    string
	quiet         bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "knexport",
	Short: "Export kidsnote albums and reports to local folders",
	Long: `knexport copies the albums and reports of a kidsnote account into plain
folders on disk: one folder per item holding its text, photos, videos and
attachments.

It reuses the session of a browser that is already signed in. Store the
session once with 'knexport auth login', then run an export:

  knexport export album --from 2024-03 --to 2024-08 -o ./kidsnote`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColor(!noColor)
		if quiet {
			return
		}
		switch cmd.Name() {
		case "version", "help", "status", "show":
		default:
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.knexport.yaml or ~/.config/knexport/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "send a desktop notification when an export ends")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "service origin (default https://www.kidsnote.com)")
	rootCmd.PersistentFlags().StringVar(&statusFile, "status-file", "", "status file (default is status.json in the user data directory)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "do not print the logo")

	rootCmd.SetVersionTemplate(`knexport {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges file, environment and the flags the user actually set.
func loadConfig(cmd *cobra.Command, extra map[string]interface{}) (*config.Config, error) {
	flags := make(map[string]interface{})
	for k, v := range extra {
		flags[k] = v
	}
	if cmd.Flags().Changed("log-level") {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("base-url") {
		flags["base-url"] = baseURL
	}
	if cmd.Flags().Changed("notifications") {
		flags["notify"] = notifications
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if noColor {
		cfg.UI.Color = false
	}
	ui.SetColor(cfg.UI.Color)
	return cfg, nil
}

// setupLogger installs the global logger described by cfg.
func setupLogger(cfg *config.Config) (logger.Logger, error) {
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("knexport starting")
	return log, nil
}

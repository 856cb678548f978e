package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"knexport/pkg/config"
	"knexport/pkg/ui"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage knexport configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (KNEXPORT_*, .env files included)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option set to its default",
	Long: `Write a configuration file with every option set to its default.

The file goes to ~/.config/knexport/config.yaml unless --config names
another path.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging flags, environment, file and
defaults. Session cookies are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

const configHeader = `# knexport configuration
#
# Every value can also be set through an environment variable prefixed
# with KNEXPORT_, e.g. KNEXPORT_OUTPUT_DIR or KNEXPORT_LOG_LEVEL.
# Prefer 'knexport auth login' over putting session cookies in this file.

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return writeDefaultConfig(path, forceInit)
}

func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		ui.PrintError("Configuration file already exists", path)
		return fmt.Errorf("%s exists; pass --force to overwrite", path)
	}

	if err := config.DefaultConfig().SaveWithHeader(path, configHeader); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration written to " + path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	out, err := renderConfig(cfg)
	if err != nil {
		return err
	}
	if path := configSource(); path != "" {
		ui.PrintInfo("Config file", path)
	} else {
		ui.PrintInfo("Config file", "(none, defaults and environment only)")
	}
	ui.PrintLine(out)
	return nil
}

// renderConfig returns cfg as YAML with the session cookies masked.
func renderConfig(cfg *config.Config) (string, error) {
	masked := *cfg
	masked.Service.SessionID = mask(cfg.Service.SessionID)
	masked.Service.CSRFToken = mask(cfg.Service.CSRFToken)
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd, nil); err != nil {
		ui.PrintError("✗ Invalid configuration", err)
		return err
	}
	source := configSource()
	if source == "" {
		source = "defaults"
	}
	ui.PrintSuccess("✓ Configuration is valid (" + source + ")")
	return nil
}

func configSource() string {
	if configFile != "" {
		return configFile
	}
	return config.FindConfigFile()
}

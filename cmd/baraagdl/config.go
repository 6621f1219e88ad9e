package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"baraagdl/pkg/config"
	"baraagdl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Baraag DL configuration.

There are two configuration surfaces:
  - The app config (.baraagdl.yaml), layered with environment variables
    and command line flags
  - The transcode settings file (baraag_dl_settings), a plain key=value
    file regenerated with defaults whenever it is missing or invalid`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create example configuration files",
	Long: `Create an example app config file and the transcode settings file
with default values.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration merged from all sources:
command line flags, environment variables, config file, and defaults.`,
	Run: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".baraagdl.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		os.Exit(1)
	}

	exampleConfig := `# Baraag DL configuration file
#
# Everything here can also be set via environment variables prefixed
# with BARAAGDL_, for example BARAAGDL_BASE_URL or BARAAGDL_OUTPUT_DIR.

api:
  # Instance base URL
  base_url: "https://baraag.net"
  user_agent: "baraagdl/1.0"

rate_limit:
  requests_per_minute: 60
  max_retries: 3

output:
  # Account folders are created under this directory
  base_directory: "."

download:
  timeout: 60s
  # Skip failed downloads instead of aborting the run
  continue_on_error: false

logging:
  # debug, info, warn, error
  level: "info"
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to write config file", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Created " + configPath)

	// Materialize the settings file too so both surfaces exist
	if _, err := config.LoadSettings(config.SettingsFileName); err != nil {
		ui.PrintError("Failed to create settings file", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Created " + config.SettingsFileName)
	ui.PrintInfo("Transcode keys", fmt.Sprintf("%v", config.Keys()))
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to render configuration", err.Error())
		os.Exit(1)
	}

	fmt.Print(string(out))

	fmt.Println("\ntranscode:")
	fmt.Printf("  use_ffmpeg: %v\n", cfg.Transcode.UseFFmpeg)
	fmt.Printf("  ffmpeg_path: %s\n", cfg.Transcode.FFmpegPath)
	fmt.Printf("  convert_gif: %v\n", cfg.Transcode.ConvertGIF)
	fmt.Printf("  convert_apng: %v\n", cfg.Transcode.ConvertAPNG)
	fmt.Printf("  file_size_limit: %.1f\n", cfg.Transcode.FileSizeLimit)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tadcatch/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tadcatch configuration",
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Long: `Write a YAML config file populated with the default settings.

Without a path the file is written to .tadcatch.yaml in the current
directory, which is the first location tadcatch looks at on startup.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ".tadcatch.yaml"
		if len(args) > 0 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "Config file %s already exists, refusing to overwrite.\n", path)
			os.Exit(1)
		}

		if err := config.DefaultConfig().Save(path); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to write config:", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default configuration to %s.\n", path)
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration tadcatch would run with, after applying the
config file, environment variables and defaults.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
			os.Exit(1)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to render configuration:", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

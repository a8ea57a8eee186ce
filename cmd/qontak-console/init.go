package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init <api-token>",
	Short: "Store the Qontak API token in ~/.qontak-console/config.toml",
	Long:  "Initialize the console by storing your Qontak open API bearer token in the local configuration file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfigFile()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.Default.APIToken = args[0]
		if cfg.Console.ListenAddr == "" {
			cfg.Console.ListenAddr = defaultListenAddr
		}

		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		path, _ := configPath()
		fmt.Printf("API token saved to %s\n", path)
		return nil
	},
}

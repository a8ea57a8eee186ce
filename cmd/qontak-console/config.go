package main

import (
	"fmt"
	"io"
	"os"

	qontak "github.com/agentdesk/qontak-console"
	"github.com/spf13/cobra"
)

var configShowRaw bool

func init() {
	configShowCmd.Flags().BoolVar(&configShowRaw, "raw", false, "Print the config file as stored")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage console configuration",
	Long:  "View or modify the settings in ~/.qontak-console/config.toml. QONTAK_API_TOKEN and QONTAK_BASE_URL override the file.",
}

// configEntry is one effective setting and where it came from.
type configEntry struct {
	Key    string
	Value  string
	Source string
}

// configEntries lists every known key with its effective value. file is
// the config as stored on disk; env overrides are detected by comparing it
// with the effective config.
func configEntries(file, effective *Config) []configEntry {
	source := func(fileVal, effVal, envName string) string {
		if effVal != fileVal {
			return "env " + envName
		}
		if fileVal == "" {
			return "default"
		}
		return "file"
	}

	token := "(not set)"
	if effective.Default.APIToken != "" {
		token = maskKey(effective.Default.APIToken)
	}
	interval := qontak.DefaultPollInterval.String()
	intervalSrc := "default"
	if effective.Console.PollInterval != "" {
		interval, intervalSrc = effective.Console.PollInterval, "file"
	}

	return []configEntry{
		{"default.api_token", token, source(file.Default.APIToken, effective.Default.APIToken, "QONTAK_API_TOKEN")},
		{"default.base_url", valueOrDefault(effective.Default.BaseURL, qontak.DefaultBaseURL), source(file.Default.BaseURL, effective.Default.BaseURL, "QONTAK_BASE_URL")},
		{"console.listen_addr", listenAddr(effective), source(file.Console.ListenAddr, effective.Console.ListenAddr, "")},
		{"console.poll_interval", interval, intervalSrc},
		{"console.agent_name", valueOrDefault(effective.Console.AgentName, "Agent"), source(file.Console.AgentName, effective.Console.AgentName, "")},
	}
}

func printConfigEntries(w io.Writer, entries []configEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%-22s %-40s (%s)\n", e.Key, e.Value, e.Source)
	}
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  "Print every setting with its effective value and whether it comes from the file, an environment override or the built-in default.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configShowRaw {
			path, err := configPath()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				fmt.Println("No configuration file found. Run 'qontak-console init <api-token>' to create one.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("cannot read config file: %w", err)
			}
			fmt.Print(string(data))
			return nil
		}

		file, err := readConfigFile()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		effective := *file
		applyEnv(&effective)

		printConfigEntries(cmd.OutOrStdout(), configEntries(file, &effective))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a value using section.field keys.\nExample: qontak-console config set console.poll_interval 5s",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		// Environment overrides are not written back.
		cfg, err := readConfigFile()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		shown := value
		if key == "default.api_token" {
			shown = maskKey(value)
		}
		fmt.Printf("%s = %s\n", key, shown)

		envName := map[string]string{"default.api_token": "QONTAK_API_TOKEN", "default.base_url": "QONTAK_BASE_URL"}[key]
		if envName != "" && os.Getenv(envName) != "" {
			fmt.Fprintf(os.Stderr, "note: %s is set and overrides this value\n", envName)
		}
		return nil
	},
}

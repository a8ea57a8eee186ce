package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ============================================================================
// Config types
// ============================================================================

// Config represents the CLI configuration stored in ~/.qontak-console/config.toml.
type Config struct {
	Default ConfigDefault `toml:"default"`
	Console ConfigConsole `toml:"console"`
}

// ConfigDefault holds API access settings.
type ConfigDefault struct {
	APIToken string `toml:"api_token"`
	BaseURL  string `toml:"base_url"`
}

// ConfigConsole holds settings for the console server.
type ConfigConsole struct {
	ListenAddr   string `toml:"listen_addr"`
	PollInterval string `toml:"poll_interval"`
	AgentName    string `toml:"agent_name"`
}

const defaultListenAddr = "127.0.0.1:8080"

// ============================================================================
// Config helpers
// ============================================================================

// configDir returns the path to ~/.qontak-console, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".qontak-console")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

// configPath returns the full path to the config file.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads and parses the config file, then applies environment
// overrides. A missing file yields a zero-value Config.
func loadConfig() (*Config, error) {
	cfg, err := readConfigFile()
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

func readConfigFile() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

// applyEnv lets QONTAK_API_TOKEN and QONTAK_BASE_URL override the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QONTAK_API_TOKEN"); v != "" {
		cfg.Default.APIToken = v
	}
	if v := os.Getenv("QONTAK_BASE_URL"); v != "" {
		cfg.Default.BaseURL = v
	}
}

// saveConfig writes the config struct back to disk as TOML.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// setConfigValue sets a config field using dot notation (e.g. "default.api_token").
func setConfigValue(cfg *Config, key, value string) error {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("key must use dot notation: section.field (e.g. default.api_token)")
	}
	section, field := parts[0], parts[1]

	switch section {
	case "default":
		switch field {
		case "api_token":
			cfg.Default.APIToken = value
		case "base_url":
			cfg.Default.BaseURL = value
		default:
			return fmt.Errorf("unknown field %q in section [default]", field)
		}
	case "console":
		switch field {
		case "listen_addr":
			cfg.Console.ListenAddr = value
		case "poll_interval":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid poll_interval %q: %w", value, err)
			}
			cfg.Console.PollInterval = value
		case "agent_name":
			cfg.Console.AgentName = value
		default:
			return fmt.Errorf("unknown field %q in section [console]", field)
		}
	default:
		return fmt.Errorf("unknown config section %q (valid: default, console)", section)
	}
	return nil
}

// ============================================================================
// Root command
// ============================================================================

var (
	debugLogs bool
	logger    = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "qontak-console",
	Short: "WhatsApp agent console for the Qontak CMS",
	Long:  "Command-line interface and console server for agents handling WhatsApp conversations through Qontak.\nFalls back to demo data when the Qontak API is unreachable.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if debugLogs {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

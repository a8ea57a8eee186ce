package main

import (
	"fmt"
	"time"

	qontak "github.com/agentdesk/qontak-console"
)

// newClient creates a Qontak client from the config.
func newClient(cfg *Config) (*qontak.Client, error) {
	if cfg.Default.APIToken == "" {
		return nil, fmt.Errorf("no API token; run 'qontak-console init <api-token>' or set QONTAK_API_TOKEN")
	}

	var opts []qontak.ClientOption
	if cfg.Default.BaseURL != "" {
		opts = append(opts, qontak.WithBaseURL(cfg.Default.BaseURL))
	}
	return qontak.NewClient(cfg.Default.APIToken, opts...), nil
}

// newGateway wraps the configured client with demo fallback.
func newGateway(cfg *Config) (*qontak.Gateway, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return qontak.NewGateway(client, qontak.DemoData{},
		qontak.WithAgentName(cfg.Console.AgentName),
		qontak.WithGatewayLogger(logger),
	), nil
}

// pollInterval parses console.poll_interval, defaulting to 5s.
func pollInterval(cfg *Config) (time.Duration, error) {
	if cfg.Console.PollInterval == "" {
		return qontak.DefaultPollInterval, nil
	}
	d, err := time.ParseDuration(cfg.Console.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid console.poll_interval %q: %w", cfg.Console.PollInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("console.poll_interval must be positive, got %s", d)
	}
	return d, nil
}

func listenAddr(cfg *Config) string {
	return valueOrDefault(cfg.Console.ListenAddr, defaultListenAddr)
}

// maskKey shows the first 4 and last 4 characters of a key.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

func modeLabel(m qontak.Mode) string {
	if m == qontak.ModeFallback {
		return "DEMO MODE: Qontak API unreachable, showing simulated data"
	}
	return ""
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	qontak "github.com/agentdesk/qontak-console"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and API reachability",
	Long:  "Display the current configuration and check the Qontak API to tell whether the console would run live or in demo mode.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Println("Configuration:")
		fmt.Printf("  Base URL:      %s\n", valueOrDefault(cfg.Default.BaseURL, qontak.DefaultBaseURL))
		if cfg.Default.APIToken != "" {
			fmt.Printf("  API Token:     %s\n", maskKey(cfg.Default.APIToken))
		} else {
			fmt.Println("  API Token:     (not set)")
		}
		fmt.Printf("  Listen Addr:   %s\n", listenAddr(cfg))
		fmt.Printf("  Poll Interval: %s\n", valueOrDefault(cfg.Console.PollInterval, qontak.DefaultPollInterval.String()))
		fmt.Printf("  Agent Name:    %s\n", valueOrDefault(cfg.Console.AgentName, "Agent"))

		if cfg.Default.APIToken == "" {
			return nil
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println("Live status:")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rooms, err := client.ListRooms(ctx)
		var apiErr *qontak.APIError
		switch {
		case err == nil:
			fmt.Printf("  API:   reachable (%d rooms)\n", len(rooms))
			fmt.Println("  Mode:  live")
		case qontak.IsConnectivity(err):
			fmt.Printf("  API:   unreachable (%v)\n", err)
			fmt.Println("  Mode:  demo")
		case errors.As(err, &apiErr):
			fmt.Printf("  API:   error %d: %s\n", apiErr.Status, apiErr.Message)
			fmt.Println("  Mode:  demo (room list falls back on any error)")
		default:
			fmt.Printf("  API:   %v\n", err)
		}
		return nil
	},
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	qontak "github.com/agentdesk/qontak-console"
	"github.com/spf13/cobra"
)

var (
	watchURL    string
	watchSearch string
)

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "Console URL (default http://<console.listen_addr>)")
	watchCmd.Flags().StringVarP(&watchSearch, "search", "s", "", "Filter rooms by name or phone number")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running console and print every state change",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := watchURL
		if url == "" {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			url = "http://" + listenAddr(cfg)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := qontak.NewStreamClient(url, &qontak.StreamConfig{
			AutoReconnect:        true,
			MaxReconnectAttempts: -1,
			Logger:               logger,
		})
		client.OnStateChange(func(s qontak.StreamState) {
			logger.Debug().Str("state", string(s)).Msg("stream")
		})
		client.OnSnapshot(func(v qontak.View) {
			printView(v, watchSearch)
		})

		fmt.Printf("Watching %s (Ctrl+C to stop)\n", url)
		err := client.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func printView(v qontak.View, search string) {
	st := v.State
	fmt.Println("────────────────────────────────────────")
	if !v.LoggedIn {
		fmt.Println("Not logged in.")
		return
	}
	if st.DemoMode {
		fmt.Println(modeLabel(qontak.ModeFallback))
	}
	if st.Loading {
		fmt.Println("Loading...")
		return
	}
	if st.Error != "" {
		fmt.Println(st.Error)
		return
	}

	rooms := qontak.FilterRooms(st.Rooms, search)
	fmt.Printf("Rooms (%d):\n", len(rooms))
	for _, r := range rooms {
		marker := " "
		if r.ID == st.ActiveRoomID {
			marker = ">"
		}
		unread := ""
		if r.UnreadCount > 0 {
			unread = fmt.Sprintf(" [%d]", r.UnreadCount)
		}
		fmt.Printf(" %s %s +%s%s  %s\n", marker, r.Name, r.PhoneNumber, unread, r.LastMessage)
	}

	if st.NewChatOpen {
		fmt.Println("New chat dialog open")
	}

	room, ok := st.ActiveRoom()
	if !ok {
		return
	}
	fmt.Printf("\n%s (+%s):\n", room.Name, room.PhoneNumber)
	for _, m := range st.ActiveMessages() {
		pending := ""
		if m.Provisional() {
			pending = " (sending)"
		}
		fmt.Printf("  [%s] %s: %s%s\n", m.SenderType, m.SenderName, m.Body, pending)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	qontak "github.com/agentdesk/qontak-console"
	"github.com/spf13/cobra"
)

// ============================================================================
// Flag variables
// ============================================================================

var (
	// rooms
	roomsQuery string
	roomsJSON  bool

	// messages
	messagesQuery string
	messagesJSON  bool

	// send
	sendJSON bool

	// start-chat
	startChatPhone   string
	startChatName    string
	startChatMessage string
	startChatJSON    bool
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBanner(m qontak.Mode) {
	if label := modeLabel(m); label != "" {
		fmt.Fprintln(os.Stderr, label)
	}
}

// ============================================================================
// rooms
// ============================================================================

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List conversation rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		gw, err := newGateway(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		res, err := gw.FetchRooms(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		printBanner(res.Mode)

		rooms := qontak.FilterRooms(res.Data, roomsQuery)
		if roomsJSON {
			return printJSON(rooms)
		}

		if len(rooms) == 0 {
			fmt.Println("No rooms found.")
			return nil
		}

		for _, r := range rooms {
			unread := ""
			if r.UnreadCount > 0 {
				unread = fmt.Sprintf(" (%d unread)", r.UnreadCount)
			}
			fmt.Printf("  %s: %s +%s%s\n", r.ID, r.Name, r.PhoneNumber, unread)
			if r.LastMessage != "" {
				fmt.Printf("      %s  %s\n", r.LastMessageAt, r.LastMessage)
			}
		}
		return nil
	},
}

// ============================================================================
// messages
// ============================================================================

var messagesCmd = &cobra.Command{
	Use:   "messages <room-id>",
	Short: "Show the message history of a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		gw, err := newGateway(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		res, err := gw.FetchMessages(ctx, args[0])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		printBanner(res.Mode)

		msgs := qontak.SearchMessages(res.Data, messagesQuery)
		if messagesJSON {
			return printJSON(msgs)
		}

		if len(msgs) == 0 {
			fmt.Println("No messages found.")
			return nil
		}
		for _, m := range msgs {
			status := ""
			if m.Status != "" {
				status = " [" + m.Status + "]"
			}
			fmt.Printf("[%s] %s (%s): %s%s\n", m.CreatedAt, m.SenderName, m.SenderType, m.Body, status)
		}
		return nil
	},
}

// ============================================================================
// send
// ============================================================================

var sendCmd = &cobra.Command{
	Use:   "send <room-id> <message>",
	Short: "Send a text message to a room",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, text := args[0], args[1]
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		gw, err := newGateway(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		res, err := gw.SendMessage(ctx, roomID, text)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		printBanner(res.Mode)

		if sendJSON {
			return printJSON(res.Data)
		}
		if res.Data == nil {
			fmt.Printf("Message sent to room %s\n", roomID)
			return nil
		}
		fmt.Printf("Message sent to room %s\n", roomID)
		fmt.Printf("  Message ID: %s\n", res.Data.ID)
		fmt.Printf("  Status:     %s\n", valueOrDefault(res.Data.Status, "(none)"))
		return nil
	},
}

// ============================================================================
// start-chat
// ============================================================================

var startChatCmd = &cobra.Command{
	Use:   "start-chat",
	Short: "Start a WhatsApp conversation with a phone number",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := qontak.NewChatRequest{
			Phone:   startChatPhone,
			Name:    startChatName,
			Message: startChatMessage,
		}.Normalized()
		if err := req.Validate(); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		gw, err := newGateway(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		res, err := gw.StartNewChat(ctx, req)
		if err != nil {
			return fmt.Errorf("start chat failed: %w", err)
		}
		printBanner(res.Mode)

		if startChatJSON {
			return printJSON(res.Data)
		}
		fmt.Printf("Conversation started with %s (+%s)\n", req.Name, req.Phone)
		if res.Data != nil && res.Data.RoomID != "" {
			fmt.Printf("  Room ID: %s\n", res.Data.RoomID)
		}
		return nil
	},
}

// ============================================================================
// Registration
// ============================================================================

func init() {
	roomsCmd.Flags().StringVarP(&roomsQuery, "search", "s", "", "Filter rooms by name or phone number")
	roomsCmd.Flags().BoolVar(&roomsJSON, "json", false, "Output raw JSON")

	messagesCmd.Flags().StringVarP(&messagesQuery, "search", "s", "", "Only show messages containing this text")
	messagesCmd.Flags().BoolVar(&messagesJSON, "json", false, "Output raw JSON")

	sendCmd.Flags().BoolVar(&sendJSON, "json", false, "Output raw JSON")

	startChatCmd.Flags().StringVar(&startChatPhone, "phone", "", "WhatsApp number, digits only after normalisation (required)")
	startChatCmd.Flags().StringVar(&startChatName, "name", "", "Contact name (required)")
	startChatCmd.Flags().StringVar(&startChatMessage, "message", "Halo, ada yang bisa saya bantu?", "First message")
	startChatCmd.Flags().BoolVar(&startChatJSON, "json", false, "Output raw JSON")

	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(startChatCmd)
}

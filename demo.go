package qontak

import (
	"strings"
	"time"
)

// DemoSource supplies the simulated rooms and messages used while the API is
// unreachable. Implementations must be pure apart from now-relative
// timestamps.
type DemoSource interface {
	Rooms(now time.Time) []Room
	Messages(roomID string, now time.Time) []Message
}

// DemoData is the built-in fixture: three rooms and a short exchange per room.
type DemoData struct{}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Rooms returns the three sample rooms, newest first.
func (DemoData) Rooms(now time.Time) []Room {
	return []Room{
		{
			ID:            "room_1",
			Name:          "Budi Santoso",
			LastMessage:   "Halo, saya ingin bertanya tentang paket internet.",
			LastMessageAt: stamp(now),
			UnreadCount:   2,
			ChannelType:   "whatsapp",
			CustomerID:    "cust_1",
			PhoneNumber:   "628123456789",
		},
		{
			ID:            "room_2",
			Name:          "Siti Aminah",
			LastMessage:   "Terima kasih informasinya.",
			LastMessageAt: stamp(now.Add(-time.Hour)),
			UnreadCount:   0,
			ChannelType:   "whatsapp",
			CustomerID:    "cust_2",
			PhoneNumber:   "628987654321",
		},
		{
			ID:            "room_3",
			Name:          "Ahmad Faisal",
			LastMessage:   "Kapan pesanan saya sampai?",
			LastMessageAt: stamp(now.Add(-2 * time.Hour)),
			UnreadCount:   1,
			ChannelType:   "whatsapp",
			CustomerID:    "cust_3",
			PhoneNumber:   "628112233445",
		},
	}
}

// Messages returns the greeting + question exchange, or a single welcome
// message for rooms created locally during this session.
func (DemoData) Messages(roomID string, now time.Time) []Message {
	if IsLocalRoomID(roomID) {
		return []Message{{
			ID:         "msg_initial",
			RoomID:     roomID,
			Body:       "Halo, selamat datang di layanan kami!",
			Type:       TypeText,
			SenderName: "Agent",
			SenderType: SenderAgent,
			CreatedAt:  stamp(now),
			Status:     StatusSent,
		}}
	}

	return []Message{
		{
			ID:         "msg_1",
			RoomID:     roomID,
			Body:       "Selamat siang, ada yang bisa kami bantu?",
			Type:       TypeText,
			SenderName: "Agent Support",
			SenderType: SenderAgent,
			CreatedAt:  stamp(now.Add(-2 * time.Hour)),
			Status:     StatusRead,
		},
		{
			ID:         "msg_2",
			RoomID:     roomID,
			Body:       "Halo, saya ingin bertanya tentang promo terbaru.",
			Type:       TypeText,
			SenderName: "Customer",
			SenderType: SenderCustomer,
			CreatedAt:  stamp(now.Add(-time.Hour)),
		},
	}
}

// IsLocalRoomID reports whether a room id was minted locally rather than by
// the server.
func IsLocalRoomID(roomID string) bool {
	return strings.HasPrefix(roomID, LocalRoomIDPrefix) || strings.Contains(roomID, "temp")
}

// EmptyDemo is a DemoSource with no data at all.
type EmptyDemo struct{}

func (EmptyDemo) Rooms(time.Time) []Room { return nil }

func (EmptyDemo) Messages(string, time.Time) []Message { return nil }

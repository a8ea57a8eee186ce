package qontak

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"+62 812-3456-789": "628123456789",
		"(021) 555 01":     "02155501",
		"abc":              "",
		"":                 "",
	}
	for in, want := range tests {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewChatRequest_Validate(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		req := NewChatRequest{Phone: "+62 811", Name: " Rina ", Message: "Halo"}.Normalized()
		if err := req.Validate(); err != nil {
			t.Fatal(err)
		}
		if req.Phone != "62811" || req.Name != "Rina" {
			t.Errorf("Normalized = %+v", req)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		err := NewChatRequest{Phone: "--", Name: " ", Message: "Halo"}.Validate()
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if !strings.Contains(err.Error(), "phone, name") {
			t.Errorf("error = %q", err)
		}
	})

	t.Run("blank message", func(t *testing.T) {
		err := NewChatRequest{Phone: "1", Name: "n", Message: "  "}.Validate()
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestFilterRooms(t *testing.T) {
	rooms := DemoData{}.Rooms(fixedNow)

	tests := []struct {
		q    string
		want []string
	}{
		{"", []string{"room_1", "room_2", "room_3"}},
		{"budi", []string{"room_1"}},
		{"SITI", []string{"room_2"}},
		{"62811", []string{"room_3"}},
		{"nobody", nil},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			got := FilterRooms(rooms, tt.q)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rooms, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSearchMessages(t *testing.T) {
	msgs := DemoData{}.Messages("room_1", fixedNow)

	if got := SearchMessages(msgs, "  "); len(got) != 2 {
		t.Errorf("blank query kept %d, want 2", len(got))
	}
	got := SearchMessages(msgs, "PROMO")
	if len(got) != 1 || got[0].ID != "msg_2" {
		t.Errorf("unexpected match: %+v", got)
	}
	if got := SearchMessages(msgs, "xyz"); len(got) != 0 {
		t.Errorf("expected no match, got %d", len(got))
	}
}

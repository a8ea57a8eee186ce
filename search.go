package qontak

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizePhone strips everything but digits, so "+62 812-3456" becomes
// "628123456".
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// Normalized returns a copy with the phone number reduced to digits and the
// name trimmed.
func (r NewChatRequest) Normalized() NewChatRequest {
	r.Phone = NormalizePhone(r.Phone)
	r.Name = strings.TrimSpace(r.Name)
	return r
}

// Validate requires a phone number, a name and a first message.
func (r NewChatRequest) Validate() error {
	var missing []string
	if NormalizePhone(r.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// FilterRooms keeps rooms whose name contains q (case-insensitive) or whose
// phone number contains q. An empty query keeps everything.
func FilterRooms(rooms []Room, q string) []Room {
	if q == "" {
		return rooms
	}
	lq := strings.ToLower(q)
	out := make([]Room, 0, len(rooms))
	for _, r := range rooms {
		if strings.Contains(strings.ToLower(r.Name), lq) || strings.Contains(r.PhoneNumber, q) {
			out = append(out, r)
		}
	}
	return out
}

// SearchMessages keeps messages whose body contains q, case-insensitively.
// A blank query keeps everything.
func SearchMessages(msgs []Message, q string) []Message {
	if strings.TrimSpace(q) == "" {
		return msgs
	}
	lq := strings.ToLower(q)
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Body), lq) {
			out = append(out, m)
		}
	}
	return out
}

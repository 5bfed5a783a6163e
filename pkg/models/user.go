package models

import "strings"

type UserType string

const (
	UserShipper UserType = "SHIPPER"
	UserDriver  UserType = "DRIVER"
	UserAdmin   UserType = "ADMIN"
	UserSystem  UserType = "SYSTEM"
)

// AuthContext is the resolved caller identity. It is supplied by the
// transport layer and trusted as-is.
type AuthContext struct {
	UserID   string   `json:"user_id"`
	UserType UserType `json:"user_type"`
	Role     string   `json:"role"`
}

func (a AuthContext) Privileged() bool {
	return a.UserType == UserAdmin || a.UserType == UserSystem
}

func SystemActor() AuthContext {
	return AuthContext{UserID: "system", UserType: UserSystem}
}

type Contact struct {
	PartyType      UserType `json:"party_type"`
	PartyID        string   `json:"party_id"`
	Name           string   `json:"name"`
	TelegramChatID *int64   `json:"telegram_chat_id"`
	Email          *string  `json:"email"`
	// Phone is set by dispatch; a chat links to a driver only by sharing it.
	Phone *string `json:"phone"`
}

// PhoneDigits strips formatting so "+1 (555) 010-2000" and "15550102000"
// compare equal.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ValidPhone(phone string) bool {
	n := len(PhoneDigits(phone))
	return n >= 7 && n <= 15
}

func SamePhone(a, b string) bool {
	da := PhoneDigits(a)
	return da != "" && da == PhoneDigits(b)
}

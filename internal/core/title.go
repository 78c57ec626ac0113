package core

import (
	"strings"
)

const titleLength = 20

// DeriveTitle names a conversation after its first message: the first 20
// characters, with "..." appended when the message was longer.
func DeriveTitle(message string) string {
	r := []rune(strings.TrimSpace(message))
	if len(r) <= titleLength {
		return string(r)
	}
	return string(r[:titleLength]) + "..."
}

package tools

import (
	"fmt"
	"strings"
	"unicode"
)

// WhatsAppRecipient checks a wa_id received from the Cloud API before sending to it.
// O wa_id já vem em formato internacional: só tiramos '+' e separadores, nunca
// acrescentamos código de país.
func WhatsAppRecipient(waID string) (string, error) {
	waID = strings.TrimSpace(waID)
	if waID == "" {
		return "", fmt.Errorf("empty wa_id")
	}

	var b strings.Builder
	b.Grow(len(waID))
	for _, r := range waID {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-':
		default:
			return "", fmt.Errorf("invalid character %q in wa_id", r)
		}
	}
	phone := b.String()

	// E.164: no máximo 15 dígitos
	if len(phone) < 8 || len(phone) > 15 {
		return "", fmt.Errorf("invalid wa_id length: %d", len(phone))
	}
	return phone, nil
}

package engine

import "strings"

const (
	labelButton      = "[Botón]"
	labelOption      = "[Opción]"
	labelList        = "[Lista]"
	labelInteraction = "[Interacción]"
	labelText        = "[TEXT]"
	labelUnknown     = "[DESCONOCIDO]"
)

// Normalize reduces any inbound message shape to the display text used for routing.
func Normalize(msg InboundMessage) string {
	switch strings.ToLower(strings.TrimSpace(msg.Type)) {
	case "text":
		if msg.Text == nil || strings.TrimSpace(msg.Text.Body) == "" {
			return labelText
		}
		return msg.Text.Body
	case "button":
		if msg.Button == nil || strings.TrimSpace(msg.Button.Text) == "" {
			return labelButton
		}
		return msg.Button.Text
	case "interactive":
		return normalizeInteractive(msg.Interactive)
	case "":
		return labelUnknown
	default:
		return "[" + strings.ToUpper(strings.TrimSpace(msg.Type)) + "]"
	}
}

func normalizeInteractive(in *InteractiveContent) string {
	if in == nil {
		return labelInteraction
	}
	switch in.Type {
	case "button_reply":
		if in.ButtonReply == nil || strings.TrimSpace(in.ButtonReply.Title) == "" {
			return labelOption
		}
		return in.ButtonReply.Title
	case "list_reply":
		if in.ListReply == nil || strings.TrimSpace(in.ListReply.Title) == "" {
			return labelList
		}
		return in.ListReply.Title
	default:
		return labelInteraction
	}
}

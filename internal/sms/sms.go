// Package sms sends community alerts through the Africa's Talking bulk SMS
// gateway. Delivery is at-least-once; the alert dispatcher handles
// deduplication.
package sms

import (
	"context"
	"strings"
)

// Sender delivers one message to many recipients and reports how many the
// gateway accepted.
type Sender interface {
	SendBulk(ctx context.Context, phones []string, message string) (int, error)
}

// NormalizePhone converts common Kenyan number formats to E.164. Returns ""
// for input that cannot be normalized.
func NormalizePhone(raw string) string {
	n := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "+254"):
		return n
	case strings.HasPrefix(n, "254"):
		return "+" + n
	case strings.HasPrefix(n, "07") || strings.HasPrefix(n, "01"):
		return "+254" + n[1:]
	default:
		return ""
	}
}

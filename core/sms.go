package core

import "strings"

type (
	SMSMessage struct {
		To   []string
		Body string
	}

	// SMSService is any service that can send text messages
	SMSService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*SMSMessage)
	}
)

func (m *SMSMessage) HasRecipients() bool { return len(m.To) > 0 }

// FormatPhoneNumber normalises a local phone number to international format:
// spaces, dashes and parentheses are dropped, numbers already prefixed with "+" are kept as is,
// and anything else gets the 254 country code (replacing a leading 0).
func FormatPhoneNumber(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
	if cleaned == "" {
		return ""
	}

	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "0")
	if !strings.HasPrefix(cleaned, "254") {
		cleaned = "254" + cleaned
	}
	return "+" + cleaned
}

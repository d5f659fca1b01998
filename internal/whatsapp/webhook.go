package whatsapp

import (
	"encoding/json"
	"strings"
)

// Webhook is the subset of Meta's webhook payload carrying messages.
type Webhook struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []Message `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Message is one inbound WhatsApp message.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// IsText reports whether m is a text message.
func (m Message) IsText() bool {
	return m.Type == "text"
}

// Body returns the trimmed text body, or "" for non-text messages.
func (m Message) Body() string {
	if m.Text == nil {
		return ""
	}
	return strings.TrimSpace(m.Text.Body)
}

// ParseWebhook decodes a webhook body and flattens every message in it.
// Status callbacks carry no messages and yield an empty slice.
func ParseWebhook(data []byte) ([]Message, error) {
	var hook Webhook
	if err := json.Unmarshal(data, &hook); err != nil {
		return nil, err
	}

	var msgs []Message
	for _, entry := range hook.Entry {
		for _, change := range entry.Changes {
			msgs = append(msgs, change.Value.Messages...)
		}
	}
	return msgs, nil
}

// Verify checks a subscription handshake and returns the challenge to echo.
func Verify(mode, token, challenge, verifyToken string) (string, bool) {
	if mode != "subscribe" || verifyToken == "" || token != verifyToken {
		return "", false
	}
	return challenge, true
}

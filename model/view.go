package model

import "time"

// MessageView is the read-only rendering of a message.
// Expired is derived at render time and never stored.
type MessageView struct {
	ID           string    `json:"id"`
	Body         string    `json:"body"`
	ProducerName string    `json:"producer"`
	CreatedAt    time.Time `json:"createdAt"`
	Consumed     bool      `json:"consumed"`
	Expired      bool      `json:"expired"`
}

// Views renders a batch of messages as of now, keeping their order.
func Views(messages []*Message, now time.Time) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, m.View(now))
	}
	return views
}

package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

// TicketStatusOpen is the only state this service assigns.
const TicketStatusOpen TicketStatus = "Open"

// CreatedAtLayout renders timestamps in UTC with millisecond precision.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z"

// Ticket is a support request as stored in the ticket collection.
type Ticket struct {
	Key         string
	Topic       string
	Username    string
	Subject     string
	Description string
	Status      TicketStatus
	CreatedAt   time.Time
}

type ticketJSON struct {
	Key         string       `json:"key"`
	Topic       string       `json:"topic"`
	Username    string       `json:"username"`
	Subject     string       `json:"subject"`
	Description string       `json:"description"`
	Status      TicketStatus `json:"status"`
	CreatedAt   string       `json:"createdAt"`
}

// MarshalJSON writes the stored document shape. HTML characters are left
// unescaped so user text round-trips as typed.
func (t Ticket) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(ticketJSON{
		Key:         t.Key,
		Topic:       t.Topic,
		Username:    t.Username,
		Subject:     t.Subject,
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt.UTC().Format(CreatedAtLayout),
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON reads the stored document shape.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	var raw ticketJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw.CreatedAt)
	if err != nil && raw.CreatedAt != "" {
		return err
	}
	*t = Ticket{
		Key:         raw.Key,
		Topic:       raw.Topic,
		Username:    raw.Username,
		Subject:     raw.Subject,
		Description: raw.Description,
		Status:      raw.Status,
		CreatedAt:   createdAt,
	}
	return nil
}

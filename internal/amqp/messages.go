package amqp

import "time"

// Operations carried by change messages.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeMessage announces one acknowledged mutation so downstream consumers,
// the spreadsheet export worker in particular, can react to it.
type ChangeMessage struct {
	Collection string    `json:"collection"`
	Ref        string    `json:"ref"`
	Op         string    `json:"op"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChangeMessage stamps a change event with the current time.
func NewChangeMessage(collection, ref, op string) ChangeMessage {
	return ChangeMessage{
		Collection: collection,
		Ref:        ref,
		Op:         op,
		Timestamp:  time.Now().UTC(),
	}
}

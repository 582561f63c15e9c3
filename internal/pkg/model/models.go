package model

import "time"

type EventKind string

const (
	EventStarted    EventKind = "started"
	EventCompleted  EventKind = "completed"
	EventDispatched EventKind = "dispatched"
	EventCancelled  EventKind = "cancelled"
)

type SessionEvent struct {
	OrderNumber string
	UserID      int64
	Kind        EventKind
	Photos      int
	Required    int
	CreatedAt   time.Time
}

// Dispatch is the print request handed to the downstream queue.
type Dispatch struct {
	ID           string    `json:"dispatch_id" msgpack:"dispatch_id"`
	OrderNumber  string    `json:"order_number" msgpack:"order_number"`
	UserID       int64     `json:"user_id" msgpack:"user_id"`
	Photos       int       `json:"photos" msgpack:"photos"`
	Required     int       `json:"required" msgpack:"required"`
	Folder       string    `json:"folder" msgpack:"folder"`
	Incomplete   bool      `json:"incomplete" msgpack:"incomplete"`
	DispatchedAt time.Time `json:"dispatched_at" msgpack:"dispatched_at"`
}

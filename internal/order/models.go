package order

import (
	"time"

	"photo-intake-bot/internal/pkg/model"
)

// Resolution is a successfully resolved order.
type Resolution struct {
	OrderNumber string
	Quantity    int
	Path        string
}

type lookupResponse struct {
	Result   bool   `json:"result"`
	Path     string `json:"path"`
	Quantity int    `json:"quantity"`
	Info     string `json:"info"`
}

type DBSessionEvent struct {
	ID          int64           `db:"id"`
	OrderNumber string          `db:"order_number"`
	UserID      int64           `db:"user_id"`
	Kind        model.EventKind `db:"kind"`
	Photos      int             `db:"photos"`
	Required    int             `db:"required"`
	CreatedAt   time.Time       `db:"created_at"`
}

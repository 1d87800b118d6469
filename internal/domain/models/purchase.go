package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is immutable once written. Price is the unit price at the time of purchase.
type Purchase struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	SweetID   string          `json:"sweetId" db:"sweet_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

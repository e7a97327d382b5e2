package dex

import (
	"time"

	"github.com/google/uuid"
)

// Order is one resting sell offer. Everything except Amount is immutable
// after creation; Amount only ever decreases, and an order that reaches
// zero is removed from the book rather than kept as an empty record.
type Order struct {
	ID        string  `json:"order_id"`
	IcoID     string  `json:"ico_id"`
	Owner     string  `json:"owner"` // base58 pubkey of the seller
	Amount    int64   `json:"amount"`
	Price     float64 `json:"price"` // SOL per whole token
	CreatedAt int64   `json:"created_at"`
}

// NewOrder assigns a random id and stamps creation time in unix millis.
func NewOrder(icoID, owner string, amount int64, price float64, now time.Time) *Order {
	return &Order{
		ID:        uuid.NewString(),
		IcoID:     icoID,
		Owner:     owner,
		Amount:    amount,
		Price:     price,
		CreatedAt: now.UnixMilli(),
	}
}

package notify

import (
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is the wire form of a committed ledger change.
type Event struct {
	ID            uuid.UUID            `json:"id"`
	Type          domain.EventType     `json:"type"`
	AccountID     int                  `json:"account_id"`
	EntryID       int                  `json:"entry_id"`
	Kind          domain.Kind          `json:"kind"`
	Amount        decimal.Decimal      `json:"amount"`
	Status        domain.Status        `json:"status"`
	PaymentSystem domain.PaymentSystem `json:"payment_system"`
	ToAccount     string               `json:"to_account,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

func NewEvent(e domain.LedgerEvent, now time.Time) Event {
	return Event{
		ID:            uuid.New(),
		Type:          e.Type,
		AccountID:     e.Entry.AccountID,
		EntryID:       e.Entry.ID,
		Kind:          e.Entry.Kind,
		Amount:        e.Entry.Amount,
		Status:        e.Entry.Status,
		PaymentSystem: e.Entry.PaymentSystem,
		ToAccount:     e.Entry.ToAccount,
		CreatedAt:     e.Entry.CreatedAt,
		OccurredAt:    now.UTC(),
	}
}

// RoutingKey places the event under the wallet.* topic namespace.
func (e Event) RoutingKey() string {
	return "wallet." + string(e.Type)
}

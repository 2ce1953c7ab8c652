package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Method string

const (
	MethodSwap     Method = "swap"
	MethodPoints   Method = "points"
	MethodDonation Method = "donation"
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxAccepted  TxStatus = "accepted"
	TxDeclined  TxStatus = "declined"
	TxCompleted TxStatus = "completed"
	TxCancelled TxStatus = "cancelled"
	TxDisputed  TxStatus = "disputed"
)

// ActiveTxStatuses still hold a claim on their item.
var ActiveTxStatuses = []TxStatus{TxPending, TxAccepted, TxDisputed}

func (s TxStatus) Valid() bool {
	switch s {
	case TxPending, TxAccepted, TxDeclined, TxCompleted, TxCancelled, TxDisputed:
		return true
	}
	return false
}

func (s TxStatus) Active() bool {
	for _, a := range ActiveTxStatuses {
		if s == a {
			return true
		}
	}
	return false
}

type Action string

const (
	ActionAccept   Action = "accept"
	ActionDecline  Action = "decline"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionDispute  Action = "dispute"
)

// Transaction is a swap, points exchange or donation between two accounts
// over a single item.
type Transaction struct {
	ID                uuid.UUID  `json:"id"`
	SenderAccountID   uuid.UUID  `json:"sender_account_id"`
	ReceiverAccountID uuid.UUID  `json:"receiver_account_id"`
	ItemID            uuid.UUID  `json:"item_id"`
	OfferedItemID     *uuid.UUID `json:"offered_item_id,omitempty"`
	Method            Method     `json:"method"`
	PointsAmount      int64      `json:"points_amount"`
	Message           *string    `json:"message,omitempty"`
	Status            TxStatus   `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func (t *Transaction) IsParticipant(account uuid.UUID) bool {
	return account == t.SenderAccountID || account == t.ReceiverAccountID
}

// Counterparty returns the other side of the transaction.
func (t *Transaction) Counterparty(account uuid.UUID) uuid.UUID {
	if account == t.SenderAccountID {
		return t.ReceiverAccountID
	}
	return t.SenderAccountID
}

// ValidateMethodParams checks the method-specific fields of a new transaction.
func ValidateMethodParams(method Method, points int64, offered *uuid.UUID) error {
	switch method {
	case MethodSwap:
		if offered == nil || *offered == uuid.Nil {
			return fmt.Errorf("%w: offered item is required for swap transactions", ErrInvalidMethodParams)
		}
	case MethodPoints:
		if points <= 0 {
			return fmt.Errorf("%w: points amount must be greater than 0 for points transactions", ErrInvalidMethodParams)
		}
	case MethodDonation:
		if points != 0 {
			return fmt.Errorf("%w: donations carry no points", ErrInvalidMethodParams)
		}
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidMethodParams, method)
	}
	if method != MethodPoints && points < 0 {
		return fmt.Errorf("%w: points amount must not be negative", ErrInvalidMethodParams)
	}
	return nil
}

// Next validates that actor may apply action to t and returns the resulting
// status. Non-participants get ErrNotFound so transactions stay invisible to
// outsiders.
func (t *Transaction) Next(action Action, actor uuid.UUID) (TxStatus, error) {
	if !t.IsParticipant(actor) {
		return "", fmt.Errorf("transaction %s: %w", t.ID, ErrNotFound)
	}

	switch action {
	case ActionAccept, ActionDecline:
		if actor != t.ReceiverAccountID {
			return "", fmt.Errorf("%w: only the receiver can %s", ErrForbidden, action)
		}
		if t.Status != TxPending {
			return "", fmt.Errorf("%w: cannot %s a %s transaction", ErrInvalidState, action, t.Status)
		}
		if action == ActionAccept {
			return TxAccepted, nil
		}
		return TxDeclined, nil
	case ActionComplete:
		if t.Status != TxAccepted {
			return "", fmt.Errorf("%w: only accepted transactions can be completed, this one is %s", ErrInvalidState, t.Status)
		}
		return TxCompleted, nil
	case ActionCancel:
		// An accepted swap has already consumed the item.
		if t.Status == TxPending || (t.Status == TxAccepted && t.Method != MethodSwap) {
			return TxCancelled, nil
		}
		return "", fmt.Errorf("%w: cannot cancel a %s %s transaction", ErrInvalidState, t.Status, t.Method)
	case ActionDispute:
		if t.Status != TxAccepted {
			return "", fmt.Errorf("%w: only accepted transactions can be disputed", ErrInvalidState)
		}
		return TxDisputed, nil
	}
	return "", NewValidationError("action", fmt.Sprintf("unknown action %q", action))
}

// ItemEffect is the item status an action drives for this transaction's
// method. ok is false when the item is left untouched.
func (t *Transaction) ItemEffect(action Action) (status ItemStatus, ok bool) {
	switch action {
	case ActionAccept:
		if t.Method == MethodSwap {
			return ItemSwapped, true
		}
	case ActionDecline, ActionCancel:
		return ItemAvailable, true
	case ActionComplete:
		switch t.Method {
		case MethodPoints:
			return ItemSold, true
		case MethodDonation:
			return ItemDonated, true
		}
	}
	return "", false
}

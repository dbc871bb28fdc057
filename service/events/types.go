package events

import (
	"time"

	"github.com/google/uuid"
)

// Activity event types.
const (
	TypeConnected         = "connected"
	TypeDisconnected      = "disconnected"
	TypeTransferSubmitted = "transfer_submitted"
	TypeTransferConfirmed = "transfer_confirmed"
	TypeTransferFailed    = "transfer_failed"
	TypeAirdropConfirmed  = "airdrop_confirmed"
)

// ActivityEvent is a session activity record published to the subject
// "walletlink.activity.{address}" in JetStream.
type ActivityEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// Address is the session identity the event belongs to.
	Address string `json:"address"`

	// Transfer details, set on transfer and airdrop events.
	Recipient string `json:"recipient,omitempty"`
	Lamports  uint64 `json:"lamports,omitempty"`
	Signature string `json:"signature,omitempty"`

	// Reason explains a transition; ErrorKind is set on failures.
	Reason    string `json:"reason,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// NewActivityEvent stamps a new event with an ID and the current time.
func NewActivityEvent(eventType, address string) *ActivityEvent {
	return &ActivityEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Address:   address,
		Timestamp: time.Now().UTC(),
	}
}

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/brojonat/walletlink/service/ledger"
	"github.com/brojonat/walletlink/service/signer"
)

// Kind classifies a session failure for callers.
type Kind string

const (
	KindSignerRejected     Kind = "signer_rejected"
	KindSignerRevoked      Kind = "signer_revoked"
	KindSignerUnavailable  Kind = "signer_unavailable"
	KindLedgerUnreachable  Kind = "ledger_unreachable"
	KindLedgerRejected     Kind = "ledger_rejected"
	KindInvalidInput       Kind = "invalid_input"
	KindTransferInProgress Kind = "transfer_in_progress"
	KindNotConnected       Kind = "not_connected"
	KindAlreadyConnected   Kind = "already_connected"
	KindAirdropUnsupported Kind = "airdrop_unsupported"
	KindCancelled          Kind = "cancelled"
	KindInternal           Kind = "internal"
)

var (
	ErrNotConnected       = errors.New("session is not connected")
	ErrAlreadyConnected   = errors.New("session is already connected")
	ErrTransferInProgress = errors.New("a transfer is already in progress")
	ErrAirdropUnsupported = errors.New("airdrop is not available on this cluster")
	ErrClosed             = errors.New("session closed")
)

// Error is the single error type returned by Session operations.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindInternal if err did not come from a
// Session. KindOf(nil) is the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func invalidInput(op, format string, args ...interface{}) *Error {
	return newError(op, KindInvalidInput, fmt.Errorf(format, args...))
}

// classify normalizes a collaborator failure into the session taxonomy.
func classify(op string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	kind := KindInternal
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindCancelled
	case errors.Is(err, signer.ErrRevoked):
		kind = KindSignerRevoked
	case errors.Is(err, signer.ErrUnavailable):
		kind = KindSignerUnavailable
	case errors.Is(err, signer.ErrRejected):
		kind = KindSignerRejected
	case errors.Is(err, signer.ErrNotSubmitted):
		kind = KindLedgerRejected
	case errors.Is(err, ledger.ErrRejected):
		kind = KindLedgerRejected
	case errors.Is(err, ledger.ErrUnreachable), errors.Is(err, ledger.ErrConfirmTimeout):
		kind = KindLedgerUnreachable
	}
	return newError(op, kind, err)
}

// forcesDisconnect reports whether a signer failure ends the session.
func forcesDisconnect(err error) bool {
	return errors.Is(err, signer.ErrRevoked) || errors.Is(err, signer.ErrUnavailable)
}

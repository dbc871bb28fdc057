package signer

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRejected means the user declined the request in the signer.
	ErrRejected = errors.New("signer rejected request")

	// ErrRevoked means the auth token is no longer accepted by the signer.
	ErrRevoked = errors.New("signer revoked authorization")

	// ErrUnavailable means no exchange with the signer could be completed.
	ErrUnavailable = errors.New("signer unavailable")

	// ErrNotSubmitted means the signer signed but could not submit to the ledger.
	ErrNotSubmitted = errors.New("signer could not submit transaction")

	// ErrProtocol means the signer answered with something we cannot use.
	ErrProtocol = errors.New("signer protocol violation")
)

// mapProtocolError translates a signer error object into a sentinel.
// The same code means different things depending on the method: an
// authorization failure on authorize is the user saying no, on any later
// call it is a revoked token.
func mapProtocolError(method string, perr *ProtocolError) error {
	var sentinel error
	switch perr.Code {
	case CodeAuthorizationFailed:
		if method == MethodAuthorize {
			sentinel = ErrRejected
		} else {
			sentinel = ErrRevoked
		}
	case CodeNotSigned:
		sentinel = ErrRejected
	case CodeNotSubmitted:
		sentinel = ErrNotSubmitted
	case CodeInvalidPayloads, CodeTooManyPayloads:
		sentinel = ErrProtocol
	case CodeAttestOriginAndroid:
		sentinel = ErrRejected
	default:
		if perr.Code <= -32000 {
			// JSON-RPC level failure: the signer could not process the call at all.
			sentinel = ErrUnavailable
		} else {
			sentinel = ErrRejected
		}
	}
	return fmt.Errorf("%s: %w: %w", method, sentinel, perr)
}

// transportError wraps a dial or round-trip failure. Cancellation by the
// caller is passed through. When the gateway's own deadline expires the user
// is most likely still deciding in the signer, so that is reported as
// context.DeadlineExceeded rather than ErrUnavailable. Everything else is
// ErrUnavailable.
func transportError(parent, call context.Context, method string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%s: %w", method, parent.Err())
	}
	if errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w", method, err)
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: no answer from signer: %w", method, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w: %w", method, ErrUnavailable, err)
}

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrUnreachable means the RPC node could not be reached or did not answer.
	ErrUnreachable = errors.New("ledger unreachable")

	// ErrRejected means the node answered with a semantic error
	// (insufficient funds, expired blockhash, failed transaction, ...).
	ErrRejected = errors.New("ledger rejected request")

	// ErrConfirmTimeout means the signature did not reach the requested
	// commitment in time. The transaction may still land.
	ErrConfirmTimeout = errors.New("confirmation timed out")
)

// classify wraps an RPC error with the matching sentinel.
// Context cancellation is passed through unchanged so callers can tell a
// user-initiated abort from a network failure.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", method, err)
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w: %w", method, ErrRejected, err)
	}
	return fmt.Errorf("%s: %w: %w", method, ErrUnreachable, err)
}

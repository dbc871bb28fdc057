// Package signer talks to the external signer that holds the user's key.
//
// The signer authorizes this app, signs transactions and submits them to the
// ledger on the user's behalf. Each operation opens its own connection,
// performs one JSON-RPC exchange and closes; a failed connection leaves no
// state behind.
package signer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/brojonat/walletlink/service/metrics"
	"github.com/gagliardetto/solana-go"
)

// Authorization is the result of a successful authorize.
type Authorization struct {
	AuthToken     string
	Identity      solana.PublicKey
	Label         string
	WalletURIBase string
}

// Gateway performs signer operations over a Transport.
type Gateway struct {
	transport Transport
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	nextID    atomic.Uint64
}

// NewGateway creates a gateway. timeout bounds each exchange, which includes
// the time the user spends deciding in the signer UI. A zero timeout means
// only the caller's context bounds the exchange.
func NewGateway(transport Transport, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		transport: transport,
		timeout:   timeout,
		metrics:   m,
		logger:    logger,
	}
}

// Authorize asks the signer to authorize this app for cluster. The first
// returned account becomes the session identity.
func (g *Gateway) Authorize(ctx context.Context, cluster string, app AppIdentity) (*Authorization, error) {
	var res authorizeResult
	err := g.exchange(ctx, MethodAuthorize, authorizeParams{Identity: app, Cluster: cluster}, &res)
	if err != nil {
		return nil, err
	}

	if res.AuthToken == "" {
		return nil, fmt.Errorf("%s: %w: empty auth token", MethodAuthorize, ErrProtocol)
	}
	if len(res.Accounts) == 0 {
		return nil, fmt.Errorf("%s: %w: no accounts authorized", MethodAuthorize, ErrProtocol)
	}
	identity, err := decodePublicKey(res.Accounts[0].Address)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", MethodAuthorize, ErrProtocol, err)
	}

	return &Authorization{
		AuthToken:     res.AuthToken,
		Identity:      identity,
		Label:         res.Accounts[0].Label,
		WalletURIBase: res.WalletURIBase,
	}, nil
}

// Reauthorize renews a previously issued token. The signer may rotate it;
// the returned token is the one to keep.
func (g *Gateway) Reauthorize(ctx context.Context, authToken string, app AppIdentity) (string, error) {
	var res reauthorizeResult
	err := g.exchange(ctx, MethodReauthorize, reauthorizeParams{AuthToken: authToken, Identity: app}, &res)
	if err != nil {
		return "", err
	}
	if res.AuthToken == "" {
		return authToken, nil
	}
	return res.AuthToken, nil
}

// Deauthorize invalidates the token at the signer.
func (g *Gateway) Deauthorize(ctx context.Context, authToken string) error {
	return g.exchange(ctx, MethodDeauthorize, deauthorizeParams{AuthToken: authToken}, nil)
}

// SignAndSubmit has the signer sign tx with the authorized account and submit
// it to the ledger. Only the signature comes back; whether the ledger accepted
// the transaction is for the caller to find out.
func (g *Gateway) SignAndSubmit(ctx context.Context, authToken string, tx *solana.Transaction) (solana.Signature, error) {
	payload, err := encodeUnsigned(tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%s: encode transaction: %w", MethodSignAndSendTransactions, err)
	}

	var res signAndSendResult
	err = g.exchange(ctx, MethodSignAndSendTransactions, signAndSendParams{
		AuthToken: authToken,
		Payloads:  []string{payload},
	}, &res)
	if err != nil {
		return solana.Signature{}, err
	}

	if len(res.Signatures) != 1 {
		return solana.Signature{}, fmt.Errorf("%s: %w: want 1 signature, got %d",
			MethodSignAndSendTransactions, ErrProtocol, len(res.Signatures))
	}
	raw, err := base64.StdEncoding.DecodeString(res.Signatures[0])
	if err != nil || len(raw) != len(solana.Signature{}) {
		return solana.Signature{}, fmt.Errorf("%s: %w: malformed signature", MethodSignAndSendTransactions, ErrProtocol)
	}
	return solana.SignatureFromBytes(raw), nil
}

// exchange runs one request/reply on a fresh connection.
func (g *Gateway) exchange(ctx context.Context, method string, params, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		g.metrics.RecordSignerCall(method, signerOutcome(err), time.Since(start).Seconds())
		if err != nil {
			g.logger.WarnContext(ctx, "signer exchange failed", "method", method, "error", err)
		} else {
			g.logger.DebugContext(ctx, "signer exchange completed", "method", method, "duration", time.Since(start))
		}
	}()

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	id := g.nextID.Add(1)
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	conn, err := g.transport.Dial(callCtx)
	if err != nil {
		return transportError(ctx, callCtx, method, err)
	}
	defer conn.Close()

	raw, err := conn.RoundTrip(callCtx, body)
	if err != nil {
		return transportError(ctx, callCtx, method, err)
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%s: %w: decode response: %w", method, ErrProtocol, err)
	}
	if resp.ID != id {
		return fmt.Errorf("%s: %w: response id %d does not match request %d", method, ErrProtocol, resp.ID, id)
	}
	if resp.Error != nil {
		return mapProtocolError(method, resp.Error)
	}
	if result == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("%s: %w: empty result", method, ErrProtocol)
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: %w: decode result: %w", method, ErrProtocol, err)
	}
	return nil
}

// encodeUnsigned serializes tx with zeroed signature slots, the form a
// signer expects for a transaction it has yet to sign.
func encodeUnsigned(tx *solana.Transaction) (string, error) {
	unsigned := *tx
	if len(unsigned.Signatures) == 0 {
		unsigned.Signatures = make([]solana.Signature, unsigned.Message.Header.NumRequiredSignatures)
	}
	raw, err := unsigned.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodePublicKey(b64 string) (solana.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("decode account address: %w", err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("decode account address: want %d bytes, got %d", solana.PublicKeyLength, len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}

func signerOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNotSubmitted):
		return "not_submitted"
	case errors.Is(err, ErrProtocol):
		return "protocol_error"
	default:
		return "error"
	}
}

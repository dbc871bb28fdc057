package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/walletlink/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	defaultConfirmTimeout      = 60 * time.Second
	defaultConfirmPollInterval = 500 * time.Millisecond
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	RequestAirdrop(
		ctx context.Context,
		account solana.PublicKey,
		lamports uint64,
		commitment rpc.CommitmentType,
	) (solana.Signature, error)
}

// Blockhash is a recent blockhash together with the last block height at
// which a transaction referencing it is still accepted.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// Client is a stateless request/response adapter over the ledger RPC.
// Every failure is wrapped with ErrUnreachable or ErrRejected.
type Client struct {
	rpc          RPCClient
	logger       *slog.Logger
	metrics      *metrics.Metrics
	endpoint     string // RPC endpoint identifier for metrics (e.g. "testnet")
	timeout      time.Duration
	pollInterval time.Duration
}

// NewClient creates a new ledger client.
// The endpoint parameter is used for metrics labeling (e.g., "testnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:          rpcClient,
		logger:       logger,
		metrics:      m,
		endpoint:     endpoint,
		timeout:      defaultConfirmTimeout,
		pollInterval: defaultConfirmPollInterval,
	}
}

// WithConfirmPolicy sets the bound and cadence of Confirm polling.
func (c *Client) WithConfirmPolicy(timeout, pollInterval time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
	}
	if pollInterval > 0 {
		c.pollInterval = pollInterval
	}
	return c
}

// GetBalance returns the lamport balance of account at the given commitment.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey, level rpc.CommitmentType) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, account, level)
	c.observe(ctx, "getBalance", start, err)
	if err != nil {
		return 0, classify("getBalance", err)
	}
	if out == nil {
		return 0, fmt.Errorf("getBalance: %w: empty result", ErrUnreachable)
	}

	c.logger.DebugContext(ctx, "fetched balance",
		"account", account.String(),
		"lamports", out.Value,
		"commitment", level,
	)
	return out.Value, nil
}

// GetLatestBlockhash returns the most recent blockhash at the given commitment.
func (c *Client) GetLatestBlockhash(ctx context.Context, level rpc.CommitmentType) (Blockhash, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, level)
	c.observe(ctx, "getLatestBlockhash", start, err)
	if err != nil {
		return Blockhash{}, classify("getLatestBlockhash", err)
	}
	if out == nil || out.Value == nil {
		return Blockhash{}, fmt.Errorf("getLatestBlockhash: %w: empty result", ErrUnreachable)
	}

	return Blockhash{
		Hash:                 out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// Submit sends an already signed transaction. Preflight runs at level.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction, level rpc.CommitmentType) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: level,
	})
	c.observe(ctx, "sendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, classify("sendTransaction", err)
	}

	c.logger.InfoContext(ctx, "submitted transaction", "signature", sig.String())
	return sig, nil
}

// Confirm polls the signature status until it reaches level, the ledger
// reports the transaction failed, the confirmation timeout elapses, or ctx is
// cancelled. A timeout or cancellation says nothing about whether the
// transaction eventually lands.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature, level rpc.CommitmentType) error {
	waitStart := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		out, err := c.rpc.GetSignatureStatuses(waitCtx, false, sig)
		c.observe(waitCtx, "getSignatureStatuses", start, err)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				c.metrics.RecordConfirmWait("timeout", time.Since(waitStart).Seconds())
				return fmt.Errorf("confirm %s: %w", sig, ErrConfirmTimeout)
			}
			c.metrics.RecordConfirmWait("error", time.Since(waitStart).Seconds())
			return classify("getSignatureStatuses", err)
		}

		if out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				c.metrics.RecordConfirmWait("failed", time.Since(waitStart).Seconds())
				return fmt.Errorf("confirm %s: %w: transaction failed: %v", sig, ErrRejected, status.Err)
			}
			if reached(status.ConfirmationStatus, level) {
				c.metrics.RecordConfirmWait("confirmed", time.Since(waitStart).Seconds())
				c.logger.InfoContext(ctx, "transaction confirmed",
					"signature", sig.String(),
					"status", status.ConfirmationStatus,
					"slot", status.Slot,
				)
				return nil
			}
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				c.metrics.RecordConfirmWait("cancelled", time.Since(waitStart).Seconds())
				c.logger.WarnContext(ctx, "confirmation wait cancelled; transaction may still land",
					"signature", sig.String(),
				)
				return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
			}
			c.metrics.RecordConfirmWait("timeout", time.Since(waitStart).Seconds())
			return fmt.Errorf("confirm %s: %w", sig, ErrConfirmTimeout)
		}
	}
}

// RequestFaucetCredit asks the cluster faucet to credit account.
// Only test clusters run a faucet; mainnet nodes reject the call.
func (c *Client) RequestFaucetCredit(ctx context.Context, account solana.PublicKey, lamports uint64, level rpc.CommitmentType) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.RequestAirdrop(ctx, account, lamports, level)
	c.observe(ctx, "requestAirdrop", start, err)
	if err != nil {
		return solana.Signature{}, classify("requestAirdrop", err)
	}

	c.logger.InfoContext(ctx, "requested airdrop",
		"account", account.String(),
		"lamports", lamports,
		"signature", sig.String(),
	)
	return sig, nil
}

func (c *Client) observe(ctx context.Context, method string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if !errors.Is(err, context.Canceled) {
			c.logger.WarnContext(ctx, "ledger rpc call failed",
				"method", method,
				"endpoint", c.endpoint,
				"error", err,
			)
		}
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// reached reports whether a confirmation status satisfies the wanted commitment.
func reached(got rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := func(s string) int {
		switch s {
		case string(rpc.ConfirmationStatusProcessed):
			return 1
		case string(rpc.ConfirmationStatusConfirmed):
			return 2
		case string(rpc.ConfirmationStatusFinalized):
			return 3
		default:
			return 0
		}
	}
	g := rank(string(got))
	return g > 0 && g >= rank(string(want))
}

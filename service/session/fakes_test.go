package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/walletlink/service/config"
	"github.com/brojonat/walletlink/service/ledger"
	"github.com/brojonat/walletlink/service/signer"
	"github.com/brojonat/walletlink/service/store"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	addrA1 = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	addrR1 = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	addrA2 = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	sig1   = solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
)

// fakeSigner records calls in order. Each method returns its configured
// result; a non-nil signGate blocks SignAndSubmit until it is closed, and a
// non-nil reauthGate blocks Reauthorize regardless of cancellation.
type fakeSigner struct {
	mu    sync.Mutex
	calls []string

	auth         *signer.Authorization
	authErr      error
	reauthToken  string
	reauthErr    error
	deauthErr    error
	sig          solana.Signature
	signErr      error
	signGate     chan struct{}
	signed       []*solana.Transaction
	signedTokens []string
	reauthTokens []string
	deauthTokens []string
	reauthGate   chan struct{}
	reauthEnter  chan struct{}
}

func (f *fakeSigner) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSigner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSigner) Authorize(ctx context.Context, cluster string, app signer.AppIdentity) (*signer.Authorization, error) {
	f.record("authorize")
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.auth, nil
}

func (f *fakeSigner) Reauthorize(ctx context.Context, authToken string, app signer.AppIdentity) (string, error) {
	f.record("reauthorize")
	f.mu.Lock()
	f.reauthTokens = append(f.reauthTokens, authToken)
	gate, enter := f.reauthGate, f.reauthEnter
	f.mu.Unlock()
	if gate != nil {
		close(enter)
		<-gate
	}
	if f.reauthErr != nil {
		return "", f.reauthErr
	}
	if f.reauthToken != "" {
		return f.reauthToken, nil
	}
	return authToken, nil
}

func (f *fakeSigner) Deauthorize(ctx context.Context, authToken string) error {
	f.record("deauthorize")
	f.mu.Lock()
	f.deauthTokens = append(f.deauthTokens, authToken)
	f.mu.Unlock()
	return f.deauthErr
}

func (f *fakeSigner) DeauthTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deauthTokens...)
}

func (f *fakeSigner) SignAndSubmit(ctx context.Context, authToken string, tx *solana.Transaction) (solana.Signature, error) {
	f.record("sign_and_submit")
	f.mu.Lock()
	f.signed = append(f.signed, tx)
	f.signedTokens = append(f.signedTokens, authToken)
	gate := f.signGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return solana.Signature{}, ctx.Err()
		}
	}
	if f.signErr != nil {
		return solana.Signature{}, f.signErr
	}
	return f.sig, nil
}

// fakeLedger serves a fixed balance. confirmBlock makes Confirm wait for
// cancellation; balanceGate holds GetBalance until closed.
type fakeLedger struct {
	mu    sync.Mutex
	calls []string

	balance      uint64
	balances     map[solana.PublicKey]uint64
	balanceErr   error
	balanceGate  chan struct{}
	ignoreCancel bool
	blockhash    solana.Hash
	blockErr     error
	confirmErr   error
	confirmBlock bool
	faucetSig    solana.Signature
	faucetErr    error
	faucetAmount uint64
	levels       []rpc.CommitmentType
}

func (f *fakeLedger) record(call string, level rpc.CommitmentType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.levels = append(f.levels, level)
}

func (f *fakeLedger) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeLedger) GetBalance(ctx context.Context, account solana.PublicKey, level rpc.CommitmentType) (uint64, error) {
	f.record("get_balance", level)
	f.mu.Lock()
	gate, bal, err := f.balanceGate, f.balance, f.balanceErr
	if b, ok := f.balances[account]; ok {
		bal = b
	}
	ignoreCancel := f.ignoreCancel
	f.mu.Unlock()
	if gate != nil && ignoreCancel {
		<-gate
	} else if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return bal, err
}

func (f *fakeLedger) GetLatestBlockhash(ctx context.Context, level rpc.CommitmentType) (ledger.Blockhash, error) {
	f.record("get_latest_blockhash", level)
	if f.blockErr != nil {
		return ledger.Blockhash{}, f.blockErr
	}
	return ledger.Blockhash{Hash: f.blockhash, LastValidBlockHeight: 100}, nil
}

func (f *fakeLedger) Confirm(ctx context.Context, sig solana.Signature, level rpc.CommitmentType) error {
	f.record("confirm", level)
	if f.confirmBlock {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.confirmErr
}

func (f *fakeLedger) RequestFaucetCredit(ctx context.Context, account solana.PublicKey, lamports uint64, level rpc.CommitmentType) (solana.Signature, error) {
	f.record("request_faucet_credit", level)
	f.mu.Lock()
	f.faucetAmount = lamports
	f.mu.Unlock()
	if f.faucetErr != nil {
		return solana.Signature{}, f.faucetErr
	}
	return f.faucetSig, nil
}

// memStore is an in-memory Store. A non-nil saveGate holds the next Save
// until it is closed, after closing saveEnter.
type memStore struct {
	mu        sync.Mutex
	rec       *store.Record
	saveErr   error
	saves     int
	saveGate  chan struct{}
	saveEnter chan struct{}
}

func (m *memStore) gateNextSave() (entered <-chan struct{}, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveGate, m.saveEnter = make(chan struct{}), make(chan struct{})
	gate := m.saveGate
	return m.saveEnter, func() { close(gate) }
}

func (m *memStore) Load(ctx context.Context) (*store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, nil
	}
	r := *m.rec
	return &r, nil
}

func (m *memStore) Save(ctx context.Context, rec store.Record) error {
	m.mu.Lock()
	if gate := m.saveGate; gate != nil {
		m.saveGate = nil
		close(m.saveEnter)
		m.mu.Unlock()
		<-gate
		m.mu.Lock()
	}
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.rec = &rec
	return nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}

func (m *memStore) Record() *store.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil
	}
	r := *m.rec
	return &r
}

func testConfig() Config {
	return Config{
		Cluster:          config.ClusterTestnet,
		App:              signer.AppIdentity{Name: "walletlink"},
		Commitment:       rpc.CommitmentProcessed,
		AirdropLamports:  LamportsPerSOL,
		AirdropSupported: true,
		ReauthPolicy:     config.ReauthPolicyAnyError,
	}
}

type harness struct {
	session *Session
	signer  *fakeSigner
	ledger  *fakeLedger
	store   *memStore
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		signer: &fakeSigner{
			auth: &signer.Authorization{AuthToken: "T1", Identity: addrA1},
			sig:  sig1,
		},
		ledger: &fakeLedger{balance: 2 * LamportsPerSOL, blockhash: solana.Hash{7, 7, 7}},
		store:  &memStore{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.session = New(h.signer, h.ledger, h.store, cfg, nil, logger)
	t.Cleanup(func() { h.session.Close() })
	return h
}

// connect connects and waits for the initial balance refresh.
func (h *harness) connect(t *testing.T) {
	t.Helper()
	if err := h.session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	h.waitBalance(t, h.ledger.balance)
}

func (h *harness) waitBalance(t *testing.T, want uint64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.session.Snapshot().Balance == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("balance never reached %d, have %d", want, h.session.Snapshot().Balance)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/walletlink/service/config"
	"github.com/brojonat/walletlink/service/events"
	"github.com/brojonat/walletlink/service/ledger"
	"github.com/brojonat/walletlink/service/signer"
	"github.com/brojonat/walletlink/service/store"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Scenario(t *testing.T) {
	h := newHarness(t, testConfig())

	require.NoError(t, h.session.Connect(context.Background()))

	snap := h.session.Snapshot()
	assert.Equal(t, Connected, snap.State)
	assert.Equal(t, addrA1, snap.Identity)
	assert.Equal(t, &store.Record{AuthToken: "T1", Address: addrA1}, h.store.Record())

	h.waitBalance(t, 2*LamportsPerSOL)
	assert.Contains(t, h.ledger.Calls(), "get_balance")
}

func TestConnect_RejectedCommitsNothing(t *testing.T) {
	h := newHarness(t, testConfig())
	h.signer.authErr = fmt.Errorf("authorize: %w", signer.ErrRejected)

	err := h.session.Connect(context.Background())

	require.Error(t, err)
	assert.Equal(t, KindSignerRejected, KindOf(err))
	assert.ErrorIs(t, err, signer.ErrRejected)
	assert.Equal(t, Disconnected, h.session.Snapshot().State)
	assert.Nil(t, h.store.Record())
	assert.Empty(t, h.ledger.Calls())
}

func TestConnect_StoreFailureStaysDisconnected(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.saveErr = errors.New("disk full")

	err := h.session.Connect(context.Background())

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, Disconnected, h.session.Snapshot().State)
}

func TestConnect_WhileConnected(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)

	err := h.session.Connect(context.Background())

	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, KindAlreadyConnected, KindOf(err))
	assert.Equal(t, []string{"authorize"}, h.signer.Calls())
}

func TestDisconnect_ClearsEverything(t *testing.T) {
	for _, deauthErr := range []error{nil, fmt.Errorf("deauthorize: %w", signer.ErrUnavailable)} {
		t.Run(fmt.Sprintf("deauthorize error %v", deauthErr), func(t *testing.T) {
			h := newHarness(t, testConfig())
			h.signer.deauthErr = deauthErr
			h.connect(t)

			require.NoError(t, h.session.Disconnect(context.Background()))

			snap := h.session.Snapshot()
			assert.Equal(t, Disconnected, snap.State)
			assert.Equal(t, uint64(0), snap.Balance)
			assert.True(t, snap.Identity.IsZero())
			assert.Nil(t, h.store.Record())
			assert.Contains(t, h.signer.Calls(), "deauthorize")
		})
	}
}

func TestDisconnect_WhenDisconnected(t *testing.T) {
	h := newHarness(t, testConfig())

	err := h.session.Disconnect(context.Background())

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, h.signer.Calls())
}

func TestConnectDisconnectSequences(t *testing.T) {
	h := newHarness(t, testConfig())

	for i := 0; i < 5; i++ {
		h.signer.deauthErr = nil
		if i%2 == 1 {
			h.signer.deauthErr = errors.New("signer went away")
		}
		require.NoError(t, h.session.Connect(context.Background()))
		require.NoError(t, h.session.Disconnect(context.Background()))
	}

	snap := h.session.Snapshot()
	assert.Equal(t, Disconnected, snap.State)
	assert.Equal(t, uint64(0), snap.Balance)
	assert.Nil(t, h.store.Record())
}

func TestRestoreFromCache_ReconnectsWithoutSigner(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.rec = &store.Record{AuthToken: "T1", Address: addrA1}

	require.NoError(t, h.session.RestoreFromCache(context.Background()))

	assert.Equal(t, Connected, h.session.Snapshot().State)
	assert.Equal(t, addrA1, h.session.Snapshot().Identity)
	assert.Empty(t, h.signer.Calls())
	h.waitBalance(t, 2*LamportsPerSOL)
}

func TestRestoreFromCache_EmptyStore(t *testing.T) {
	h := newHarness(t, testConfig())

	require.NoError(t, h.session.RestoreFromCache(context.Background()))

	assert.Equal(t, Disconnected, h.session.Snapshot().State)
	assert.Empty(t, h.ledger.Calls())
}

func TestRestoreFromCache_OnlyOnce(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.session.RestoreFromCache(context.Background()))

	h.store.rec = &store.Record{AuthToken: "T1", Address: addrA1}
	require.NoError(t, h.session.RestoreFromCache(context.Background()))

	assert.Equal(t, Disconnected, h.session.Snapshot().State)
}

func TestRestoreThenSend_ReauthorizesBeforeBuilding(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.rec = &store.Record{AuthToken: "T1", Address: addrA1}
	require.NoError(t, h.session.RestoreFromCache(context.Background()))
	h.waitBalance(t, 2*LamportsPerSOL)

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
	require.NoError(t, err)

	assert.Equal(t, []string{"reauthorize", "sign_and_submit"}, h.signer.Calls())
	assert.Equal(t, []string{"T1"}, h.signer.reauthTokens)

	calls := h.ledger.Calls()
	blockhashAt := indexOf(calls, "get_latest_blockhash")
	require.GreaterOrEqual(t, blockhashAt, 0)
}

func TestSendTransfer_ReauthorizeFailureDisconnects(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.signer.reauthErr = fmt.Errorf("reauthorize: %w", signer.ErrRevoked)

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.5")

	assert.Equal(t, KindSignerRevoked, KindOf(err))
	snap := h.session.Snapshot()
	assert.Equal(t, Disconnected, snap.State)
	assert.Equal(t, uint64(0), snap.Balance)
	assert.Nil(t, h.store.Record())
	assert.NotContains(t, h.signer.Calls(), "sign_and_submit")
	assert.NotContains(t, h.ledger.Calls(), "get_latest_blockhash")
}

func TestSendTransfer_ReauthorizePolicy(t *testing.T) {
	transient := fmt.Errorf("reauthorize: %w", context.DeadlineExceeded)

	tests := []struct {
		name       string
		policy     string
		err        error
		wantState  State
		wantRecord bool
	}{
		{"any-error drops on transient failure", config.ReauthPolicyAnyError, transient, Disconnected, false},
		{"revocation-only keeps session on transient failure", config.ReauthPolicyRevocationOnly, transient, Connected, true},
		{"revocation-only drops on revocation", config.ReauthPolicyRevocationOnly, fmt.Errorf("reauthorize: %w", signer.ErrRevoked), Disconnected, false},
		{"revocation-only drops when signer unavailable", config.ReauthPolicyRevocationOnly, fmt.Errorf("reauthorize: %w", signer.ErrUnavailable), Disconnected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.ReauthPolicy = tt.policy
			h := newHarness(t, cfg)
			h.connect(t)
			h.signer.reauthErr = tt.err

			_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.5")

			require.Error(t, err)
			assert.Equal(t, tt.wantState, h.session.Snapshot().State)
			assert.Equal(t, tt.wantRecord, h.store.Record() != nil)
			assert.NotContains(t, h.signer.Calls(), "sign_and_submit")
		})
	}
}

func TestSendTransfer_BuildsExactLamports(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)

	res, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.5")
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), res.Lamports)
	assert.Equal(t, sig1, res.Signature)

	require.Len(t, h.signer.signed, 1)
	tx := h.signer.signed[0]
	assert.Equal(t, addrA1, tx.Message.AccountKeys[0], "fee payer must be the session identity")
	assert.Equal(t, solana.Hash{7, 7, 7}, tx.Message.RecentBlockhash)
	require.Len(t, tx.Message.Instructions, 1)

	accounts, err := tx.Message.Instructions[0].ResolveInstructionAccounts(&tx.Message)
	require.NoError(t, err)
	inst, err := system.DecodeInstruction(accounts, tx.Message.Instructions[0].Data)
	require.NoError(t, err)
	transfer, ok := inst.Impl.(*system.Transfer)
	require.True(t, ok)
	assert.Equal(t, uint64(500_000_000), *transfer.Lamports)
	assert.Equal(t, addrR1, transfer.GetRecipientAccount().PublicKey)
}

func TestSendTransfer_SequenceAndCommitment(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	before := len(h.ledger.Calls())

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "1")
	require.NoError(t, err)

	calls := h.ledger.Calls()[before:]
	assert.Equal(t, []string{"get_latest_blockhash", "confirm", "get_balance"}, calls)
	for _, lvl := range h.ledger.levels {
		assert.Equal(t, testConfig().Commitment, lvl)
	}
	assert.Equal(t, ExplorerURL(sig1, config.ClusterTestnet), h.session.Snapshot().LastExplorerURL)
}

func TestSendTransfer_InvalidInputTouchesNothing(t *testing.T) {
	for _, amount := range []string{"-1", "abc", "", "1.0000000001", "1e9", "NaN"} {
		t.Run(amount, func(t *testing.T) {
			h := newHarness(t, testConfig())
			h.connect(t)
			signerCalls, ledgerCalls := len(h.signer.Calls()), len(h.ledger.Calls())

			_, err := h.session.SendTransfer(context.Background(), addrR1.String(), amount)

			assert.Equal(t, KindInvalidInput, KindOf(err))
			assert.Len(t, h.signer.Calls(), signerCalls)
			assert.Len(t, h.ledger.Calls(), ledgerCalls)
		})
	}
}

func TestSendTransfer_InvalidRecipient(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)

	_, err := h.session.SendTransfer(context.Background(), "not-an-address", "1")

	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.NotContains(t, h.signer.Calls(), "reauthorize")
}

func TestSendTransfer_ConcurrentCallsSingleFlight(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	gate := make(chan struct{})
	h.signer.signGate = gate

	first := make(chan error, 1)
	go func() {
		_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
		first <- err
	}()
	require.Eventually(t, func() bool {
		return h.session.Snapshot().TransferInFlight
	}, time.Second, time.Millisecond)

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.2")
	assert.ErrorIs(t, err, ErrTransferInProgress)
	assert.Equal(t, KindTransferInProgress, KindOf(err))

	close(gate)
	require.NoError(t, <-first)

	reauths := 0
	for _, c := range h.signer.Calls() {
		if c == "reauthorize" {
			reauths++
		}
	}
	assert.Equal(t, 1, reauths)
	assert.False(t, h.session.Snapshot().TransferInFlight)
}

func TestSendTransfer_TokenRotationIsPersisted(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.signer.reauthToken = "T2"

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
	require.NoError(t, err)

	assert.Equal(t, &store.Record{AuthToken: "T2", Address: addrA1}, h.store.Record())
	assert.Equal(t, []string{"T2"}, h.signer.signedTokens)

	_, err = h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, h.signer.reauthTokens)
}

func TestDisconnect_DuringTokenRotationSaveLeavesNoRecord(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.signer.reauthToken = "T2"
	entered, release := h.store.gateNextSave()

	sendDone := make(chan error, 1)
	go func() {
		_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
		sendDone <- err
	}()
	<-entered

	disconnectDone := make(chan error, 1)
	go func() { disconnectDone <- h.session.Disconnect(context.Background()) }()
	require.Eventually(t, func() bool {
		return h.session.Snapshot().State == Disconnected
	}, time.Second, 2*time.Millisecond)

	release()
	require.NoError(t, <-disconnectDone)
	<-sendDone

	assert.Equal(t, Disconnected, h.session.Snapshot().State)
	assert.Nil(t, h.store.Record())
	assert.Equal(t, []string{"T2"}, h.signer.DeauthTokens())

	require.NoError(t, h.session.RestoreFromCache(context.Background()))
	assert.Equal(t, Disconnected, h.session.Snapshot().State)
}

func TestDisconnect_DuringReauthorizeRevokesRotatedToken(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.signer.reauthToken = "T2"
	h.signer.reauthGate = make(chan struct{})
	h.signer.reauthEnter = make(chan struct{})

	sendDone := make(chan error, 1)
	go func() {
		_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
		sendDone <- err
	}()
	<-h.signer.reauthEnter

	require.NoError(t, h.session.Disconnect(context.Background()))
	close(h.signer.reauthGate)

	err := <-sendDone
	assert.Equal(t, KindNotConnected, KindOf(err))
	assert.Nil(t, h.store.Record())
	assert.Equal(t, []string{"T1", "T2"}, h.signer.DeauthTokens())
	assert.NotContains(t, h.signer.Calls(), "sign_and_submit")
}

func TestSendTransfer_SignerDeadlineKeepsSession(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.signer.signErr = fmt.Errorf("sign_and_send_transactions: no answer from signer: %w", context.DeadlineExceeded)

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")

	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, Connected, h.session.Snapshot().State)
	assert.NotNil(t, h.store.Record())
}

func TestSendTransfer_SignerDeclinedKeepsSession(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.signer.signErr = fmt.Errorf("sign: %w", signer.ErrRejected)

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")

	assert.Equal(t, KindSignerRejected, KindOf(err))
	assert.Equal(t, Connected, h.session.Snapshot().State)
	assert.NotNil(t, h.store.Record())
}

func TestSendTransfer_SignerUnavailableDisconnects(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.signer.signErr = fmt.Errorf("sign: %w", signer.ErrUnavailable)

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")

	assert.Equal(t, KindSignerUnavailable, KindOf(err))
	assert.Equal(t, Disconnected, h.session.Snapshot().State)
	assert.Nil(t, h.store.Record())
}

func TestSendTransfer_LedgerFailuresChangeNoState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(l *fakeLedger)
		want  Kind
	}{
		{"blockhash unreachable", func(l *fakeLedger) { l.blockErr = fmt.Errorf("x: %w", ledger.ErrUnreachable) }, KindLedgerUnreachable},
		{"landed with error", func(l *fakeLedger) { l.confirmErr = fmt.Errorf("x: %w", ledger.ErrRejected) }, KindLedgerRejected},
		{"confirm timeout", func(l *fakeLedger) { l.confirmErr = fmt.Errorf("x: %w", ledger.ErrConfirmTimeout) }, KindLedgerUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			h.connect(t)
			tt.setup(h.ledger)

			_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")

			assert.Equal(t, tt.want, KindOf(err))
			snap := h.session.Snapshot()
			assert.Equal(t, Connected, snap.State)
			assert.Equal(t, 2*LamportsPerSOL, snap.Balance)
			assert.NotNil(t, h.store.Record())
		})
	}
}

func TestSendTransfer_NotConnected(t *testing.T) {
	h := newHarness(t, testConfig())

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, h.signer.Calls())
}

func TestSendTransfer_PaymentURIRecipient(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)

	res, err := h.session.SendTransfer(context.Background(), "solana:"+addrR1.String()+"?amount=0.25", "")

	require.NoError(t, err)
	assert.Equal(t, addrR1, res.Recipient)
	assert.Equal(t, uint64(250_000_000), res.Lamports)
}

func TestDisconnect_CancelsConfirmationWait(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.ledger.confirmBlock = true

	done := make(chan error, 1)
	go func() {
		_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
		done <- err
	}()
	require.Eventually(t, func() bool {
		return indexOf(h.ledger.Calls(), "confirm") >= 0
	}, time.Second, time.Millisecond)

	require.NoError(t, h.session.Disconnect(context.Background()))

	select {
	case err := <-done:
		assert.Equal(t, KindCancelled, KindOf(err))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("confirmation wait was not cancelled by disconnect")
	}
}

func TestClose_CancelsConfirmationWait(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.ledger.confirmBlock = true

	done := make(chan error, 1)
	go func() {
		_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
		done <- err
	}()
	require.Eventually(t, func() bool {
		return indexOf(h.ledger.Calls(), "confirm") >= 0
	}, time.Second, time.Millisecond)

	require.NoError(t, h.session.Close())

	select {
	case err := <-done:
		assert.Equal(t, KindCancelled, KindOf(err))
	case <-time.After(time.Second):
		t.Fatal("confirmation wait was not cancelled by close")
	}
	assert.NotNil(t, h.store.Record())
}

func TestRefreshBalance_StaleResultDropped(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)

	gate := make(chan struct{})
	h.ledger.mu.Lock()
	h.ledger.balanceGate = gate
	h.ledger.ignoreCancel = true
	h.ledger.balances = map[solana.PublicKey]uint64{addrA1: 111, addrA2: 222}
	h.ledger.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- h.session.RefreshBalance(context.Background()) }()
	require.Eventually(t, func() bool {
		calls := h.ledger.Calls()
		return len(calls) >= 2 && calls[len(calls)-1] == "get_balance"
	}, time.Second, time.Millisecond)

	// Reconnect as a different account while the A1 query is in flight.
	require.NoError(t, h.session.Disconnect(context.Background()))
	h.signer.auth = &signer.Authorization{AuthToken: "T9", Identity: addrA2}
	require.NoError(t, h.session.Connect(context.Background()))

	ch, cancel := h.session.Subscribe(64)
	defer cancel()
	close(gate)

	require.NoError(t, <-done)
	h.waitBalance(t, 222)

	for {
		select {
		case snap := <-ch:
			if snap.Identity.Equals(addrA2) {
				assert.NotEqual(t, uint64(111), snap.Balance, "A1 balance published for A2")
			}
			continue
		default:
		}
		break
	}
	assert.Equal(t, uint64(222), h.session.Snapshot().Balance)
}

func TestRefreshBalance_NotConnected(t *testing.T) {
	h := newHarness(t, testConfig())
	assert.ErrorIs(t, h.session.RefreshBalance(context.Background()), ErrNotConnected)
}

func TestRefreshBalance_FailureKeepsBalance(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.ledger.mu.Lock()
	h.ledger.balanceErr = fmt.Errorf("getBalance: %w", ledger.ErrUnreachable)
	h.ledger.mu.Unlock()

	err := h.session.RefreshBalance(context.Background())

	assert.Equal(t, KindLedgerUnreachable, KindOf(err))
	assert.Equal(t, 2*LamportsPerSOL, h.session.Snapshot().Balance)
}

func TestRequestAirdrop(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	h.ledger.faucetSig = sig1

	res, err := h.session.RequestAirdrop(context.Background())

	require.NoError(t, err)
	assert.Equal(t, sig1, res.Signature)
	assert.Equal(t, uint64(LamportsPerSOL), h.ledger.faucetAmount)
	calls := h.ledger.Calls()
	assert.Equal(t, []string{"request_faucet_credit", "confirm", "get_balance"}, calls[len(calls)-3:])
}

func TestRequestAirdrop_UnsupportedOnMainnet(t *testing.T) {
	cfg := testConfig()
	cfg.Cluster = config.ClusterMainnetBeta
	cfg.AirdropSupported = false
	h := newHarness(t, cfg)
	h.connect(t)
	before := len(h.ledger.Calls())

	_, err := h.session.RequestAirdrop(context.Background())

	assert.ErrorIs(t, err, ErrAirdropUnsupported)
	assert.Equal(t, KindAirdropUnsupported, KindOf(err))
	assert.Len(t, h.ledger.Calls(), before)
}

func TestSendDraft_ClearedOnlyAfterSignerAccepts(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)
	require.NoError(t, h.session.SetDraft(addrR1.String(), "0.3"))

	h.signer.signErr = fmt.Errorf("sign: %w", signer.ErrRejected)
	_, err := h.session.SendDraft(context.Background())
	require.Error(t, err)
	assert.Equal(t, Draft{Recipient: addrR1.String(), Amount: "0.3"}, h.session.Snapshot().Draft)

	h.signer.signErr = nil
	h.ledger.confirmErr = fmt.Errorf("confirm: %w", ledger.ErrConfirmTimeout)
	_, err = h.session.SendDraft(context.Background())
	require.Error(t, err)
	assert.Equal(t, Draft{}, h.session.Snapshot().Draft, "signer accepted, so the draft is consumed")
}

func TestSetDraft_ExpandsPaymentURI(t *testing.T) {
	h := newHarness(t, testConfig())

	require.NoError(t, h.session.SetDraft("solana:"+addrR1.String()+"?amount=1.25", ""))
	assert.Equal(t, Draft{Recipient: addrR1.String(), Amount: "1.25"}, h.session.Snapshot().Draft)

	require.NoError(t, h.session.SetDraft("solana:"+addrR1.String()+"?amount=1.25", "2"))
	assert.Equal(t, "2", h.session.Snapshot().Draft.Amount)

	err := h.session.SetDraft("solana:bogus", "")
	assert.Equal(t, KindInvalidInput, KindOf(err))

	require.NoError(t, h.session.SetDraft("half-typed", ""))
	assert.Equal(t, "half-typed", h.session.Snapshot().Draft.Recipient)
}

func TestSubscribe_ReceivesChanges(t *testing.T) {
	h := newHarness(t, testConfig())
	ch, cancel := h.session.Subscribe(16)
	defer cancel()

	first := <-ch
	assert.Equal(t, Disconnected, first.State)

	require.NoError(t, h.session.Connect(context.Background()))

	deadline := time.After(time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.State == Connected && snap.Balance == 2*LamportsPerSOL {
				assert.Equal(t, addrA1, snap.Identity)
				return
			}
		case <-deadline:
			t.Fatal("did not observe connected snapshot with balance")
		}
	}
}

func TestSubscribe_SlowSubscriberGetsLatest(t *testing.T) {
	h := newHarness(t, testConfig())
	ch, cancel := h.session.Subscribe(1)
	defer cancel()

	for i := 0; i < 10; i++ {
		require.NoError(t, h.session.SetDraft(addrR1.String(), fmt.Sprintf("%d", i)))
	}

	snap := <-ch
	assert.Equal(t, "9", snap.Draft.Amount)
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	h := newHarness(t, testConfig())
	ch, cancel := h.session.Subscribe(1)
	<-ch

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestClose_KeepsPersistedSession(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)

	require.NoError(t, h.session.Close())

	assert.NotNil(t, h.store.Record())
	assert.ErrorIs(t, h.session.Connect(context.Background()), ErrClosed)
}

func TestActivityEventsPublished(t *testing.T) {
	h := newHarness(t, testConfig())
	pub := events.NewMockPublisher()
	h.session.WithPublisher(pub)
	h.connect(t)

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
	require.NoError(t, err)
	require.NoError(t, h.session.Disconnect(context.Background()))

	assert.Equal(t, []string{
		events.TypeConnected,
		events.TypeTransferSubmitted,
		events.TypeTransferConfirmed,
		events.TypeDisconnected,
	}, pub.Types())
	evs := pub.Events()
	assert.Equal(t, addrA1.String(), evs[1].Address)
	assert.Equal(t, uint64(100_000_000), evs[1].Lamports)
	assert.Equal(t, "disconnect", evs[3].Reason)
}

func TestActivityPublishFailureDoesNotFailTransfer(t *testing.T) {
	h := newHarness(t, testConfig())
	pub := events.NewMockPublisher()
	pub.SetPublishError(errors.New("nats down"))
	h.session.WithPublisher(pub)
	h.connect(t)

	_, err := h.session.SendTransfer(context.Background(), addrR1.String(), "0.1")
	assert.NoError(t, err)
}

func TestSession_WithBadgerStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(store.Options{InMemory: true}, logger)
	require.NoError(t, err)
	defer st.Close()

	sg := &fakeSigner{auth: &signer.Authorization{AuthToken: "T1", Identity: addrA1}, sig: sig1}
	lg := &fakeLedger{balance: 5}
	s := New(sg, lg, st, testConfig(), nil, logger)
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	rec, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &store.Record{AuthToken: "T1", Address: addrA1}, rec)

	// A second session over the same store restores the first one's record.
	restored := New(sg, lg, st, testConfig(), nil, logger)
	defer restored.Close()
	require.NoError(t, restored.RestoreFromCache(context.Background()))
	assert.Equal(t, addrA1, restored.Snapshot().Identity)

	require.NoError(t, s.Disconnect(context.Background()))
	rec, err = st.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestExplorerURL(t *testing.T) {
	assert.Equal(t, "https://explorer.solana.com/tx/"+sig1.String()+"?cluster=testnet", ExplorerURL(sig1, config.ClusterTestnet))
	assert.Equal(t, "https://explorer.solana.com/tx/"+sig1.String(), ExplorerURL(sig1, config.ClusterMainnetBeta))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	wrapped := fmt.Errorf("outer: %w", newError("op", KindLedgerRejected, ledger.ErrRejected))
	assert.Equal(t, KindLedgerRejected, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, ledger.ErrRejected)
}

func TestConcurrentRefreshesAreSafe(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.session.RefreshBalance(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, 2*LamportsPerSOL, h.session.Snapshot().Balance)
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

// Package session is the wallet session orchestrator.
//
// A Session owns the authorization issued by the external signer, mirrors it
// in the persisted store, keeps the balance of the authorized account and
// drives transfers through the signer and the ledger. It is the only place
// that holds session state; observers follow it through Subscribe.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/brojonat/walletlink/service/config"
	"github.com/brojonat/walletlink/service/events"
	"github.com/brojonat/walletlink/service/ledger"
	"github.com/brojonat/walletlink/service/metrics"
	"github.com/brojonat/walletlink/service/signer"
	"github.com/brojonat/walletlink/service/store"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Signer is the external signer as seen by the session.
type Signer interface {
	Authorize(ctx context.Context, cluster string, app signer.AppIdentity) (*signer.Authorization, error)
	Reauthorize(ctx context.Context, authToken string, app signer.AppIdentity) (string, error)
	Deauthorize(ctx context.Context, authToken string) error
	SignAndSubmit(ctx context.Context, authToken string, tx *solana.Transaction) (solana.Signature, error)
}

// Ledger is the subset of the ledger client the session uses.
type Ledger interface {
	GetBalance(ctx context.Context, account solana.PublicKey, level rpc.CommitmentType) (uint64, error)
	GetLatestBlockhash(ctx context.Context, level rpc.CommitmentType) (ledger.Blockhash, error)
	Confirm(ctx context.Context, sig solana.Signature, level rpc.CommitmentType) error
	RequestFaucetCredit(ctx context.Context, account solana.PublicKey, lamports uint64, level rpc.CommitmentType) (solana.Signature, error)
}

// Store persists the session record.
type Store interface {
	Load(ctx context.Context) (*store.Record, error)
	Save(ctx context.Context, rec store.Record) error
	Clear(ctx context.Context) error
}

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config holds the session settings.
type Config struct {
	Cluster          string
	App              signer.AppIdentity
	Commitment       rpc.CommitmentType
	AirdropLamports  uint64
	AirdropSupported bool
	ReauthPolicy     string
}

// ConfigFrom derives the session settings from the service configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Cluster:          cfg.Cluster,
		App:              signer.AppIdentity{Name: cfg.AppName, URI: cfg.AppURI, Icon: cfg.AppIcon},
		Commitment:       cfg.Commitment,
		AirdropLamports:  cfg.AirdropLamports,
		AirdropSupported: cfg.AirdropSupported(),
		ReauthPolicy:     cfg.ReauthPolicy,
	}
}

// Draft is the transfer the user is composing. The fields are kept as typed
// and validated only when the draft is sent.
type Draft struct {
	Recipient string
	Amount    string
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	State            State
	Identity         solana.PublicKey
	Balance          uint64
	Draft            Draft
	TransferInFlight bool
	LastSignature    solana.Signature
	LastExplorerURL  string
}

// TransferResult describes a submitted transfer.
type TransferResult struct {
	Signature   solana.Signature
	Recipient   solana.PublicKey
	Lamports    uint64
	ExplorerURL string
}

// Session is the wallet session state machine.
type Session struct {
	signer    Signer
	ledger    Ledger
	store     Store
	cfg       Config
	metrics   *metrics.Metrics
	publisher events.Publisher
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	identity   solana.PublicKey
	authToken  string
	balance    uint64
	draft      Draft
	lastSig    solana.Signature
	lastURL    string
	generation uint64
	connecting bool
	restored   bool
	closed     bool

	// lifetime is cancelled when the current connection ends; every external
	// call made on behalf of that connection is bound to it.
	lifetime       context.Context
	cancelLifetime context.CancelFunc

	// storeMu orders writes to the persisted record. A writer that checks the
	// generation holds it across the write, so a clear for an ended
	// connection always lands after any save made on its behalf.
	storeMu sync.Mutex

	sending atomic.Bool
	bg      sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// New creates a disconnected session.
func New(sg Signer, lg Ledger, st Store, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentProcessed
	}
	if cfg.ReauthPolicy == "" {
		cfg.ReauthPolicy = config.ReauthPolicyAnyError
	}
	return &Session{
		signer:  sg,
		ledger:  lg,
		store:   st,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		subs:    make(map[int]chan Snapshot),
	}
}

// WithPublisher publishes session activity to p.
func (s *Session) WithPublisher(p events.Publisher) *Session {
	s.publisher = p
	return s
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:            s.state,
		Identity:         s.identity,
		Balance:          s.balance,
		Draft:            s.draft,
		TransferInFlight: s.sending.Load(),
		LastSignature:    s.lastSig,
		LastExplorerURL:  s.lastURL,
	}
}

// Connect authorizes this app with the signer and starts a session.
func (s *Session) Connect(ctx context.Context) error {
	const op = "connect"

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return newError(op, KindInternal, ErrClosed)
	case s.state == Connected || s.connecting:
		s.mu.Unlock()
		return newError(op, KindAlreadyConnected, ErrAlreadyConnected)
	}
	s.connecting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	auth, err := s.signer.Authorize(ctx, s.cfg.Cluster, s.cfg.App)
	if err != nil {
		s.logger.WarnContext(ctx, "authorization failed", "error", err)
		return classify(op, err)
	}

	s.storeMu.Lock()
	if err := s.store.Save(ctx, store.Record{AuthToken: auth.AuthToken, Address: auth.Identity}); err != nil {
		s.storeMu.Unlock()
		s.logger.ErrorContext(ctx, "failed to persist session", "error", err)
		return newError(op, KindInternal, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.storeMu.Unlock()
		return newError(op, KindInternal, ErrClosed)
	}
	s.becomeConnectedLocked(auth.Identity, auth.AuthToken, "connect")
	s.mu.Unlock()
	s.storeMu.Unlock()

	s.logger.InfoContext(ctx, "wallet connected", "address", auth.Identity.String(), "label", auth.Label)
	s.notify()
	s.publish(events.NewActivityEvent(events.TypeConnected, auth.Identity.String()))
	s.refreshAsync()
	return nil
}

// RestoreFromCache resumes a persisted session without contacting the
// signer. The restored token is only trusted once the next reauthorize
// succeeds. It runs at most once per Session.
func (s *Session) RestoreFromCache(ctx context.Context) error {
	const op = "restore"

	s.mu.Lock()
	if s.restored || s.state == Connected || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.restored = true
	s.mu.Unlock()

	rec, err := s.store.Load(ctx)
	if err != nil {
		return newError(op, KindInternal, err)
	}
	if rec == nil {
		s.logger.DebugContext(ctx, "no persisted session")
		return nil
	}

	s.mu.Lock()
	if s.state == Connected || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.becomeConnectedLocked(rec.Address, rec.AuthToken, "restore")
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "session restored", "address", rec.Address.String())
	s.notify()
	s.refreshAsync()
	return nil
}

// Disconnect ends the session. The local transition always happens; the
// signer is asked to forget the token afterwards on a best-effort basis.
func (s *Session) Disconnect(ctx context.Context) error {
	const op = "disconnect"

	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return newError(op, KindNotConnected, ErrNotConnected)
	}
	token, identity := s.authToken, s.identity
	s.becomeDisconnectedLocked("disconnect")
	ended := s.generation
	s.mu.Unlock()

	clearErr := s.clearStore(ctx, ended)
	if clearErr != nil {
		s.logger.ErrorContext(ctx, "failed to clear persisted session", "error", clearErr)
	}
	s.notify()
	s.publishTransition(identity, "disconnect")

	if err := s.signer.Deauthorize(ctx, token); err != nil {
		s.logger.WarnContext(ctx, "deauthorize failed", "address", identity.String(), "error", err)
	}

	s.logger.InfoContext(ctx, "wallet disconnected", "address", identity.String())
	if clearErr != nil {
		return newError(op, KindInternal, clearErr)
	}
	return nil
}

// RefreshBalance fetches the balance of the session identity. Overlapping
// refreshes are allowed; a result for a connection that has since ended is
// dropped.
func (s *Session) RefreshBalance(ctx context.Context) error {
	const op = "refresh_balance"

	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return newError(op, KindNotConnected, ErrNotConnected)
	}
	identity, gen, lifetime := s.identity, s.generation, s.lifetime
	s.mu.Unlock()

	opCtx, cancel := bind(ctx, lifetime)
	defer cancel()

	lamports, err := s.ledger.GetBalance(opCtx, identity, s.cfg.Commitment)
	if err != nil {
		s.metrics.RecordBalanceRefresh("error")
		return classify(op, err)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.metrics.RecordBalanceRefresh("stale")
		s.logger.DebugContext(ctx, "dropping balance for ended session", "address", identity.String())
		return nil
	}
	s.balance = lamports
	s.mu.Unlock()

	s.metrics.RecordBalanceRefresh("ok")
	s.notify()
	return nil
}

// SendTransfer sends amount SOL (a decimal string) to recipient, which may be
// a base-58 address or a payment URI. If amount is empty the URI amount is
// used.
func (s *Session) SendTransfer(ctx context.Context, recipient, amount string) (*TransferResult, error) {
	return s.send(ctx, "send_transfer", recipient, amount, false)
}

// SetDraft records the transfer being composed. A payment URI recipient is
// expanded into its address, and its amount fills an empty amount.
func (s *Session) SetDraft(recipient, amount string) error {
	const op = "set_draft"

	draft := Draft{Recipient: recipient, Amount: amount}
	if r, err := ParseRecipient(recipient); err == nil {
		draft.Recipient = r.Address.String()
		if draft.Amount == "" {
			draft.Amount = r.Amount
		}
	} else if isPayURI(recipient) {
		return invalidInput(op, "%v", err)
	}

	s.mu.Lock()
	s.draft = draft
	s.mu.Unlock()
	s.notify()
	return nil
}

// SendDraft sends the current draft. The draft is cleared once the signer
// has accepted the transaction, and kept on any earlier failure.
func (s *Session) SendDraft(ctx context.Context) (*TransferResult, error) {
	s.mu.Lock()
	draft := s.draft
	s.mu.Unlock()
	return s.send(ctx, "send_draft", draft.Recipient, draft.Amount, true)
}

func (s *Session) send(ctx context.Context, op, recipient, amount string, fromDraft bool) (*TransferResult, error) {
	to, lamports, verr := parseTransfer(recipient, amount)
	if verr != nil {
		return nil, invalidInput(op, "%v", verr)
	}

	if !s.sending.CompareAndSwap(false, true) {
		return nil, newError(op, KindTransferInProgress, ErrTransferInProgress)
	}
	defer func() {
		s.sending.Store(false)
		s.notify()
	}()

	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return nil, newError(op, KindNotConnected, ErrNotConnected)
	}
	identity, token, gen, lifetime := s.identity, s.authToken, s.generation, s.lifetime
	s.mu.Unlock()
	s.notify()

	opCtx, cancel := bind(ctx, lifetime)
	defer cancel()

	logger := s.logger.With("op", op, "address", identity.String(), "recipient", to.String(), "lamports", lamports)

	// The token is validated in this process before any transaction is built.
	newToken, err := s.signer.Reauthorize(opCtx, token, s.cfg.App)
	if err != nil {
		if s.reauthFailureDisconnects(err) {
			s.forceDisconnect(gen, "reauthorize_failed")
		}
		logger.WarnContext(ctx, "reauthorize failed", "error", err)
		s.metrics.RecordTransfer("reauthorize_failed", lamports)
		return nil, classify(op, err)
	}
	if newToken != token && !s.rotateToken(ctx, gen, identity, newToken) {
		logger.InfoContext(ctx, "session ended during reauthorize")
		s.metrics.RecordTransfer("reauthorize_failed", lamports)
		return nil, newError(op, KindNotConnected, ErrNotConnected)
	}

	bh, err := s.ledger.GetLatestBlockhash(opCtx, s.cfg.Commitment)
	if err != nil {
		logger.WarnContext(ctx, "failed to fetch blockhash", "error", err)
		s.metrics.RecordTransfer("blockhash_failed", lamports)
		return nil, classify(op, err)
	}

	tx, err := newTransfer(identity, to, lamports, bh.Hash).Build(identity)
	if err != nil {
		return nil, newError(op, KindInternal, err)
	}

	sig, err := s.signer.SignAndSubmit(opCtx, newToken, tx)
	if err != nil {
		if forcesDisconnect(err) {
			s.forceDisconnect(gen, "sign_failed")
		}
		logger.WarnContext(ctx, "sign and submit failed", "error", err)
		s.metrics.RecordTransfer("sign_failed", lamports)
		return nil, classify(op, err)
	}

	result := &TransferResult{
		Signature:   sig,
		Recipient:   to,
		Lamports:    lamports,
		ExplorerURL: ExplorerURL(sig, s.cfg.Cluster),
	}

	s.mu.Lock()
	s.lastSig, s.lastURL = sig, result.ExplorerURL
	if fromDraft {
		s.draft = Draft{}
	}
	s.mu.Unlock()
	s.notify()

	logger.InfoContext(ctx, "transfer submitted", "signature", sig.String())
	s.publishTransfer(events.TypeTransferSubmitted, identity, result, "")

	if err := s.ledger.Confirm(opCtx, sig, s.cfg.Commitment); err != nil {
		serr := classify(op, err)
		logger.WarnContext(ctx, "transfer not confirmed", "signature", sig.String(), "error", err)
		s.metrics.RecordTransfer("confirm_failed", lamports)
		s.publishTransfer(events.TypeTransferFailed, identity, result, string(serr.Kind))
		return result, serr
	}

	logger.InfoContext(ctx, "transfer confirmed", "signature", sig.String(), "explorer_url", result.ExplorerURL)
	s.metrics.RecordTransfer("confirmed", lamports)
	s.publishTransfer(events.TypeTransferConfirmed, identity, result, "")

	if err := s.RefreshBalance(opCtx); err != nil {
		logger.WarnContext(ctx, "balance refresh after transfer failed", "error", err)
	}
	return result, nil
}

// RequestAirdrop credits the session identity from the cluster faucet.
func (s *Session) RequestAirdrop(ctx context.Context) (*TransferResult, error) {
	const op = "airdrop"

	if !s.cfg.AirdropSupported {
		return nil, newError(op, KindAirdropUnsupported, ErrAirdropUnsupported)
	}

	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return nil, newError(op, KindNotConnected, ErrNotConnected)
	}
	identity, lifetime := s.identity, s.lifetime
	s.mu.Unlock()

	opCtx, cancel := bind(ctx, lifetime)
	defer cancel()

	sig, err := s.ledger.RequestFaucetCredit(opCtx, identity, s.cfg.AirdropLamports, s.cfg.Commitment)
	if err != nil {
		s.logger.WarnContext(ctx, "airdrop request failed", "address", identity.String(), "error", err)
		return nil, classify(op, err)
	}

	result := &TransferResult{
		Signature:   sig,
		Recipient:   identity,
		Lamports:    s.cfg.AirdropLamports,
		ExplorerURL: ExplorerURL(sig, s.cfg.Cluster),
	}

	if err := s.ledger.Confirm(opCtx, sig, s.cfg.Commitment); err != nil {
		s.logger.WarnContext(ctx, "airdrop not confirmed", "signature", sig.String(), "error", err)
		return result, classify(op, err)
	}

	s.logger.InfoContext(ctx, "airdrop confirmed", "address", identity.String(), "signature", sig.String())
	s.publishTransfer(events.TypeAirdropConfirmed, identity, result, "")

	if err := s.RefreshBalance(opCtx); err != nil {
		s.logger.WarnContext(ctx, "balance refresh after airdrop failed", "error", err)
	}
	return result, nil
}

// ReceiveQR renders the payment URI of the session identity as a PNG.
func (s *Session) ReceiveQR(size int) ([]byte, error) {
	const op = "receive_qr"

	s.mu.Lock()
	connected, identity := s.state == Connected, s.identity
	s.mu.Unlock()
	if !connected {
		return nil, newError(op, KindNotConnected, ErrNotConnected)
	}
	if size == 0 {
		size = DefaultQRSize
	}
	png, err := encodeQR(ReceiveURI(identity, s.cfg.App.Name), size)
	if err != nil {
		return nil, invalidInput(op, "%v", err)
	}
	return png, nil
}

// Subscribe returns a channel that receives the current snapshot and then
// every change. A slow subscriber only misses intermediate snapshots; the
// latest one is always delivered. cancel releases the subscription.
func (s *Session) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.Snapshot()
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close ends all in-flight work and subscriptions. The persisted session is
// kept so the next process can restore it.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancelLifetime != nil {
		s.cancelLifetime()
	}
	s.mu.Unlock()

	s.bg.Wait()

	s.subMu.Lock()
	for id, c := range s.subs {
		delete(s.subs, id)
		close(c)
	}
	s.subMu.Unlock()
	return nil
}

func (s *Session) becomeConnectedLocked(identity solana.PublicKey, token, reason string) {
	s.state = Connected
	s.identity = identity
	s.authToken = token
	s.balance = 0
	s.generation++
	s.lifetime, s.cancelLifetime = context.WithCancel(context.Background())
	s.metrics.RecordTransition(Connected.String(), reason)
}

func (s *Session) becomeDisconnectedLocked(reason string) {
	if s.cancelLifetime != nil {
		s.cancelLifetime()
	}
	s.state = Disconnected
	s.identity = solana.PublicKey{}
	s.authToken = ""
	s.balance = 0
	s.generation++
	s.lifetime, s.cancelLifetime = nil, nil
	s.metrics.RecordTransition(Disconnected.String(), reason)
}

// forceDisconnect ends the connection identified by gen after the signer
// stopped honouring it. It does nothing if that connection already ended.
func (s *Session) forceDisconnect(gen uint64, reason string) {
	s.mu.Lock()
	if s.state != Connected || s.generation != gen {
		s.mu.Unlock()
		return
	}
	identity := s.identity
	s.becomeDisconnectedLocked(reason)
	ended := s.generation
	s.mu.Unlock()

	if err := s.clearStore(context.Background(), ended); err != nil {
		s.logger.Error("failed to clear persisted session", "error", err)
	}
	s.logger.Warn("session dropped", "address", identity.String(), "reason", reason)
	s.notify()
	s.publishTransition(identity, reason)
}

// rotateToken keeps a token the signer replaced during reauthorize. It
// reports false if the connection identified by gen has already ended; the
// new token is then handed back to the signer, since the disconnect only
// knew the old one.
func (s *Session) rotateToken(ctx context.Context, gen uint64, identity solana.PublicKey, token string) bool {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	if s.state != Connected || s.generation != gen {
		s.mu.Unlock()
		s.deauthorizeOrphan(ctx, identity, token)
		return false
	}
	s.authToken = token
	s.mu.Unlock()

	if err := s.store.Save(ctx, store.Record{AuthToken: token, Address: identity}); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist rotated token", "error", err)
		return true
	}
	s.logger.DebugContext(ctx, "auth token rotated", "address", identity.String())
	return true
}

// clearStore removes the persisted record unless a newer connection has
// already replaced it. gen is the generation right after the disconnect.
func (s *Session) clearStore(ctx context.Context, gen uint64) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	superseded := s.generation != gen
	s.mu.Unlock()
	if superseded {
		return nil
	}
	return s.store.Clear(ctx)
}

func (s *Session) deauthorizeOrphan(ctx context.Context, identity solana.PublicKey, token string) {
	// The caller's context may be the cancelled lifetime of the ended connection.
	if err := s.signer.Deauthorize(context.WithoutCancel(ctx), token); err != nil {
		s.logger.WarnContext(ctx, "deauthorize of rotated token failed", "address", identity.String(), "error", err)
	}
}

func (s *Session) reauthFailureDisconnects(err error) bool {
	if s.cfg.ReauthPolicy == config.ReauthPolicyRevocationOnly {
		return forcesDisconnect(err)
	}
	return true
}

func (s *Session) refreshAsync() {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		err := s.RefreshBalance(context.Background())
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("balance refresh failed", "error", err)
		}
	}()
}

// notify delivers the current snapshot to every subscriber, replacing an
// undelivered older snapshot if the subscriber is behind.
func (s *Session) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Session) publish(ev *events.ActivityEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.Background(), ev); err != nil {
		s.logger.Warn("failed to publish activity event", "type", ev.Type, "error", err)
	}
}

func (s *Session) publishTransition(identity solana.PublicKey, reason string) {
	ev := events.NewActivityEvent(events.TypeDisconnected, identity.String())
	ev.Reason = reason
	s.publish(ev)
}

func (s *Session) publishTransfer(eventType string, identity solana.PublicKey, r *TransferResult, errKind string) {
	ev := events.NewActivityEvent(eventType, identity.String())
	ev.Recipient = r.Recipient.String()
	ev.Lamports = r.Lamports
	ev.Signature = r.Signature.String()
	ev.ErrorKind = errKind
	s.publish(ev)
}

// bind returns a context cancelled when either ctx or lifetime is done.
func bind(ctx, lifetime context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	if lifetime == nil {
		return opCtx, cancel
	}
	stop := context.AfterFunc(lifetime, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func parseTransfer(recipient, amount string) (solana.PublicKey, uint64, error) {
	r, err := ParseRecipient(recipient)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	if amount == "" {
		amount = r.Amount
	}
	lamports, err := ParseAmount(amount)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return r.Address, lamports, nil
}

// ExplorerURL links to the transaction in the public block explorer.
func ExplorerURL(sig solana.Signature, cluster string) string {
	if cluster == "" || cluster == config.ClusterMainnetBeta {
		return fmt.Sprintf("https://explorer.solana.com/tx/%s", sig)
	}
	return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s", sig, cluster)
}

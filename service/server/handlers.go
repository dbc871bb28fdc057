package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/brojonat/walletlink/service/session"
	"github.com/gagliardetto/solana-go"
)

const maxRequestBodySize = 64 << 10 // transfer and draft bodies are tiny

type draftResponse struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type sessionResponse struct {
	Connection       string        `json:"connection"`
	Address          string        `json:"address,omitempty"`
	BalanceLamports  uint64        `json:"balance_lamports"`
	Balance          string        `json:"balance"`
	Draft            draftResponse `json:"draft"`
	TransferInFlight bool          `json:"transfer_in_flight"`
	LastSignature    string        `json:"last_signature,omitempty"`
	LastExplorerURL  string        `json:"last_explorer_url,omitempty"`
}

type transferResponse struct {
	Signature   string          `json:"signature"`
	Recipient   string          `json:"recipient"`
	Lamports    uint64          `json:"lamports"`
	Amount      string          `json:"amount"`
	ExplorerURL string          `json:"explorer_url"`
	Session     sessionResponse `json:"session"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind"`
	Signature   string `json:"signature,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

func snapshotToResponse(snap session.Snapshot) sessionResponse {
	resp := sessionResponse{
		Connection:       snap.State.String(),
		BalanceLamports:  snap.Balance,
		Balance:          session.FormatLamports(snap.Balance),
		Draft:            draftResponse{Recipient: snap.Draft.Recipient, Amount: snap.Draft.Amount},
		TransferInFlight: snap.TransferInFlight,
		LastExplorerURL:  snap.LastExplorerURL,
	}
	if !snap.Identity.IsZero() {
		resp.Address = snap.Identity.String()
	}
	if snap.LastSignature != (solana.Signature{}) {
		resp.LastSignature = snap.LastSignature.String()
	}
	return resp
}

// handleGetSession returns the current session snapshot.
// GET /api/v1/session
func handleGetSession(sess Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, snapshotToResponse(sess.Snapshot()), http.StatusOK)
	})
}

// handleConnect authorizes with the signer.
// POST /api/v1/session/connect
func handleConnect(sess Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sess.Connect(r.Context()); err != nil {
			writeSessionError(w, r, logger, err, nil)
			return
		}
		writeJSON(w, snapshotToResponse(sess.Snapshot()), http.StatusOK)
	})
}

// handleDisconnect ends the session.
// POST /api/v1/session/disconnect
func handleDisconnect(sess Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sess.Disconnect(r.Context()); err != nil {
			writeSessionError(w, r, logger, err, nil)
			return
		}
		writeJSON(w, snapshotToResponse(sess.Snapshot()), http.StatusOK)
	})
}

// handleRefreshBalance refetches the balance.
// POST /api/v1/session/balance
func handleRefreshBalance(sess Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sess.RefreshBalance(r.Context()); err != nil {
			writeSessionError(w, r, logger, err, nil)
			return
		}
		writeJSON(w, snapshotToResponse(sess.Snapshot()), http.StatusOK)
	})
}

// handleAirdrop requests faucet credit for the session identity.
// POST /api/v1/session/airdrop
func handleAirdrop(sess Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := sess.RequestAirdrop(r.Context())
		if err != nil {
			writeSessionError(w, r, logger, err, res)
			return
		}
		writeJSON(w, transferToResponse(res, sess.Snapshot()), http.StatusOK)
	})
}

type transferRequest struct {
	Recipient string          `json:"recipient"`
	Amount    json.RawMessage `json:"amount"`
}

// handleSendTransfer sends a transfer. The amount may be a JSON string or
// number of SOL.
// POST /api/v1/transfers
func handleSendTransfer(sess Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeTransferRequest(w, r, logger)
		if !ok {
			return
		}
		amount, err := rawAmount(req.Amount)
		if err != nil {
			writeError(w, err.Error(), session.KindInvalidInput, http.StatusBadRequest)
			return
		}

		res, err := sess.SendTransfer(r.Context(), req.Recipient, amount)
		if err != nil {
			writeSessionError(w, r, logger, err, res)
			return
		}
		writeJSON(w, transferToResponse(res, sess.Snapshot()), http.StatusOK)
	})
}

// handleSetDraft replaces the draft transfer.
// PUT /api/v1/session/draft
func handleSetDraft(sess Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeTransferRequest(w, r, logger)
		if !ok {
			return
		}
		amount, err := rawAmount(req.Amount)
		if err != nil {
			writeError(w, err.Error(), session.KindInvalidInput, http.StatusBadRequest)
			return
		}

		if err := sess.SetDraft(req.Recipient, amount); err != nil {
			writeSessionError(w, r, logger, err, nil)
			return
		}
		writeJSON(w, snapshotToResponse(sess.Snapshot()), http.StatusOK)
	})
}

// handleSendDraft sends the draft transfer.
// POST /api/v1/session/draft/send
func handleSendDraft(sess Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := sess.SendDraft(r.Context())
		if err != nil {
			writeSessionError(w, r, logger, err, res)
			return
		}
		writeJSON(w, transferToResponse(res, sess.Snapshot()), http.StatusOK)
	})
}

// handleReceiveQR serves the receive-address QR code as PNG.
// GET /api/v1/session/qr?size=256
func handleReceiveQR(sess Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size := 0
		if raw := r.URL.Query().Get("size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, "invalid size parameter: must be an integer", session.KindInvalidInput, http.StatusBadRequest)
				return
			}
			size = n
		}

		png, err := sess.ReceiveQR(size)
		if err != nil {
			writeSessionError(w, r, logger, err, nil)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	})
}

func decodeTransferRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (transferRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("failed to decode transfer request", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "request body too large", session.KindInvalidInput, http.StatusBadRequest)
			return req, false
		}
		writeError(w, "invalid request body: must be valid JSON", session.KindInvalidInput, http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// rawAmount accepts "0.5" or 0.5. Numbers keep their literal text so no
// precision is lost to float parsing.
func rawAmount(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid amount: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid amount: must be a string or number")
	}
	return strings.TrimSpace(n.String()), nil
}

func transferToResponse(res *session.TransferResult, snap session.Snapshot) transferResponse {
	return transferResponse{
		Signature:   res.Signature.String(),
		Recipient:   res.Recipient.String(),
		Lamports:    res.Lamports,
		Amount:      session.FormatLamports(res.Lamports),
		ExplorerURL: res.ExplorerURL,
		Session:     snapshotToResponse(snap),
	}
}

// statusForKind maps a session failure onto an HTTP status.
func statusForKind(kind session.Kind) int {
	switch kind {
	case session.KindInvalidInput, session.KindAirdropUnsupported:
		return http.StatusBadRequest
	case session.KindTransferInProgress, session.KindNotConnected, session.KindAlreadyConnected:
		return http.StatusConflict
	case session.KindSignerRejected:
		return http.StatusForbidden
	case session.KindSignerRevoked:
		return http.StatusUnauthorized
	case session.KindSignerUnavailable:
		return http.StatusServiceUnavailable
	case session.KindLedgerUnreachable:
		return http.StatusBadGateway
	case session.KindLedgerRejected:
		return http.StatusUnprocessableEntity
	case session.KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeSessionError reports a session failure. A transfer that reached the
// signer but failed afterwards still reports its signature: the transaction
// may yet land.
func writeSessionError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, res *session.TransferResult) {
	kind := session.KindOf(err)
	status := statusForKind(kind)

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "kind", kind, "error", err)
	} else {
		logger.DebugContext(r.Context(), "request failed", "path", r.URL.Path, "kind", kind, "error", err)
	}

	body := errorResponse{Error: err.Error(), Kind: string(kind)}
	if res != nil {
		body.Signature = res.Signature.String()
		body.ExplorerURL = res.ExplorerURL
	}
	writeJSON(w, body, status)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, kind session.Kind, statusCode int) {
	writeJSON(w, errorResponse{Error: message, Kind: string(kind)}, statusCode)
}

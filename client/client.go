package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Draft is the transfer the user is composing.
type Draft struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// Session is the daemon's view of the wallet session.
type Session struct {
	Connection       string `json:"connection"` // connected, disconnected
	Address          string `json:"address,omitempty"`
	BalanceLamports  uint64 `json:"balance_lamports"`
	Balance          string `json:"balance"`
	Draft            Draft  `json:"draft"`
	TransferInFlight bool   `json:"transfer_in_flight"`
	LastSignature    string `json:"last_signature,omitempty"`
	LastExplorerURL  string `json:"last_explorer_url,omitempty"`
}

// Connected reports whether the session holds an authorization.
func (s *Session) Connected() bool {
	return s.Connection == "connected"
}

// Transfer is a confirmed transfer or airdrop.
type Transfer struct {
	Signature   string  `json:"signature"`
	Recipient   string  `json:"recipient"`
	Lamports    uint64  `json:"lamports"`
	Amount      string  `json:"amount"`
	ExplorerURL string  `json:"explorer_url"`
	Session     Session `json:"session"`
}

// APIError is a failure reported by the daemon. Signature is set when a
// transfer was submitted but not confirmed.
type APIError struct {
	StatusCode  int
	Kind        string
	Message     string
	Signature   string
	ExplorerURL string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed (%s): %s", e.Kind, e.Message)
}

// Client is the HTTP client for the walletlink daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new daemon client. The default http.Client has no
// timeout: transfers block while the user decides in the wallet app. Bound
// calls with the context instead.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Status returns the current session.
func (c *Client) Status(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/api/v1/session", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Connect asks the wallet app to authorize this daemon.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/connect", nil, &s); err != nil {
		return nil, err
	}
	c.logger.Debug("session connected", "address", s.Address)
	return &s, nil
}

// Disconnect ends the session.
func (c *Client) Disconnect(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/disconnect", nil, &s); err != nil {
		return nil, err
	}
	c.logger.Debug("session disconnected")
	return &s, nil
}

// RefreshBalance refetches the balance of the session identity.
func (c *Client) RefreshBalance(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/balance", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Airdrop requests faucet credit for the session identity.
func (c *Client) Airdrop(ctx context.Context) (*Transfer, error) {
	var t Transfer
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/airdrop", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Send transfers amount SOL (a decimal string) to recipient, which may be an
// address or a solana: payment URI.
func (c *Client) Send(ctx context.Context, recipient, amount string) (*Transfer, error) {
	body := map[string]string{"recipient": recipient, "amount": amount}
	var t Transfer
	if err := c.do(ctx, http.MethodPost, "/api/v1/transfers", body, &t); err != nil {
		return nil, err
	}
	c.logger.Debug("transfer confirmed", "signature", t.Signature, "lamports", t.Lamports)
	return &t, nil
}

// SetDraft replaces the draft transfer.
func (c *Client) SetDraft(ctx context.Context, recipient, amount string) (*Session, error) {
	body := map[string]string{"recipient": recipient, "amount": amount}
	var s Session
	if err := c.do(ctx, http.MethodPut, "/api/v1/session/draft", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SendDraft sends the draft transfer.
func (c *Client) SendDraft(ctx context.Context) (*Transfer, error) {
	var t Transfer
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/draft/send", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ReceiveQR fetches the receive-address QR code as PNG. size 0 uses the
// daemon's default.
func (c *Client) ReceiveQR(ctx context.Context, size int) ([]byte, error) {
	path := "/api/v1/session/qr"
	if size > 0 {
		path += "?size=" + strconv.Itoa(size)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}
	return io.ReadAll(resp.Body)
}

// Stream calls fn with each session snapshot the daemon pushes, starting with
// the current one. It returns nil when ctx is cancelled, and fn's error if fn
// fails.
func (c *Client) Stream(ctx context.Context, fn func(*Session) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/stream/session", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()

		// Empty line ends an event.
		if line == "" {
			if event == "session" && data != "" {
				var s Session
				if err := json.Unmarshal([]byte(data), &s); err != nil {
					c.logger.Warn("failed to decode session event", "error", err)
				} else if err := fn(&s); err != nil {
					return err
				}
			}
			event, data = "", ""
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("request complete", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the daemon.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error       string `json:"error"`
		Kind        string `json:"kind"`
		Signature   string `json:"signature"`
		ExplorerURL string `json:"explorer_url"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Kind:        errResp.Kind,
		Message:     errResp.Error,
		Signature:   errResp.Signature,
		ExplorerURL: errResp.ExplorerURL,
	}
}

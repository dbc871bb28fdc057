package signer

import (
	"encoding/json"
	"fmt"
)

// Signer protocol methods.
const (
	MethodAuthorize               = "authorize"
	MethodReauthorize             = "reauthorize"
	MethodDeauthorize             = "deauthorize"
	MethodSignAndSendTransactions = "sign_and_send_transactions"
)

// Error codes a signer may return in a protocol error.
const (
	CodeAuthorizationFailed = -1
	CodeInvalidPayloads     = -2
	CodeNotSigned           = -3
	CodeNotSubmitted        = -4
	CodeTooManyPayloads     = -5
	CodeAttestOriginAndroid = -100
)

// AppIdentity is how this application presents itself to the signer.
type AppIdentity struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
	Icon string `json:"icon,omitempty"`
}

// ProtocolError is an error object returned by the signer.
type ProtocolError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("signer error %d: %s", e.Code, e.Message)
}

// request and response are the JSON-RPC 2.0 envelope.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ProtocolError  `json:"error,omitempty"`
}

type authorizeParams struct {
	Identity AppIdentity `json:"identity"`
	Cluster  string      `json:"cluster"`
}

type account struct {
	// Address is the base64 encoding of the raw 32 public key bytes.
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

type authorizeResult struct {
	AuthToken     string    `json:"auth_token"`
	Accounts      []account `json:"accounts"`
	WalletURIBase string    `json:"wallet_uri_base,omitempty"`
}

type reauthorizeParams struct {
	AuthToken string      `json:"auth_token"`
	Identity  AppIdentity `json:"identity"`
}

type reauthorizeResult struct {
	AuthToken string `json:"auth_token"`
}

type deauthorizeParams struct {
	AuthToken string `json:"auth_token"`
}

// signAndSendParams carries the auth token because every exchange runs on
// its own connection; there is no prior authorize on the same channel.
type signAndSendParams struct {
	AuthToken string   `json:"auth_token"`
	Payloads  []string `json:"payloads"`
}

type signAndSendResult struct {
	// Signatures are base64 encoded, one per payload.
	Signatures []string `json:"signatures"`
}

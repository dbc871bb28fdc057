package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/skip2/go-qrcode"
)

const payScheme = "solana"

// Recipient is a parsed transfer destination. Amount is the decimal SOL
// amount carried by a payment URI, empty when none was given.
type Recipient struct {
	Address solana.PublicKey
	Amount  string
}

// ParseRecipient accepts a base-58 address or a payment URI of the form
// solana:<address>?amount=<sol>, which is what wallet QR codes carry.
func ParseRecipient(s string) (Recipient, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Recipient{}, fmt.Errorf("recipient is empty")
	}

	if !isPayURI(s) {
		addr, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return Recipient{}, fmt.Errorf("recipient %q is not a valid address: %w", s, err)
		}
		return Recipient{Address: addr}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return Recipient{}, fmt.Errorf("recipient URI: %w", err)
	}
	raw := u.Opaque
	if raw == "" {
		// solana://<address> style
		raw = u.Host
	}
	addr, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return Recipient{}, fmt.Errorf("recipient URI address %q: %w", raw, err)
	}

	amount := u.Query().Get("amount")
	if amount != "" {
		if _, err := ParseAmount(amount); err != nil {
			return Recipient{}, fmt.Errorf("recipient URI: %w", err)
		}
	}
	return Recipient{Address: addr, Amount: amount}, nil
}

func isPayURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), payScheme+":")
}

// ReceiveURI builds the payment URI other wallets scan to pay address.
func ReceiveURI(address solana.PublicKey, label string) string {
	params := url.Values{}
	if label != "" {
		params.Set("label", label)
	}
	if len(params) == 0 {
		return fmt.Sprintf("%s:%s", payScheme, address)
	}
	return fmt.Sprintf("%s:%s?%s", payScheme, address, params.Encode())
}

// QR size bounds in pixels.
const (
	DefaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// encodeQR renders content as a PNG QR code with medium error correction.
func encodeQR(content string, size int) ([]byte, error) {
	if size < minQRSize || size > maxQRSize {
		return nil, fmt.Errorf("qr size %d outside [%d, %d]", size, minQRSize, maxQRSize)
	}
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code as PNG: %w", err)
	}
	return png, nil
}

package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

const solDecimals = 9

// ParseAmount converts a decimal SOL amount into lamports without going
// through floating point. At most 9 fractional digits are accepted; zero is
// a valid amount.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("amount %q is negative", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("amount %q is not a number", s)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("amount %q is not a number", s)
	}
	if len(frac) > solDecimals {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, solDecimals)
	}

	var w uint64
	if whole != "" {
		var err error
		w, err = strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("amount %q is out of range", s)
		}
	}
	if w > math.MaxUint64/LamportsPerSOL {
		return 0, fmt.Errorf("amount %q is out of range", s)
	}

	var f uint64
	if frac != "" {
		frac += strings.Repeat("0", solDecimals-len(frac))
		f, _ = strconv.ParseUint(frac, 10, 64)
	}

	lamports := w * LamportsPerSOL
	if lamports > math.MaxUint64-f {
		return 0, fmt.Errorf("amount %q is out of range", s)
	}
	return lamports + f, nil
}

// FormatLamports renders lamports as a decimal SOL string, trimming trailing
// zeros: 1500000000 -> "1.5", 0 -> "0".
func FormatLamports(lamports uint64) string {
	whole := lamports / LamportsPerSOL
	frac := lamports % LamportsPerSOL
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fs := fmt.Sprintf("%09d", frac)
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(fs, "0")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

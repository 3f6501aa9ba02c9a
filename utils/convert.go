package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMsisdn  = errors.New("invalid phone number")
	ErrAmountRequired = errors.New("amount is required")
)

// NormalizeMsisdn turns US style input into E.164 (+1XXXXXXXXXX). Numbers that
// already carry a country code are kept if they have 8 to 15 digits.
func NormalizeMsisdn(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	plus := strings.HasPrefix(raw, "+")
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == ' ', r == '-', r == '(', r == ')', r == '.', r == '+':
		default:
			return "", ErrInvalidMsisdn
		}
	}
	d := digits.String()
	switch {
	case !plus && len(d) == 10:
		return "+1" + d, nil
	case !plus && len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	case plus && len(d) >= 8 && len(d) <= 15:
		return "+" + d, nil
	}
	return "", ErrInvalidMsisdn
}

// MaskMsisdn keeps the last four digits for display.
func MaskMsisdn(msisdn string) string {
	if len(msisdn) <= 4 {
		return msisdn
	}
	return strings.Repeat("*", len(msisdn)-4) + msisdn[len(msisdn)-4:]
}

// RandomDigits returns an n digit numeric code from crypto/rand.
func RandomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		b.WriteByte(byte('0' + v.Int64()))
	}
	return b.String(), nil
}

func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ParseAmount reads a money value from request input and rejects anything that
// is not a finite decimal. Raw JSON may carry the amount as a number or a
// quoted string.
func ParseAmount(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case json.RawMessage:
		raw := strings.TrimSpace(string(t))
		if raw == "" || raw == "null" {
			return decimal.Zero, ErrAmountRequired
		}
		if strings.HasPrefix(raw, `"`) {
			var s string
			if err := json.Unmarshal(t, &s); err != nil {
				return decimal.Zero, err
			}
			raw = s
		}
		return ParseAmount(raw)
	case string:
		if strings.TrimSpace(t) == "" {
			return decimal.Zero, ErrAmountRequired
		}
		return decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, fmt.Errorf("amount %v is not finite", t)
		}
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case decimal.Decimal:
		return t, nil
	case nil:
		return decimal.Zero, ErrAmountRequired
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
}

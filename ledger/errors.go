package ledger

import "errors"

var (
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive with at most 2 decimals")
	ErrInvalidCurrency     = errors.New("currency must be GC or SC")
	ErrInvalidPlayer       = errors.New("invalid player id")
	ErrUnknownType         = errors.New("unknown transaction type")
	ErrCurrencyMismatch    = errors.New("transaction type is only valid for SC")
	ErrMissingKey          = errors.New("idempotency key is required")
	ErrMissingDirection    = errors.New("adjustment direction is required")
	ErrIdempotencyConflict = errors.New("idempotency key reused with different parameters")
)

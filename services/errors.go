package services

import (
	"errors"

	"sweepsapp/database"
)

var (
	ErrNotFound     = database.ErrNotFound
	ErrDuplicate    = database.ErrDuplicate
	ErrInvalidState = database.ErrInvalidState
	ErrDailyLimit   = database.ErrDailyLimit

	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrRateLimited      = errors.New("too many requests")
	ErrPlayerBlocked    = errors.New("account is not allowed to do this")
	ErrSelfExcluded     = errors.New("account is self-excluded")
	ErrInvalidCode      = errors.New("invalid or expired code")
	ErrTooManyAttempts  = errors.New("too many attempts, request a new code")
	ErrKYCRequired      = errors.New("identity verification required")
	ErrRestrictedState  = errors.New("not available in your state")
	ErrUnderage         = errors.New("below minimum age")
	ErrBelowMinimum     = errors.New("amount below minimum")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrAmountMismatch   = errors.New("amount does not match order")
	ErrGameUnavailable  = errors.New("game unavailable")
	ErrBetOutOfRange    = errors.New("bet outside game limits")
	ErrAlreadyClaimed   = errors.New("daily bonus already claimed")
)

package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrValidation        = errors.New("validation failed")
	ErrCampaignNotActive = errors.New("campaign not active")
	ErrSlotsExhausted    = errors.New("slots exhausted")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrSettlementFailure = errors.New("settlement failure")
	ErrBusy              = errors.New("campaign busy")
	ErrRateLimited       = errors.New("rate limited")
	ErrLockHeld          = errors.New("lock already held")
)

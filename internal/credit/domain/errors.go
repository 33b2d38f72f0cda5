package domain

import "errors"

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrLedgerMissing    = errors.New("credit_ledger_missing")
	ErrLedgerContention = errors.New("credit_ledger_contention")
)

package domain

import "errors"

var (
	// ErrStoreUnavailable embrulha falhas de transporte do CounterStore.
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// ErrInvalidCredential indica token que não pôde ser decodificado.
	ErrInvalidCredential = errors.New("invalid credential")
)

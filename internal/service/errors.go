package service

import "errors"

var (
	// Configuration errors. All of them are fatal before the first cycle.
	ErrQuotaExceedsCapacity    = errors.New("per-cycle quota exceeds sink request capacity")
	ErrTooManyObservationTypes = errors.New("observation type count exceeds catalog size")
	ErrInvalidCount            = errors.New("count must not be negative")

	// ErrEmptyCycle is returned when records are requested from a generator
	// whose node/type cycle contains no pairs.
	ErrEmptyCycle = errors.New("generator cycle is empty")

	// ErrRetriesExhausted is returned by a bounded submitter that gave up
	// with records still outstanding.
	ErrRetriesExhausted = errors.New("retries exhausted with records outstanding")
)

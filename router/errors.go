package router

import "errors"

var (
	// ErrNoRxHandler is returned by Deliver when the port has no receive handler.
	ErrNoRxHandler = errors.New("router: no rx handler")
	// ErrNoTxHandler is returned by Send when the port has no transmit handler.
	ErrNoTxHandler = errors.New("router: no tx handler")
	// ErrMailboxFull is returned when a mailbox has no free slot.
	ErrMailboxFull = errors.New("router: mailbox full")
	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("router: stopped")
	// ErrInvalidQueueSize is returned for a non-positive mailbox capacity.
	ErrInvalidQueueSize = errors.New("router: invalid queue size")
	// ErrInvalidBudget is returned for a non-positive dispatch budget.
	ErrInvalidBudget = errors.New("router: invalid dispatch budget")
)

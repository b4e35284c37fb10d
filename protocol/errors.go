package protocol

import "errors"

var (
	// ErrInvalidTransition is returned by Start when the protocol is not stopped.
	ErrInvalidTransition = errors.New("protocol: invalid state transition")
	// ErrRouterNil is returned by New without a router.
	ErrRouterNil = errors.New("protocol: router is nil")
	// ErrLinkNil is returned by New without a link.
	ErrLinkNil = errors.New("protocol: link is nil")
	// ErrInvalidInterval is returned for a non-positive timeout or a negative delay.
	ErrInvalidInterval = errors.New("protocol: invalid interval")
)

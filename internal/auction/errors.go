package auction

import "errors"

// Connection-lifecycle failures, surfaced by the gateway as the
// handshake close codes 4001/4004.
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAlreadyConnected = errors.New("already connected")
	ErrUnknownToken     = errors.New("invalid token")
)

// rejection is a client-operation failure: reported to the
// submitting client only, never broadcast, and never mutates state.
type rejection struct {
	reason string
}

func (r *rejection) Error() string { return r.reason }

func reject(reason string) error { return &rejection{reason: reason} }

// ErrAuctionTerminated is returned by any mutating call made after the
// auction has reached COMPLETED and torn itself down.
var ErrAuctionTerminated = errors.New("auction terminated")

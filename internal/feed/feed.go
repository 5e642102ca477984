// Package feed runs the live tick sources that push trades into the store.
// Sources own their transport and reconnection; malformed messages are
// dropped and counted, never surfaced to the store.
package feed

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyRunning is returned by Runner.Start while a feed is active
	ErrAlreadyRunning = errors.New("feed already running")
	// ErrUnknownMode is returned for a mode with no registered source
	ErrUnknownMode = errors.New("unknown feed mode")
	// ErrNoSymbols is returned when a source needs symbols and got none
	ErrNoSymbols = errors.New("no symbols provided")
)

// Sink receives validated ticks; *store.Store satisfies it
type Sink interface {
	Append(ctx context.Context, symbol string, ts time.Time, price, size float64) error
}

// Source streams ticks into sink until ctx is cancelled
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// SourceFactory builds a source for the requested symbols
type SourceFactory func(symbols []string) (Source, error)

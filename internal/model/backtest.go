package model

import "time"

// Position is the simulator's single state variable
type Position string

const (
	PositionFlat  Position = "FLAT"
	PositionLong  Position = "LONG"
	PositionShort Position = "SHORT"
)

// BacktestTrade represents a position transition produced by the simulator.
// PnL is set only on FLAT events.
type BacktestTrade struct {
	Time   time.Time `json:"ts"`
	Side   Position  `json:"side"`
	ZScore float64   `json:"z"`
	PnL    *float64  `json:"pnl,omitempty"`
	Equity float64   `json:"equity"`
}

// BacktestResult holds the trade list and cumulative equity curve
type BacktestResult struct {
	Trades []BacktestTrade `json:"trades"`
	Equity Series          `json:"equity"`
}

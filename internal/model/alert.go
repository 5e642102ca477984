package model

import "time"

const (
	MetricZScore = "zscore"
	MetricSpread = "spread"
)

// AlertRule represents a threshold rule on a pair metric
type AlertRule struct {
	ID        int     `json:"id"`
	SymbolX   string  `json:"symbol_x" binding:"required" validate:"required"`
	SymbolY   string  `json:"symbol_y" binding:"required" validate:"required"`
	Metric    string  `json:"metric" binding:"required,oneof=zscore spread" validate:"required,oneof=zscore spread"`
	Op        string  `json:"op" binding:"required,oneof=> <" validate:"required,oneof=> <"`
	Threshold float64 `json:"threshold" validate:"-"`
}

// AlertContext carries caller information attached to triggered alerts
type AlertContext map[string]interface{}

// TriggeredAlert represents a rule whose condition held for an observed value
type TriggeredAlert struct {
	Rule        AlertRule    `json:"rule"`
	Message     string       `json:"message"`
	Value       float64      `json:"value"`
	Context     AlertContext `json:"context,omitempty"`
	TriggeredAt time.Time    `json:"triggered_at"`
}

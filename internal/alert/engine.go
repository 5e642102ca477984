// Package alert keeps threshold rules on pair metrics and matches observed
// values against them.
package alert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yourorg/pairs-analytics/internal/metrics"
	"github.com/yourorg/pairs-analytics/internal/model"
)

// ErrInvalidRule is returned when a rule fails validation
var ErrInvalidRule = errors.New("invalid alert rule")

// Engine is an in-memory rule registry. It is safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	nextID   int
	rules    []model.AlertRule
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a new alert engine
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		nextID:   1,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// AddRule stores rule under the next id and returns it
func (e *Engine) AddRule(rule model.AlertRule) (model.AlertRule, error) {
	rule.SymbolX = model.NormalizeSymbol(rule.SymbolX)
	rule.SymbolY = model.NormalizeSymbol(rule.SymbolY)
	if err := e.validate.Struct(rule); err != nil {
		return model.AlertRule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if model.IsMissing(rule.Threshold) {
		return model.AlertRule{}, fmt.Errorf("%w: threshold must be a finite number", ErrInvalidRule)
	}

	e.mu.Lock()
	rule.ID = e.nextID
	e.nextID++
	e.rules = append(e.rules, rule)
	e.mu.Unlock()

	e.logger.Info("Alert rule added",
		zap.Int("id", rule.ID),
		zap.String("pair", rule.SymbolX+"/"+rule.SymbolY),
		zap.String("metric", rule.Metric),
		zap.String("op", rule.Op),
		zap.Float64("threshold", rule.Threshold))
	return rule, nil
}

// RemoveRule deletes the rule with id. The bool is false when no rule matched.
func (e *Engine) RemoveRule(id int) (model.AlertRule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.rules {
		if r.ID == id {
			e.rules = append(e.rules[:i:i], e.rules[i+1:]...)
			e.logger.Info("Alert rule removed", zap.Int("id", id))
			return r, true
		}
	}
	return model.AlertRule{}, false
}

// ListRules returns the rules in insertion order
func (e *Engine) ListRules() []model.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]model.AlertRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate matches value against every rule on metric
func (e *Engine) Evaluate(metric string, value float64, ctx model.AlertContext) []model.TriggeredAlert {
	return e.evaluate(metric, value, ctx, func(model.AlertRule) bool { return true })
}

// EvaluatePair is Evaluate restricted to the rules for symbols x and y
func (e *Engine) EvaluatePair(x, y, metric string, value float64, ctx model.AlertContext) []model.TriggeredAlert {
	x, y = model.NormalizeSymbol(x), model.NormalizeSymbol(y)
	return e.evaluate(metric, value, ctx, func(r model.AlertRule) bool {
		return r.SymbolX == x && r.SymbolY == y
	})
}

func (e *Engine) evaluate(metric string, value float64, ctx model.AlertContext, match func(model.AlertRule) bool) []model.TriggeredAlert {
	triggered := []model.TriggeredAlert{}
	if model.IsMissing(value) {
		return triggered
	}

	for _, r := range e.ListRules() {
		if r.Metric != metric || !match(r) || !holds(r.Op, value, r.Threshold) {
			continue
		}
		triggered = append(triggered, model.TriggeredAlert{
			Rule:        r,
			Message:     fmt.Sprintf("Rule %d: %s/%s %s %s %s -> value=%.4f", r.ID, r.SymbolX, r.SymbolY, r.Metric, r.Op, formatThreshold(r.Threshold), value),
			Value:       value,
			Context:     ctx,
			TriggeredAt: e.now().UTC(),
		})
		metrics.AlertsTriggered.WithLabelValues(metric).Inc()
	}
	return triggered
}

func holds(op string, value, threshold float64) bool {
	switch op {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	default:
		return false
	}
}

// formatThreshold prints the shortest exact form, keeping ".0" on whole numbers
func formatThreshold(th float64) string {
	out := strconv.FormatFloat(th, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

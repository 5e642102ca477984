// Package notify fans triggered alerts out to downstream channels.
package notify

import (
	"context"
	"errors"

	"github.com/yourorg/pairs-analytics/internal/model"

	"go.uber.org/zap"
)

// Notifier delivers triggered alerts somewhere outside the process
type Notifier interface {
	Notify(ctx context.Context, alerts []model.TriggeredAlert) error
}

// Multi delivers to every notifier and joins their errors. One failing
// channel does not stop the others.
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMulti creates a new fan-out notifier; nil entries are skipped
func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	m := &Multi{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify implements Notifier
func (m *Multi) Notify(ctx context.Context, alerts []model.TriggeredAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, alerts); err != nil {
			m.logger.Warn("Alert delivery failed", zap.Error(err), zap.Int("alerts", len(alerts)))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

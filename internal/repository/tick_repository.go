package repository

import (
	"context"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// TickRepository is the durable, append-only tick table
type TickRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTickRepository creates a new tick repository
func NewTickRepository(db *sqlx.DB, logger *zap.Logger) *TickRepository {
	return &TickRepository{
		db:     db,
		logger: logger,
	}
}

// AppendTick inserts one tick row
func (r *TickRepository) AppendTick(ctx context.Context, tick model.Tick) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ticks (symbol, ts, price, size)
		VALUES ($1, $2, $3, $4)
	`, tick.Symbol, tick.Time.UTC(), tick.Price, tick.Size)
	if err != nil {
		r.logger.Error("Failed to insert tick",
			zap.Error(err),
			zap.String("symbol", tick.Symbol),
			zap.Time("ts", tick.Time))
		return err
	}
	return nil
}

// TicksSince returns every tick at or after since, ordered by symbol then time
func (r *TickRepository) TicksSince(ctx context.Context, since time.Time) ([]model.Tick, error) {
	query := `
		SELECT symbol, ts, price, size
		FROM ticks
		WHERE ts >= $1
		ORDER BY symbol, ts, id
	`

	var ticks []model.Tick
	if err := r.db.SelectContext(ctx, &ticks, query, since.UTC()); err != nil {
		r.logger.Error("Failed to load ticks", zap.Error(err), zap.Time("since", since))
		return nil, err
	}
	return ticks, nil
}

// LatestTickTimes returns the newest tick time per symbol
func (r *TickRepository) LatestTickTimes(ctx context.Context) (map[string]time.Time, error) {
	query := `
		SELECT symbol, MAX(ts) AS ts
		FROM ticks
		GROUP BY symbol
	`

	var rows []struct {
		Symbol string    `db:"symbol"`
		Time   time.Time `db:"ts"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.Error("Failed to load latest tick times", zap.Error(err))
		return nil, err
	}

	latest := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		latest[row.Symbol] = row.Time
	}
	return latest, nil
}

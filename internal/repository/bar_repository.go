package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// BarRepository persists explicitly loaded bar sets
type BarRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewBarRepository creates a new bar repository
func NewBarRepository(db *sqlx.DB, logger *zap.Logger) *BarRepository {
	return &BarRepository{
		db:     db,
		logger: logger,
	}
}

// barRow is a bars table row
type barRow struct {
	Symbol    string    `db:"symbol"`
	Timeframe string    `db:"timeframe"`
	Time      time.Time `db:"ts"`
	Open      float64   `db:"open"`
	High      float64   `db:"high"`
	Low       float64   `db:"low"`
	Close     float64   `db:"close"`
	Volume    float64   `db:"volume"`
}

// SaveBars replaces the stored bars for (symbol, timeframe) in one transaction
func (r *BarRepository) SaveBars(ctx context.Context, symbol string, timeframe model.Timeframe, bars []model.Bar) error {
	tf := timeframe.String()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bars WHERE symbol = $1 AND timeframe = $2`, symbol, tf); err != nil {
		r.logger.Error("Failed to clear bar set",
			zap.Error(err),
			zap.String("symbol", symbol),
			zap.String("timeframe", tf))
		return err
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO bars (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		r.logger.Error("Failed to prepare statement", zap.Error(err))
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err = stmt.ExecContext(ctx, symbol, tf, b.Time.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			r.logger.Error("Failed to insert bar",
				zap.Error(err),
				zap.String("symbol", symbol),
				zap.Time("ts", b.Time))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return err
	}

	r.logger.Info("Bar set saved",
		zap.String("symbol", symbol),
		zap.String("timeframe", tf),
		zap.Int("bars", len(bars)))
	return nil
}

// BarSets returns every stored bar set, ordered by symbol and timeframe
func (r *BarRepository) BarSets(ctx context.Context) ([]model.BarSet, error) {
	query := `
		SELECT symbol, timeframe, ts, open, high, low, close, volume
		FROM bars
		ORDER BY symbol, timeframe, ts
	`

	var rows []barRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.Error("Failed to load bar sets", zap.Error(err))
		return nil, err
	}

	var sets []model.BarSet
	for _, row := range rows {
		tf, err := model.ParseTimeframe(row.Timeframe)
		if err != nil {
			return nil, fmt.Errorf("bar set %s/%s: %w", row.Symbol, row.Timeframe, err)
		}

		n := len(sets)
		if n == 0 || sets[n-1].Symbol != row.Symbol || sets[n-1].Timeframe != tf {
			sets = append(sets, model.BarSet{Symbol: row.Symbol, Timeframe: tf})
			n++
		}
		sets[n-1].Bars = append(sets[n-1].Bars, model.Bar{
			Time:   row.Time,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	return sets, nil
}

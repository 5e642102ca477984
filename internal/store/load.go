package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrEmptyTable is returned when a bar table has a header but no rows
var ErrEmptyTable = errors.New("bar table has no rows")

// requiredBarColumns are matched case-insensitively against the table header
var requiredBarColumns = []string{"ts", "open", "high", "low", "close", "volume"}

const maxRecordSize = 1 << 20

// ValidationError reports a bar table missing required columns
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ParseError reports a malformed record and its 1-based line number
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type rawRecord struct {
	Symbol string          `json:"symbol"`
	TS     json.RawMessage `json:"ts"`
	Price  *float64        `json:"price"`
	Size   float64         `json:"size"`
}

// LoadRawBatch appends newline-delimited JSON tick records. The first
// malformed line stops the batch with a *ParseError; lines already appended
// stay appended. It returns the number of ticks appended.
func (s *Store) LoadRawBatch(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	applied := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		tick, err := DecodeTickRecord(raw)
		if err != nil {
			return applied, &ParseError{Line: line, Err: err}
		}

		if err := s.Append(ctx, tick.Symbol, tick.Time, tick.Price, tick.Size); err != nil {
			return applied, fmt.Errorf("line %d: %w", line, err)
		}
		applied++
	}
	if err := scanner.Err(); err != nil {
		return applied, &ParseError{Line: line + 1, Err: err}
	}

	s.logger.Info("Loaded raw tick batch", zap.Int("ticks", applied))
	return applied, nil
}

// DecodeTickRecord parses one JSON tick record. ts may be a timestamp string or
// epoch seconds or milliseconds; a missing size is zero.
func DecodeTickRecord(raw []byte) (model.Tick, error) {
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Tick{}, err
	}
	if strings.TrimSpace(rec.Symbol) == "" {
		return model.Tick{}, errors.New("symbol is required")
	}
	if rec.Price == nil {
		return model.Tick{}, errors.New("price is required")
	}
	if len(rec.TS) == 0 {
		return model.Tick{}, errors.New("ts is required")
	}

	ts, err := decodeTimestamp(rec.TS)
	if err != nil {
		return model.Tick{}, err
	}

	return model.Tick{Symbol: rec.Symbol, Time: ts, Price: *rec.Price, Size: rec.Size}, nil
}

func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return model.ParseTimestamp(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", model.ErrInvalidTimestamp, raw)
	}
	return model.EpochToTime(f)
}

// LoadBars installs a CSV bar table as the authoritative bar set for the
// symbol and timeframe. Rows are sorted by ts and deduplicated, last row wins.
// It returns the number of bars installed.
func (s *Store) LoadBars(ctx context.Context, symbol string, timeframe model.Timeframe, r io.Reader) (int, error) {
	symbol = model.NormalizeSymbol(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("%w: empty symbol", ErrInvalidTick)
	}
	if timeframe <= 0 {
		return 0, model.ErrInvalidTimeframe
	}

	bars, err := parseBarTable(r)
	if err != nil {
		return 0, err
	}
	bars = normalizeBars(bars)

	if err := s.bars.SaveBars(ctx, symbol, timeframe, bars); err != nil {
		s.logger.Error("Failed to persist bar set",
			zap.Error(err),
			zap.String("symbol", symbol),
			zap.String("timeframe", timeframe.String()))
		return 0, fmt.Errorf("save bars: %w", err)
	}

	s.installBars(symbol, timeframe, bars)

	s.logger.Info("Loaded bar set",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe.String()),
		zap.Int("bars", len(bars)))

	return len(bars), nil
}

func parseBarTable(r io.Reader) ([]model.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ValidationError{Missing: append([]string(nil), requiredBarColumns...)}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range requiredBarColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	var bars []model.Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}

		bar, err := parseBarRecord(record, index)
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, ErrEmptyTable
	}
	return bars, nil
}

func parseBarRecord(record []string, index map[string]int) (model.Bar, error) {
	field := func(name string) (string, error) {
		i := index[name]
		if i >= len(record) {
			return "", fmt.Errorf("column %q is missing", name)
		}
		return strings.TrimSpace(record[i]), nil
	}
	number := func(name string) (float64, error) {
		v, err := field(name)
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("column %q: %w", name, err)
		}
		return f, nil
	}

	var bar model.Bar
	ts, err := field("ts")
	if err != nil {
		return bar, err
	}
	if bar.Time, err = model.ParseTimestamp(ts); err != nil {
		return bar, err
	}
	if bar.Open, err = number("open"); err != nil {
		return bar, err
	}
	if bar.High, err = number("high"); err != nil {
		return bar, err
	}
	if bar.Low, err = number("low"); err != nil {
		return bar, err
	}
	if bar.Close, err = number("close"); err != nil {
		return bar, err
	}
	if bar.Volume, err = number("volume"); err != nil {
		return bar, err
	}
	return bar, nil
}

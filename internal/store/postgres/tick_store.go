package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// TickStore implements domain.TickStore on the market_data table.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a TickStore backed by the given connection pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

const tickSelectCols = `time, symbol, price, bid_volume, ask_volume, net_volume,
	vwap_bid, vwap_ask, spread_pct`

func scanTickRows(rows pgx.Rows) ([]domain.IndicatorRecord, error) {
	var ticks []domain.IndicatorRecord
	for rows.Next() {
		var t domain.IndicatorRecord
		if err := rows.Scan(
			&t.Timestamp, &t.Symbol, &t.Price,
			&t.BidVolumeUSD, &t.AskVolumeUSD, &t.NetVolumeUSD,
			&t.VWAPBid, &t.VWAPAsk, &t.SpreadPct,
		); err != nil {
			return nil, err
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// Insert writes one indicator record. Inserts are append-only; there is no
// uniqueness constraint, so a retried write simply lands twice, which the
// pipeline accepts by not retrying (at-most-once durability).
func (s *TickStore) Insert(ctx context.Context, rec domain.IndicatorRecord) error {
	const q = `
		INSERT INTO market_data (time, symbol, price, bid_volume, ask_volume,
			net_volume, vwap_bid, vwap_ask, spread_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, q,
		rec.Timestamp, rec.Symbol, rec.Price,
		rec.BidVolumeUSD, rec.AskVolumeUSD, rec.NetVolumeUSD,
		rec.VWAPBid, rec.VWAPAsk, rec.SpreadPct,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert tick: %w", err)
	}
	return nil
}

// ReadRange returns records for symbol within the query bounds, newest first.
// An empty symbol matches all symbols.
func (s *TickStore) ReadRange(ctx context.Context, symbol string, q domain.TickRange) ([]domain.IndicatorRecord, error) {
	query := "SELECT " + tickSelectCols + " FROM market_data WHERE 1=1"
	var args []any

	if symbol != "" {
		args = append(args, symbol)
		query += " AND symbol = $" + strconv.Itoa(len(args))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		query += " AND time >= $" + strconv.Itoa(len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		query += " AND time <= $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY time DESC"

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: read tick range: %w", err)
	}
	defer rows.Close()

	ticks, err := scanTickRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan tick range: %w", err)
	}
	return ticks, nil
}

// ListBefore returns all records strictly older than the cutoff, oldest
// first, for archival.
func (s *TickStore) ListBefore(ctx context.Context, before time.Time) ([]domain.IndicatorRecord, error) {
	query := "SELECT " + tickSelectCols + " FROM market_data WHERE time < $1 ORDER BY time ASC"
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks before: %w", err)
	}
	defer rows.Close()

	ticks, err := scanTickRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ticks before: %w", err)
	}
	return ticks, nil
}

// DeleteBefore purges records strictly older than the cutoff and returns the
// number of rows removed.
func (s *TickStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM market_data WHERE time < $1", before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete ticks before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.TickStore = (*TickStore)(nil)

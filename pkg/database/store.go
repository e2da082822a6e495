package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/models"
)

const recordsTable = "processed_records"

// Store persists processed records in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

func NewStore(pool *pgxpool.Pool, log *logger.Logger) *Store {
	return &Store{pool: pool, logger: log}
}

// InitSchema creates the records table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id               TEXT PRIMARY KEY,
			data_type        TEXT NOT NULL,
			category         TEXT NOT NULL DEFAULT 'unknown',
			value            DOUBLE PRECISION NOT NULL DEFAULT 0,
			value_normalized DOUBLE PRECISION,
			value_band       TEXT,
			recorded_at      TIMESTAMPTZ NOT NULL,
			year             INT,
			month            INT,
			day              INT,
			weekday          INT,
			processed_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, pq.QuoteIdentifier(recordsTable))

	start := time.Now()
	_, err := s.pool.Exec(ctx, query)
	s.logger.LogDatabaseOperation("create_table", recordsTable, 0, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	indexQuery := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_type_recorded ON %s (data_type, recorded_at DESC)`,
		recordsTable, pq.QuoteIdentifier(recordsTable))
	if _, err := s.pool.Exec(ctx, indexQuery); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// StoreRecords upserts records in a single batch. Re-fetched records
// overwrite their previous version. Returns the number of rows written.
func (s *Store) StoreRecords(ctx context.Context, records []models.Record) (int, error) {
	if len(records) == 0 {
		s.logger.Warn().
			Str("action", "store_skipped").
			Msg("No records to store")
		return 0, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, data_type, category, value, value_normalized, value_band,
			recorded_at, year, month, day, weekday, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			data_type = EXCLUDED.data_type,
			category = EXCLUDED.category,
			value = EXCLUDED.value,
			value_normalized = EXCLUDED.value_normalized,
			value_band = EXCLUDED.value_band,
			recorded_at = EXCLUDED.recorded_at,
			year = EXCLUDED.year,
			month = EXCLUDED.month,
			day = EXCLUDED.day,
			weekday = EXCLUDED.weekday,
			processed_at = EXCLUDED.processed_at`, pq.QuoteIdentifier(recordsTable))

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query,
			r.ID, r.DataType, r.Category, r.Value, r.ValueNorm, r.ValueBand,
			r.RecordedAt, r.Year, r.Month, r.Day, r.Weekday, r.ProcessedAt)
	}

	start := time.Now()
	results := s.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	stored := 0
	for range records {
		if _, err := results.Exec(); err != nil {
			s.logger.LogDatabaseOperation("upsert", recordsTable, stored, time.Since(start), err)
			return stored, fmt.Errorf("failed to store records: %w", err)
		}
		stored++
	}

	s.logger.LogDatabaseOperation("upsert", recordsTable, stored, time.Since(start), nil)
	return stored, nil
}

// RecordFilter narrows GetRecords results. Zero fields are ignored.
type RecordFilter struct {
	DataType string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// GetRecords returns stored records matching the filter, newest first.
func (s *Store) GetRecords(ctx context.Context, filter RecordFilter) ([]models.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, data_type, category, value, value_normalized, value_band,
		       recorded_at, year, month, day, weekday, processed_at
		FROM %s
		WHERE ($1 = '' OR data_type = $1)
		  AND ($2::timestamptz IS NULL OR recorded_at >= $2)
		  AND ($3::timestamptz IS NULL OR recorded_at <= $3)
		ORDER BY recorded_at DESC
		LIMIT $4`, pq.QuoteIdentifier(recordsTable))

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	var since, until *time.Time
	if !filter.Since.IsZero() {
		since = &filter.Since
	}
	if !filter.Until.IsZero() {
		until = &filter.Until
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, filter.DataType, since, until, limit)
	if err != nil {
		s.logger.LogDatabaseOperation("select", recordsTable, 0, time.Since(start), err)
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var r models.Record
		err := rows.Scan(
			&r.ID, &r.DataType, &r.Category, &r.Value, &r.ValueNorm, &r.ValueBand,
			&r.RecordedAt, &r.Year, &r.Month, &r.Day, &r.Weekday, &r.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	s.logger.LogDatabaseOperation("select", recordsTable, len(records), time.Since(start), nil)
	return records, nil
}

// CountRecords returns the total number of stored records.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pq.QuoteIdentifier(recordsTable))
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// CountSince returns the number of records recorded after the cutoff.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE recorded_at >= $1`, pq.QuoteIdentifier(recordsTable))
	if err := s.pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent records: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes records recorded before the cutoff and
// returns the number of rows deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE recorded_at < $1`, pq.QuoteIdentifier(recordsTable))

	start := time.Now()
	tag, err := s.pool.Exec(ctx, query, cutoff)
	deleted := int64(0)
	if err == nil {
		deleted = tag.RowsAffected()
	}
	s.logger.LogDatabaseOperation("delete", recordsTable, int(deleted), time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old records: %w", err)
	}
	return deleted, nil
}

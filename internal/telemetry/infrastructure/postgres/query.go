package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shipboard-health/internal/telemetry/domain"
)

const defaultReadingsTable = "telemetry_readings"

// ReadingQuery is a Postgres implementation of telemetry.ReadingQuery.
type ReadingQuery struct {
	db    *sql.DB
	table string
}

// NewReadingQuery constructs a query with default table name.
func NewReadingQuery(db *sql.DB, opts ...QueryOption) *ReadingQuery {
	query := &ReadingQuery{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// QueryRange returns numeric readings within [start, end) ordered by time.
func (q *ReadingQuery) QueryRange(ctx context.Context, equipmentID string, start, end time.Time) ([]telemetry.MetricDataPoint, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("reading query: nil db")
	}
	if equipmentID == "" || start.IsZero() || end.IsZero() {
		return nil, errors.New("reading query: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT ts, metric_type, value_numeric
FROM %s
WHERE equipment_id = $1
	AND ts >= $2
	AND ts < $3
ORDER BY ts ASC`, q.table)

	rows, err := q.db.QueryContext(ctx, query, equipmentID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []telemetry.MetricDataPoint
	for rows.Next() {
		var ts time.Time
		var metricType string
		var value sql.NullFloat64
		if err := rows.Scan(&ts, &metricType, &value); err != nil {
			return nil, err
		}
		if !value.Valid {
			continue
		}
		points = append(points, telemetry.MetricDataPoint{
			Timestamp:  ts.UTC(),
			MetricType: telemetry.MetricType(metricType),
			Value:      value.Float64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// QueryOption configures the reading query.
type QueryOption func(*ReadingQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *ReadingQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}

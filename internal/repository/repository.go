// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

const dateLayout = "2006-01-02"

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceIncidents swaps the incident table for the given rows in a single
// transaction. Row order is kept in seq.
func (r *SQLRepository) ReplaceIncidents(ctx context.Context, incidents []domain.Incident) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM incidents`); err != nil {
		return fmt.Errorf("failed to clear incidents: %w", err)
	}

	query := `
		INSERT INTO incidents (
			seq, date, year, month, day, day_name,
			line, vehicle_id, system, category,
			supervisor_reviewed, service_reliability, caused_evacuation,
			delay_minutes, evacuation_percentage, description_length, loaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, inc := range incidents {
		var date sql.NullString
		if inc.Date != nil {
			date = sql.NullString{String: inc.Date.Format(dateLayout), Valid: true}
		}

		evacuated := 0
		if inc.CausedEvacuation {
			evacuated = 1
		}

		if _, err := stmt.ExecContext(ctx,
			int64(i+1), date, inc.Year, inc.Month, inc.Day, inc.DayName,
			inc.Line, inc.VehicleID, inc.System, inc.Category,
			inc.SupervisorReviewed, inc.ServiceReliability, evacuated,
			nullFloat(inc.DelayMinutes), nullFloat(inc.EvacuationPercentage),
			inc.DescriptionLength, now,
		); err != nil {
			return fmt.Errorf("failed to insert incident %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// ListIncidents returns every stored incident in source order.
func (r *SQLRepository) ListIncidents(ctx context.Context) ([]domain.IncidentRow, error) {
	query := `
		SELECT seq, date, year, month, day, day_name,
			   line, vehicle_id, system, category,
			   supervisor_reviewed, service_reliability, caused_evacuation,
			   delay_minutes, evacuation_percentage, description_length, loaded_at
		FROM incidents
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IncidentRow
	for rows.Next() {
		var row domain.IncidentRow
		var date sql.NullString
		var evacuated int
		var delay, evac sql.NullFloat64
		inc := &row.Incident

		if err := rows.Scan(
			&row.Seq, &date, &inc.Year, &inc.Month, &inc.Day, &inc.DayName,
			&inc.Line, &inc.VehicleID, &inc.System, &inc.Category,
			&inc.SupervisorReviewed, &inc.ServiceReliability, &evacuated,
			&delay, &evac, &inc.DescriptionLength, &row.LoadedAt,
		); err != nil {
			return nil, err
		}

		if date.Valid {
			if t, err := time.Parse(dateLayout, date.String); err == nil {
				inc.Date = &t
			}
		}
		inc.CausedEvacuation = evacuated == 1
		inc.DelayMinutes = floatPtr(delay)
		inc.EvacuationPercentage = floatPtr(evac)

		out = append(out, row)
	}

	return out, rows.Err()
}

// CountIncidents returns the number of stored incidents.
func (r *SQLRepository) CountIncidents(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n)
	return n, err
}

// SavePredictionLog stores a prediction and its input.
func (r *SQLRepository) SavePredictionLog(ctx context.Context, log *domain.PredictionLog) error {
	if log.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}

	request, err := json.Marshal(log.Request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	response, err := json.Marshal(log.Response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO prediction_logs (id, trace_id, label, request, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		log.ID, log.TraceID, log.Response.Label,
		string(request), string(response), createdAt.UTC(),
	)
	return err
}

// GetPredictionLog retrieves a prediction log by ID.
func (r *SQLRepository) GetPredictionLog(ctx context.Context, id string) (*domain.PredictionLog, error) {
	query := `
		SELECT id, trace_id, request, response, created_at
		FROM prediction_logs
		WHERE id = ?
	`

	log, err := scanPredictionLog(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return log, err
}

// ListPredictionLogs returns the most recent prediction logs, newest first.
func (r *SQLRepository) ListPredictionLogs(ctx context.Context, limit int) ([]*domain.PredictionLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, trace_id, request, response, created_at
		FROM prediction_logs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.PredictionLog
	for rows.Next() {
		log, err := scanPredictionLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// DeletePredictionLogsBefore removes logs created before cutoff and
// returns how many were deleted.
func (r *SQLRepository) DeletePredictionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM prediction_logs WHERE created_at < ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPredictionLog(s rowScanner) (*domain.PredictionLog, error) {
	var log domain.PredictionLog
	var traceID sql.NullString
	var request, response string

	if err := s.Scan(&log.ID, &traceID, &request, &response, &log.CreatedAt); err != nil {
		return nil, err
	}

	log.TraceID = traceID.String
	if err := json.Unmarshal([]byte(request), &log.Request); err != nil {
		return nil, fmt.Errorf("failed to parse request of %s: %w", log.ID, err)
	}
	if err := json.Unmarshal([]byte(response), &log.Response); err != nil {
		return nil, fmt.Errorf("failed to parse response of %s: %w", log.ID, err)
	}

	return &log, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

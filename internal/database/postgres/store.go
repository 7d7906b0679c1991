package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusres/internal/domain"
	"campusres/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Store is the postgres backend for reservations, catalog, users and reports.
type Store struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

func Connect(ctx context.Context, dsn string, logger *zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info().Msg("postgres connected")
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Close() {
	s.pool.Close()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) execAffected(ctx context.Context, query string, args ...interface{}) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const reservationColumns = `id, resource_kind, resource_id, requester_id, start_time, end_time, status, created_at, updated_at`

func scanReservation(row pgx.Row) (*models.Reservation, error) {
	var r models.Reservation
	var kind, status string
	var resourceID int64
	if err := row.Scan(&r.ID, &kind, &resourceID, &r.RequesterID, &r.StartTime, &r.EndTime, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	ref, err := models.NewResourceRef(models.ResourceKind(kind), resourceID)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", r.ID, err)
	}
	r.Resource = ref
	r.Status = models.ReservationStatus(status)
	return &r, nil
}

func collectReservations(rows pgx.Rows) ([]models.Reservation, error) {
	defer rows.Close()
	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) AppendReservation(ctx context.Context, r *models.Reservation) error {
	query := `
		INSERT INTO reservations (resource_kind, resource_id, requester_id, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.pool.QueryRow(ctx, query,
		string(r.Resource.Kind()), r.Resource.ID(), r.RequesterID,
		r.StartTime, r.EndTime, string(r.Status), r.CreatedAt, r.UpdatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("append reservation: %w", err)
	}
	return nil
}

// SeedReservation inserts r with its own id; existing ids are left alone.
func (s *Store) SeedReservation(ctx context.Context, r models.Reservation) error {
	query := `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		r.ID, string(r.Resource.Kind()), r.Resource.ID(), r.RequesterID,
		r.StartTime, r.EndTime, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("seed reservation %d: %w", r.ID, err)
	}
	// сдвигаем последовательность за вставленные id
	_, err = s.pool.Exec(ctx, `SELECT setval(pg_get_serial_sequence('reservations', 'id'), GREATEST((SELECT MAX(id) FROM reservations), 1))`)
	return err
}

func (s *Store) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	r, err := scanReservation(s.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (s *Store) UpdateReservationStatus(ctx context.Context, id int64, status models.ReservationStatus, at time.Time) error {
	return s.execAffected(ctx, `UPDATE reservations SET status = $1, updated_at = $2 WHERE id = $3`, string(status), at, id)
}

func (s *Store) OverlappingReservations(ctx context.Context, ref models.ResourceRef, status models.ReservationStatus, start, end time.Time) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE resource_kind = $1 AND resource_id = $2 AND status = $3
		  AND start_time < $4 AND end_time > $5
		ORDER BY start_time, id
	`
	rows, err := s.pool.Query(ctx, query, string(ref.Kind()), ref.ID(), string(status), end, start)
	if err != nil {
		return nil, fmt.Errorf("query overlapping reservations: %w", err)
	}
	return collectReservations(rows)
}

func (s *Store) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return collectReservations(rows)
}

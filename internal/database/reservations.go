package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campusres/internal/models"
)

const reservationColumns = `id, resource_kind, resource_id, requester_id, start_time, end_time, status, created_at, updated_at`

func (db *DB) AppendReservation(ctx context.Context, r *models.Reservation) error {
	query := `INSERT INTO reservations (
				resource_kind, resource_id, requester_id, start_time, end_time, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		string(r.Resource.Kind()),
		r.Resource.ID(),
		r.RequesterID,
		formatTime(r.StartTime),
		formatTime(r.EndTime),
		string(r.Status),
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	return nil
}

// SeedReservation inserts a reservation keeping its id. Existing ids are skipped.
func (db *DB) SeedReservation(ctx context.Context, r models.Reservation) error {
	query := `INSERT OR IGNORE INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		r.ID,
		string(r.Resource.Kind()),
		r.Resource.ID(),
		r.RequesterID,
		formatTime(r.StartTime),
		formatTime(r.EndTime),
		string(r.Status),
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to seed reservation %d: %w", r.ID, err)
	}
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (db *DB) UpdateReservationStatus(ctx context.Context, id int64, status models.ReservationStatus, at time.Time) error {
	result, err := db.ExecContext(ctx, `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	return requireAffected(result)
}

func (db *DB) OverlappingReservations(ctx context.Context, ref models.ResourceRef, status models.ReservationStatus, start, end time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE resource_kind = ? AND resource_id = ? AND status = ?
                AND start_time < ? AND end_time > ?
              ORDER BY start_time ASC, id ASC`
	rows, err := db.QueryContext(ctx, query,
		string(ref.Kind()), ref.ID(), string(status), formatTime(end), formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (db *DB) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var kind, status string
	var resourceID int64
	var start, end, createdAt, updatedAt string
	if err := row.Scan(&r.ID, &kind, &resourceID, &r.RequesterID, &start, &end, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	ref, err := models.NewResourceRef(models.ResourceKind(kind), resourceID)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", r.ID, err)
	}
	r.Resource = ref
	r.Status = models.ReservationStatus(status)

	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&r.StartTime, start}, {&r.EndTime, end}, {&r.CreatedAt, createdAt}, {&r.UpdatedAt, updatedAt}} {
		t, err := parseTime(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = t
	}
	return &r, nil
}

func scanReservations(rows *sql.Rows) ([]models.Reservation, error) {
	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

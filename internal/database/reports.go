package database

import (
	"context"
	"database/sql"
	"fmt"

	"campusres/internal/models"
)

const reportColumns = `id, title, description, requester_id, status, resource_kind, resource_id, created_at, updated_at`

func scanReport(row rowScanner) (*models.Report, error) {
	var r models.Report
	var status, kind, createdAt, updatedAt string
	var resourceID int64
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &r.RequesterID, &status, &kind, &resourceID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.Status = models.ReportStatus(status)
	if kind != "" {
		ref, err := models.NewResourceRef(models.ResourceKind(kind), resourceID)
		if err != nil {
			return nil, fmt.Errorf("report %d: %w", r.ID, err)
		}
		r.Resource = ref
	}
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func reportArgs(r *models.Report) []interface{} {
	return []interface{}{
		r.Title,
		r.Description,
		r.RequesterID,
		string(r.Status),
		string(r.Resource.Kind()),
		r.Resource.ID(),
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	}
}

func (db *DB) CreateReport(ctx context.Context, r *models.Report) error {
	query := `INSERT INTO reports (title, description, requester_id, status, resource_kind, resource_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	args := reportArgs(r)
	if r.ID != 0 {
		query = `INSERT INTO reports (` + reportColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		args = append([]interface{}{r.ID}, args...)
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if r.ID == 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		r.ID = id
	}
	return nil
}

func (db *DB) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	r, err := scanReport(db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (db *DB) ListReports(ctx context.Context) ([]models.Report, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (db *DB) UpdateReport(ctx context.Context, r *models.Report) error {
	query := `UPDATE reports SET title = ?, description = ?, requester_id = ?, status = ?,
                     resource_kind = ?, resource_id = ?, created_at = ?, updated_at = ?
              WHERE id = ?`
	result, err := db.ExecContext(ctx, query, append(reportArgs(r), r.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	return requireAffected(result)
}

func (db *DB) AddReportMessage(ctx context.Context, m *models.ReportMessage) error {
	if _, err := db.GetReport(ctx, m.ReportID); err != nil {
		return err
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO report_messages (report_id, author_id, text, sent_at) VALUES (?, ?, ?, ?)`,
		m.ReportID, m.AuthorID, m.Text, formatTime(m.SentAt))
	if err != nil {
		return fmt.Errorf("failed to add report message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	m.ID = id
	return nil
}

func (db *DB) ListReportMessages(ctx context.Context, reportID int64) ([]models.ReportMessage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, report_id, author_id, text, sent_at FROM report_messages WHERE report_id = ? ORDER BY sent_at, id`,
		reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list report messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]models.ReportMessage, error) {
	var out []models.ReportMessage
	for rows.Next() {
		var m models.ReportMessage
		var sentAt string
		if err := rows.Scan(&m.ID, &m.ReportID, &m.AuthorID, &m.Text, &sentAt); err != nil {
			return nil, err
		}
		t, err := parseTime(sentAt)
		if err != nil {
			return nil, err
		}
		m.SentAt = t
		out = append(out, m)
	}
	return out, rows.Err()
}

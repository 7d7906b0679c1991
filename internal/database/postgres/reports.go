package postgres

import (
	"context"
	"fmt"

	"campusres/internal/models"

	"github.com/jackc/pgx/v5"
)

const reportColumns = `id, title, description, requester_id, status, resource_kind, resource_id, created_at, updated_at`

func scanReport(row pgx.Row) (*models.Report, error) {
	var r models.Report
	var status, kind string
	var resourceID int64
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &r.RequesterID, &status, &kind, &resourceID, &r.CreatedAt, &r.UpdatedAt); err != nil {
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
	return &r, nil
}

func (s *Store) CreateReport(ctx context.Context, r *models.Report) error {
	args := []interface{}{r.Title, r.Description, r.RequesterID, string(r.Status),
		string(r.Resource.Kind()), r.Resource.ID(), r.CreatedAt, r.UpdatedAt}
	err := s.save(ctx, "reports", &r.ID,
		`INSERT INTO reports (title, description, requester_id, status, resource_kind, resource_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		`INSERT INTO reports (`+reportColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		args...)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	r, err := scanReport(s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (s *Store) ListReports(ctx context.Context) ([]models.Report, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateReport(ctx context.Context, r *models.Report) error {
	return s.execAffected(ctx, `
		UPDATE reports
		SET title = $1, description = $2, status = $3, resource_kind = $4, resource_id = $5, updated_at = $6
		WHERE id = $7
	`, r.Title, r.Description, string(r.Status), string(r.Resource.Kind()), r.Resource.ID(), r.UpdatedAt, r.ID)
}

func (s *Store) AddReportMessage(ctx context.Context, m *models.ReportMessage) error {
	if _, err := s.GetReport(ctx, m.ReportID); err != nil {
		return err
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO report_messages (report_id, author_id, text, sent_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.ReportID, m.AuthorID, m.Text, m.SentAt).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("add report message: %w", err)
	}
	return nil
}

func (s *Store) ListReportMessages(ctx context.Context, reportID int64) ([]models.ReportMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, report_id, author_id, text, sent_at
		FROM report_messages
		WHERE report_id = $1
		ORDER BY sent_at, id
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list report messages: %w", err)
	}
	defer rows.Close()

	var out []models.ReportMessage
	for rows.Next() {
		var m models.ReportMessage
		if err := rows.Scan(&m.ID, &m.ReportID, &m.AuthorID, &m.Text, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan report message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

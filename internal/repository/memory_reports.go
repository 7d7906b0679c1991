package repository

import (
	"context"
	"sort"
	"sync"

	"campusres/internal/domain"
	"campusres/internal/models"
)

type MemoryReportRepository struct {
	mu            sync.RWMutex
	reports       map[int64]models.Report
	messages      []models.ReportMessage
	nextReportID  int64
	nextMessageID int64
}

func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{
		reports:       make(map[int64]models.Report),
		nextReportID:  1,
		nextMessageID: 1,
	}
}

func (r *MemoryReportRepository) CreateReport(ctx context.Context, rep *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep.ID == 0 {
		rep.ID = r.nextReportID
	}
	if rep.ID >= r.nextReportID {
		r.nextReportID = rep.ID + 1
	}
	r.reports[rep.ID] = *rep
	return nil
}

func (r *MemoryReportRepository) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.reports[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rep, nil
}

func (r *MemoryReportRepository) ListReports(ctx context.Context) ([]models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Report, 0, len(r.reports))
	for _, rep := range r.reports {
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryReportRepository) UpdateReport(ctx context.Context, rep *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[rep.ID]; !ok {
		return domain.ErrNotFound
	}
	r.reports[rep.ID] = *rep
	return nil
}

func (r *MemoryReportRepository) AddReportMessage(ctx context.Context, m *models.ReportMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[m.ReportID]; !ok {
		return domain.ErrNotFound
	}
	if m.ID == 0 {
		m.ID = r.nextMessageID
	}
	if m.ID >= r.nextMessageID {
		r.nextMessageID = m.ID + 1
	}
	r.messages = append(r.messages, *m)
	return nil
}

func (r *MemoryReportRepository) ListReportMessages(ctx context.Context, reportID int64) ([]models.ReportMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ReportMessage
	for _, m := range r.messages {
		if m.ReportID == reportID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

package service

import (
	"context"
	"strings"
	"time"

	"campusres/internal/ledger"
	"campusres/internal/models"

	"github.com/rs/zerolog"
)

// DailyUsage is the number of approved reservations of the key space that
// start on Date.
type DailyUsage struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Dashboard carries the counters and, when the catalog has the key space, its
// weekly usage. KeySpaceFound false means KeySpace and Usage are empty.
type Dashboard struct {
	Metrics       models.DashboardMetrics `json:"metrics"`
	KeySpaceFound bool                    `json:"key_space_found"`
	KeySpace      string                  `json:"key_space,omitempty"`
	Usage         []DailyUsage            `json:"usage"`
}

type DashboardService struct {
	ledger  *ledger.Ledger
	catalog *CatalogService
	reports *ReportService
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewDashboardService(l *ledger.Ledger, catalog *CatalogService, reports *ReportService, logger *zerolog.Logger) *DashboardService {
	return &DashboardService{ledger: l, catalog: catalog, reports: reports, now: time.Now, logger: logger}
}

func (s *DashboardService) Metrics(ctx context.Context) (models.DashboardMetrics, error) {
	var m models.DashboardMetrics
	all, err := s.ledger.List(ctx, nil)
	if err != nil {
		return m, err
	}

	dayStart := startOfDay(s.now())
	dayEnd := dayStart.AddDate(0, 0, 1)
	for _, r := range all {
		switch r.Status {
		case models.StatusPending:
			m.PendingReservations++
		case models.StatusApproved:
			if !r.Overlaps(dayStart, dayEnd) {
				continue
			}
			if r.Resource.IsSpace() {
				m.SpacesOccupied++
			} else {
				m.EquipmentInUse++
			}
		}
	}

	reports, err := s.reports.List(ctx)
	if err != nil {
		return m, err
	}
	for _, r := range reports {
		if r.Status == models.ReportOpen {
			m.OpenReports++
		}
	}
	return m, nil
}

// Dashboard adds the last seven days of key-space usage, oldest day first.
func (s *DashboardService) Dashboard(ctx context.Context) (*Dashboard, error) {
	m, err := s.Metrics(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Metrics: m, Usage: []DailyUsage{}}

	space, err := s.keySpace(ctx)
	if err != nil {
		return nil, err
	}
	if space == nil {
		s.logger.Debug().Str("key_space", models.DashboardKeySpace).Msg("key space is not in the catalog")
		return d, nil
	}
	d.KeySpaceFound = true
	d.KeySpace = space.Name

	today := startOfDay(s.now())
	first := today.AddDate(0, 0, -6)
	d.Usage = make([]DailyUsage, 7)
	for i := range d.Usage {
		d.Usage[i].Date = first.AddDate(0, 0, i)
	}

	ref := models.SpaceRef(space.ID)
	recent, err := s.ledger.List(ctx, func(r models.Reservation) bool {
		return r.Resource == ref && r.Status == models.StatusApproved
	})
	if err != nil {
		return nil, err
	}
	for _, r := range recent {
		day := startOfDay(r.StartTime.In(today.Location()))
		for i := range d.Usage {
			if d.Usage[i].Date.Equal(day) {
				d.Usage[i].Count++
				break
			}
		}
	}
	return d, nil
}

func (s *DashboardService) keySpace(ctx context.Context) (*models.Space, error) {
	spaces, err := s.catalog.Spaces(ctx)
	if err != nil {
		return nil, err
	}
	for i := range spaces {
		if strings.EqualFold(spaces[i].Name, models.DashboardKeySpace) {
			return &spaces[i], nil
		}
	}
	return nil, nil
}

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"campusres/internal/advisory"
	"campusres/internal/domain"
	"campusres/internal/models"
	"campusres/internal/worker"
)

// submitAdvisory queues job and answers 202 while it is loading.
func (s *Server) submitAdvisory(w http.ResponseWriter, r *http.Request, job worker.AdvisoryJob) {
	if s.svc.Advisory == nil || s.svc.Advisor == nil || !s.svc.Advisor.Enabled() {
		writeJSON(w, http.StatusOK, &models.AdvisoryOutcome{
			Key:       job.Key,
			State:     models.AdvisoryUnavailable,
			Error:     "assistant is not configured",
			UpdatedAt: time.Now(),
		})
		return
	}

	id, _ := IdentityFrom(r.Context())
	job.UserID = id.UserID
	out, err := s.svc.Advisory.Submit(r.Context(), job)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOutcome(w, out)
}

func writeOutcome(w http.ResponseWriter, out *models.AdvisoryOutcome) {
	status := http.StatusOK
	if out.State == models.AdvisoryLoading {
		status = http.StatusAccepted
	}
	writeJSON(w, status, out)
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	query := strings.TrimSpace(body.Query)
	if query == "" {
		s.fail(w, r, &domain.FieldError{Field: "query", Reason: "is required"})
		return
	}

	equipment, err := s.svc.Catalog.Equipment(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// каталог входит в ключ, иначе кэш отдаст рекомендацию удаленного оборудования
	s.submitAdvisory(w, r, worker.AdvisoryJob{
		Key: advisory.Key(advisory.OpRecommendation, strings.ToLower(query), equipment),
		Op:  advisory.OpRecommendation,
		Run: func(ctx context.Context) (*models.AdvisoryOutcome, error) {
			rec, err := s.svc.Advisor.EquipmentRecommendation(ctx, query, equipment)
			if err != nil {
				return nil, err
			}
			return &models.AdvisoryOutcome{Text: rec.Justification, Recommend: rec}, nil
		},
	})
}

func (s *Server) handleSpaceSummary(w http.ResponseWriter, r *http.Request) {
	spaceID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()
	space, err := s.svc.Catalog.GetSpace(ctx, spaceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	week, err := s.svc.Reservations.WeekAvailability(ctx, models.SpaceRef(spaceID), today())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	typeName := s.svc.Catalog.SpaceTypeName(ctx, space.SpaceTypeID)

	counts := make([]int, len(week))
	for i, d := range week {
		counts[i] = len(d.Reservations)
	}
	s.submitAdvisory(w, r, worker.AdvisoryJob{
		Key: advisory.Key(advisory.OpSpace, space, typeName, week[0].Date.Format(models.DateLayout), counts),
		Op:  advisory.OpSpace,
		Run: func(ctx context.Context) (*models.AdvisoryOutcome, error) {
			text, err := s.svc.Advisor.SpaceSummary(ctx, *space, typeName, week)
			if err != nil {
				return nil, err
			}
			return &models.AdvisoryOutcome{Text: text}, nil
		},
	})
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Dashboard.Metrics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.submitAdvisory(w, r, worker.AdvisoryJob{
		Key: advisory.Key(advisory.OpDashboard, m),
		Op:  advisory.OpDashboard,
		Run: func(ctx context.Context) (*models.AdvisoryOutcome, error) {
			text, err := s.svc.Advisor.DashboardSummary(ctx, m)
			if err != nil {
				return nil, err
			}
			return &models.AdvisoryOutcome{Text: text}, nil
		},
	})
}

func (s *Server) handleUserAnalysis(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.Users(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	roles := make([]models.Role, len(users))
	for i, u := range users {
		roles[i] = u.Role
	}
	s.submitAdvisory(w, r, worker.AdvisoryJob{
		Key: advisory.Key(advisory.OpUsers, roles),
		Op:  advisory.OpUsers,
		Run: func(ctx context.Context) (*models.AdvisoryOutcome, error) {
			text, err := s.svc.Advisor.UserAnalysis(ctx, users)
			if err != nil {
				return nil, err
			}
			return &models.AdvisoryOutcome{Text: text}, nil
		},
	})
}

func (s *Server) handleAdvisoryOutcome(w http.ResponseWriter, r *http.Request) {
	if s.svc.Advisory == nil {
		s.fail(w, r, domain.ErrNotFound)
		return
	}
	out, err := s.svc.Advisory.Outcome(r.Context(), r.PathValue("key"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOutcome(w, out)
}

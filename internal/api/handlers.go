package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"campusres/internal/domain"
	"campusres/internal/ledger"
	"campusres/internal/models"
)

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return &domain.FieldError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.FieldError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}

// parseTimeParam accepts RFC3339 or a bare date; empty returns def.
func parseTimeParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(models.DateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, &domain.FieldError{Field: name, Reason: "expected RFC3339 or YYYY-MM-DD"}
	}
	return t, nil
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	u, err := s.svc.Users.Authenticate(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
		"user":       u,
	})
}

func (s *Server) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Catalog.Equipment(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipment": items})
}

func (s *Server) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.svc.Catalog.Spaces(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spaces": spaces})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Catalog.Categories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleListSpaceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.svc.Catalog.SpaceTypes(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"space_types": types})
}

// handleSaveCatalog creates (POST) or updates (PUT .../{id}) one catalog record.
func (s *Server) handleSaveCatalog(w http.ResponseWriter, r *http.Request) {
	var id int64
	if r.Method == http.MethodPut {
		var err error
		if id, err = pathID(r, "id"); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	ctx := r.Context()
	var (
		saved any
		err   error
	)
	switch r.PathValue("kind") {
	case "equipment":
		var e models.Equipment
		if err = decodeJSON(r, &e); err == nil {
			e.ID = id
			err = s.svc.Catalog.SaveEquipment(ctx, &e)
			saved = e
		}
	case "spaces":
		var sp models.Space
		if err = decodeJSON(r, &sp); err == nil {
			sp.ID = id
			err = s.svc.Catalog.SaveSpace(ctx, &sp)
			saved = sp
		}
	case "categories":
		var c models.Category
		if err = decodeJSON(r, &c); err == nil {
			c.ID = id
			err = s.svc.Catalog.SaveCategory(ctx, &c)
			saved = c
		}
	case "space-types":
		var st models.SpaceType
		if err = decodeJSON(r, &st); err == nil {
			st.ID = id
			err = s.svc.Catalog.SaveSpaceType(ctx, &st)
			saved = st
		}
	default:
		writeError(w, http.StatusNotFound, "unknown catalog kind")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

func (s *Server) handleDeleteCatalog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	switch r.PathValue("kind") {
	case "equipment":
		err = s.svc.Catalog.DeleteEquipment(ctx, id)
	case "spaces":
		err = s.svc.Catalog.DeleteSpace(ctx, id)
	case "categories":
		err = s.svc.Catalog.DeleteCategory(ctx, id)
	case "space-types":
		err = s.svc.Catalog.DeleteSpaceType(ctx, id)
	default:
		writeError(w, http.StatusNotFound, "unknown catalog kind")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitReservation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Resource  models.ResourceRef `json:"resource"`
		StartTime time.Time          `json:"start_time"`
		EndTime   time.Time          `json:"end_time"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	res, err := s.svc.Reservations.Submit(r.Context(), ledger.Candidate{
		Resource:    body.Resource,
		RequesterID: id.UserID,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	list, err := s.svc.Reservations.ForRequester(r.Context(), id.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	resID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Reservations.Get(r.Context(), resID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if id, _ := IdentityFrom(r.Context()); !id.IsAdmin() && res.RequesterID != id.UserID {
		s.fail(w, r, domain.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSpaceCalendar(w http.ResponseWriter, r *http.Request) {
	spaceID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	from, err := parseTimeParam(r, "from", today())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := parseTimeParam(r, "to", from.AddDate(0, 0, 7))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	list, err := s.svc.Reservations.SpaceCalendar(r.Context(), spaceID, from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *Server) handleWeekAvailability(w http.ResponseWriter, r *http.Request) {
	resID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ref, err := models.NewResourceRef(models.ResourceKind(r.PathValue("kind")), resID)
	if err != nil {
		s.fail(w, r, &domain.FieldError{Field: "kind", Reason: "must be equipment or space"})
		return
	}
	exists, err := s.svc.Catalog.Exists(r.Context(), ref)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !exists {
		s.fail(w, r, domain.ErrNotFound)
		return
	}
	from, err := parseTimeParam(r, "from", today())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	days, err := s.svc.Reservations.WeekAvailability(r.Context(), ref, from)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

func (s *Server) handlePendingReservations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Reservations.Pending(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, models.StatusApproved)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, models.StatusRejected)
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request, status models.ReservationStatus) {
	resID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	actor, _ := IdentityFrom(r.Context())

	var res *models.Reservation
	if status == models.StatusApproved {
		res, err = s.svc.Reservations.Approve(r.Context(), resID, actor.UserID)
	} else {
		res, err = s.svc.Reservations.Reject(r.Context(), resID, actor.UserID)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from", today())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := parseTimeParam(r, "to", from.AddDate(0, 0, 7))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !to.After(from) {
		s.fail(w, r, &domain.FieldError{Field: "to", Reason: "must be after from"})
		return
	}

	rows, err := s.svc.Reservations.ExportRows(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	path, err := s.svc.Exporter.WriteReservations(rows, from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string             `json:"title"`
		Description string             `json:"description"`
		Resource    models.ResourceRef `json:"resource"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	rep := &models.Report{
		Title:       body.Title,
		Description: body.Description,
		Resource:    body.Resource,
		RequesterID: id.UserID,
	}
	if err := s.svc.Reports.Create(r.Context(), rep); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// handleListReports shows admins every report and requesters their own.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var (
		list []models.Report
		err  error
	)
	if id.IsAdmin() {
		list, err = s.svc.Reports.List(r.Context())
	} else {
		list, err = s.svc.Reports.ListForRequester(r.Context(), id.UserID)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": list})
}

// reportFor loads the report in the path and checks the caller may see it.
func (s *Server) reportFor(r *http.Request) (*models.Report, error) {
	repID, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	rep, err := s.svc.Reports.Get(r.Context(), repID)
	if err != nil {
		return nil, err
	}
	if id, _ := IdentityFrom(r.Context()); !id.IsAdmin() && rep.RequesterID != id.UserID {
		return nil, domain.ErrForbidden
	}
	return rep, nil
}

func (s *Server) handleReportMessages(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reportFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	msgs, err := s.svc.Reports.Messages(r.Context(), rep.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": rep, "messages": msgs})
}

func (s *Server) handleAddReportMessage(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reportFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	msg, err := s.svc.Reports.AddMessage(r.Context(), rep.ID, id.UserID, body.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	repID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Status models.ReportStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	rep, err := s.svc.Reports.UpdateStatus(r.Context(), repID, body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Dashboard.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.Users(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName       string      `json:"full_name"`
		Email          string      `json:"email"`
		Password       string      `json:"password"`
		Role           models.Role `json:"role"`
		TelegramChatID int64       `json:"telegram_chat_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	u := &models.User{
		FullName:       body.FullName,
		Email:          body.Email,
		Role:           body.Role,
		TelegramChatID: body.TelegramChatID,
	}
	if err := s.svc.Users.AddUser(r.Context(), u, body.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

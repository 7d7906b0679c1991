// Package advisory wraps the external generative model behind narrow,
// validated operations. Model output is untrusted: it is trimmed, capped and
// shape-checked before anything else sees it.
package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"campusres/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	OpDashboard      = "dashboard_summary"
	OpUsers          = "user_analysis"
	OpRecommendation = "equipment_recommendation"
	OpSpace          = "space_summary"
)

var recommendationSchema = &Schema{
	Properties: map[string]Property{
		"recommendedEquipmentId": {Type: "NUMBER", Description: "ID of the recommended equipment item."},
		"justification":          {Type: "STRING", Description: "One sentence explaining the choice."},
	},
	Required: []string{"recommendedEquipmentId", "justification"},
}

type Advisor struct {
	gen    Generator
	logger *zerolog.Logger
}

// NewAdvisor accepts a nil generator; every call then fails with ErrUnavailable.
func NewAdvisor(gen Generator, logger *zerolog.Logger) *Advisor {
	return &Advisor{gen: gen, logger: logger}
}

func (a *Advisor) Enabled() bool { return a.gen != nil }

func (a *Advisor) DashboardSummary(ctx context.Context, m models.DashboardMetrics) (string, error) {
	prompt := fmt.Sprintf(`You are an assistant for the resource administrator of a technical campus.
Keep the tone professional, concise and slightly positive.
Summarize today's metrics in one short paragraph (2-3 sentences). Do not use markdown or any formatting.

Metrics:
- Pending reservation requests: %d
- Spaces currently occupied: %d
- Equipment currently in use: %d
- Open incident reports: %d`,
		m.PendingReservations, m.SpacesOccupied, m.EquipmentInUse, m.OpenReports)
	return a.text(ctx, OpDashboard, prompt)
}

func (a *Advisor) UserAnalysis(ctx context.Context, users []models.User) (string, error) {
	var admins, requesters int
	for _, u := range users {
		switch u.Role {
		case models.RoleAdmin:
			admins++
		case models.RoleRequester:
			requesters++
		}
	}
	prompt := fmt.Sprintf(`You are an assistant for a campus systems administrator.
Summarize the staff composition below in 1-2 informative sentences. Do not use markdown or any formatting.

Data:
- Total users: %d
- Administrators: %d
- Requesters: %d`, len(users), admins, requesters)
	return a.text(ctx, OpUsers, prompt)
}

type offeredEquipment struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EquipmentRecommendation asks the model to pick one available item for the
// query. The answer must name an item that was offered.
func (a *Advisor) EquipmentRecommendation(ctx context.Context, query string, equipment []models.Equipment) (*models.EquipmentRecommendation, error) {
	offered := make([]offeredEquipment, 0, len(equipment))
	ids := make(map[int64]bool, len(equipment))
	for _, e := range equipment {
		if e.Status != models.EquipmentAvailable {
			continue
		}
		offered = append(offered, offeredEquipment{ID: e.ID, Name: e.Name, Description: e.Description})
		ids[e.ID] = true
	}
	if len(offered) == 0 {
		return nil, unavailable(OpRecommendation, errors.New("no available equipment to recommend"))
	}

	list, err := json.MarshalIndent(offered, "", "  ")
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(`You are an IT assistant on a technical campus. A lecturer needs an equipment recommendation.
Their request is: %q

Pick the single BEST item for the request from the list below and explain in one sentence why.

Available equipment:
%s`, strings.TrimSpace(query), list)

	raw, err := a.generate(ctx, OpRecommendation, prompt, recommendationSchema)
	if err != nil {
		return nil, err
	}

	var answer struct {
		EquipmentID   *float64 `json:"recommendedEquipmentId"`
		Justification string   `json:"justification"`
	}
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return nil, unavailable(OpRecommendation, fmt.Errorf("malformed answer: %w", err))
	}
	if answer.EquipmentID == nil {
		return nil, unavailable(OpRecommendation, errors.New("answer has no equipment id"))
	}
	id := int64(*answer.EquipmentID)
	if float64(id) != *answer.EquipmentID || !ids[id] {
		return nil, unavailable(OpRecommendation, fmt.Errorf("answer names equipment %v that was not offered", *answer.EquipmentID))
	}
	justification, ok := clean(answer.Justification)
	if !ok {
		return nil, unavailable(OpRecommendation, errors.New("empty justification"))
	}
	return &models.EquipmentRecommendation{EquipmentID: id, Justification: justification}, nil
}

func (a *Advisor) SpaceSummary(ctx context.Context, space models.Space, spaceType string, week []models.DayAvailability) (string, error) {
	var days strings.Builder
	for _, d := range week {
		if n := len(d.Reservations); n > 0 {
			fmt.Fprintf(&days, "%s: %d reservation(s)\n", d.Date.Format("Monday 02"), n)
		} else {
			fmt.Fprintf(&days, "%s: fully available\n", d.Date.Format("Monday 02"))
		}
	}
	if spaceType == "" {
		spaceType = "space"
	}
	prompt := fmt.Sprintf(`You are an assistant for a lecturer on a technical campus.
Summarize the space below in a short friendly paragraph (2-3 sentences), mentioning its key features
and its general availability for the coming week. Do not use markdown.

Space:
- Name: %s
- Type: %s
- Capacity: %d people
- Description: %s

Week availability:
%s`, space.Name, spaceType, space.Capacity, space.Description, days.String())
	return a.text(ctx, OpSpace, prompt)
}

func (a *Advisor) text(ctx context.Context, op, prompt string) (string, error) {
	raw, err := a.generate(ctx, op, prompt, nil)
	if err != nil {
		return "", err
	}
	out, ok := clean(raw)
	if !ok {
		return "", unavailable(op, errors.New("empty answer"))
	}
	return out, nil
}

func (a *Advisor) generate(ctx context.Context, op, prompt string, schema *Schema) (string, error) {
	if a.gen == nil {
		return "", unavailable(op, errors.New("generator not configured"))
	}
	raw, err := a.gen.Generate(ctx, prompt, schema)
	if err != nil {
		a.logger.Warn().Err(err).Str("op", op).Msg("generation failed")
		return "", unavailable(op, err)
	}
	return raw, nil
}

// clean trims model output and caps it at AdvisoryMaxTextLength runes.
func clean(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if utf8.RuneCountInString(s) > models.AdvisoryMaxTextLength {
		s = string([]rune(s)[:models.AdvisoryMaxTextLength])
	}
	return s, true
}

// Key fingerprints a request so identical asks share one cached outcome.
func Key(op string, parts ...interface{}) string {
	data, err := json.Marshal(parts)
	if err != nil {
		data = []byte(fmt.Sprint(parts...))
	}
	return op + ":" + uuid.NewSHA1(uuid.NameSpaceOID, data).String()
}

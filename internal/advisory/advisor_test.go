package advisory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"campusres/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	answer     string
	err        error
	lastPrompt string
	lastSchema *Schema
	calls      int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, schema *Schema) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastSchema = schema
	return f.answer, f.err
}

func newAdvisor(gen Generator) *Advisor {
	logger := zerolog.Nop()
	return NewAdvisor(gen, &logger)
}

var catalog = []models.Equipment{
	{ID: 1, Name: "Dell Latitude", Description: "Laptop", Status: models.EquipmentAvailable},
	{ID: 2, Name: "Epson Projector", Description: "Projector", Status: models.EquipmentReserved},
	{ID: 3, Name: "Canon EOS", Description: "Camera", Status: models.EquipmentAvailable},
}

func TestDashboardSummary(t *testing.T) {
	gen := &fakeGenerator{answer: "  All calm today.\n"}
	a := newAdvisor(gen)

	got, err := a.DashboardSummary(context.Background(), models.DashboardMetrics{PendingReservations: 3, OpenReports: 1})
	require.NoError(t, err)
	assert.Equal(t, "All calm today.", got)
	assert.Contains(t, gen.lastPrompt, "Pending reservation requests: 3")
	assert.Nil(t, gen.lastSchema)
}

func TestUserAnalysisCountsRoles(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	_, err := newAdvisor(gen).UserAnalysis(context.Background(), []models.User{
		{Role: models.RoleAdmin}, {Role: models.RoleRequester}, {Role: models.RoleRequester},
	})
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt, "Total users: 3")
	assert.Contains(t, gen.lastPrompt, "Administrators: 1")
	assert.Contains(t, gen.lastPrompt, "Requesters: 2")
}

func TestTextOutputIsCapped(t *testing.T) {
	gen := &fakeGenerator{answer: strings.Repeat("ж", models.AdvisoryMaxTextLength+50)}
	got, err := newAdvisor(gen).DashboardSummary(context.Background(), models.DashboardMetrics{})
	require.NoError(t, err)
	assert.Equal(t, models.AdvisoryMaxTextLength, len([]rune(got)))
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("NotConfigured", func(t *testing.T) {
		a := newAdvisor(nil)
		assert.False(t, a.Enabled())
		_, err := a.DashboardSummary(ctx, models.DashboardMetrics{})
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("GeneratorError", func(t *testing.T) {
		cause := errors.New("quota exceeded")
		_, err := newAdvisor(&fakeGenerator{err: cause}).UserAnalysis(ctx, nil)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.ErrorIs(t, err, cause)

		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, OpUsers, svcErr.Op)
	})

	t.Run("BlankAnswer", func(t *testing.T) {
		_, err := newAdvisor(&fakeGenerator{answer: "   "}).DashboardSummary(ctx, models.DashboardMetrics{})
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestEquipmentRecommendation(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid", func(t *testing.T) {
		gen := &fakeGenerator{answer: `{"recommendedEquipmentId": 3, "justification": " Best camera for the class. "}`}
		rec, err := newAdvisor(gen).EquipmentRecommendation(ctx, "need to film a lab", catalog)
		require.NoError(t, err)
		assert.Equal(t, int64(3), rec.EquipmentID)
		assert.Equal(t, "Best camera for the class.", rec.Justification)

		require.NotNil(t, gen.lastSchema)
		assert.ElementsMatch(t, []string{"recommendedEquipmentId", "justification"}, gen.lastSchema.Required)
		assert.NotContains(t, gen.lastPrompt, "Epson Projector")
	})

	tests := []struct {
		name   string
		answer string
	}{
		{"NotJSON", "I recommend the camera"},
		{"MissingID", `{"justification": "x"}`},
		{"NotOffered", `{"recommendedEquipmentId": 2, "justification": "projector"}`},
		{"UnknownID", `{"recommendedEquipmentId": 42, "justification": "x"}`},
		{"FractionalID", `{"recommendedEquipmentId": 1.5, "justification": "x"}`},
		{"EmptyJustification", `{"recommendedEquipmentId": 1, "justification": "  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAdvisor(&fakeGenerator{answer: tt.answer}).EquipmentRecommendation(ctx, "q", catalog)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}

	t.Run("NothingAvailable", func(t *testing.T) {
		gen := &fakeGenerator{}
		_, err := newAdvisor(gen).EquipmentRecommendation(ctx, "q", catalog[1:2])
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Zero(t, gen.calls)
	})
}

func TestSpaceSummary(t *testing.T) {
	gen := &fakeGenerator{answer: "Large hall, mostly free."}
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	week := []models.DayAvailability{
		{Date: day, Reservations: []models.Reservation{{ID: 1}}},
		{Date: day.AddDate(0, 0, 1)},
	}

	got, err := newAdvisor(gen).SpaceSummary(context.Background(), models.Space{Name: "Aula Magna", Capacity: 150}, "Auditorium", week)
	require.NoError(t, err)
	assert.Equal(t, "Large hall, mostly free.", got)
	assert.Contains(t, gen.lastPrompt, "Monday 06: 1 reservation(s)")
	assert.Contains(t, gen.lastPrompt, "Tuesday 07: fully available")
	assert.Contains(t, gen.lastPrompt, "Capacity: 150 people")
}

func TestKey(t *testing.T) {
	a := Key(OpRecommendation, "projector", int64(7))
	b := Key(OpRecommendation, "projector", int64(7))
	c := Key(OpRecommendation, "camera", int64(7))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, OpRecommendation+":"))
}

package database

import (
	"context"
	"testing"
	"time"

	"campusres/internal/domain"
	"campusres/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReports(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	rep := &models.Report{
		Title: "Projector flickers", Description: "B-101", RequesterID: 2,
		Status: models.ReportOpen, Resource: models.EquipmentRef(2), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateReport(ctx, rep))
	require.NotZero(t, rep.ID)

	noResource := &models.Report{Title: "Wifi", RequesterID: 3, Status: models.ReportOpen, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateReport(ctx, noResource))

	t.Run("Get", func(t *testing.T) {
		got, err := db.GetReport(ctx, rep.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EquipmentRef(2), got.Resource)

		got, err = db.GetReport(ctx, noResource.ID)
		require.NoError(t, err)
		assert.False(t, got.Resource.Valid())
	})

	t.Run("Messages", func(t *testing.T) {
		require.NoError(t, db.AddReportMessage(ctx, &models.ReportMessage{ReportID: rep.ID, AuthorID: 1, Text: "later", SentAt: now.Add(time.Hour)}))
		require.NoError(t, db.AddReportMessage(ctx, &models.ReportMessage{ReportID: rep.ID, AuthorID: 2, Text: "first", SentAt: now}))

		err := db.AddReportMessage(ctx, &models.ReportMessage{ReportID: 999, Text: "x", SentAt: now})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		msgs, err := db.ListReportMessages(ctx, rep.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Text)
	})

	t.Run("Update", func(t *testing.T) {
		rep.Status = models.ReportInProgress
		rep.UpdatedAt = now.Add(2 * time.Hour)
		require.NoError(t, db.UpdateReport(ctx, rep))

		got, err := db.GetReport(ctx, rep.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReportInProgress, got.Status)
		assert.True(t, got.UpdatedAt.Equal(rep.UpdatedAt))

		missing := *rep
		missing.ID = 999
		assert.ErrorIs(t, db.UpdateReport(ctx, &missing), domain.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		all, err := db.ListReports(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusres/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(ctx context.Context, t *testing.T) (*http.ServeMux, *SheetsService) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets.NewService: %v", err)
	}
	return mux, newSheetsService(srv, "sid", "Reservations")
}

func testReservation(id int64) *models.Reservation {
	start := time.Date(2024, 12, 25, 9, 0, 0, 0, time.UTC)
	return &models.Reservation{
		ID:          id,
		Resource:    models.SpaceRef(2),
		RequesterID: 3,
		StartTime:   start,
		EndTime:     start.Add(90 * time.Minute),
		Status:      models.StatusApproved,
		CreatedAt:   start.Add(-24 * time.Hour),
		UpdatedAt:   start.Add(-time.Hour),
	}
}

func TestReservationRowValues(t *testing.T) {
	values := reservationRowValues(testReservation(123), "Aula Magna", "Maria")

	expected := []interface{}{
		int64(123), "space", int64(2), "Aula Magna", int64(3), "Maria",
		"2024-12-25 09:00", "2024-12-25 10:30", "approved",
		"2024-12-24T09:00:00Z", "2024-12-25T08:00:00Z",
	}
	if len(values) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(values))
	}
	for i := range expected {
		if values[i] != expected[i] {
			t.Errorf("value %d: expected %v, got %v", i, expected[i], values[i])
		}
	}
	if len(values) != len(reservationHeaders) {
		t.Errorf("row width %d does not match headers %d", len(values), len(reservationHeaders))
	}
}

func TestCellID(t *testing.T) {
	cases := []struct {
		row  []interface{}
		want int64
	}{
		{[]interface{}{float64(7)}, 7},
		{[]interface{}{"42"}, 42},
		{[]interface{}{"ID"}, 0},
		{nil, 0},
	}
	for _, c := range cases {
		if got := cellID(c.row); got != c.want {
			t.Errorf("cellID(%v) = %d, want %d", c.row, got, c.want)
		}
	}
}

func TestSheetsService_TestConnection(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/sid/values/Reservations!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	if err := s.TestConnection(ctx); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/sid/values/Reservations!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"123"}, {}, {"456"}},
		})
	})
	if err := s.WarmUpCache(ctx); err != nil {
		t.Fatalf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow(123); !ok || row != 2 {
		t.Errorf("expected row 2 for ID 123, got %d", row)
	}
	if row, ok := s.getCachedRow(456); !ok || row != 4 {
		t.Errorf("expected row 4 for ID 456, got %d", row)
	}
}

func TestSheetsService_UpsertAppendsNewRow(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/sid/values/Reservations!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/sid/values/Reservations!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Reservations!A10:K10"},
		})
	})

	if err := s.UpsertReservation(ctx, testReservation(789), "Aula Magna", "Maria"); err != nil {
		t.Fatalf("UpsertReservation failed: %v", err)
	}
	if row, _ := s.getCachedRow(789); row != 10 {
		t.Errorf("expected cached row 10, got %d", row)
	}
}

func TestSheetsService_UpsertUpdatesExistingRow(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	s.setCachedRow(123, 2)

	var body sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/sid/values/Reservations!A2:K2", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	if err := s.UpsertReservation(ctx, testReservation(123), "Aula Magna", "Maria"); err != nil {
		t.Fatalf("UpsertReservation failed: %v", err)
	}
	if len(body.Values) != 1 || body.Values[0][8] != "approved" {
		t.Errorf("unexpected row written: %v", body.Values)
	}
}

func TestSheetsService_UpsertNilReservation(t *testing.T) {
	_, s := setupMockServer(context.Background(), t)
	if err := s.UpsertReservation(context.Background(), nil, "", ""); err == nil {
		t.Error("expected error for nil reservation")
	}
}

func TestSheetsService_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/sid/values/Reservations:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	mux.HandleFunc("/v4/spreadsheets/sid/values/Reservations!A1:K3", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	rows := []ReservationRow{
		{Reservation: *testReservation(5), ResourceName: "Aula Magna", RequesterName: "Maria"},
		{Reservation: *testReservation(9), ResourceName: "Lab", RequesterName: "Ana"},
	}
	if err := s.ReplaceAll(ctx, rows); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	if row, _ := s.getCachedRow(9); row != 3 {
		t.Errorf("expected row 3 for ID 9, got %d", row)
	}
}

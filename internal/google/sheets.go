package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"campusres/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	sheetTimeLayout = "2006-01-02 15:04"
	lastColumn      = "K"
)

var (
	errRowNotFound = errors.New("reservation row not found")
	rowInRange     = regexp.MustCompile(`![A-Z]+(\d+)`)
)

var reservationHeaders = []interface{}{
	"ID", "Kind", "Resource ID", "Resource", "Requester ID", "Requester",
	"Start", "End", "Status", "Created At", "Updated At",
}

// SheetsService mirrors reservations into one tab of a spreadsheet, one row
// per reservation keyed by the id in column A.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	tab           string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, tab string) (*SheetsService, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newSheetsService(srv, spreadsheetID, tab), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID, tab string) *SheetsService {
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		tab:           tab,
		rowCache:      make(map[int64]int),
	}
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.tab+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.tab+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if id := cellID(row); id > 0 {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// UpsertReservation updates the reservation's row or appends a new one.
func (s *SheetsService) UpsertReservation(ctx context.Context, r *models.Reservation, resourceName, requesterName string) error {
	if r == nil {
		return errors.New("reservation is nil")
	}
	values := reservationRowValues(r, resourceName, requesterName)

	rowIdx, err := s.FindReservationRow(ctx, r.ID)
	if errors.Is(err, errRowNotFound) {
		return s.appendRow(ctx, r.ID, values)
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:%s%d", s.tab, rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *SheetsService) appendRow(ctx context.Context, id int64, values []interface{}) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.tab+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}
	if resp.Updates != nil {
		if m := rowInRange.FindStringSubmatch(resp.Updates.UpdatedRange); m != nil {
			if row, err := strconv.Atoi(m[1]); err == nil {
				s.setCachedRow(id, row)
			}
		}
	}
	return nil
}

// FindReservationRow locates the 1-based row index for id in column A.
func (s *SheetsService) FindReservationRow(ctx context.Context, id int64) (int, error) {
	if id == 0 {
		return 0, errors.New("reservation id is required")
	}
	if row, ok := s.getCachedRow(id); ok {
		return row, nil
	}
	if err := s.WarmUpCache(ctx); err != nil {
		return 0, err
	}
	if row, ok := s.getCachedRow(id); ok {
		return row, nil
	}
	return 0, errRowNotFound
}

// ReplaceAll rewrites the whole tab: header row plus one row per reservation.
func (s *SheetsService) ReplaceAll(ctx context.Context, rows []ReservationRow) error {
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, reservationHeaders)
	for _, row := range rows {
		values = append(values, reservationRowValues(&row.Reservation, row.ResourceName, row.RequesterName))
	}

	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.tab, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}
	rangeData := fmt.Sprintf("%s!A1:%s%d", s.tab, lastColumn, len(values))
	if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	cache := make(map[int64]int, len(rows))
	for i, row := range rows {
		cache[row.Reservation.ID] = i + 2
	}
	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

type ReservationRow struct {
	Reservation   models.Reservation
	ResourceName  string
	RequesterName string
}

func reservationRowValues(r *models.Reservation, resourceName, requesterName string) []interface{} {
	return []interface{}{
		r.ID,
		string(r.Resource.Kind()),
		r.Resource.ID(),
		resourceName,
		r.RequesterID,
		requesterName,
		r.StartTime.Format(sheetTimeLayout),
		r.EndTime.Format(sheetTimeLayout),
		string(r.Status),
		r.CreatedAt.Format(time.RFC3339),
		r.UpdatedAt.Format(time.RFC3339),
	}
}

func cellID(row []interface{}) int64 {
	if len(row) == 0 {
		return 0
	}
	switch v := row[0].(type) {
	case float64:
		return int64(v)
	case string:
		id, _ := strconv.ParseInt(v, 10, 64)
		return id
	}
	return 0
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

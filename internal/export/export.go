// Package export renders reservations into XLSX workbooks.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"campusres/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	listSheet     = "Reservations"
	scheduleSheet = "Schedule"
)

type Row struct {
	Reservation   models.Reservation
	ResourceName  string
	RequesterName string
}

var listHeaders = []string{"ID", "Resource", "Kind", "Requester", "Start", "End", "Status", "Created At"}

var statusColors = map[models.ReservationStatus]string{
	models.StatusApproved: "#E2EFDA",
	models.StatusPending:  "#FFF2CC",
	models.StatusRejected: "#F8CBAD",
}

type Exporter struct {
	dir    string
	logger *zerolog.Logger
}

func NewExporter(dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// WriteReservations создает Excel файл с заявками за период [from, to]
func (e *Exporter) WriteReservations(rows []Row, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(listSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := writeList(f, rows); err != nil {
		return "", err
	}

	if _, err := f.NewSheet(scheduleSheet); err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeSchedule(f, rows, from, to); err != nil {
		return "", err
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("reservations_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("rows", len(rows)).Msg("Excel file created")
	return filePath, nil
}

func writeList(f *excelize.File, rows []Row) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}
	statusStyles := make(map[models.ReservationStatus]int, len(statusColors))
	for status, color := range statusColors {
		id, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}})
		if err != nil {
			return err
		}
		statusStyles[status] = id
	}

	for i, h := range listHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(listSheet, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(listHeaders), 1)
	_ = f.SetCellStyle(listSheet, "A1", lastHeader, headerStyle)

	for i, row := range rows {
		r := row.Reservation
		line := i + 2
		values := []interface{}{
			r.ID,
			row.ResourceName,
			string(r.Resource.Kind()),
			row.RequesterName,
			r.StartTime.Format("2006-01-02 15:04"),
			r.EndTime.Format("2006-01-02 15:04"),
			string(r.Status),
			r.CreatedAt.Format("2006-01-02 15:04"),
		}
		start, _ := excelize.CoordinatesToCellName(1, line)
		if err := f.SetSheetRow(listSheet, start, &values); err != nil {
			return fmt.Errorf("write row %d: %w", line, err)
		}
		if style, ok := statusStyles[r.Status]; ok {
			cell, _ := excelize.CoordinatesToCellName(7, line)
			_ = f.SetCellStyle(listSheet, cell, cell, style)
		}
	}

	_ = f.SetColWidth(listSheet, "B", "B", 25)
	_ = f.SetColWidth(listSheet, "D", "D", 25)
	_ = f.SetColWidth(listSheet, "E", "F", 18)
	return nil
}

// writeSchedule builds a resource x day grid of approved reservation counts.
func writeSchedule(f *excelize.File, rows []Row, from, to time.Time) error {
	from = truncateDay(from)
	to = truncateDay(to)

	dayCols := make(map[string]int)
	col := 2
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 1)
		_ = f.SetCellValue(scheduleSheet, cell, d.Format("02.01"))
		dayCols[d.Format(models.DateLayout)] = col
		col++
	}

	type key struct {
		resource string
		day      string
	}
	counts := make(map[key]int)
	resources := make(map[string]bool)
	for _, row := range rows {
		if row.Reservation.Status != models.StatusApproved {
			continue
		}
		resources[row.ResourceName] = true
		counts[key{row.ResourceName, row.Reservation.StartTime.Format(models.DateLayout)}]++
	}

	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		line := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, line)
		_ = f.SetCellValue(scheduleSheet, cell, name)
		for day, c := range dayCols {
			cell, _ := excelize.CoordinatesToCellName(c, line)
			if n := counts[key{name, day}]; n > 0 {
				_ = f.SetCellValue(scheduleSheet, cell, n)
			}
		}
	}
	return f.SetColWidth(scheduleSheet, "A", "A", 25)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

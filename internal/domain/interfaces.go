package domain

import (
	"context"
	"time"

	"campusres/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ReservationStore is the interval-query-and-append oracle behind the ledger.
// Implementations need not be safe against concurrent check-then-append; the
// ledger serializes writers.
type ReservationStore interface {
	AppendReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, status models.ReservationStatus, at time.Time) error
	// OverlappingReservations returns reservations of ref with the given status whose
	// interval intersects [start, end), ordered by start time.
	OverlappingReservations(ctx context.Context, ref models.ResourceRef, status models.ReservationStatus, start, end time.Time) ([]models.Reservation, error)
	ListReservations(ctx context.Context) ([]models.Reservation, error)
}

type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	SaveCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListEquipment(ctx context.Context) ([]models.Equipment, error)
	GetEquipment(ctx context.Context, id int64) (*models.Equipment, error)
	SaveEquipment(ctx context.Context, e *models.Equipment) error
	DeleteEquipment(ctx context.Context, id int64) error

	ListSpaceTypes(ctx context.Context) ([]models.SpaceType, error)
	SaveSpaceType(ctx context.Context, st *models.SpaceType) error
	DeleteSpaceType(ctx context.Context, id int64) error

	ListSpaces(ctx context.Context) ([]models.Space, error)
	GetSpace(ctx context.Context, id int64) (*models.Space, error)
	SaveSpace(ctx context.Context, s *models.Space) error
	DeleteSpace(ctx context.Context, id int64) error
}

type UserRepository interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

type ReportRepository interface {
	CreateReport(ctx context.Context, r *models.Report) error
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	ListReports(ctx context.Context) ([]models.Report, error)
	UpdateReport(ctx context.Context, r *models.Report) error
	AddReportMessage(ctx context.Context, m *models.ReportMessage) error
	ListReportMessages(ctx context.Context, reportID int64) ([]models.ReportMessage, error)
}

// AdvisoryCache keeps advisory outcomes keyed by request fingerprint.
type AdvisoryCache interface {
	GetOutcome(ctx context.Context, key string) (*models.AdvisoryOutcome, error)
	SetOutcome(ctx context.Context, key string, outcome *models.AdvisoryOutcome, ttl time.Duration) error
	// CheckRateLimit counts a generative request for userID and reports whether
	// it fits in limit per window.
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type Notifier interface {
	ReservationStatusChanged(ctx context.Context, r models.Reservation, resourceName string) error
	ReportMessageAdded(ctx context.Context, report models.Report, msg models.ReportMessage) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertReservation(ctx context.Context, r *models.Reservation, resourceName, requesterName string) error
}

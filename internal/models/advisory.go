package models

import "time"

type AdvisoryState string

const (
	AdvisoryLoading     AdvisoryState = "loading"
	AdvisoryReady       AdvisoryState = "ready"
	AdvisoryUnavailable AdvisoryState = "unavailable"
)

// AdvisoryOutcome is the tri-state result of a generative request as seen by clients.
type AdvisoryOutcome struct {
	Key       string                   `json:"key"`
	State     AdvisoryState            `json:"state"`
	Text      string                   `json:"text,omitempty"`
	Recommend *EquipmentRecommendation `json:"recommendation,omitempty"`
	Error     string                   `json:"error,omitempty"`
	UpdatedAt time.Time                `json:"updated_at"`
}

type EquipmentRecommendation struct {
	EquipmentID   int64  `json:"recommended_equipment_id"`
	Justification string `json:"justification"`
}

type DashboardMetrics struct {
	PendingReservations int `json:"pending_reservations"`
	SpacesOccupied      int `json:"spaces_occupied"`
	EquipmentInUse      int `json:"equipment_in_use"`
	OpenReports         int `json:"open_reports"`
}

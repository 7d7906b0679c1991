package models

import "time"

type ReportStatus string

const (
	ReportOpen       ReportStatus = "open"
	ReportInProgress ReportStatus = "in_progress"
	ReportClosed     ReportStatus = "closed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportOpen, ReportInProgress, ReportClosed:
		return true
	}
	return false
}

// Report is an incident filed against a resource, or against nothing in particular
// when Resource is the zero value.
type Report struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	RequesterID int64        `json:"requester_id"`
	Status      ReportStatus `json:"status"`
	Resource    ResourceRef  `json:"resource"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type ReportMessage struct {
	ID       int64     `json:"id"`
	ReportID int64     `json:"report_id"`
	AuthorID int64     `json:"author_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

package models

import "time"

const (
	// UnknownResourceName is shown when a reference points at a deleted resource.
	UnknownResourceName = "unknown resource"
	UnknownUserName     = "unknown"

	// DashboardKeySpace is the space whose weekly usage the admin dashboard charts.
	DashboardKeySpace = "Aula Magna"

	// DefaultAdvisoryCacheTTL время жизни результата генерации в кэше
	DefaultAdvisoryCacheTTL = 30 * time.Minute

	// AdvisoryMaxTextLength обрезает ответы внешнего сервиса
	AdvisoryMaxTextLength = 2000

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 256

	DefaultTokenTTL = 12 * time.Hour

	DefaultPaginationSize = 5

	DateLayout = "2006-01-02"
)

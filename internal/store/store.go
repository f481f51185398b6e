package store

import (
	"errors"
	"time"

	"github.com/reportengine/internal/models"
)

// ErrConfigNotFound is returned when a config id does not resolve to an
// active report config.
var ErrConfigNotFound = errors.New("report config not found")

// ErrDatasourceNotFound is returned when a config's datasource is missing or
// inactive.
var ErrDatasourceNotFound = errors.New("report datasource not found")

// ErrScheduleNotFound is returned when a schedule id does not resolve.
var ErrScheduleNotFound = errors.New("report schedule not found")

// ErrExecutionNotFound is returned on status lookup for an unknown execution.
var ErrExecutionNotFound = errors.New("report execution not found")

// ConfigStore is the read side of the engine's persistence: report
// definitions, datasources, schedules, deliveries and recipients. The engine
// never writes through it except to advance a schedule's last_run_at.
type ConfigStore interface {
	GetConfig(id uint) (*models.ReportConfig, error)
	GetDatasource(id uint) (*models.ReportDatasource, error)
	GetSchedule(id uint) (*models.ReportSchedule, error)
	ListActiveSchedules() ([]models.ReportSchedule, error)
	ListActiveDeliveries(configID uint) ([]models.ReportDelivery, error)
	ListActiveRecipients(deliveryID uint) ([]models.ReportDeliveryRecipient, error)

	// AdvanceLastRun moves the schedule's last_run_at forward to t. It is a
	// no-op if the stored value is already at or past t.
	AdvanceLastRun(scheduleID uint, t time.Time) error
}

// ExecutionStore persists the execution lifecycle and per-delivery logs.
type ExecutionStore interface {
	CreateExecution(e *models.ReportExecution) error
	UpdateExecution(e *models.ReportExecution) error
	GetExecution(id string) (*models.ReportExecution, error)
	CountByStatus(status models.ExecutionStatus) (int64, error)

	CreateDeliveryLog(l *models.ReportDeliveryLog) error
	UpdateDeliveryLog(l *models.ReportDeliveryLog) error
	ListDeliveryLogs(executionID string) ([]models.ReportDeliveryLog, error)
}

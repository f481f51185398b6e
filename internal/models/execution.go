package models

import (
	"time"
)

type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionCancelled ExecutionStatus = "CANCELLED"
)

// Terminal reports whether s is a terminal execution status.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySuccess DeliveryStatus = "SUCCESS"
	DeliveryFailed  DeliveryStatus = "FAILED"
	DeliveryRetry   DeliveryStatus = "RETRY"
)

// ReportExecution is one run of a config, scheduled or manual. Created at
// orchestration start with status RUNNING, mutated only by the orchestrator,
// never deleted by the engine.
type ReportExecution struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	ConfigID    uint            `json:"config_id" gorm:"not null;index"`
	ScheduleID  *uint           `json:"schedule_id" gorm:"index"`
	Status      ExecutionStatus `json:"status" gorm:"not null;index"`
	StartedAt   time.Time       `json:"started_at" gorm:"not null"`
	CompletedAt *time.Time      `json:"completed_at"`
	ExecutedBy  string          `json:"executed_by" gorm:"default:system"`

	// Context holds the resolved time range, original and substituted query
	// and the datasource/format the run pinned, as a JSON blob.
	Context string `json:"execution_context" gorm:"type:json"`

	QueryTimeMs   int    `json:"query_execution_time_ms"`
	RowsReturned  int    `json:"rows_returned"`
	FilePath      string `json:"file_generated_path"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	ErrorMessage  string `json:"error_message"`
}

// ReportDeliveryLog records the cumulative outcome of one delivery target for
// one execution. Retry attempts update the row in place; the final row
// reflects the terminal outcome.
type ReportDeliveryLog struct {
	ID          uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	ConfigID    uint           `json:"config_id" gorm:"not null"`
	DeliveryID  uint           `json:"delivery_id" gorm:"not null"`
	ScheduleID  *uint          `json:"schedule_id"`
	ExecutionID string         `json:"execution_id" gorm:"not null;size:36;index"`
	Status      DeliveryStatus `json:"status" gorm:"not null"`
	SentAt      time.Time      `json:"sent_at"`
	CompletedAt *time.Time     `json:"completed_at"`

	RecipientCount int `json:"recipient_count"`
	SuccessCount   int `json:"success_count"`
	FailureCount   int `json:"failure_count"`
	RetryCount     int `json:"retry_count"`

	ErrorMessage    string `json:"error_message"`
	DeliveryDetails string `json:"delivery_details" gorm:"type:json"`
	FileSizeBytes   int64  `json:"file_size_bytes"`
	ProcessingMs    int    `json:"processing_time_ms"`
}

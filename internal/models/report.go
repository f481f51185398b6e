package models

import (
	"time"

	"gorm.io/gorm"
)

type DatasourceKind string

const (
	DatasourceMySQL      DatasourceKind = "mysql"
	DatasourcePostgreSQL DatasourceKind = "postgresql"
)

type OutputFormat string

const (
	FormatCSV  OutputFormat = "csv"
	FormatJSON OutputFormat = "json"
	FormatXLSX OutputFormat = "xlsx"
)

type DeliveryMethod string

const (
	DeliveryEmail   DeliveryMethod = "email"
	DeliverySlack   DeliveryMethod = "slack"
	DeliveryWebhook DeliveryMethod = "webhook"
	DeliverySFTP    DeliveryMethod = "sftp"
)

// ReportDatasource describes a connection the engine can run queries against.
// It is read-only to the execution core.
type ReportDatasource struct {
	gorm.Model
	Name             string         `json:"name" gorm:"not null"`
	Kind             DatasourceKind `json:"kind" gorm:"not null"`
	ConnectionURL    string         `json:"connection_url" gorm:"not null"`
	ConnectionConfig string         `json:"connection_config" gorm:"type:json"`
	IsActive         bool           `json:"is_active" gorm:"default:true"`
}

// ReportConfig is a report definition: a query template with its output
// format and datasource binding. A running execution pins the version it
// started with.
type ReportConfig struct {
	gorm.Model
	ReportName     string       `json:"report_name" gorm:"not null"`
	ReportQuery    string       `json:"report_query" gorm:"not null"`
	OutputFormat   OutputFormat `json:"output_format" gorm:"not null"`
	DatasourceID   uint         `json:"datasource_id" gorm:"not null"`
	TimeoutSeconds int          `json:"timeout_seconds" gorm:"default:300"`
	MaxRows        int          `json:"max_rows" gorm:"default:100000"`
	Version        int          `json:"version" gorm:"default:1"`
	IsActive       bool         `json:"is_active" gorm:"default:true"`

	Datasource ReportDatasource `json:"-" gorm:"foreignKey:DatasourceID"`
}

// ReportSchedule binds a cron expression to a config. LastRunAt is the only
// field the execution core mutates: it anchors the incremental time window
// and only ever moves forward.
type ReportSchedule struct {
	gorm.Model
	ConfigID       uint       `json:"config_id" gorm:"not null"`
	CronExpression string     `json:"cron_expression" gorm:"not null"`
	Timezone       string     `json:"timezone" gorm:"default:UTC"`
	IsActive       bool       `json:"is_active" gorm:"default:true"`
	LastRunAt      *time.Time `json:"last_run_at"`

	Config ReportConfig `json:"-" gorm:"foreignKey:ConfigID"`
}

// ReportDelivery is one configured destination for a config's artifact.
type ReportDelivery struct {
	gorm.Model
	ConfigID             uint           `json:"config_id" gorm:"not null"`
	DeliveryName         string         `json:"delivery_name" gorm:"not null"`
	Method               DeliveryMethod `json:"method" gorm:"not null"`
	DeliveryConfig       string         `json:"delivery_config" gorm:"type:json"`
	MaxRetry             int            `json:"max_retry" gorm:"default:3"`
	RetryIntervalMinutes int            `json:"retry_interval_minutes" gorm:"default:5"`
	IsActive             bool           `json:"is_active" gorm:"default:true"`

	Config ReportConfig `json:"-" gorm:"foreignKey:ConfigID"`
}

type ReportDeliveryRecipient struct {
	gorm.Model
	DeliveryID     uint   `json:"delivery_id" gorm:"not null"`
	RecipientType  string `json:"recipient_type" gorm:"default:email"`
	RecipientValue string `json:"recipient_value" gorm:"not null"`
	IsActive       bool   `json:"is_active" gorm:"default:true"`
}

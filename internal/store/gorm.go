package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reportengine/internal/models"
)

// GormStore implements ConfigStore and ExecutionStore on a gorm database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetConfig(id uint) (*models.ReportConfig, error) {
	var cfg models.ReportConfig
	err := s.db.Where("id = ? AND is_active = ?", id, true).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrConfigNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *GormStore) GetDatasource(id uint) (*models.ReportDatasource, error) {
	var ds models.ReportDatasource
	err := s.db.Where("id = ? AND is_active = ?", id, true).First(&ds).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrDatasourceNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (s *GormStore) GetSchedule(id uint) (*models.ReportSchedule, error) {
	var sched models.ReportSchedule
	err := s.db.First(&sched, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrScheduleNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

func (s *GormStore) ListActiveSchedules() ([]models.ReportSchedule, error) {
	var schedules []models.ReportSchedule
	if err := s.db.Where("is_active = ?", true).Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (s *GormStore) ListActiveDeliveries(configID uint) ([]models.ReportDelivery, error) {
	var deliveries []models.ReportDelivery
	err := s.db.Where("config_id = ? AND is_active = ?", configID, true).Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (s *GormStore) ListActiveRecipients(deliveryID uint) ([]models.ReportDeliveryRecipient, error) {
	var recipients []models.ReportDeliveryRecipient
	err := s.db.Where("delivery_id = ? AND is_active = ?", deliveryID, true).Find(&recipients).Error
	if err != nil {
		return nil, err
	}
	return recipients, nil
}

// AdvanceLastRun is forward-only: a guard in the WHERE clause makes stale
// writers lose without clobbering a newer value.
func (s *GormStore) AdvanceLastRun(scheduleID uint, t time.Time) error {
	return s.db.Model(&models.ReportSchedule{}).
		Where("id = ? AND (last_run_at IS NULL OR last_run_at < ?)", scheduleID, t).
		Update("last_run_at", t).Error
}

func (s *GormStore) CreateExecution(e *models.ReportExecution) error {
	return s.db.Create(e).Error
}

func (s *GormStore) UpdateExecution(e *models.ReportExecution) error {
	return s.db.Save(e).Error
}

func (s *GormStore) GetExecution(id string) (*models.ReportExecution, error) {
	var exec models.ReportExecution
	err := s.db.Where("id = ?", id).First(&exec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %s", ErrExecutionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

func (s *GormStore) CountByStatus(status models.ExecutionStatus) (int64, error) {
	var n int64
	err := s.db.Model(&models.ReportExecution{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

func (s *GormStore) CreateDeliveryLog(l *models.ReportDeliveryLog) error {
	return s.db.Create(l).Error
}

func (s *GormStore) UpdateDeliveryLog(l *models.ReportDeliveryLog) error {
	return s.db.Save(l).Error
}

func (s *GormStore) ListDeliveryLogs(executionID string) ([]models.ReportDeliveryLog, error) {
	var logs []models.ReportDeliveryLog
	err := s.db.Where("execution_id = ?", executionID).Order("id").Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

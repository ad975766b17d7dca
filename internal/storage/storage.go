package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"nagarpalika/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the durable record of reports. Every write is atomic per report.
type Storage interface {
	CreateReport(ctx context.Context, report *models.Report) error
	UpdateReport(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error)
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
}

// Service stores reports in PostgreSQL through GORM.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// AutoMigrate creates or updates the reports table.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(&models.Report{})
}

// CreateReport validates and inserts a new pending, unclassified report.
func (s *Service) CreateReport(ctx context.Context, report *models.Report) error {
	if err := prepareNew(report); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Create(report).Error; err != nil {
		log.Printf("ERROR: Failed to save report %q: %v", report.Title, err)
		return err
	}
	return nil
}

// UpdateReport applies patch under a row lock so readers never see a partial write.
func (s *Service) UpdateReport(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error) {
	var updated models.Report

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Report
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := applyPatch(&current, patch, time.Now()); err != nil {
			return err
		}
		if err := tx.Save(&current).Error; err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) && !models.IsValidation(err) {
			log.Printf("ERROR: Failed to update report %s: %v", id, err)
		}
		return nil, err
	}
	return &updated, nil
}

// GetReport returns one report or models.ErrNotFound.
func (s *Service) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get report %s: %v", id, err)
		return nil, err
	}
	return &report, nil
}

// ListReports returns reports newest first.
func (s *Service) ListReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	q := s.DB.WithContext(ctx).Model(&models.Report{})
	if filter.Department != "" {
		q = q.Where("target_department = ?", filter.Department)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}

	reports := []models.Report{}
	if err := q.Order("created_at desc").Find(&reports).Error; err != nil {
		log.Printf("ERROR: Failed to list reports: %v", err)
		return nil, err
	}
	return reports, nil
}

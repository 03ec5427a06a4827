package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/campus-events/attendance-service/internal/cache"
	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/repositories"
)

type reportingService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
	cache  *cache.CacheManager
	now    func() time.Time
}

func NewReportingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, cacheManager *cache.CacheManager) ReportingService {
	return &reportingService{
		repo:   repo,
		db:     db,
		logger: logger,
		cache:  cacheManager,
		now:    time.Now,
	}
}

func (s *reportingService) Records(ctx context.Context, filters repositories.AttendanceFilters) ([]*models.AttendanceRecord, int64, error) {
	records, total, err := s.repo.Attendance().Query(ctx, nil, filters)
	if err != nil {
		s.logger.Error("Failed to query attendance records", "error", err)
		return nil, 0, fmt.Errorf("failed to query attendance records: %w", err)
	}
	return records, total, nil
}

func (s *reportingService) Summary(ctx context.Context, scanDate, eventID string) (*models.AttendanceSummary, error) {
	if scanDate == "" {
		scanDate = s.now().Format(models.ScanDateLayout)
	}
	if _, err := time.Parse(models.ScanDateLayout, scanDate); err != nil {
		return nil, NewInvalidPayloadError("malformed", "scanDate must be YYYY-MM-DD")
	}

	build := func() (interface{}, error) {
		byFaculty, total, err := s.repo.Attendance().CountsByFaculty(ctx, nil, scanDate, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate summary: %w", err)
		}
		return &models.AttendanceSummary{
			ScanDate:   scanDate,
			EventID:    eventID,
			TotalScans: total,
			ByFaculty:  byFaculty,
		}, nil
	}

	var summary models.AttendanceSummary
	if s.cache != nil {
		key := fmt.Sprintf("summary:%s:%s", scanDate, eventID)
		if err := s.cache.Stats.CacheOrExecute(ctx, key, &summary, cache.StatsCacheConfig.TTL, build); err != nil {
			return nil, err
		}
		return &summary, nil
	}

	result, err := build()
	if err != nil {
		return nil, err
	}
	return result.(*models.AttendanceSummary), nil
}

func (s *reportingService) StudentHistory(ctx context.Context, userID, startDate, endDate string) ([]*models.AttendanceRecord, error) {
	if userID == "" {
		return nil, NewInvalidPayloadError("missing-fields", "userId is required")
	}

	if _, err := s.repo.User().GetByID(ctx, userID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("Failed to load user for history", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	records, err := s.repo.Attendance().GetByUser(ctx, nil, userID, repositories.AttendanceFilters{
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		s.logger.Error("Failed to load student history", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load student history: %w", err)
	}
	return records, nil
}

func (s *reportingService) Attendees(ctx context.Context, scanDate, eventID string) ([]*models.AttendanceRecord, error) {
	if scanDate == "" {
		scanDate = s.now().Format(models.ScanDateLayout)
	}
	if _, err := time.Parse(models.ScanDateLayout, scanDate); err != nil {
		return nil, NewInvalidPayloadError("malformed", "scanDate must be YYYY-MM-DD")
	}

	records, err := s.repo.Attendance().GetAttendees(ctx, nil, scanDate, eventID)
	if err != nil {
		s.logger.Error("Failed to load attendees", "scan_date", scanDate, "error", err)
		return nil, fmt.Errorf("failed to load attendees: %w", err)
	}
	return records, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/campus-events/attendance-service/internal/cache"
	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/repositories"
)

type AttendancePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAttendancePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttendanceRepository {
	return &AttendancePostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttendancePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttendancePostgreSQL) Insert(ctx context.Context, tx *gorm.DB, record *models.AttendanceRecord) error {
	db := a.getDB(tx)

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.EventID == "" {
		record.EventID = models.DefaultEventID
	}
	if record.Status == "" {
		record.Status = models.StatusPresent
	}

	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		return err
	}

	// A committed write means any cached "not scanned yet" answer is stale.
	a.cacheManager.Scan.InvalidateDuplicateCheck(ctx, record.UserID, record.ScanDate)

	return nil
}

func (a *AttendancePostgreSQL) FindByUserAndDate(ctx context.Context, tx *gorm.DB, userID, scanDate string) (*models.AttendanceRecord, error) {
	db := a.getDB(tx)
	var record models.AttendanceRecord
	if err := db.WithContext(ctx).
		Where("user_id = ? AND scan_date = ?", userID, scanDate).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (a *AttendancePostgreSQL) FindByRollnoAndDate(ctx context.Context, tx *gorm.DB, rollno, scanDate string) (*models.AttendanceRecord, error) {
	db := a.getDB(tx)
	var record models.AttendanceRecord
	if err := db.WithContext(ctx).
		Where("rollno = ? AND scan_date = ?", rollno, scanDate).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (a *AttendancePostgreSQL) Query(ctx context.Context, tx *gorm.DB, filters repositories.AttendanceFilters) ([]*models.AttendanceRecord, int64, error) {
	db := a.getDB(tx)
	var records []*models.AttendanceRecord
	var total int64

	query := db.WithContext(ctx).Model(&models.AttendanceRecord{})
	query = a.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "scan_time DESC"
	if filters.SortOrder == "asc" {
		order = "scan_time ASC"
	}
	query = query.Order(order)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (a *AttendancePostgreSQL) GetByUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttendanceFilters) ([]*models.AttendanceRecord, error) {
	db := a.getDB(tx)
	var records []*models.AttendanceRecord

	query := db.WithContext(ctx).Where("user_id = ?", userID)
	if filters.StartDate != "" && filters.EndDate != "" {
		query = query.Where("scan_date BETWEEN ? AND ?", filters.StartDate, filters.EndDate)
	}

	if err := query.Order("scan_date DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get records by user: %w", err)
	}
	return records, nil
}

func (a *AttendancePostgreSQL) GetAttendees(ctx context.Context, tx *gorm.DB, scanDate, eventID string) ([]*models.AttendanceRecord, error) {
	db := a.getDB(tx)
	var records []*models.AttendanceRecord

	query := db.WithContext(ctx).Where("scan_date = ?", scanDate)
	if eventID != "" {
		query = query.Where("event_id = ?", eventID)
	}

	if err := query.Order("scan_time ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (a *AttendancePostgreSQL) CountsByFaculty(ctx context.Context, tx *gorm.DB, scanDate, eventID string) (map[models.Faculty]int, int64, error) {
	db := a.getDB(tx)

	type facultyCount struct {
		Faculty models.Faculty
		Count   int
	}

	query := db.WithContext(ctx).
		Model(&models.AttendanceRecord{}).
		Where("scan_date = ?", scanDate)
	if eventID != "" {
		query = query.Where("event_id = ?", eventID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []facultyCount
	if err := query.
		Select("faculty, COUNT(*) AS count").
		Group("faculty").
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}

	byFaculty := make(map[models.Faculty]int, len(rows))
	for _, row := range rows {
		byFaculty[row.Faculty] = row.Count
	}

	return byFaculty, total, nil
}

func (a *AttendancePostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttendanceFilters) *gorm.DB {
	if filters.StartDate != "" && filters.EndDate != "" {
		query = query.Where("scan_date BETWEEN ? AND ?", filters.StartDate, filters.EndDate)
	} else if filters.StartDate != "" {
		query = query.Where("scan_date = ?", filters.StartDate)
	}

	if filters.EventID != "" {
		query = query.Where("event_id = ?", filters.EventID)
	}

	if filters.Faculty != nil {
		query = query.Where("faculty = ?", *filters.Faculty)
	}

	return query
}

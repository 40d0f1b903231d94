package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AreaRepository handles area catalog operations
type AreaRepository struct {
	db *DB
}

// NewAreaRepository creates a new area repository
func NewAreaRepository(db *DB) *AreaRepository {
	return &AreaRepository{db: db}
}

// Upsert inserts or updates an area by code
func (r *AreaRepository) Upsert(area *Area) error {
	area.UpdatedAt = time.Now()
	if err := r.db.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "latitude", "longitude", "updated_at"}),
	}).Create(area).Error; err != nil {
		return fmt.Errorf("failed to upsert area %d: %w", area.Code, err)
	}
	return nil
}

// GetByCode looks up an area by its code. Returns nil when unknown.
func (r *AreaRepository) GetByCode(code uint32) (*Area, error) {
	var area Area
	if err := r.db.db.Where("code = ?", code).First(&area).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &area, nil
}

// Nearest finds the area whose center is closest to the given coordinate.
// The squared-degree distance is good enough at catalog granularity; areas
// span whole regions, so great-circle precision buys nothing here.
func (r *AreaRepository) Nearest(lat, lon float64) (*Area, error) {
	var areas []Area
	if err := r.db.db.Find(&areas).Error; err != nil {
		return nil, fmt.Errorf("failed to load areas: %w", err)
	}
	if len(areas) == 0 {
		return nil, nil
	}

	best := 0
	bestDist := sqDist(lat, lon, areas[0].Latitude, areas[0].Longitude)
	for i := 1; i < len(areas); i++ {
		d := sqDist(lat, lon, areas[i].Latitude, areas[i].Longitude)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return &areas[best], nil
}

// Count returns the number of catalogued areas
func (r *AreaRepository) Count() (int64, error) {
	var count int64
	err := r.db.db.Model(&Area{}).Count(&count).Error
	return count, err
}

func sqDist(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := lat1 - lat2
	dlon := lon1 - lon2
	return dlat*dlat + dlon*dlon
}

// ForecastRepository handles served forecast data
type ForecastRepository struct {
	db *DB
}

// NewForecastRepository creates a new forecast repository
func NewForecastRepository(db *DB) *ForecastRepository {
	return &ForecastRepository{db: db}
}

// Upsert inserts or updates the forecast for one area and day
func (r *ForecastRepository) Upsert(fc *Forecast) error {
	fc.UpdatedAt = time.Now()
	if err := r.db.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "area_code"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{"weather_code", "temperature", "precipitation", "updated_at"}),
	}).Create(fc).Error; err != nil {
		return fmt.Errorf("failed to upsert forecast for area %d day %d: %w", fc.AreaCode, fc.Day, err)
	}
	return nil
}

// Get returns the forecast for an area and day, or nil when none is stored.
func (r *ForecastRepository) Get(areaCode uint32, day uint8) (*Forecast, error) {
	var fc Forecast
	if err := r.db.db.Where("area_code = ? AND day = ?", areaCode, day).First(&fc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fc, nil
}

// GetByArea returns every stored forecast day for an area, ordered by day
func (r *ForecastRepository) GetByArea(areaCode uint32) ([]Forecast, error) {
	var fcs []Forecast
	err := r.db.db.Where("area_code = ?", areaCode).Order("day ASC").Find(&fcs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get forecasts for area %d: %w", areaCode, err)
	}
	return fcs, nil
}

// ReportRepository handles disaster report persistence
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create saves a new report record
func (r *ReportRepository) Create(report *Report) error {
	if err := r.db.db.Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetRecent retrieves the most recent reports
func (r *ReportRepository) GetRecent(limit int) ([]Report, error) {
	var reports []Report
	err := r.db.db.Order("reported_at DESC").Limit(limit).Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent reports: %w", err)
	}
	return reports, nil
}

// GetByAreaCode retrieves reports for a specific area, newest first
func (r *ReportRepository) GetByAreaCode(areaCode uint32, limit int) ([]Report, error) {
	var reports []Report
	err := r.db.db.Where("area_code = ?", areaCode).
		Order("reported_at DESC").Limit(limit).Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get reports for area %d: %w", areaCode, err)
	}
	return reports, nil
}

// GetLatestByArea returns the newest report for an area, or nil when none
// has been ingested yet.
func (r *ReportRepository) GetLatestByArea(areaCode uint32) (*Report, error) {
	var report Report
	result := r.db.db.Where("area_code = ?", areaCode).
		Order("reported_at DESC").Limit(1).Find(&report)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &report, nil
}

// CountSince counts reports ingested after the given time
func (r *ReportRepository) CountSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.db.Model(&Report{}).Where("reported_at > ?", since).Count(&count).Error
	return count, err
}

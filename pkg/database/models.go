package database

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Area is one geographic reporting region: a 20-bit WIP area code with a
// human-readable name and a representative center coordinate used for
// location resolution.
type Area struct {
	Code      uint32    `gorm:"primarykey;not null" json:"code"`
	Name      string    `gorm:"index;size:80" json:"name"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Area
func (Area) TableName() string {
	return "areas"
}

// Forecast is the served weather data for one area and day offset. Rows are
// maintained through the admin API or a seed file; day 0 is current
// conditions.
type Forecast struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	AreaCode      uint32    `gorm:"uniqueIndex:idx_area_day;not null" json:"area_code"`
	Day           uint8     `gorm:"uniqueIndex:idx_area_day;not null" json:"day"`
	WeatherCode   uint16    `json:"weather_code"`
	Temperature   int       `json:"temperature"` // degrees Celsius
	Precipitation uint8     `json:"precipitation"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for Forecast
func (Forecast) TableName() string {
	return "forecasts"
}

// Report is one ingested sensor/disaster report.
type Report struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	PacketID      uint16    `gorm:"index;not null" json:"packet_id"`
	AreaCode      uint32    `gorm:"index;not null" json:"area_code"`
	WeatherCode   uint16    `json:"weather_code"`
	Temperature   int       `json:"temperature"` // degrees Celsius
	Precipitation uint8     `json:"precipitation"`
	Alerts        string    `gorm:"size:1023" json:"alerts"`    // comma-joined
	Disasters     string    `gorm:"size:1023" json:"disasters"` // comma-joined
	SourceAddr    string    `gorm:"size:32" json:"source_addr"` // "ip:port" of the reporting node
	Authenticated bool      `json:"authenticated"`
	ReportedAt    time.Time `gorm:"index;not null" json:"reported_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for Report
func (Report) TableName() string {
	return "reports"
}

// BeforeCreate hook to ensure timestamps are set
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now()
	}
	return nil
}

// AlertList returns the alerts as a slice.
func (r *Report) AlertList() []string {
	return splitList(r.Alerts)
}

// DisasterList returns the disasters as a slice.
func (r *Report) DisasterList() []string {
	return splitList(r.Disasters)
}

// JoinList formats a list for storage.
func JoinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

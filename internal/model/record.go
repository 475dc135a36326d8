package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordID is embedded by every record table. Ids are UUIDv7 so they sort by
// creation time, which is the tie-breaker for "latest" queries.
type RecordID struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
}

func (r *RecordID) BeforeCreate(tx *gorm.DB) error {
	if r.ID != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating record id: %w", err)
	}
	r.ID = id.String()
	return nil
}

// Source says who logged an attendance row.
type Source string

const (
	SourceSelf      Source = "SELF"
	SourceBackblast Source = "BACKBLAST"
)

// AttendanceRecord is one user at one AO on one day.
// (user_id, ao_id, date) is unique so re-posting the same backblast is a no-op.
type AttendanceRecord struct {
	RecordID
	UserID    string    `gorm:"column:user_id;size:20" json:"userId"`
	AOID      string    `gorm:"column:ao_id;size:255"  json:"aoId"`
	Date      time.Time `gorm:"column:date"            json:"date"`
	Source    Source    `gorm:"column:source;size:16"  json:"source"`
	CreatedAt time.Time `gorm:"column:created_at"      json:"createdAt"`
}

func (AttendanceRecord) TableName() string { return "attendance_records" }

// EffortRecord is a manually entered workout. CalPerMin is derived at write time.
type EffortRecord struct {
	RecordID
	UserID      string    `gorm:"column:user_id;size:20" json:"userId"`
	Date        time.Time `gorm:"column:date"            json:"date"`
	Calories    int       `gorm:"column:calories"        json:"calories"`
	DurationSec int       `gorm:"column:duration_sec"    json:"durationSec"`
	CalPerMin   float64   `gorm:"column:cal_per_min"     json:"calPerMin"`
	CreatedAt   time.Time `gorm:"column:created_at"      json:"createdAt"`
}

func (EffortRecord) TableName() string { return "effort_records" }

// DurationMinutes rounds the stored seconds back to minutes for display.
func (e EffortRecord) DurationMinutes() int {
	return (e.DurationSec + 30) / 60
}

// WeeklyReflection is an append-only journal entry. Several per week are fine;
// the newest write is the one the dashboard shows.
type WeeklyReflection struct {
	RecordID
	UserID    string    `gorm:"column:user_id;size:20" json:"userId"`
	Mood      *string   `gorm:"column:mood"            json:"mood"`
	Wins      *string   `gorm:"column:wins"            json:"wins"`
	Struggles *string   `gorm:"column:struggles"       json:"struggles"`
	Intention *string   `gorm:"column:intention"       json:"intention"`
	CreatedAt time.Time `gorm:"column:created_at"      json:"createdAt"`
}

func (WeeklyReflection) TableName() string { return "weekly_reflections" }

// Category is the closed set of self-report areas.
type Category string

const (
	CategoryFellowship     Category = "FELLOWSHIP"
	CategoryService        Category = "SERVICE"
	CategoryMarriageFamily Category = "MARRIAGE_FAMILY"
	CategoryDietQueen      Category = "DIET_QUEEN"
	CategoryMentalHealth   Category = "MENTAL_HEALTH"
	CategorySpiritual      Category = "SPIRITUAL"
)

// Categories lists every valid category in display order.
func Categories() []Category {
	return []Category{
		CategoryFellowship,
		CategoryService,
		CategoryMarriageFamily,
		CategoryDietQueen,
		CategoryMentalHealth,
		CategorySpiritual,
	}
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

type SelfReportEntry struct {
	RecordID
	UserID    string    `gorm:"column:user_id;size:20"  json:"userId"`
	Category  Category  `gorm:"column:category;size:32" json:"category"`
	Note      *string   `gorm:"column:note"             json:"note"`
	CreatedAt time.Time `gorm:"column:created_at"       json:"createdAt"`
}

func (SelfReportEntry) TableName() string { return "self_report_entries" }

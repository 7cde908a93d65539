package gormreg

import "time"

// jobRow is the GORM model backing the jobs table. Unlike the teacher's
// models (which use a UUID v7 primary key generated in BeforeCreate), the
// id here is allocator-issued — callers always supply it, so there is no
// BeforeCreate hook.
type jobRow struct {
	ID        string `gorm:"type:text;primaryKey"`
	User      string `gorm:"column:user_id;not null"`
	StartTime time.Time `gorm:"not null"`
	EndTime   time.Time `gorm:"not null"`
	Host      string    `gorm:"column:hostname;not null;default:''"`
}

// TableName pins the table name so migrations and GORM agree regardless of
// GORM's pluralization rules.
func (jobRow) TableName() string { return "jobs" }

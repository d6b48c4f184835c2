package model

import "time"

// CycleOpen represents the wash currently in progress in a bay (hot
// table). At most one row per bay.
type CycleOpen struct {
	BayID       int64     `gorm:"primaryKey"`
	StartedAt   time.Time `gorm:"not null"`
	Phase       int       `gorm:"not null"`
	HandPreWash bool      `gorm:"not null"`
	HandDry     bool      `gorm:"not null"`
	Waxing      bool      `gorm:"not null"`
	Charge      float64   `gorm:"not null"` // 0 until the billing transition runs
}

// CycleHistory represents a completed wash (cold table).
type CycleHistory struct {
	ID          int64     `gorm:"autoIncrement"`
	BayID       int64     `gorm:"not null;index;primaryKey"`
	FinishedAt  time.Time `gorm:"not null;index;primaryKey"`
	StartedAt   time.Time `gorm:"not null"`
	HandPreWash bool      `gorm:"not null"`
	HandDry     bool      `gorm:"not null"`
	Waxing      bool      `gorm:"not null"`
	Charge      float64   `gorm:"not null"`
	PhaseCount  int       `gorm:"not null"` // transitions taken from acceptance to release
}

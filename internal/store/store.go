package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carwash-bay-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	RegisterBays(ctx context.Context, names []string) ([]model.Bay, error)
	OpenCycle(ctx context.Context, cycle model.CycleOpen) error
	UpdateCyclePhase(ctx context.Context, bayID int64, phase int, charge float64) error
	CloseCycle(ctx context.Context, bayID int64, finishedAt time.Time, phaseCount int) error
	OpenCycles(ctx context.Context) (map[int64]model.CycleOpen, error)
	CycleHistory(ctx context.Context, bayID int64, limit int) ([]model.CycleHistory, error)
	Revenue(ctx context.Context) (RevenueSummary, error)
}

// BayRevenue aggregates completed cycles for one bay.
type BayRevenue struct {
	BayID  int64   `json:"bay_id"`
	Name   string  `json:"name"`
	Total  float64 `json:"total"`
	Cycles int64   `json:"cycles"`
}

// RevenueSummary aggregates completed cycles across the station.
type RevenueSummary struct {
	Total  float64      `json:"total"`
	Cycles int64        `json:"cycles"`
	Bays   []BayRevenue `json:"bays"`
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for handlers that query directly.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// RegisterBays upserts the configured bay names and returns the full
// set of registered bays.
func (s *gormStore) RegisterBays(ctx context.Context, names []string) ([]model.Bay, error) {
	if len(names) > 0 {
		bays := make([]model.Bay, 0, len(names))
		for _, name := range names {
			bays = append(bays, model.Bay{Name: name})
		}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&bays).Error; err != nil {
			return nil, fmt.Errorf("batch upsert bays failed: %w", err)
		}
	}

	var allBays []model.Bay
	if err := s.db.WithContext(ctx).Order("id").Find(&allBays).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve bays after upsert: %w", err)
	}
	return allBays, nil
}

// OpenCycle records the start of a wash for a bay. At most one cycle is
// ever open per bay; a leftover row from a cycle whose archive failed
// is overwritten rather than blocking the new wash.
func (s *gormStore) OpenCycle(ctx context.Context, cycle model.CycleOpen) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bay_id"}},
		UpdateAll: true,
	}).Create(&cycle).Error; err != nil {
		return fmt.Errorf("failed to open cycle for bay %d: %w", cycle.BayID, err)
	}
	return nil
}

// UpdateCyclePhase moves the open cycle of a bay to a new phase. A
// non-zero charge is recorded alongside the phase; only the billing
// transition passes one.
func (s *gormStore) UpdateCyclePhase(ctx context.Context, bayID int64, phase int, charge float64) error {
	updates := map[string]any{"phase": phase}
	if charge != 0 {
		updates["charge"] = charge
	}

	res := s.db.WithContext(ctx).Model(&model.CycleOpen{}).Where("bay_id = ?", bayID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update open cycle for bay %d: %w", bayID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no open cycle for bay %d: %w", bayID, gorm.ErrRecordNotFound)
	}
	return nil
}

// CloseCycle archives the open cycle of a bay into the history table
// and removes the open row, transactionally.
func (s *gormStore) CloseCycle(ctx context.Context, bayID int64, finishedAt time.Time, phaseCount int) error {
	var open model.CycleOpen
	if err := s.db.WithContext(ctx).First(&open, "bay_id = ?", bayID).Error; err != nil {
		return fmt.Errorf("failed to fetch open cycle for bay %d: %w", bayID, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		history := model.CycleHistory{
			BayID:       open.BayID,
			FinishedAt:  finishedAt,
			StartedAt:   open.StartedAt,
			HandPreWash: open.HandPreWash,
			HandDry:     open.HandDry,
			Waxing:      open.Waxing,
			Charge:      open.Charge,
			PhaseCount:  phaseCount,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to archive cycle for bay %d: %w", bayID, err)
		}
		if err := tx.Delete(&model.CycleOpen{}, "bay_id = ?", bayID).Error; err != nil {
			return fmt.Errorf("failed to delete open cycle for bay %d: %w", bayID, err)
		}
		return nil
	})
}

// OpenCycles returns the in-progress cycle for every occupied bay.
func (s *gormStore) OpenCycles(ctx context.Context) (map[int64]model.CycleOpen, error) {
	var openRecords []model.CycleOpen
	if err := s.db.WithContext(ctx).Find(&openRecords).Error; err != nil {
		return nil, err
	}
	recordMap := make(map[int64]model.CycleOpen, len(openRecords))
	for _, r := range openRecords {
		recordMap[r.BayID] = r
	}
	return recordMap, nil
}

// CycleHistory returns the most recent completed cycles for a bay.
func (s *gormStore) CycleHistory(ctx context.Context, bayID int64, limit int) ([]model.CycleHistory, error) {
	var history []model.CycleHistory
	q := s.db.WithContext(ctx).Where("bay_id = ?", bayID).Order("finished_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch cycle history for bay %d: %w", bayID, err)
	}
	return history, nil
}

// Revenue aggregates completed-cycle charges per bay and station-wide.
func (s *gormStore) Revenue(ctx context.Context) (RevenueSummary, error) {
	var aggs []BayRevenue
	err := s.db.WithContext(ctx).
		Model(&model.CycleHistory{}).
		Select("cycle_histories.bay_id as bay_id, bays.name as name, COALESCE(SUM(cycle_histories.charge), 0) as total, COUNT(*) as cycles").
		Joins("JOIN bays ON bays.id = cycle_histories.bay_id").
		Group("cycle_histories.bay_id, bays.name").
		Order("cycle_histories.bay_id").
		Scan(&aggs).Error
	if err != nil {
		return RevenueSummary{}, fmt.Errorf("failed to aggregate revenue: %w", err)
	}

	summary := RevenueSummary{Bays: aggs}
	for _, a := range aggs {
		summary.Total += a.Total
		summary.Cycles += a.Cycles
	}
	return summary, nil
}

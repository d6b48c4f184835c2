package station

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"carwash-bay-backend/config"
	"carwash-bay-backend/internal/model"
	"carwash-bay-backend/internal/notification"
	"carwash-bay-backend/internal/store"
	"carwash-bay-backend/internal/washbay"
)

// ErrUnknownBay is returned for operations against a bay ID that is not
// registered with the station.
var ErrUnknownBay = errors.New("unknown bay")

// Service owns the station's bays and drives them through their wash
// cycles. All bay access goes through the service mutex; the bays
// themselves are lock-free.
type Service struct {
	cfg        *config.Config
	store      store.Store
	workerPool *notification.WorkerPool

	mu    sync.Mutex
	bays  map[int64]*washbay.Bay
	names map[int64]string
	steps map[int64]int // transitions taken in the current cycle
}

// BayStatus is a read-only snapshot of one bay.
type BayStatus struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Phase      int             `json:"phase"`
	PhaseLabel string          `json:"phase_label"`
	Occupied   bool            `json:"occupied"`
	Options    washbay.Options `json:"options"`
	Revenue    float64         `json:"revenue"`
}

// AdvanceResult describes the outcome of a single advance on a bay.
type AdvanceResult struct {
	BayID     int64   `json:"bay_id"`
	Phase     int     `json:"phase"`
	Label     string  `json:"phase_label"`
	Charge    float64 `json:"charge"`
	Advanced  bool    `json:"advanced"`
	Completed bool    `json:"completed"`
}

// NewService creates the station service and its notification pool.
func NewService(cfg *config.Config, s store.Store) *Service {
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	return &Service{
		cfg:        cfg,
		store:      s,
		workerPool: notification.NewWorkerPool(cfg.WorkerPool.Size, s.DB(), &webpushOptions),
		bays:       make(map[int64]*washbay.Bay),
		names:      make(map[int64]string),
		steps:      make(map[int64]int),
	}
}

// Init registers the configured bays and clears any cycle rows left
// open by a previous run. In-memory bay state does not survive a
// restart, so a leftover open cycle is archived as-is.
func (s *Service) Init(ctx context.Context) error {
	registered, err := s.store.RegisterBays(ctx, s.cfg.Station.Bays)
	if err != nil {
		return fmt.Errorf("failed to register bays: %w", err)
	}

	stale, err := s.store.OpenCycles(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch open cycles: %w", err)
	}
	now := time.Now().UTC()
	for bayID := range stale {
		log.Printf("Archiving stale open cycle for bay %d", bayID)
		if err := s.store.CloseCycle(ctx, bayID, now, 0); err != nil {
			return fmt.Errorf("failed to archive stale cycle for bay %d: %w", bayID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range registered {
		s.bays[b.ID] = washbay.New()
		s.names[b.ID] = b.Name
	}
	log.Printf("Station initialized with %d bays", len(registered))
	return nil
}

// RequestWash admits a vehicle into a bay with the given services. The
// bay is released again if the open cycle cannot be recorded, so a
// failed request leaves no partial state behind.
func (s *Service) RequestWash(ctx context.Context, bayID int64, opts washbay.Options) (BayStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bay, ok := s.bays[bayID]
	if !ok {
		return BayStatus{}, fmt.Errorf("bay %d: %w", bayID, ErrUnknownBay)
	}

	if err := bay.Accept(opts); err != nil {
		return BayStatus{}, err
	}
	s.steps[bayID] = 0

	cycle := model.CycleOpen{
		BayID:       bayID,
		StartedAt:   time.Now().UTC(),
		Phase:       int(bay.Phase()),
		HandPreWash: opts.HandPreWash,
		HandDry:     opts.HandDry,
		Waxing:      opts.Waxing,
	}
	if err := s.store.OpenCycle(ctx, cycle); err != nil {
		bay.Reset()
		return BayStatus{}, err
	}

	return s.statusLocked(bayID), nil
}

// Advance steps one bay through a single transition and persists it.
func (s *Service) Advance(ctx context.Context, bayID int64) (AdvanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked(ctx, bayID)
}

func (s *Service) advanceLocked(ctx context.Context, bayID int64) (AdvanceResult, error) {
	bay, ok := s.bays[bayID]
	if !ok {
		return AdvanceResult{}, fmt.Errorf("bay %d: %w", bayID, ErrUnknownBay)
	}

	if !bay.Occupied() {
		// Advancing an idle bay is legal and does nothing; callers may
		// poll unconditionally.
		return AdvanceResult{
			BayID: bayID,
			Phase: int(bay.Phase()),
			Label: bay.Phase().String(),
		}, nil
	}

	phase, charge, err := bay.Advance()
	if err != nil {
		return AdvanceResult{}, fmt.Errorf("bay %d: %w", bayID, err)
	}
	s.steps[bayID]++

	result := AdvanceResult{
		BayID:    bayID,
		Phase:    int(phase),
		Label:    phase.String(),
		Charge:   charge,
		Advanced: true,
	}

	if bay.Occupied() {
		if err := s.store.UpdateCyclePhase(ctx, bayID, int(phase), charge); err != nil {
			return result, err
		}
		return result, nil
	}

	// Cycle complete: archive it and tell subscribers the bay is free.
	// If the archive fails, the open row stays behind; the next wash
	// overwrites it in OpenCycle, so the bay cannot wedge.
	result.Completed = true
	if err := s.store.CloseCycle(ctx, bayID, time.Now().UTC(), s.steps[bayID]); err != nil {
		return result, err
	}
	s.workerPool.Dispatch(bayID)
	return result, nil
}

// AdvanceAll steps every occupied bay through one transition.
func (s *Service) AdvanceAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.bays))
	for id := range s.bays {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if !s.bays[id].Occupied() {
			continue
		}
		if _, err := s.advanceLocked(ctx, id); err != nil {
			log.Printf("Error advancing bay %d: %v", id, err)
		}
	}
}

// Status returns a snapshot of one bay.
func (s *Service) Status(bayID int64) (BayStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bays[bayID]; !ok {
		return BayStatus{}, fmt.Errorf("bay %d: %w", bayID, ErrUnknownBay)
	}
	return s.statusLocked(bayID), nil
}

// StatusAll returns a snapshot of every bay, ordered by ID.
func (s *Service) StatusAll() []BayStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.bays))
	for id := range s.bays {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	statuses := make([]BayStatus, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, s.statusLocked(id))
	}
	return statuses
}

func (s *Service) statusLocked(bayID int64) BayStatus {
	bay := s.bays[bayID]
	return BayStatus{
		ID:         bayID,
		Name:       s.names[bayID],
		Phase:      int(bay.Phase()),
		PhaseLabel: bay.Phase().String(),
		Occupied:   bay.Occupied(),
		Options:    bay.SelectedOptions(),
		Revenue:    bay.TotalRevenue(),
	}
}

// Run starts the notification pool and, when enabled, the auto-advance
// loop that steps every occupied bay once per interval.
func (s *Service) Run(ctx context.Context) {
	s.workerPool.Start(ctx)

	if !s.cfg.Station.AutoAdvance {
		log.Println("Auto-advance is disabled. Bays advance via the API only.")
		return
	}
	log.Println("Starting station auto-advance loop...")

	timer := time.NewTimer(s.cfg.Station.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Station service shutting down.")
			return
		case <-timer.C:
			s.AdvanceAll(ctx)
			timer.Reset(s.cfg.Station.Interval)
		}
	}
}

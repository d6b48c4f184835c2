package washbay

import (
	"errors"
	"fmt"
)

// Phase is one discrete state of the wash cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCharging
	PhaseHandPreWash
	PhaseRinsing
	PhaseSoaping
	PhaseRollers
	PhaseAutoDry
	PhaseHandDry
	PhaseWaxing
)

var phaseLabels = map[Phase]string{
	PhaseIdle:        "Idle",
	PhaseCharging:    "Charging",
	PhaseHandPreWash: "Hand pre-wash",
	PhaseRinsing:     "Rinsing",
	PhaseSoaping:     "Soaping",
	PhaseRollers:     "Rollers",
	PhaseAutoDry:     "Automatic drying",
	PhaseHandDry:     "Hand drying",
	PhaseWaxing:      "Waxing",
}

// String returns the human-readable label for the phase.
func (p Phase) String() string {
	if label, ok := phaseLabels[p]; ok {
		return label
	}
	return fmt.Sprintf("invalid phase (%d)", int(p))
}

// Pricing for a single cycle, in currency units.
const (
	BasePrice        = 5.00
	HandPreWashPrice = 1.50
	HandDryPrice     = 1.20
	WaxingPrice      = 1.00
)

var (
	// ErrOccupied is returned when a wash is requested while a vehicle
	// is still in the bay.
	ErrOccupied = errors.New("bay is occupied")

	// ErrInvalidServices is returned when waxing is requested without
	// hand drying. Waxing is only offered on top of a manual dry.
	ErrInvalidServices = errors.New("waxing requires hand drying")

	// ErrInvalidPhase means the machine is in a phase outside the known
	// set. The cycle cannot continue.
	ErrInvalidPhase = errors.New("invalid phase")

	// ErrRunawayCycle is raised by RunCycle when a cycle fails to reach
	// Idle within the phase budget.
	ErrRunawayCycle = errors.New("runaway wash cycle")
)

// A full cycle visits at most 9 phases including the return to Idle;
// anything past 15 recorded phases means the machine is looping.
const maxCyclePhases = 15

// Options are the services selected for one vehicle. They are captured
// at acceptance time and do not change for the duration of the cycle.
type Options struct {
	HandPreWash bool `json:"hand_pre_wash"`
	HandDry     bool `json:"hand_dry"`
	Waxing      bool `json:"waxing"`
}

// Price returns the total charge for a cycle with these options.
func (o Options) Price() float64 {
	price := BasePrice
	if o.HandPreWash {
		price += HandPreWashPrice
	}
	if o.HandDry {
		price += HandDryPrice
	}
	if o.Waxing {
		price += WaxingPrice
	}
	return price
}

// Bay is a single car-wash bay modelled as a state machine. It holds no
// lock of its own; callers sharing a bay must serialize access.
type Bay struct {
	phase        Phase
	occupied     bool
	totalRevenue float64
	opts         Options
}

// New returns a bay in the reset state: idle, unoccupied, no services
// selected, zero revenue.
func New() *Bay {
	b := &Bay{}
	b.Reset()
	return b
}

// Reset forces the bay back to idle and clears the selected services.
// Accumulated revenue is kept. Safe to call at any time.
func (b *Bay) Reset() {
	b.phase = PhaseIdle
	b.occupied = false
	b.opts = Options{}
}

// Accept admits a vehicle with the given service selection. It fails
// without touching any state when the bay is occupied or when the
// selection is invalid. Billing happens on the first Advance, not here.
func (b *Bay) Accept(opts Options) error {
	if b.occupied {
		return ErrOccupied
	}
	if opts.Waxing && !opts.HandDry {
		return ErrInvalidServices
	}

	b.phase = PhaseIdle
	b.occupied = true
	b.opts = opts
	return nil
}

// Advance moves the bay through exactly one transition and returns the
// new phase plus the amount billed by that transition (non-zero only on
// Idle→Charging). Advancing an unoccupied bay is a no-op, so callers
// may poll unconditionally.
func (b *Bay) Advance() (Phase, float64, error) {
	if !b.occupied {
		return b.phase, 0, nil
	}

	switch b.phase {
	case PhaseIdle:
		charge := b.opts.Price()
		b.totalRevenue += charge
		b.phase = PhaseCharging
		return b.phase, charge, nil
	case PhaseCharging:
		if b.opts.HandPreWash {
			b.phase = PhaseHandPreWash
		} else {
			b.phase = PhaseRinsing
		}
	case PhaseHandPreWash:
		b.phase = PhaseRinsing
	case PhaseRinsing:
		b.phase = PhaseSoaping
	case PhaseSoaping:
		b.phase = PhaseRollers
	case PhaseRollers:
		// As deployed: a hand-dry selection leaves via the automatic
		// drier and everything else goes to the hand-dry line.
		if b.opts.HandDry {
			b.phase = PhaseAutoDry
		} else {
			b.phase = PhaseHandDry
		}
	case PhaseAutoDry, PhaseHandDry, PhaseWaxing:
		// Terminal phases. Nothing routes into Waxing, but it keeps a
		// terminal rule in case that ever changes.
		b.Reset()
	default:
		return b.phase, 0, fmt.Errorf("%w: %d", ErrInvalidPhase, int(b.phase))
	}

	return b.phase, 0, nil
}

// RunCycle drives a complete wash from acceptance back to idle and
// returns every phase visited, starting with the phase right after
// acceptance. It fails with ErrRunawayCycle if the machine records more
// than maxCyclePhases phases without releasing the bay.
func (b *Bay) RunCycle(opts Options) ([]Phase, error) {
	if err := b.Accept(opts); err != nil {
		return nil, err
	}

	phases := []Phase{b.phase}
	for b.occupied {
		if len(phases) > maxCyclePhases {
			return phases, ErrRunawayCycle
		}
		next, _, err := b.Advance()
		if err != nil {
			return phases, err
		}
		phases = append(phases, next)
	}
	return phases, nil
}

// Phase returns the current phase.
func (b *Bay) Phase() Phase { return b.phase }

// Occupied reports whether a vehicle is currently in the bay.
func (b *Bay) Occupied() bool { return b.occupied }

// TotalRevenue returns the accumulated revenue across all cycles.
func (b *Bay) TotalRevenue() float64 { return b.totalRevenue }

// SelectedOptions returns the services chosen for the current vehicle.
// Meaningless while the bay is unoccupied.
func (b *Bay) SelectedOptions() Options { return b.opts }

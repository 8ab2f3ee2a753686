// Package eventgen generates the synthetic QuickKart clickstream: sessions of
// user events that respect cart and ordering rules, plus the flat CSV codec
// the loaders consume.
package eventgen

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/pkg/types"
)

// Prices are drawn uniformly from [MinPrice, MaxPrice] cents.
const (
	MinPrice types.Price = 500
	MaxPrice types.Price = 100000
)

var actions = []Action{ActionView, ActionAddToCart, ActionPurchase, ActionLogout}

// EmitFunc receives each event in emission order. Returning an error stops
// generation and Run returns that error.
type EmitFunc func(types.Event) error

// Sequencer produces session-constrained event sequences. All counters and
// catalog state belong to the instance, so separate instances can run
// concurrently. A single Sequencer is not safe for concurrent use.
type Sequencer struct {
	cfg      Config
	rng      *rand.Rand
	sampler  *Discrete
	users    []string
	products []types.Product

	nextEventID   int64
	nextSessionID int64
}

// NewSequencer validates cfg and builds the user and product pools from rng.
// The same cfg and an identically seeded rng produce the same events.
func NewSequencer(cfg Config, rng *rand.Rand) (*Sequencer, error) {
	if rng == nil {
		return nil, errors.NewInvalidConfiguration("random source must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sampler, err := NewDiscrete(actions, cfg.Weights.slice())
	if err != nil {
		return nil, err
	}

	s := &Sequencer{
		cfg:           cfg,
		rng:           rng,
		sampler:       sampler,
		users:         make([]string, cfg.Users),
		products:      make([]types.Product, cfg.Products),
		nextEventID:   1,
		nextSessionID: 1,
	}
	for i := range s.users {
		s.users[i] = fmt.Sprintf("user_%d", i+1)
	}
	for i := range s.products {
		s.products[i] = types.Product{
			ID:       fmt.Sprintf("prod_%d", i+1),
			Category: pick(rng, cfg.Categories),
			Price:    MinPrice + types.Price(rng.Int63n(int64(MaxPrice-MinPrice)+1)),
		}
	}
	return s, nil
}

// GenerateSeeded runs a fresh sequencer for cfg on a source seeded with seed.
func GenerateSeeded(ctx context.Context, cfg Config, seed int64) ([]types.Event, error) {
	seq, err := NewSequencer(cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	return seq.Generate(ctx)
}

// Products returns a copy of the catalog.
func (s *Sequencer) Products() []types.Product {
	return append([]types.Product(nil), s.products...)
}

// Generate returns exactly cfg.TotalEvents events.
func (s *Sequencer) Generate(ctx context.Context) ([]types.Event, error) {
	events := make([]types.Event, 0, s.cfg.TotalEvents)
	err := s.Run(ctx, func(e types.Event) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Run streams exactly cfg.TotalEvents events to emit. It stops early only if
// ctx is cancelled or emit fails. Calling Run again continues the id counters.
func (s *Sequencer) Run(ctx context.Context, emit EmitFunc) error {
	run := &runState{seq: s, emit: emit, limit: s.cfg.TotalEvents}
	for !run.full() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := run.session(); err != nil {
			return err
		}
	}
	return nil
}

type runState struct {
	seq     *Sequencer
	emit    EmitFunc
	limit   int
	emitted int
}

func (r *runState) full() bool {
	return r.emitted >= r.limit
}

// session generates one session until logout, budget exhaustion or the
// event limit, whichever comes first.
func (r *runState) session() error {
	s := r.seq
	cfg := s.cfg

	base := types.Event{
		UserID:     pick(s.rng, s.users),
		SessionID:  fmt.Sprintf("session_%d", s.nextSessionID),
		City:       pick(s.rng, cfg.Cities),
		DeviceType: pick(s.rng, cfg.Devices),
	}
	s.nextSessionID++

	at := s.startTime()
	if err := r.record(base, at, types.EventOpenSession, nil); err != nil {
		return err
	}

	budget := randInt(s.rng, cfg.MinActions, cfg.MaxActions)
	var cart []types.Product

	for i := 0; i < budget; i++ {
		if r.full() {
			return nil
		}

		// Draw order (step, product, action) is fixed; changing it changes
		// every seeded dataset.
		at = at.Add(time.Duration(randInt(s.rng, cfg.MinStepMinutes, cfg.MaxStepMinutes)) * time.Minute)
		product := s.products[s.rng.Intn(len(s.products))]
		action := s.sampler.Next(s.rng)

		switch action {
		case ActionLogout:
			return r.record(base, at, types.EventCloseSession, nil)
		case ActionPurchase:
			if len(cart) == 0 {
				action = ActionView
				break
			}
			j := s.rng.Intn(len(cart))
			product = cart[j]
			cart = append(cart[:j], cart[j+1:]...)
		case ActionAddToCart:
			cart = append(cart, product)
		}

		if err := r.record(base, at, itemEventType(action), &product); err != nil {
			return err
		}
	}

	if cfg.CloseExhaustedSessions && !r.full() {
		return r.record(base, at, types.EventCloseSession, nil)
	}
	return nil
}

func (r *runState) record(base types.Event, at time.Time, et types.EventType, product *types.Product) error {
	e := base
	e.EventID = r.seq.nextEventID
	e.EventTime = at
	e.EventType = et
	if product != nil {
		p := *product
		e.Product = &p
	}
	r.seq.nextEventID++
	r.emitted++
	return r.emit(e)
}

func (s *Sequencer) startTime() time.Time {
	start := s.cfg.WindowEnd.Add(-s.cfg.Window).Truncate(time.Second)
	span := int64(s.cfg.Window / time.Second)
	return start.Add(time.Duration(s.rng.Int63n(span+1)) * time.Second).UTC()
}

func itemEventType(a Action) types.EventType {
	switch a {
	case ActionAddToCart:
		return types.EventAddToCart
	case ActionPurchase:
		return types.EventPurchase
	default:
		return types.EventViewItem
	}
}

func pick[T any](r *rand.Rand, values []T) T {
	return values[r.Intn(len(values))]
}

// randInt returns a uniform integer in [lo, hi].
func randInt(r *rand.Rand, lo, hi int) int {
	return lo + r.Intn(hi-lo+1)
}

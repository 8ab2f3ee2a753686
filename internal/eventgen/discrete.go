package eventgen

import (
	"math"
	"math/rand"
	"sort"

	"github.com/storelabs/storelabs/internal/errors"
)

// Action is a per-step draw inside a session. Logout is an action, not an
// event type: it is recorded as close_session.
type Action int

const (
	ActionView Action = iota
	ActionAddToCart
	ActionPurchase
	ActionLogout
)

func (a Action) String() string {
	switch a {
	case ActionView:
		return "view_item"
	case ActionAddToCart:
		return "add_to_cart"
	case ActionPurchase:
		return "purchase"
	case ActionLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// Discrete samples values from a fixed weighted distribution using a
// cumulative-weight table and one uniform draw per sample.
type Discrete struct {
	values     []Action
	cumulative []float64
	total      float64
	last       int
}

// NewDiscrete builds a sampler over values with the matching weights. Weights
// must be non-negative with a positive sum.
func NewDiscrete(values []Action, weights []float64) (*Discrete, error) {
	if len(values) == 0 || len(values) != len(weights) {
		return nil, errors.NewInvalidConfiguration("discrete: %d values for %d weights", len(values), len(weights))
	}

	d := &Discrete{
		values:     append([]Action(nil), values...),
		cumulative: make([]float64, len(weights)),
	}
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, errors.NewInvalidConfiguration("discrete: invalid weight %v for %s", w, values[i])
		}
		d.total += w
		d.cumulative[i] = d.total
		if w > 0 {
			d.last = i
		}
	}
	if d.total <= 0 {
		return nil, errors.NewInvalidConfiguration("discrete: weights must have a positive sum")
	}
	if math.IsInf(d.total, 0) {
		return nil, errors.NewInvalidConfiguration("discrete: weight sum overflows")
	}
	return d, nil
}

// Next draws one value.
func (d *Discrete) Next(r *rand.Rand) Action {
	u := r.Float64() * d.total
	// First bucket whose cumulative weight exceeds u. Zero-weight buckets
	// share their predecessor's bound and are never selected.
	i := sort.Search(len(d.cumulative), func(i int) bool {
		return d.cumulative[i] > u
	})
	if i == len(d.cumulative) {
		i = d.last
	}
	return d.values[i]
}

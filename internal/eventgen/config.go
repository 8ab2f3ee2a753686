package eventgen

import (
	"time"

	"github.com/storelabs/storelabs/internal/errors"
)

// DefaultAnchor is the fixed end of the default session start window. A fixed
// anchor keeps seeded runs reproducible across days.
var DefaultAnchor = time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

// ActionWeights is the relative weight of each per-step action.
type ActionWeights struct {
	View      float64 `json:"view" yaml:"view"`
	AddToCart float64 `json:"add_to_cart" yaml:"add_to_cart"`
	Purchase  float64 `json:"purchase" yaml:"purchase"`
	Logout    float64 `json:"logout" yaml:"logout"`
}

func (w ActionWeights) slice() []float64 {
	return []float64{w.View, w.AddToCart, w.Purchase, w.Logout}
}

// Config holds the generator parameters.
type Config struct {
	// TotalEvents is the exact number of events to emit.
	TotalEvents int `json:"total_events" yaml:"total_events"`

	// Users and Products size the synthetic pools (user_1..user_N, prod_1..prod_M).
	Users    int `json:"users" yaml:"users"`
	Products int `json:"products" yaml:"products"`

	Categories []string `json:"categories" yaml:"categories"`
	Cities     []string `json:"cities" yaml:"cities"`
	Devices    []string `json:"devices" yaml:"devices"`

	Weights ActionWeights `json:"weights" yaml:"weights"`

	// MinActions and MaxActions bound the per-session action budget (inclusive).
	MinActions int `json:"min_actions" yaml:"min_actions"`
	MaxActions int `json:"max_actions" yaml:"max_actions"`

	// MinStepMinutes and MaxStepMinutes bound the time advance per action (inclusive).
	MinStepMinutes int `json:"min_step_minutes" yaml:"min_step_minutes"`
	MaxStepMinutes int `json:"max_step_minutes" yaml:"max_step_minutes"`

	// Sessions start uniformly in [WindowEnd-Window, WindowEnd] at second resolution.
	WindowEnd time.Time     `json:"window_end" yaml:"window_end"`
	Window    time.Duration `json:"window" yaml:"window"`

	// CloseExhaustedSessions emits close_session when a session runs out of
	// budget. By default only a logout closes a session.
	CloseExhaustedSessions bool `json:"close_exhausted_sessions" yaml:"close_exhausted_sessions"`
}

// DefaultConfig returns the QuickKart defaults: 4000 events over 100 users
// and 250 products.
func DefaultConfig() Config {
	return Config{
		TotalEvents:    4000,
		Users:          100,
		Products:       250,
		Categories:     []string{"Electronics", "Grocery", "Clothing", "Home & Kitchen", "Sports"},
		Cities:         []string{"Lahore", "Karachi", "Islamabad", "Rawalpindi", "Faisalabad"},
		Devices:        []string{"web", "android", "ios"},
		Weights:        ActionWeights{View: 0.6, AddToCart: 0.2, Purchase: 0.1, Logout: 0.1},
		MinActions:     1,
		MaxActions:     15,
		MinStepMinutes: 1,
		MaxStepMinutes: 10,
		WindowEnd:      DefaultAnchor,
		Window:         30 * 24 * time.Hour,
	}
}

// Validate checks that every count, set, weight and bound is usable.
func (c Config) Validate() error {
	if c.TotalEvents <= 0 {
		return errors.NewInvalidConfiguration("total events must be positive, got %d", c.TotalEvents)
	}
	if c.Users <= 0 {
		return errors.NewInvalidConfiguration("user pool size must be positive, got %d", c.Users)
	}
	if c.Products <= 0 {
		return errors.NewInvalidConfiguration("product pool size must be positive, got %d", c.Products)
	}
	if err := nonEmpty("categories", c.Categories); err != nil {
		return err
	}
	if err := nonEmpty("cities", c.Cities); err != nil {
		return err
	}
	if err := nonEmpty("devices", c.Devices); err != nil {
		return err
	}
	if _, err := NewDiscrete(actions, c.Weights.slice()); err != nil {
		return err
	}
	if c.MinActions <= 0 || c.MaxActions < c.MinActions {
		return errors.NewInvalidConfiguration("action budget bounds [%d, %d] are invalid", c.MinActions, c.MaxActions)
	}
	if c.MinStepMinutes <= 0 || c.MaxStepMinutes < c.MinStepMinutes {
		return errors.NewInvalidConfiguration("time step bounds [%d, %d] minutes are invalid", c.MinStepMinutes, c.MaxStepMinutes)
	}
	if c.Window < 0 {
		return errors.NewInvalidConfiguration("session start window must not be negative, got %s", c.Window)
	}
	if c.WindowEnd.IsZero() {
		return errors.NewInvalidConfiguration("session start window end must be set")
	}
	return nil
}

func nonEmpty(name string, values []string) error {
	if len(values) == 0 {
		return errors.NewInvalidConfiguration("%s must not be empty", name)
	}
	for _, v := range values {
		if v == "" {
			return errors.NewInvalidConfiguration("%s must not contain empty values", name)
		}
	}
	return nil
}

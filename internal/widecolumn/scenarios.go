package widecolumn

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Scenario names the users, products and sessions the scenario run touches.
type Scenario struct {
	HistoryUser     string
	HistoryLimit    int
	Product         string
	FixUser         string
	FixCity         string
	FlagSession     string
	PaymentMethod   string
	DeleteEventUser string
	DeleteUser      string
	MaxAge          time.Duration
	Now             time.Time
}

// DefaultScenario returns the classic lab parameters.
func DefaultScenario() Scenario {
	return Scenario{
		HistoryUser:     "user_5",
		HistoryLimit:    10,
		Product:         "prod_20",
		FixUser:         "user_19",
		FixCity:         "Sialkot",
		FlagSession:     "session_1",
		PaymentMethod:   "card",
		DeleteEventUser: "user_33",
		DeleteUser:      "user_19",
		MaxAge:          180 * 24 * time.Hour,
	}
}

// Cutoff returns the instant before which DeleteOlderThan removes rows.
func (sc Scenario) Cutoff() time.Time {
	now := sc.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.Add(-sc.MaxAge)
}

// ScenarioResult collects what each step observed.
type ScenarioResult struct {
	History          []Row
	ProductPurchases int
	CityPurchases    []CityCount
	CityFixed        *Key
	Flagged          int
	PaymentUpdated   int
	DeletedEvent     *Key
	DeletedOld       int
}

// RunReads runs the three read scenarios.
func (s *Store) RunReads(ctx context.Context, sc Scenario, res *ScenarioResult) error {
	var err error
	if res.History, err = s.UserHistory(ctx, sc.HistoryUser, sc.HistoryLimit); err != nil {
		return err
	}
	if res.ProductPurchases, err = s.ProductPurchaseCount(ctx, sc.Product); err != nil {
		return err
	}
	if res.CityPurchases, err = s.PurchasesByCity(ctx); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"history_rows":      len(res.History),
		"product":           sc.Product,
		"product_purchases": res.ProductPurchases,
		"cities":            len(res.CityPurchases),
	}).Info("read scenarios finished")
	return nil
}

// RunUpdates runs the three update scenarios.
func (s *Store) RunUpdates(ctx context.Context, sc Scenario, res *ScenarioResult) error {
	k, err := s.FirstKey(ctx, sc.FixUser)
	if err != nil {
		return err
	}
	if k != nil {
		if err := s.UpdateCity(ctx, *k, sc.FixCity); err != nil {
			return err
		}
		res.CityFixed = k
	} else {
		s.logger.WithField("user_id", sc.FixUser).Warn("no event to fix")
	}

	if res.Flagged, err = s.FlagSession(ctx, sc.FlagSession); err != nil {
		return err
	}
	if res.PaymentUpdated, err = s.SetPaymentMethod(ctx, sc.PaymentMethod); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"flagged":         res.Flagged,
		"payment_updated": res.PaymentUpdated,
	}).Info("update scenarios finished")
	return nil
}

// RunDeletes runs the three delete scenarios.
func (s *Store) RunDeletes(ctx context.Context, sc Scenario, res *ScenarioResult) error {
	k, err := s.FirstKey(ctx, sc.DeleteEventUser)
	if err != nil {
		return err
	}
	if k != nil {
		if err := s.DeleteEvent(ctx, *k); err != nil {
			return err
		}
		res.DeletedEvent = k
	} else {
		s.logger.WithField("user_id", sc.DeleteEventUser).Warn("no event to delete")
	}

	if err := s.DeleteUser(ctx, sc.DeleteUser); err != nil {
		return err
	}
	if res.DeletedOld, err = s.DeleteOlderThan(ctx, sc.Cutoff()); err != nil {
		return err
	}
	s.logger.WithField("deleted_old", res.DeletedOld).Info("delete scenarios finished")
	return nil
}

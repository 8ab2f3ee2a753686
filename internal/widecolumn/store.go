package widecolumn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/report"
	"github.com/storelabs/storelabs/pkg/types"
)

// ProgressEvery is the default number of rows between load progress logs.
const ProgressEvery = 500

// Store runs the events_by_user workload against a Cassandra cluster.
type Store struct {
	session           *gocql.Session
	keyspace          string
	replicationFactor int
	logger            logrus.FieldLogger
	stats             *report.Stats
}

// Connect opens a session without a default keyspace so Setup can create it.
// Every statement qualifies the table with the keyspace.
func Connect(cfg config.CassandraConfig, logger logrus.FieldLogger) (*Store, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.NewInvalidConfiguration("cassandra hosts must not be empty")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Consistency = gocql.One
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.NewConnectionError(fmt.Sprintf("cassandra %s", strings.Join(cfg.Hosts, ",")), err)
	}

	rf := cfg.ReplicationFactor
	if rf <= 0 {
		rf = 1
	}
	return &Store{
		session:           session,
		keyspace:          cfg.Keyspace,
		replicationFactor: rf,
		logger:            logger.WithField("keyspace", cfg.Keyspace),
		stats:             report.NewStats(),
	}, nil
}

// Close closes the session.
func (s *Store) Close() {
	if s.session != nil {
		s.session.Close()
	}
}

// Stats returns the per-operation timings collected so far.
func (s *Store) Stats() *report.Stats {
	return s.stats
}

func (s *Store) exec(ctx context.Context, stmt string, args ...interface{}) error {
	return s.session.Query(stmt, args...).WithContext(ctx).Exec()
}

func (s *Store) table() string {
	return s.keyspace + "." + TableName
}

// Setup creates the keyspace and the events table.
func (s *Store) Setup(ctx context.Context) error {
	return s.stats.Time(ctx, "setup", func(ctx context.Context) error {
		if err := s.exec(ctx, KeyspaceCQL(s.keyspace, s.replicationFactor)); err != nil {
			return errors.NewQueryError("create keyspace "+s.keyspace, err)
		}
		if err := s.exec(ctx, TableCQL(s.keyspace)); err != nil {
			return errors.NewQueryError("create table "+s.table(), err)
		}
		s.logger.Info("keyspace and table ready")
		return nil
	})
}

// LoadOptions tunes Load.
type LoadOptions struct {
	// TTL expires rows after the given duration; zero keeps them forever
	TTL time.Duration

	// ProgressEvery logs progress every N rows; zero uses ProgressEvery
	ProgressEvery int
}

// Load inserts events one row at a time and stops at the first failure. It
// returns the number of rows written before the failure.
func (s *Store) Load(ctx context.Context, events []types.Event, opts LoadOptions) (int, error) {
	every := opts.ProgressEvery
	if every <= 0 {
		every = ProgressEvery
	}
	ttl := int(opts.TTL / time.Second)
	stmt := InsertCQL(s.keyspace, ttl > 0)

	var written int
	err := s.stats.Time(ctx, "load", func(ctx context.Context) error {
		for i := range events {
			args := insertArgs(&events[i])
			if ttl > 0 {
				args = append(args, ttl)
			}
			if err := s.exec(ctx, stmt, args...); err != nil {
				return errors.NewLoadError(fmt.Sprintf("insert row %d", i), err).
					WithDetails(map[string]interface{}{"event_id": events[i].EventID, "user_id": events[i].UserID})
			}
			written++
			if written%every == 0 {
				s.logger.WithField("rows", written).Info("load progress")
			}
		}
		return nil
	})
	s.logger.WithField("rows", written).Info("load finished")
	return written, err
}

// UserHistory returns the latest limit events of a user, newest first.
func (s *Store) UserHistory(ctx context.Context, userID string, limit int) ([]Row, error) {
	var rows []Row
	err := s.stats.Time(ctx, "user_history", func(ctx context.Context) error {
		iter := s.session.Query(
			fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ? LIMIT ?", columns, s.table()),
			userID, limit).WithContext(ctx).Iter()

		var r Row
		for iter.Scan(&r.UserID, &r.EventTime, &r.EventID, &r.SessionID, &r.EventType,
			&r.ProductID, &r.Category, &r.Price, &r.City, &r.DeviceType) {
			rows = append(rows, r)
			r = Row{}
		}
		if err := iter.Close(); err != nil {
			return errors.NewQueryError("user history "+userID, err)
		}
		return nil
	})
	return rows, err
}

// ProductPurchaseCount counts purchases of a product with a filtered scan.
func (s *Store) ProductPurchaseCount(ctx context.Context, productID string) (int, error) {
	var n int
	err := s.stats.Time(ctx, "product_purchases", func(ctx context.Context) error {
		iter := s.session.Query(
			fmt.Sprintf("SELECT event_id FROM %s WHERE event_type = ? AND product_id = ? ALLOW FILTERING", s.table()),
			string(types.EventPurchase), productID).WithContext(ctx).Iter()

		var id int
		for iter.Scan(&id) {
			n++
		}
		if err := iter.Close(); err != nil {
			return errors.NewQueryError("product purchases "+productID, err)
		}
		return nil
	})
	return n, err
}

// PurchasesByCity scans all purchases and tallies them per city client-side.
func (s *Store) PurchasesByCity(ctx context.Context) ([]CityCount, error) {
	counts := make(map[string]int)
	err := s.stats.Time(ctx, "purchases_by_city", func(ctx context.Context) error {
		iter := s.session.Query(
			fmt.Sprintf("SELECT city FROM %s WHERE event_type = ? ALLOW FILTERING", s.table()),
			string(types.EventPurchase)).WithContext(ctx).Iter()

		var city string
		for iter.Scan(&city) {
			counts[city]++
		}
		if err := iter.Close(); err != nil {
			return errors.NewQueryError("purchases by city", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortedCounts(counts), nil
}

// FirstKey returns the primary key of the newest event of a user, or nil if
// the user has no events.
func (s *Store) FirstKey(ctx context.Context, userID string) (*Key, error) {
	var k Key
	err := s.session.Query(
		fmt.Sprintf("SELECT user_id, event_time, event_id FROM %s WHERE user_id = ? LIMIT 1", s.table()),
		userID).WithContext(ctx).Scan(&k.UserID, &k.EventTime, &k.EventID)
	if err == gocql.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryError("first event of "+userID, err)
	}
	return &k, nil
}

// UpdateCity rewrites the city of one row addressed by its full primary key.
func (s *Store) UpdateCity(ctx context.Context, k Key, city string) error {
	return s.stats.Time(ctx, "update_city", func(ctx context.Context) error {
		err := s.exec(ctx,
			fmt.Sprintf("UPDATE %s SET city = ? WHERE user_id = ? AND event_time = ? AND event_id = ?", s.table()),
			city, k.UserID, k.EventTime, k.EventID)
		if err != nil {
			return errors.NewQueryError("update city", err)
		}
		return nil
	})
}

// FlagSession marks every event of a session with is_flagged = true, adding
// the column first when the table lacks it. It returns the number of rows flagged.
func (s *Store) FlagSession(ctx context.Context, sessionID string) (int, error) {
	if err := s.addColumn(ctx, "is_flagged", "boolean"); err != nil {
		return 0, err
	}
	var n int
	err := s.stats.Time(ctx, "flag_session", func(ctx context.Context) error {
		keys, err := s.scanKeys(ctx, "WHERE session_id = ? ALLOW FILTERING", sessionID)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("UPDATE %s SET is_flagged = true WHERE user_id = ? AND event_time = ? AND event_id = ?", s.table())
		for _, k := range keys {
			if err := s.exec(ctx, stmt, k.UserID, k.EventTime, k.EventID); err != nil {
				return errors.NewQueryError("flag session "+sessionID, err)
			}
			n++
		}
		return nil
	})
	return n, err
}

// SetPaymentMethod sets payment_method on every purchase row, adding the
// column first when the table lacks it. It returns the number of rows updated.
func (s *Store) SetPaymentMethod(ctx context.Context, method string) (int, error) {
	if err := s.addColumn(ctx, "payment_method", "text"); err != nil {
		return 0, err
	}
	var n int
	err := s.stats.Time(ctx, "set_payment_method", func(ctx context.Context) error {
		keys, err := s.scanKeys(ctx, "WHERE event_type = ? ALLOW FILTERING", string(types.EventPurchase))
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("UPDATE %s SET payment_method = ? WHERE user_id = ? AND event_time = ? AND event_id = ?", s.table())
		for _, k := range keys {
			if err := s.exec(ctx, stmt, method, k.UserID, k.EventTime, k.EventID); err != nil {
				return errors.NewQueryError("set payment method", err)
			}
			n++
		}
		return nil
	})
	return n, err
}

// DeleteEvent removes one row addressed by its full primary key.
func (s *Store) DeleteEvent(ctx context.Context, k Key) error {
	return s.stats.Time(ctx, "delete_event", func(ctx context.Context) error {
		err := s.exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND event_time = ? AND event_id = ?", s.table()),
			k.UserID, k.EventTime, k.EventID)
		if err != nil {
			return errors.NewQueryError("delete event", err)
		}
		return nil
	})
}

// DeleteUser removes a user's whole partition.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.stats.Time(ctx, "delete_user", func(ctx context.Context) error {
		if err := s.exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", s.table()), userID); err != nil {
			return errors.NewQueryError("delete user "+userID, err)
		}
		return nil
	})
}

// DeleteOlderThan scans every key and deletes rows with an event time before
// cutoff one at a time. It returns the number of rows deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.stats.Time(ctx, "delete_older_than", func(ctx context.Context) error {
		keys, err := s.scanKeys(ctx, "")
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND event_time = ? AND event_id = ?", s.table())
		for _, k := range olderThan(keys, cutoff) {
			if err := s.exec(ctx, stmt, k.UserID, k.EventTime, k.EventID); err != nil {
				return errors.NewQueryError("delete old event", err)
			}
			n++
		}
		return nil
	})
	return n, err
}

// Count returns the number of rows with a full scan.
func (s *Store) Count(ctx context.Context) (int, error) {
	keys, err := s.scanKeys(ctx, "")
	return len(keys), err
}

func (s *Store) scanKeys(ctx context.Context, where string, args ...interface{}) ([]Key, error) {
	stmt := fmt.Sprintf("SELECT user_id, event_time, event_id FROM %s", s.table())
	if where != "" {
		stmt += " " + where
	}
	iter := s.session.Query(stmt, args...).WithContext(ctx).Iter()

	var keys []Key
	var k Key
	for iter.Scan(&k.UserID, &k.EventTime, &k.EventID) {
		keys = append(keys, k)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.NewQueryError("scan keys", err)
	}
	return keys, nil
}

func (s *Store) addColumn(ctx context.Context, name, cqlType string) error {
	err := s.exec(ctx, fmt.Sprintf("ALTER TABLE %s ADD %s %s", s.table(), name, cqlType))
	if err != nil && !isColumnConflict(err) {
		return errors.NewQueryError("add column "+name, err)
	}
	return nil
}

// isColumnConflict reports whether err says the column is already defined.
func isColumnConflict(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exist") || strings.Contains(msg, "conflicts with an existing column")
}

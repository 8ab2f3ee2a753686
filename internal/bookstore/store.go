package bookstore

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/report"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New(errors.ErrCategoryQuery, errors.CodeNotFound, "bookstore document not found")

// Store runs bookstore operations against one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger logrus.FieldLogger
	stats  *report.Stats
	now    func() time.Time
}

// Connect opens a client for cfg and pings the primary.
func Connect(ctx context.Context, cfg config.MongoConfig, logger logrus.FieldLogger) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.NewConnectionError("connect mongo", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		cli.Disconnect(ctx)
		return nil, errors.NewConnectionError("ping mongo", err)
	}
	return NewStore(cli, cfg.Database, logger), nil
}

// NewStore wraps an existing client, using database name.
func NewStore(cli *mongo.Client, name string, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		client: cli,
		db:     cli.Database(name),
		logger: logger.WithFields(logrus.Fields{"component": "bookstore", "database": name}),
		stats:  report.NewStats(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for timestamps and time windows.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// Stats returns the collected operation timings.
func (s *Store) Stats() *report.Stats {
	return s.stats
}

// Database exposes the underlying database handle.
func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) timed(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return s.stats.Time(ctx, op, fn)
}

func queryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	return errors.NewQueryError(op+" failed", err)
}

// Seed clears every collection and inserts d. It returns the number of
// documents inserted per collection.
func (s *Store) Seed(ctx context.Context, d *Dataset) (map[string]int, error) {
	counts := make(map[string]int, len(Collections))
	err := s.timed(ctx, "seed", func(ctx context.Context) error {
		for _, name := range Collections {
			if _, err := s.coll(name).DeleteMany(ctx, bson.D{}); err != nil {
				return errors.NewLoadError("clear "+name, err)
			}
		}
		// Parents before children.
		for _, name := range []string{CollUsers, CollVendors, CollBooks, CollOrders, CollReviews, CollInventoryLogs, CollSessions} {
			docs := d.Documents(name)
			if len(docs) == 0 {
				continue
			}
			res, err := s.coll(name).InsertMany(ctx, docs)
			if err != nil {
				return errors.NewLoadError("insert "+name, err)
			}
			counts[name] = len(res.InsertedIDs)
		}
		return nil
	})
	if err != nil {
		return counts, err
	}
	s.logger.WithField("counts", counts).Info("bulk seeding completed")
	return counts, nil
}

// Count returns the number of documents in coll.
func (s *Store) Count(ctx context.Context, coll string) (int64, error) {
	n, err := s.coll(coll).CountDocuments(ctx, bson.D{})
	return n, queryErr("count "+coll, err)
}

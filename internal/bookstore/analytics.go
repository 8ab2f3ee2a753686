package bookstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MonthlySales is one (month, category) row of sales.
type MonthlySales struct {
	Year         int
	Month        time.Month
	Category     string
	TotalQty     int
	TotalRevenue float64
}

type BookSales struct {
	BookID       primitive.ObjectID `bson:"bookId"`
	Title        string             `bson:"title"`
	TotalQty     int                `bson:"totalQty"`
	TotalRevenue float64            `bson:"totalRevenue"`
}

type CoPurchase struct {
	BookID primitive.ObjectID `bson:"bookId"`
	Title  string             `bson:"title"`
	Count  int                `bson:"count"`
}

// Dashboard holds the vendor dashboard facets. Empty facets read as zero.
type Dashboard struct {
	Revenue         float64
	AvgDeliveryDays float64
	LowStockCount   int
}

type CategoryRating struct {
	Category  string  `bson:"_id"`
	AvgRating float64 `bson:"avgRating"`
	Reviews   int     `bson:"reviews"`
}

type AuthorRank struct {
	Author  string  `bson:"_id"`
	Revenue float64 `bson:"revenue"`
	Rank    int     `bson:"rank"`
}

// Retention is the repeat-purchase rate over the customers who ordered.
type Retention struct {
	Customers int     `bson:"customers"`
	Rate      float64 `bson:"retentionRate"`
}

type InventoryAnomaly struct {
	BookID   primitive.ObjectID `bson:"bookId"`
	Stock    int                `bson:"stock"`
	DeltaSum int                `bson:"deltaSum"`
	Diff     int                `bson:"diff"`
}

// PricedBook is a book with its price bucket. AvgRating is nil for books
// without reviews.
type PricedBook struct {
	ID        primitive.ObjectID `bson:"_id"`
	Title     string             `bson:"title"`
	Price     float64            `bson:"price"`
	Bucket    string             `bson:"priceBucket"`
	AvgRating *float64           `bson:"avgRating"`
}

type SearchHit struct {
	ID            primitive.ObjectID `bson:"_id"`
	Title         string             `bson:"title"`
	PublishedYear int                `bson:"publishedYear"`
	Score         float64            `bson:"score"`
}

func (s *Store) aggregate(ctx context.Context, op, coll string, p mongo.Pipeline, out interface{}) error {
	return s.timed(ctx, op, func(ctx context.Context) error {
		cur, err := s.coll(coll).Aggregate(ctx, p)
		if err != nil {
			return queryErr(op, err)
		}
		return queryErr(op+" decode", cur.All(ctx, out))
	})
}

// MonthlySalesByCategory runs the monthly sales rollup from since onwards.
func (s *Store) MonthlySalesByCategory(ctx context.Context, since time.Time) ([]MonthlySales, error) {
	var raw []struct {
		ID struct {
			Year     int    `bson:"year"`
			Month    int    `bson:"month"`
			Category string `bson:"category"`
		} `bson:"_id"`
		TotalQty     int     `bson:"totalQty"`
		TotalRevenue float64 `bson:"totalRevenue"`
	}
	if err := s.aggregate(ctx, "monthly_sales", CollOrders, MonthlySalesByCategory(since), &raw); err != nil {
		return nil, err
	}
	out := make([]MonthlySales, len(raw))
	for i, r := range raw {
		out[i] = MonthlySales{
			Year:         r.ID.Year,
			Month:        time.Month(r.ID.Month),
			Category:     r.ID.Category,
			TotalQty:     r.TotalQty,
			TotalRevenue: r.TotalRevenue,
		}
	}
	return out, nil
}

func (s *Store) TopSellers(ctx context.Context, n int64) ([]BookSales, error) {
	var out []BookSales
	err := s.aggregate(ctx, "top_sellers", CollOrders, TopSellers(n), &out)
	return out, err
}

func (s *Store) AlsoBought(ctx context.Context, target primitive.ObjectID, n int64) ([]CoPurchase, error) {
	var out []CoPurchase
	err := s.aggregate(ctx, "also_bought", CollOrders, AlsoBought(target, n), &out)
	return out, err
}

// VendorDashboard evaluates the dashboard facets for vendor, or for the
// whole catalogue when vendor is zero.
func (s *Store) VendorDashboard(ctx context.Context, vendor primitive.ObjectID, since time.Time, lowStock int) (*Dashboard, error) {
	var raw []struct {
		Sales []struct {
			Revenue float64 `bson:"revenue"`
		} `bson:"salesLast30d"`
		Delivery []struct {
			Days float64 `bson:"avgDeliveryDays"`
		} `bson:"avgDeliveryDays"`
		LowStock []struct {
			Count int `bson:"lowStockCount"`
		} `bson:"lowStockCount"`
	}
	if err := s.aggregate(ctx, "vendor_dashboard", CollBooks, VendorDashboard(vendor, since, lowStock), &raw); err != nil {
		return nil, err
	}
	d := &Dashboard{}
	if len(raw) == 0 {
		return d, nil
	}
	if f := raw[0].Sales; len(f) > 0 {
		d.Revenue = f[0].Revenue
	}
	if f := raw[0].Delivery; len(f) > 0 {
		d.AvgDeliveryDays = f[0].Days
	}
	if f := raw[0].LowStock; len(f) > 0 {
		d.LowStockCount = f[0].Count
	}
	return d, nil
}

func (s *Store) RatingsByCategory(ctx context.Context) ([]CategoryRating, error) {
	var out []CategoryRating
	err := s.aggregate(ctx, "ratings_by_category", CollReviews, RatingsByCategory(), &out)
	return out, err
}

func (s *Store) AuthorLeaderboard(ctx context.Context, category string) ([]AuthorRank, error) {
	var out []AuthorRank
	err := s.aggregate(ctx, "author_leaderboard", CollOrders, AuthorLeaderboard(category), &out)
	return out, err
}

// CohortRetention returns the retention over window. With no orders the
// rate is zero.
func (s *Store) CohortRetention(ctx context.Context, window time.Duration) (*Retention, error) {
	var out []Retention
	if err := s.aggregate(ctx, "cohort_retention", CollOrders, CohortRetention(window), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return &Retention{}, nil
	}
	return &out[0], nil
}

func (s *Store) InventoryAnomalies(ctx context.Context) ([]InventoryAnomaly, error) {
	var out []InventoryAnomaly
	err := s.aggregate(ctx, "inventory_anomalies", CollInventoryLogs, InventoryAnomalies(), &out)
	return out, err
}

func (s *Store) PriceBuckets(ctx context.Context) ([]PricedBook, error) {
	var out []PricedBook
	err := s.aggregate(ctx, "price_buckets", CollBooks, PriceBuckets(), &out)
	return out, err
}

// TextSearch ensures the books text index exists and runs query against it.
func (s *Store) TextSearch(ctx context.Context, query string, n int64) ([]SearchHit, error) {
	err := s.timed(ctx, "text_index", func(ctx context.Context) error {
		_, err := s.coll(CollBooks).Indexes().CreateOne(ctx, TextIndex())
		return queryErr("create text index", err)
	})
	if err != nil {
		return nil, err
	}
	var out []SearchHit
	err = s.aggregate(ctx, "text_search", CollBooks, TextSearch(query, n), &out)
	return out, err
}

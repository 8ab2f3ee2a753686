package bookstore

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Scenario constants.
const (
	VolumeCount       = 10
	RecentOrderCount  = 3
	NewestCount       = 5
	StaleSessionAge   = 7 * 24 * time.Hour
	SalesLookback     = 6 * 30 * 24 * time.Hour
	DashboardLookback = 30 * 24 * time.Hour
	LowStockThreshold = 5
	RetentionWindow   = 60 * 24 * time.Hour
	LeaderboardGenre  = "Programming"
	TopSellerCount    = 10
	AlsoBoughtCount   = 5
	SearchResultCount = 10
)

// CRUDResult collects what the CRUD scenarios observed.
type CRUDResult struct {
	BookID          primitive.ObjectID
	UserID          primitive.ObjectID
	VolumesAdded    int
	PriceRange      []BookSummary
	Newest          []Book
	RecentOrders    []OrderSummary
	PricesRaised    int64
	ReviewInserted  bool
	AddressesFixed  int64
	OrphansDeleted  int64
	VendorsDeleted  int64
	SessionsDeleted int64
}

// RunCRUD runs the create, read, update and delete scenarios against a
// seeded database. The first user, vendor and book act as the subjects.
func (s *Store) RunCRUD(ctx context.Context) (*CRUDResult, error) {
	now := s.now().Truncate(time.Millisecond)
	userID, err := s.firstID(ctx, CollUsers)
	if err != nil {
		return nil, err
	}
	vendorID, err := s.firstID(ctx, CollVendors)
	if err != nil {
		return nil, err
	}
	bookID, err := s.firstID(ctx, CollBooks)
	if err != nil {
		return nil, err
	}

	res := &CRUDResult{}
	if res.BookID, err = s.AddBook(ctx, NewCatalogueBook(vendorID, now)); err != nil {
		return res, err
	}
	if res.UserID, err = s.RegisterUser(ctx, AliceSmith(now)); err != nil {
		return res, err
	}
	if res.VolumesAdded, err = s.AddBooks(ctx, VolumeBooks(vendorID, now, VolumeCount)); err != nil {
		return res, err
	}
	s.logger.WithFields(logrus.Fields{"book": res.BookID.Hex(), "user": res.UserID.Hex(), "volumes": res.VolumesAdded}).Info("create scenarios finished")

	if res.PriceRange, err = s.BooksInPriceRange(ctx, DataScience, 20, 60); err != nil {
		return res, err
	}
	if res.Newest, err = s.NewestInStock(ctx, NewestCount); err != nil {
		return res, err
	}
	if res.RecentOrders, err = s.RecentOrders(ctx, userID, RecentOrderCount); err != nil {
		return res, err
	}
	s.logger.WithFields(logrus.Fields{
		"price_range":   len(res.PriceRange),
		"newest":        len(res.Newest),
		"recent_orders": len(res.RecentOrders),
	}).Info("read scenarios finished")

	if res.PricesRaised, err = s.RaisePublisherPrices(ctx, TechPress, 25, 1.05); err != nil {
		return res, err
	}
	review := Review{BookID: bookID, UserID: userID, Rating: 5, Title: "Excellent", Body: "Updated review text", CreatedAt: now}
	if res.ReviewInserted, err = s.UpsertReview(ctx, review); err != nil {
		return res, err
	}
	if res.AddressesFixed, err = s.RenameHomeCity(ctx, "Lahore", "Lahore City"); err != nil {
		return res, err
	}
	s.logger.WithFields(logrus.Fields{
		"prices_raised":   res.PricesRaised,
		"review_inserted": res.ReviewInserted,
		"addresses_fixed": res.AddressesFixed,
	}).Info("update scenarios finished")

	if res.OrphansDeleted, err = s.DeleteOrphanReviews(ctx); err != nil {
		return res, err
	}
	if res.VendorsDeleted, err = s.DeleteIdleSuspendedVendors(ctx); err != nil {
		return res, err
	}
	if res.SessionsDeleted, err = s.DeleteSessionsBefore(ctx, now.Add(-StaleSessionAge)); err != nil {
		return res, err
	}
	s.logger.WithFields(logrus.Fields{
		"orphan_reviews": res.OrphansDeleted,
		"vendors":        res.VendorsDeleted,
		"sessions":       res.SessionsDeleted,
	}).Info("delete scenarios finished")
	return res, nil
}

// AggregationResult collects the output of every analytics pipeline.
type AggregationResult struct {
	MonthlySales []MonthlySales
	TopSellers   []BookSales
	AlsoBought   []CoPurchase
	Dashboard    *Dashboard
	Ratings      []CategoryRating
	Authors      []AuthorRank
	Retention    *Retention
	Anomalies    []InventoryAnomaly
	PriceBuckets []PricedBook
	Search       []SearchHit
}

// RunAggregations runs the ten analytics pipelines. The first book is the
// also-bought target.
func (s *Store) RunAggregations(ctx context.Context) (*AggregationResult, error) {
	now := s.now()
	target, err := s.firstID(ctx, CollBooks)
	if err != nil {
		return nil, err
	}

	res := &AggregationResult{}
	if res.MonthlySales, err = s.MonthlySalesByCategory(ctx, now.Add(-SalesLookback)); err != nil {
		return res, err
	}
	if res.TopSellers, err = s.TopSellers(ctx, TopSellerCount); err != nil {
		return res, err
	}
	if res.AlsoBought, err = s.AlsoBought(ctx, target, AlsoBoughtCount); err != nil {
		return res, err
	}
	if res.Dashboard, err = s.VendorDashboard(ctx, primitive.NilObjectID, now.Add(-DashboardLookback), LowStockThreshold); err != nil {
		return res, err
	}
	if res.Ratings, err = s.RatingsByCategory(ctx); err != nil {
		return res, err
	}
	if res.Authors, err = s.AuthorLeaderboard(ctx, LeaderboardGenre); err != nil {
		return res, err
	}
	if res.Retention, err = s.CohortRetention(ctx, RetentionWindow); err != nil {
		return res, err
	}
	if res.Anomalies, err = s.InventoryAnomalies(ctx); err != nil {
		return res, err
	}
	if res.PriceBuckets, err = s.PriceBuckets(ctx); err != nil {
		return res, err
	}
	if res.Search, err = s.TextSearch(ctx, TextSearchQuery, SearchResultCount); err != nil {
		return res, err
	}
	s.logger.WithFields(logrus.Fields{
		"monthly_rows":   len(res.MonthlySales),
		"top_sellers":    len(res.TopSellers),
		"also_bought":    len(res.AlsoBought),
		"revenue_30d":    res.Dashboard.Revenue,
		"categories":     len(res.Ratings),
		"authors":        len(res.Authors),
		"retention_rate": res.Retention.Rate,
		"anomalies":      len(res.Anomalies),
		"priced_books":   len(res.PriceBuckets),
		"search_hits":    len(res.Search),
	}).Info("aggregation pipelines finished")
	return res, nil
}

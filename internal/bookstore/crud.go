package bookstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Publisher and category used by the catalogue scenarios.
const (
	TechPress   = "Tech Press"
	DataScience = "Data Science"
)

// NewCatalogueBook is the single book a vendor adds in B1.
func NewCatalogueBook(vendorID primitive.ObjectID, now time.Time) Book {
	return Book{
		Title:         "Advanced Data Science",
		Subtitle:      "Techniques and Tools",
		Authors:       []string{"John Doe"},
		Publisher:     TechPress,
		PublishedYear: 2025,
		Categories:    []string{DataScience},
		Price:         50,
		Currency:      "PKR",
		ISBN13:        "978-0-123456-78-9",
		Pages:         350,
		Language:      "English",
		VendorID:      vendorID,
		Tags:          []string{"New", "Bestseller"},
		Stock:         20,
		Description:   "Introductory book for advanced Data Science.",
		CreatedAt:     &now,
	}
}

// VolumeBooks returns the n-volume Data Science series a vendor bulk loads in B3.
func VolumeBooks(vendorID primitive.ObjectID, now time.Time, n int) []Book {
	books := make([]Book, 0, n)
	for i := 1; i <= n; i++ {
		books = append(books, Book{
			Title:         fmt.Sprintf("Data Science Volume %d", i),
			Subtitle:      "Comprehensive Guide",
			Authors:       []string{"Jane Doe"},
			Publisher:     TechPress,
			PublishedYear: 2025,
			Categories:    []string{DataScience},
			Price:         float64(45 + i),
			Currency:      "PKR",
			ISBN13:        fmt.Sprintf("978-0-123456-8%d-9", i),
			Pages:         300 + i*5,
			Language:      "English",
			VendorID:      vendorID,
			Tags:          []string{"New"},
			Stock:         15,
			Description:   fmt.Sprintf("Volume %d of Data Science series", i),
			CreatedAt:     &now,
		})
	}
	return books
}

// AliceSmith is the customer registered in B2.
func AliceSmith(now time.Time) User {
	return User{
		Name:  "Alice Smith",
		Email: "alice@example.com",
		Phone: "03001234567",
		Role:  RoleCustomer,
		Addresses: []Address{
			{Label: "Home", Address: "123 Main Street, Lahore"},
			{Label: "Office", Address: "456 Business Ave, Lahore"},
		},
		CreatedAt: now,
	}
}

// AddBook inserts b and returns its id.
func (s *Store) AddBook(ctx context.Context, b Book) (primitive.ObjectID, error) {
	var id primitive.ObjectID
	err := s.timed(ctx, "add_book", func(ctx context.Context) error {
		res, err := s.coll(CollBooks).InsertOne(ctx, b)
		if err != nil {
			return queryErr("insert book", err)
		}
		id, _ = res.InsertedID.(primitive.ObjectID)
		return nil
	})
	return id, err
}

// RegisterUser inserts u and returns its id.
func (s *Store) RegisterUser(ctx context.Context, u User) (primitive.ObjectID, error) {
	var id primitive.ObjectID
	err := s.timed(ctx, "register_user", func(ctx context.Context) error {
		res, err := s.coll(CollUsers).InsertOne(ctx, u)
		if err != nil {
			return queryErr("insert user", err)
		}
		id, _ = res.InsertedID.(primitive.ObjectID)
		return nil
	})
	return id, err
}

// AddBooks bulk inserts books and returns how many were written.
func (s *Store) AddBooks(ctx context.Context, books []Book) (int, error) {
	docs := make([]interface{}, len(books))
	for i, b := range books {
		docs[i] = b
	}
	var n int
	err := s.timed(ctx, "add_books", func(ctx context.Context) error {
		res, err := s.coll(CollBooks).InsertMany(ctx, docs)
		if err != nil {
			return queryErr("insert books", err)
		}
		n = len(res.InsertedIDs)
		return nil
	})
	return n, err
}

// BookSummary is the projection returned by category price searches.
type BookSummary struct {
	Title    string             `bson:"title"`
	Price    float64            `bson:"price"`
	VendorID primitive.ObjectID `bson:"vendorId"`
}

// CategoryPriceFilter matches books in category priced within [min, max].
func CategoryPriceFilter(category string, min, max float64) bson.D {
	return bson.D{
		{Key: "categories", Value: category},
		{Key: "price", Value: bson.D{{Key: "$gte", Value: min}, {Key: "$lte", Value: max}}},
	}
}

// BooksInPriceRange lists books of category priced within [min, max],
// cheapest first.
func (s *Store) BooksInPriceRange(ctx context.Context, category string, min, max float64) ([]BookSummary, error) {
	var out []BookSummary
	err := s.timed(ctx, "books_in_price_range", func(ctx context.Context) error {
		opts := options.Find().
			SetProjection(bson.D{{Key: "title", Value: 1}, {Key: "price", Value: 1}, {Key: "vendorId", Value: 1}, {Key: "_id", Value: 0}}).
			SetSort(bson.D{{Key: "price", Value: 1}})
		cur, err := s.coll(CollBooks).Find(ctx, CategoryPriceFilter(category, min, max), opts)
		if err != nil {
			return queryErr("find books by price", err)
		}
		return queryErr("decode books by price", cur.All(ctx, &out))
	})
	return out, err
}

// NewestInStock returns the n most recently published books with stock.
func (s *Store) NewestInStock(ctx context.Context, n int64) ([]Book, error) {
	var out []Book
	err := s.timed(ctx, "newest_in_stock", func(ctx context.Context) error {
		opts := options.Find().SetSort(bson.D{{Key: "publishedYear", Value: -1}}).SetLimit(n)
		cur, err := s.coll(CollBooks).Find(ctx, bson.D{{Key: "stock", Value: bson.D{{Key: "$gt", Value: 0}}}}, opts)
		if err != nil {
			return queryErr("find newest books", err)
		}
		return queryErr("decode newest books", cur.All(ctx, &out))
	})
	return out, err
}

// OrderSummary is a compact view of one order.
type OrderSummary struct {
	Status    string
	CreatedAt time.Time
	ItemCount int
}

// RecentOrders returns the user's last n orders, newest first.
func (s *Store) RecentOrders(ctx context.Context, userID primitive.ObjectID, n int64) ([]OrderSummary, error) {
	var out []OrderSummary
	err := s.timed(ctx, "recent_orders", func(ctx context.Context) error {
		opts := options.Find().
			SetProjection(bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "items", Value: 1}, {Key: "_id", Value: 0}}).
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetLimit(n)
		cur, err := s.coll(CollOrders).Find(ctx, bson.D{{Key: "userId", Value: userID}}, opts)
		if err != nil {
			return queryErr("find recent orders", err)
		}
		defer cur.Close(ctx)
		for cur.Next(ctx) {
			var o Order
			if err := cur.Decode(&o); err != nil {
				return queryErr("decode order", err)
			}
			out = append(out, OrderSummary{Status: o.Status, CreatedAt: o.CreatedAt, ItemCount: len(o.Items)})
		}
		return queryErr("iterate orders", cur.Err())
	})
	return out, err
}

// RaisePublisherPrices multiplies the price of publisher's books cheaper
// than below by factor and returns the number of books changed.
func (s *Store) RaisePublisherPrices(ctx context.Context, publisher string, below, factor float64) (int64, error) {
	var n int64
	err := s.timed(ctx, "raise_prices", func(ctx context.Context) error {
		filter := bson.D{
			{Key: "publisher", Value: publisher},
			{Key: "price", Value: bson.D{{Key: "$lt", Value: below}}},
		}
		res, err := s.coll(CollBooks).UpdateMany(ctx, filter, bson.D{{Key: "$mul", Value: bson.D{{Key: "price", Value: factor}}}})
		if err != nil {
			return queryErr("raise prices", err)
		}
		n = res.ModifiedCount
		return nil
	})
	return n, err
}

// UpsertReview writes the (book, user) review, inserting it when absent.
// It reports whether a new review was created.
func (s *Store) UpsertReview(ctx context.Context, r Review) (bool, error) {
	var inserted bool
	err := s.timed(ctx, "upsert_review", func(ctx context.Context) error {
		filter := bson.D{{Key: "bookId", Value: r.BookID}, {Key: "userId", Value: r.UserID}}
		update := bson.D{{Key: "$set", Value: bson.D{
			{Key: "rating", Value: r.Rating},
			{Key: "title", Value: r.Title},
			{Key: "body", Value: r.Body},
			{Key: "createdAt", Value: r.CreatedAt},
		}}}
		res, err := s.coll(CollReviews).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			return queryErr("upsert review", err)
		}
		inserted = res.UpsertedCount > 0
		return nil
	})
	return inserted, err
}

// RenameHomeCity sets the address of every "Home" address mentioning city
// to replacement. Other labels are left alone.
func (s *Store) RenameHomeCity(ctx context.Context, city, replacement string) (int64, error) {
	var n int64
	err := s.timed(ctx, "rename_home_city", func(ctx context.Context) error {
		filter := bson.D{{Key: "addresses.address", Value: primitive.Regex{Pattern: city}}}
		update := bson.D{{Key: "$set", Value: bson.D{{Key: "addresses.$[home].address", Value: replacement}}}}
		opts := options.Update().SetArrayFilters(options.ArrayFilters{Filters: []interface{}{
			bson.D{
				{Key: "home.label", Value: "Home"},
				{Key: "home.address", Value: primitive.Regex{Pattern: city}},
			},
		}})
		res, err := s.coll(CollUsers).UpdateMany(ctx, filter, update, opts)
		if err != nil {
			return queryErr("rename home city", err)
		}
		n = res.ModifiedCount
		return nil
	})
	return n, err
}

// DeleteOrphanReviews removes reviews whose book no longer exists.
func (s *Store) DeleteOrphanReviews(ctx context.Context) (int64, error) {
	var n int64
	err := s.timed(ctx, "delete_orphan_reviews", func(ctx context.Context) error {
		ids, err := s.coll(CollBooks).Distinct(ctx, "_id", bson.D{})
		if err != nil {
			return queryErr("distinct book ids", err)
		}
		res, err := s.coll(CollReviews).DeleteMany(ctx, bson.D{{Key: "bookId", Value: bson.D{{Key: "$nin", Value: ids}}}})
		if err != nil {
			return queryErr("delete orphan reviews", err)
		}
		n = res.DeletedCount
		return nil
	})
	return n, err
}

// DeleteIdleSuspendedVendors removes suspended vendors that list no books.
func (s *Store) DeleteIdleSuspendedVendors(ctx context.Context) (int64, error) {
	var n int64
	err := s.timed(ctx, "delete_idle_vendors", func(ctx context.Context) error {
		ids, err := s.coll(CollBooks).Distinct(ctx, "vendorId", bson.D{})
		if err != nil {
			return queryErr("distinct vendor ids", err)
		}
		filter := bson.D{
			{Key: "status", Value: VendorSuspended},
			{Key: "_id", Value: bson.D{{Key: "$nin", Value: ids}}},
		}
		res, err := s.coll(CollVendors).DeleteMany(ctx, filter)
		if err != nil {
			return queryErr("delete idle vendors", err)
		}
		n = res.DeletedCount
		return nil
	})
	return n, err
}

// DeleteSessionsBefore removes sessions created before cutoff.
func (s *Store) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.timed(ctx, "delete_stale_sessions", func(ctx context.Context) error {
		res, err := s.coll(CollSessions).DeleteMany(ctx, bson.D{{Key: "createdAt", Value: bson.D{{Key: "$lt", Value: cutoff}}}})
		if err != nil {
			return queryErr("delete stale sessions", err)
		}
		n = res.DeletedCount
		return nil
	})
	return n, err
}

// firstID returns the _id of the first document in coll.
func (s *Store) firstID(ctx context.Context, coll string) (primitive.ObjectID, error) {
	var doc struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	opts := options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})
	if err := s.coll(coll).FindOne(ctx, bson.D{}, opts).Decode(&doc); err != nil {
		return primitive.NilObjectID, queryErr("first "+coll, err)
	}
	return doc.ID, nil
}

package bookstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/fake"
)

var anchor = time.Date(2025, time.October, 6, 12, 0, 0, 0, time.UTC)

func stageNames(p mongo.Pipeline) []string {
	names := make([]string, len(p))
	for i, st := range p {
		names[i] = st[0].Key
	}
	return names
}

func stage(t *testing.T, p mongo.Pipeline, name string) bson.D {
	t.Helper()
	for _, st := range p {
		if st[0].Key == name {
			v, ok := st[0].Value.(bson.D)
			require.True(t, ok, "%s is not a document", name)
			return v
		}
	}
	t.Fatalf("stage %s not found in %v", name, stageNames(p))
	return nil
}

func field(d bson.D, key string) interface{} {
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

func TestGenerate(t *testing.T) {
	c := DefaultCounts()
	d := Generate(fake.New(7), anchor, c)

	require.Len(t, d.Users, c.Users)
	require.Len(t, d.Vendors, c.Vendors)
	require.Len(t, d.Books, c.Books)
	require.Len(t, d.Orders, c.Orders)
	require.Len(t, d.Reviews, c.Reviews)
	require.Len(t, d.InventoryLogs, c.InventoryLogs)
	require.Len(t, d.Sessions, c.Sessions)

	users := make(map[primitive.ObjectID]bool)
	for _, u := range d.Users {
		users[u.ID] = true
		assert.Contains(t, roles, u.Role)
		require.Len(t, u.Addresses, 1)
	}
	vendors := make(map[primitive.ObjectID]bool)
	for _, v := range d.Vendors {
		vendors[v.ID] = true
		assert.Len(t, v.Tags, 2)
		assert.GreaterOrEqual(t, v.Rating, 1.0)
		assert.LessOrEqual(t, v.Rating, 5.0)
	}
	books := make(map[primitive.ObjectID]bool)
	for _, b := range d.Books {
		books[b.ID] = true
		assert.True(t, vendors[b.VendorID])
		assert.GreaterOrEqual(t, b.Price, 50.0)
		assert.LessOrEqual(t, b.Price, 500.0)
		assert.NotEmpty(t, b.Categories)
		assert.LessOrEqual(t, len(b.Categories), 2)
		assert.Len(t, b.ISBN13, 13)
		assert.Equal(t, "PKR", b.Currency)
		assert.Nil(t, b.CreatedAt)
	}
	for _, o := range d.Orders {
		assert.True(t, users[o.UserID])
		require.NotEmpty(t, o.Items)
		assert.LessOrEqual(t, len(o.Items), 3)
		for _, it := range o.Items {
			assert.True(t, books[it.BookID])
		}
		assert.False(t, o.CreatedAt.After(anchor))
		assert.False(t, o.CreatedAt.Before(anchor.AddDate(0, 0, -30)))
		if o.DeliveredAt != nil {
			assert.True(t, o.DeliveredAt.After(o.CreatedAt))
		}
		if o.Payment.PaidAt != nil {
			assert.Equal(t, o.CreatedAt, *o.Payment.PaidAt)
		}
	}
	for _, r := range d.Reviews {
		assert.True(t, books[r.BookID])
		assert.True(t, users[r.UserID])
	}
	for _, l := range d.InventoryLogs {
		assert.True(t, books[l.BookID])
		assert.GreaterOrEqual(t, l.Delta, -5)
		assert.LessOrEqual(t, l.Delta, 10)
	}
	for _, s := range d.Sessions {
		assert.True(t, users[s.UserID])
		assert.Regexp(t, "^[0-9a-f]{32}$", s.Token)
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	a := Generate(fake.New(99), anchor, DefaultCounts())
	b := Generate(fake.New(99), anchor, DefaultCounts())
	assert.Equal(t, a, b)

	c := Generate(fake.New(100), anchor, DefaultCounts())
	assert.NotEqual(t, a.Books[0].ID, c.Books[0].ID)
}

func TestGenerate_NoParents(t *testing.T) {
	d := Generate(fake.New(1), anchor, Counts{Books: 5, Orders: 5, Reviews: 5})
	assert.Empty(t, d.Books)
	assert.Empty(t, d.Orders)
	assert.Empty(t, d.Reviews)
}

func TestDatasetDocuments(t *testing.T) {
	d := Generate(fake.New(3), anchor, DefaultCounts())
	assert.Len(t, d.Documents(CollBooks), 60)
	assert.Len(t, d.Documents(CollInventoryLogs), 150)
	assert.Len(t, d.Documents(CollSessions), 10)
	assert.Empty(t, d.Documents("missing"))
	_, ok := d.Documents(CollOrders)[0].(Order)
	assert.True(t, ok)
}

func TestCatalogueFixtures(t *testing.T) {
	vendor := primitive.NewObjectID()
	b := NewCatalogueBook(vendor, anchor)
	assert.Equal(t, "Advanced Data Science", b.Title)
	assert.Equal(t, vendor, b.VendorID)
	require.NotNil(t, b.CreatedAt)

	vols := VolumeBooks(vendor, anchor, VolumeCount)
	require.Len(t, vols, 10)
	assert.Equal(t, "Data Science Volume 1", vols[0].Title)
	assert.Equal(t, 46.0, vols[0].Price)
	assert.Equal(t, 55.0, vols[9].Price)
	assert.Equal(t, "978-0-123456-83-9", vols[2].ISBN13)
	assert.Equal(t, 350, vols[9].Pages)

	alice := AliceSmith(anchor)
	require.Len(t, alice.Addresses, 2)
	assert.Equal(t, "Home", alice.Addresses[0].Label)
	assert.Equal(t, RoleCustomer, alice.Role)
}

func TestCategoryPriceFilter(t *testing.T) {
	f := CategoryPriceFilter(DataScience, 20, 60)
	assert.Equal(t, DataScience, field(f, "categories"))
	assert.Equal(t, bson.D{{Key: "$gte", Value: 20.0}, {Key: "$lte", Value: 60.0}}, field(f, "price"))
}

func TestMonthlySalesPipeline(t *testing.T) {
	since := anchor.Add(-SalesLookback)
	p := MonthlySalesByCategory(since)
	assert.Equal(t, []string{"$match", "$unwind", "$lookup", "$unwind", "$unwind", "$group", "$sort"}, stageNames(p))

	m := stage(t, p, "$match")
	assert.Equal(t, bson.D{{Key: "$gte", Value: since}}, field(m, "createdAt"))

	g := stage(t, p, "$group")
	id := field(g, "_id").(bson.D)
	assert.Equal(t, "$book.categories", field(id, "category"))
	assert.NotNil(t, field(id, "year"))
}

func TestTopSellersPipeline(t *testing.T) {
	p := TopSellers(10)
	names := stageNames(p)
	assert.Equal(t, "$limit", names[len(names)-1])
	assert.Equal(t, int64(10), p[len(p)-1][0].Value)

	s := stage(t, p, "$sort")
	assert.Equal(t, "totalQty", s[0].Key)
	assert.Equal(t, -1, s[0].Value)
}

func TestAlsoBoughtPipeline(t *testing.T) {
	target := primitive.NewObjectID()
	p := AlsoBought(target, 5)
	assert.Equal(t, bson.D{{Key: "items.bookId", Value: target}}, p[0][0].Value)
	assert.Equal(t, bson.D{{Key: "items.bookId", Value: bson.D{{Key: "$ne", Value: target}}}}, p[2][0].Value)
	assert.Contains(t, stageNames(p), "$limit")
}

func TestVendorDashboardPipeline(t *testing.T) {
	since := anchor.Add(-DashboardLookback)

	all := VendorDashboard(primitive.NilObjectID, since, LowStockThreshold)
	require.Equal(t, []string{"$facet"}, stageNames(all))
	facets := stage(t, all, "$facet")
	var keys []string
	for _, e := range facets {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"salesLast30d", "avgDeliveryDays", "lowStockCount"}, keys)

	low := field(facets, "lowStockCount").(bson.A)
	assert.Equal(t, match(bson.D{{Key: "stock", Value: bson.D{{Key: "$lt", Value: 5}}}}), low[0])

	vendor := primitive.NewObjectID()
	one := VendorDashboard(vendor, since, LowStockThreshold)
	require.Equal(t, []string{"$match", "$facet"}, stageNames(one))
	assert.Equal(t, bson.D{{Key: "vendorId", Value: vendor}}, one[0][0].Value)
}

func TestAuthorLeaderboardPipeline(t *testing.T) {
	p := AuthorLeaderboard(LeaderboardGenre)
	assert.Equal(t, bson.D{{Key: "book.categories", Value: "Programming"}}, stage(t, p, "$match"))
	assert.Equal(t, "$setWindowFields", stageNames(p)[len(p)-1])
	g := stage(t, p, "$group")
	assert.Equal(t, "$book.authors", field(g, "_id"))
}

func TestCohortRetentionPipeline(t *testing.T) {
	p := CohortRetention(RetentionWindow)
	assert.Equal(t, []string{"$group", "$lookup", "$project", "$group"}, stageNames(p))

	raw, err := bson.MarshalExtJSON(bson.D{{Key: "p", Value: p}}, false, false)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "5184000000")
}

func TestPriceBuckets(t *testing.T) {
	cases := map[float64]string{
		0:      "0-10",
		10:     "0-10",
		10.5:   "10-25",
		25:     "10-25",
		49.9:   "25-50",
		100:    "50-100",
		100.01: ">100",
	}
	for price, want := range cases {
		assert.Equal(t, want, PriceBucket(price), "price %v", price)
	}

	p := PriceBuckets()
	proj := stage(t, p, "$project")
	sw := field(field(proj, "priceBucket").(bson.D), "$switch").(bson.D)
	assert.Len(t, field(sw, "branches"), len(PriceBucketBounds))
	assert.Equal(t, ">100", field(sw, "default"))
}

func TestTextSearchPipeline(t *testing.T) {
	p := TextSearch(TextSearchQuery, 10)
	m := stage(t, p, "$match")
	assert.Equal(t, bson.D{{Key: "$search", Value: TextSearchQuery}}, field(m, "$text"))
	assert.Equal(t, bson.D{{Key: "score", Value: -1}, {Key: "publishedYear", Value: -1}}, stage(t, p, "$sort"))

	keys := TextIndex().Keys.(bson.D)
	assert.Len(t, keys, 3)
	assert.Equal(t, "text", keys[0].Value)
}

func TestSerialize(t *testing.T) {
	id, err := primitive.ObjectIDFromHex("652000000000000000000001")
	require.NoError(t, err)
	doc := bson.D{
		{Key: "_id", Value: id},
		{Key: "createdAt", Value: primitive.NewDateTimeFromTime(anchor)},
		{Key: "items", Value: bson.A{bson.D{{Key: "bookId", Value: id}, {Key: "qty", Value: int32(2)}}}},
		{Key: "payment", Value: bson.D{{Key: "method", Value: "Cash"}, {Key: "paidAt", Value: nil}}},
		{Key: "tags", Value: bson.M{"a": id}},
	}

	data, err := EncodeDocuments([]bson.D{doc})
	require.NoError(t, err)

	want := `[
    {
        "_id": "652000000000000000000001",
        "createdAt": "2025-10-06T12:00:00Z",
        "items": [
            {
                "bookId": "652000000000000000000001",
                "qty": 2
            }
        ],
        "payment": {
            "method": "Cash",
            "paidAt": null
        },
        "tags": {
            "a": "652000000000000000000001"
        }
    }
]`
	assert.Equal(t, want, string(data))

	empty, err := EncodeDocuments(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestConnect_InvalidURI(t *testing.T) {
	_, err := Connect(context.Background(), config.MongoConfig{URI: "not-a-mongo-uri", Database: "x"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConnectFailed, errors.GetCode(err))
}

func TestQueryErr(t *testing.T) {
	assert.NoError(t, queryErr("op", nil))
	assert.True(t, errors.Is(queryErr("op", mongo.ErrNoDocuments), ErrNotFound))
	err := queryErr("op", fmt.Errorf("boom"))
	assert.Equal(t, errors.CodeQueryFailed, errors.GetCode(err))
	assert.False(t, errors.Is(err, ErrNotFound))
}

// newMongoStore connects to the server named by STORELABS_TEST_MONGO_URI
// using a throwaway database.
func newMongoStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("STORELABS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STORELABS_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger, _ := test.NewNullLogger()
	name := fmt.Sprintf("storelabs_test_%d", time.Now().UnixNano())
	s, err := Connect(ctx, config.MongoConfig{URI: uri, Database: name}, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Database().Drop(context.Background())
		s.Close()
	})
	return s.WithClock(func() time.Time { return anchor })
}

func TestMongo_SeedCRUDAndExport(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()

	counts, err := s.Seed(ctx, Generate(fake.New(42), anchor, DefaultCounts()))
	require.NoError(t, err)
	assert.Equal(t, 60, counts[CollBooks])
	assert.Equal(t, 150, counts[CollInventoryLogs])

	// Seeding again replaces rather than appends.
	_, err = s.Seed(ctx, Generate(fake.New(43), anchor, DefaultCounts()))
	require.NoError(t, err)
	n, err := s.Count(ctx, CollBooks)
	require.NoError(t, err)
	assert.Equal(t, int64(60), n)

	res, err := s.RunCRUD(ctx)
	require.NoError(t, err)
	assert.Equal(t, VolumeCount, res.VolumesAdded)
	require.Len(t, res.PriceRange, 11)
	assert.True(t, sort.SliceIsSorted(res.PriceRange, func(i, j int) bool {
		return res.PriceRange[i].Price < res.PriceRange[j].Price
	}))
	assert.Len(t, res.Newest, NewestCount)
	assert.LessOrEqual(t, len(res.RecentOrders), RecentOrderCount)
	assert.Equal(t, int64(1), res.AddressesFixed)
	assert.Zero(t, res.OrphansDeleted)

	var alice User
	require.NoError(t, s.coll(CollUsers).FindOne(ctx, bson.D{{Key: "email", Value: "alice@example.com"}}).Decode(&alice))
	assert.Equal(t, "Lahore City", alice.Addresses[0].Address)
	assert.Equal(t, "456 Business Ave, Lahore", alice.Addresses[1].Address)

	inserted, err := s.UpsertReview(ctx, Review{BookID: res.BookID, UserID: res.UserID, Rating: 4, Title: "Good", CreatedAt: anchor})
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = s.UpsertReview(ctx, Review{BookID: res.BookID, UserID: res.UserID, Rating: 2, Title: "Meh", CreatedAt: anchor})
	require.NoError(t, err)
	assert.False(t, inserted)

	dir := t.TempDir()
	exported, err := s.Export(ctx, dir, DefaultExportLimit)
	require.NoError(t, err)
	for _, name := range Collections {
		data, err := os.ReadFile(filepath.Join(dir, name+".json"))
		require.NoError(t, err)
		var docs []map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &docs))
		assert.Len(t, docs, exported[name])
		assert.LessOrEqual(t, len(docs), DefaultExportLimit)
		if len(docs) > 0 {
			assert.Regexp(t, "^[0-9a-f]{24}$", docs[0]["_id"])
		}
	}
}

func TestMongo_Aggregations(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()

	_, err := s.Seed(ctx, Generate(fake.New(42), anchor, DefaultCounts()))
	require.NoError(t, err)

	res, err := s.RunAggregations(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.MonthlySales)
	assert.Len(t, res.TopSellers, TopSellerCount)
	for i := 1; i < len(res.TopSellers); i++ {
		assert.GreaterOrEqual(t, res.TopSellers[i-1].TotalQty, res.TopSellers[i].TotalQty)
	}
	assert.LessOrEqual(t, len(res.AlsoBought), AlsoBoughtCount)
	assert.Greater(t, res.Dashboard.Revenue, 0.0)
	assert.NotEmpty(t, res.Ratings)
	assert.GreaterOrEqual(t, res.Retention.Rate, 0.0)
	assert.LessOrEqual(t, res.Retention.Rate, 1.0)
	assert.Len(t, res.PriceBuckets, 60)
	for _, b := range res.PriceBuckets {
		assert.Equal(t, PriceBucket(b.Price), b.Bucket)
	}
	for _, a := range res.Anomalies {
		assert.Equal(t, a.DeltaSum-a.Stock, a.Diff)
		assert.NotZero(t, a.Diff)
	}
	for i, a := range res.Authors {
		if i > 0 {
			assert.GreaterOrEqual(t, res.Authors[i-1].Revenue, a.Revenue)
		}
		assert.GreaterOrEqual(t, a.Rank, 1)
	}

	_, ok := s.Stats().Get("text_search")
	assert.True(t, ok)
}

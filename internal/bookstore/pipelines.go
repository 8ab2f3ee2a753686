package bookstore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const dayMillis = 1000 * 60 * 60 * 24

// PriceBucketBounds are the inclusive upper bounds of the price buckets,
// paired with their labels. Prices above the last bound fall in ">100".
var PriceBucketBounds = []struct {
	Max   float64
	Label string
}{
	{10, "0-10"},
	{25, "10-25"},
	{50, "25-50"},
	{100, "50-100"},
}

// TextSearchQuery is the keyword query used by the search scenario.
const TextSearchQuery = "machine learning deep learning"

func lookup(from, local, foreign, as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: from},
		{Key: "localField", Value: local},
		{Key: "foreignField", Value: foreign},
		{Key: "as", Value: as},
	}}}
}

func unwind(path string) bson.D {
	return bson.D{{Key: "$unwind", Value: path}}
}

func match(filter bson.D) bson.D {
	return bson.D{{Key: "$match", Value: filter}}
}

func limit(n int64) bson.D {
	return bson.D{{Key: "$limit", Value: n}}
}

func sortBy(keys bson.D) bson.D {
	return bson.D{{Key: "$sort", Value: keys}}
}

func lineRevenue(qty, price string) bson.D {
	return bson.D{{Key: "$multiply", Value: bson.A{qty, price}}}
}

// MonthlySalesByCategory totals quantity and revenue per calendar month and
// book category for orders created at or after since. Runs on orders.
func MonthlySalesByCategory(since time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		match(bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since}}}}),
		unwind("$items"),
		lookup(CollBooks, "items.bookId", "_id", "book"),
		unwind("$book"),
		unwind("$book.categories"),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "year", Value: bson.D{{Key: "$year", Value: "$createdAt"}}},
				{Key: "month", Value: bson.D{{Key: "$month", Value: "$createdAt"}}},
				{Key: "category", Value: "$book.categories"},
			}},
			{Key: "totalQty", Value: bson.D{{Key: "$sum", Value: "$items.qty"}}},
			{Key: "totalRevenue", Value: bson.D{{Key: "$sum", Value: lineRevenue("$items.qty", "$items.priceAtPurchase")}}},
		}}},
		sortBy(bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}, {Key: "_id.category", Value: 1}}),
	}
}

// TopSellers ranks books by quantity sold. Runs on orders.
func TopSellers(n int64) mongo.Pipeline {
	return mongo.Pipeline{
		unwind("$items"),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$items.bookId"},
			{Key: "totalQty", Value: bson.D{{Key: "$sum", Value: "$items.qty"}}},
			{Key: "totalRevenue", Value: bson.D{{Key: "$sum", Value: lineRevenue("$items.qty", "$items.priceAtPurchase")}}},
		}}},
		lookup(CollBooks, "_id", "_id", "book"),
		unwind("$book"),
		{{Key: "$project", Value: bson.D{
			{Key: "bookId", Value: "$_id"},
			{Key: "title", Value: "$book.title"},
			{Key: "totalQty", Value: 1},
			{Key: "totalRevenue", Value: 1},
		}}},
		sortBy(bson.D{{Key: "totalQty", Value: -1}, {Key: "_id", Value: 1}}),
		limit(n),
	}
}

// AlsoBought counts how often other books share an order with target.
// Runs on orders.
func AlsoBought(target primitive.ObjectID, n int64) mongo.Pipeline {
	return mongo.Pipeline{
		match(bson.D{{Key: "items.bookId", Value: target}}),
		unwind("$items"),
		match(bson.D{{Key: "items.bookId", Value: bson.D{{Key: "$ne", Value: target}}}}),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$items.bookId"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		sortBy(bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}),
		limit(n),
		lookup(CollBooks, "_id", "_id", "book"),
		unwind("$book"),
		{{Key: "$project", Value: bson.D{
			{Key: "bookId", Value: "$_id"},
			{Key: "title", Value: "$book.title"},
			{Key: "count", Value: 1},
		}}},
	}
}

// VendorDashboard computes, in one $facet pass over books, revenue from
// orders since the cutoff, the mean order delivery time in days and the
// number of books below lowStock. A zero vendor covers every vendor.
// Runs on books.
func VendorDashboard(vendor primitive.ObjectID, since time.Time, lowStock int) mongo.Pipeline {
	var p mongo.Pipeline
	if !vendor.IsZero() {
		p = append(p, match(bson.D{{Key: "vendorId", Value: vendor}}))
	}
	return append(p, bson.D{{Key: "$facet", Value: bson.D{
		{Key: "salesLast30d", Value: bson.A{
			lookup(CollOrders, "_id", "items.bookId", "orders"),
			unwind("$orders"),
			unwind("$orders.items"),
			// Only the lines for this book, not the whole order.
			match(bson.D{
				{Key: "orders.createdAt", Value: bson.D{{Key: "$gte", Value: since}}},
				{Key: "$expr", Value: bson.D{{Key: "$eq", Value: bson.A{"$orders.items.bookId", "$_id"}}}},
			}),
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: nil},
				{Key: "revenue", Value: bson.D{{Key: "$sum", Value: lineRevenue("$orders.items.qty", "$orders.items.priceAtPurchase")}}},
			}}},
		}},
		{Key: "avgDeliveryDays", Value: bson.A{
			lookup(CollOrders, "_id", "items.bookId", "orders"),
			unwind("$orders"),
			match(bson.D{{Key: "orders.deliveredAt", Value: bson.D{{Key: "$ne", Value: nil}}}}),
			// An order with several of the vendor's books counts once.
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$orders._id"},
				{Key: "createdAt", Value: bson.D{{Key: "$first", Value: "$orders.createdAt"}}},
				{Key: "deliveredAt", Value: bson.D{{Key: "$first", Value: "$orders.deliveredAt"}}},
			}}},
			bson.D{{Key: "$project", Value: bson.D{
				{Key: "diffDays", Value: bson.D{{Key: "$divide", Value: bson.A{
					bson.D{{Key: "$subtract", Value: bson.A{"$deliveredAt", "$createdAt"}}},
					dayMillis,
				}}}},
			}}},
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: nil},
				{Key: "avgDeliveryDays", Value: bson.D{{Key: "$avg", Value: "$diffDays"}}},
			}}},
		}},
		{Key: "lowStockCount", Value: bson.A{
			match(bson.D{{Key: "stock", Value: bson.D{{Key: "$lt", Value: lowStock}}}}),
			bson.D{{Key: "$count", Value: "lowStockCount"}},
		}},
	}}})
}

// RatingsByCategory averages review ratings per book category. Runs on reviews.
func RatingsByCategory() mongo.Pipeline {
	return mongo.Pipeline{
		lookup(CollBooks, "bookId", "_id", "book"),
		unwind("$book"),
		unwind("$book.categories"),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$book.categories"},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "reviews", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		sortBy(bson.D{{Key: "_id", Value: 1}}),
	}
}

// AuthorLeaderboard ranks the authors of category's books by revenue with
// a $rank window. Co-authors are each credited the full line revenue.
// Runs on orders.
func AuthorLeaderboard(category string) mongo.Pipeline {
	return mongo.Pipeline{
		unwind("$items"),
		lookup(CollBooks, "items.bookId", "_id", "book"),
		unwind("$book"),
		match(bson.D{{Key: "book.categories", Value: category}}),
		unwind("$book.authors"),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$book.authors"},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: lineRevenue("$items.qty", "$items.priceAtPurchase")}}},
		}}},
		{{Key: "$setWindowFields", Value: bson.D{
			{Key: "sortBy", Value: bson.D{{Key: "revenue", Value: -1}}},
			{Key: "output", Value: bson.D{{Key: "rank", Value: bson.D{{Key: "$rank", Value: bson.D{}}}}}},
		}}},
	}
}

// CohortRetention returns the share of customers who ordered again within
// window of their first order. Runs on orders.
func CohortRetention(window time.Duration) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$userId"},
			{Key: "firstOrder", Value: bson.D{{Key: "$min", Value: "$createdAt"}}},
		}}},
		lookup(CollOrders, "_id", "userId", "orders"),
		{{Key: "$project", Value: bson.D{
			{Key: "firstOrder", Value: 1},
			{Key: "retained", Value: bson.D{{Key: "$size", Value: bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: "$orders"},
				{Key: "cond", Value: bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$gt", Value: bson.A{"$$this.createdAt", "$firstOrder"}}},
					bson.D{{Key: "$lte", Value: bson.A{
						"$$this.createdAt",
						bson.D{{Key: "$add", Value: bson.A{"$firstOrder", window.Milliseconds()}}},
					}}},
				}}}},
			}}}}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "customers", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "retentionRate", Value: bson.D{{Key: "$avg", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gt", Value: bson.A{"$retained", 0}}}, 1, 0,
			}}}}}},
		}}},
	}
}

// InventoryAnomalies lists books whose summed inventory deltas disagree with
// their current stock. Runs on inventory_logs.
func InventoryAnomalies() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$bookId"},
			{Key: "deltaSum", Value: bson.D{{Key: "$sum", Value: "$delta"}}},
		}}},
		lookup(CollBooks, "_id", "_id", "book"),
		unwind("$book"),
		{{Key: "$project", Value: bson.D{
			{Key: "bookId", Value: "$_id"},
			{Key: "stock", Value: "$book.stock"},
			{Key: "deltaSum", Value: 1},
			{Key: "diff", Value: bson.D{{Key: "$subtract", Value: bson.A{"$deltaSum", "$book.stock"}}}},
		}}},
		match(bson.D{{Key: "diff", Value: bson.D{{Key: "$ne", Value: 0}}}}),
		sortBy(bson.D{{Key: "_id", Value: 1}}),
	}
}

// PriceBuckets labels every book with its price bucket and average review
// rating. Runs on books.
func PriceBuckets() mongo.Pipeline {
	branches := make(bson.A, 0, len(PriceBucketBounds))
	for _, b := range PriceBucketBounds {
		branches = append(branches, bson.D{
			{Key: "case", Value: bson.D{{Key: "$lte", Value: bson.A{"$price", b.Max}}}},
			{Key: "then", Value: b.Label},
		})
	}
	return mongo.Pipeline{
		lookup(CollReviews, "_id", "bookId", "reviews"),
		{{Key: "$project", Value: bson.D{
			{Key: "title", Value: 1},
			{Key: "price", Value: 1},
			{Key: "priceBucket", Value: bson.D{{Key: "$switch", Value: bson.D{
				{Key: "branches", Value: branches},
				{Key: "default", Value: ">100"},
			}}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$reviews.rating"}}},
		}}},
	}
}

// PriceBucket returns the bucket label PriceBuckets assigns to price.
func PriceBucket(price float64) string {
	for _, b := range PriceBucketBounds {
		if price <= b.Max {
			return b.Label
		}
	}
	return ">100"
}

// TextIndex is the text index the search pipeline needs on books.
func TextIndex() mongo.IndexModel {
	return mongo.IndexModel{Keys: bson.D{
		{Key: "title", Value: "text"},
		{Key: "subtitle", Value: "text"},
		{Key: "description", Value: "text"},
	}}
}

// TextSearch matches query against the text index, ordering by relevance
// and then publication year. Runs on books.
func TextSearch(query string, n int64) mongo.Pipeline {
	return mongo.Pipeline{
		match(bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: query}}}}),
		{{Key: "$addFields", Value: bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}}}}},
		sortBy(bson.D{{Key: "score", Value: -1}, {Key: "publishedYear", Value: -1}}),
		limit(n),
		{{Key: "$project", Value: bson.D{
			{Key: "title", Value: 1},
			{Key: "publishedYear", Value: 1},
			{Key: "score", Value: 1},
		}}},
	}
}

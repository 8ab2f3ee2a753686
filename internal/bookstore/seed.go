package bookstore

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/storelabs/storelabs/internal/fake"
)

// Counts sets how many documents of each kind the seeder generates.
type Counts struct {
	Users         int
	Vendors       int
	Books         int
	Orders        int
	Reviews       int
	InventoryLogs int
	Sessions      int
}

// DefaultCounts returns the standard BookBazaar dataset size.
func DefaultCounts() Counts {
	return Counts{
		Users:         12,
		Vendors:       5,
		Books:         60,
		Orders:        80,
		Reviews:       120,
		InventoryLogs: 150,
		Sessions:      10,
	}
}

var (
	roles          = []string{RoleCustomer, RoleVendor, RoleAdmin}
	vendorStatuses = []string{VendorActive, VendorSuspended}
	vendorTags     = []string{"Books", "Education", "AI", "Fiction", "Science"}
	bookCategories = []string{"AI", "Fiction", "Science", "Math", "History", "Programming"}
	bookTags       = []string{"New", "Bestseller", "Discount", "Limited"}
	orderStatuses  = []string{OrderPlaced, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled}
	paymentMethods = []string{"Credit Card", "Cash", "PayPal"}
	logReasons     = []string{"restock", "sale", "return", "adjustment"}
)

// Dataset is one generated BookBazaar population, ready for insertion.
type Dataset struct {
	Users         []User
	Vendors       []Vendor
	Books         []Book
	Orders        []Order
	Reviews       []Review
	InventoryLogs []InventoryLog
	Sessions      []Session
}

// Documents returns the dataset's documents for coll, in insertion order.
func (d *Dataset) Documents(coll string) []interface{} {
	var docs []interface{}
	switch coll {
	case CollUsers:
		for _, v := range d.Users {
			docs = append(docs, v)
		}
	case CollVendors:
		for _, v := range d.Vendors {
			docs = append(docs, v)
		}
	case CollBooks:
		for _, v := range d.Books {
			docs = append(docs, v)
		}
	case CollOrders:
		for _, v := range d.Orders {
			docs = append(docs, v)
		}
	case CollReviews:
		for _, v := range d.Reviews {
			docs = append(docs, v)
		}
	case CollInventoryLogs:
		for _, v := range d.InventoryLogs {
			docs = append(docs, v)
		}
	case CollSessions:
		for _, v := range d.Sessions {
			docs = append(docs, v)
		}
	}
	return docs
}

// Generate builds a dataset from g anchored at now. Identical seeds and
// anchors produce identical datasets, object ids included.
func Generate(g *fake.Generator, now time.Time, c Counts) *Dataset {
	now = now.UTC().Truncate(time.Millisecond)
	d := &Dataset{}

	for i := 0; i < c.Users; i++ {
		d.Users = append(d.Users, User{
			ID:        newID(g, now),
			Name:      g.Name(),
			Email:     g.UniqueEmail(),
			Phone:     g.Phone(),
			Role:      fake.Pick(g, roles),
			Addresses: []Address{{Label: "Home", Address: g.Address()}},
			CreatedAt: now,
		})
	}

	for i := 0; i < c.Vendors; i++ {
		d.Vendors = append(d.Vendors, Vendor{
			ID:        newID(g, now),
			Name:      g.Company(),
			LegalName: g.CompanySuffix(),
			City:      g.City(),
			Tags:      fake.Sample(g, vendorTags, 2),
			Rating:    float64(g.IntBetween(10, 50)) / 10,
			Status:    fake.Pick(g, vendorStatuses),
			CreatedAt: now,
		})
	}

	for i := 0; i < c.Books && len(d.Vendors) > 0; i++ {
		authors := make([]string, g.IntBetween(1, 2))
		for j := range authors {
			authors[j] = g.Name()
		}
		d.Books = append(d.Books, Book{
			ID:            newID(g, now),
			Title:         g.Sentence(4),
			Subtitle:      g.Sentence(6),
			Authors:       authors,
			Publisher:     g.Company(),
			PublishedYear: g.IntBetween(2000, 2025),
			Categories:    fake.Sample(g, bookCategories, g.IntBetween(1, 2)),
			Price:         float64(g.IntBetween(500, 5000)) / 10,
			Currency:      "PKR",
			ISBN13:        g.ISBN13(),
			Pages:         g.IntBetween(100, 1000),
			Language:      "English",
			VendorID:      fake.Pick(g, d.Vendors).ID,
			Tags:          fake.Sample(g, bookTags, g.IntBetween(1, 2)),
			Stock:         g.IntBetween(1, 50),
			Description:   g.Paragraph(),
		})
	}

	for i := 0; i < c.Orders && len(d.Users) > 0 && len(d.Books) > 0; i++ {
		user := fake.Pick(g, d.Users)
		items := make([]OrderItem, g.IntBetween(1, 3))
		for j := range items {
			b := fake.Pick(g, d.Books)
			items[j] = OrderItem{BookID: b.ID, Qty: g.IntBetween(1, 3), PriceAtPurchase: b.Price}
		}
		created := now.AddDate(0, 0, -g.IntBetween(0, 30))
		o := Order{
			ID:              newID(g, created),
			UserID:          user.ID,
			Items:           items,
			Status:          fake.Pick(g, orderStatuses),
			ShippingAddress: user.Addresses[0].Address,
			Payment:         Payment{Method: fake.Pick(g, paymentMethods)},
			CreatedAt:       created,
		}
		if g.IntBetween(0, 1) == 1 {
			delivered := created.AddDate(0, 0, g.IntBetween(1, 10))
			o.DeliveredAt = &delivered
		}
		if g.IntBetween(0, 1) == 1 {
			paid := created
			o.Payment.PaidAt = &paid
		}
		d.Orders = append(d.Orders, o)
	}

	for i := 0; i < c.Reviews && len(d.Users) > 0 && len(d.Books) > 0; i++ {
		d.Reviews = append(d.Reviews, Review{
			ID:        newID(g, now),
			BookID:    fake.Pick(g, d.Books).ID,
			UserID:    fake.Pick(g, d.Users).ID,
			Rating:    g.IntBetween(1, 5),
			Title:     g.Sentence(4),
			Body:      g.Paragraph(),
			CreatedAt: now,
		})
	}

	for i := 0; i < c.InventoryLogs && len(d.Books) > 0; i++ {
		d.InventoryLogs = append(d.InventoryLogs, InventoryLog{
			ID:        newID(g, now),
			BookID:    fake.Pick(g, d.Books).ID,
			VendorID:  fake.Pick(g, d.Vendors).ID,
			Delta:     g.IntBetween(-5, 10),
			Reason:    fake.Pick(g, logReasons),
			CreatedAt: now,
		})
	}

	for i := 0; i < c.Sessions && len(d.Users) > 0; i++ {
		// Spread over two weeks so the stale-session cleanup has work.
		created := now.Add(-time.Duration(g.IntBetween(0, 14*24)) * time.Hour)
		d.Sessions = append(d.Sessions, Session{
			ID:        newID(g, created),
			UserID:    fake.Pick(g, d.Users).ID,
			Token:     sessionToken(g),
			CreatedAt: created,
		})
	}
	return d
}

// newID builds an ObjectID stamped with at whose remaining bytes come from
// the generator, so ids are reproducible for a seed.
func newID(g *fake.Generator, at time.Time) primitive.ObjectID {
	var id primitive.ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(at.Unix()))
	g.Rand().Read(id[4:])
	return id
}

func sessionToken(g *fake.Generator) string {
	u, err := uuid.NewRandomFromReader(g.Rand())
	if err != nil {
		u = uuid.New()
	}
	return strings.ReplaceAll(u.String(), "-", "")
}

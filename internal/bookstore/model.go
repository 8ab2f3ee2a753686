// Package bookstore runs the BookBazaar document-store workload against
// MongoDB: bulk seeding, CRUD scenarios, aggregation pipelines and a JSON
// export of each collection.
package bookstore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names.
const (
	CollUsers         = "users"
	CollVendors       = "vendors"
	CollBooks         = "books"
	CollOrders        = "orders"
	CollReviews       = "reviews"
	CollInventoryLogs = "inventory_logs"
	CollSessions      = "sessions"
)

// Collections lists every collection the seeder owns, in export order.
var Collections = []string{
	CollBooks, CollOrders, CollReviews, CollInventoryLogs, CollUsers, CollSessions, CollVendors,
}

// User roles.
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// Vendor statuses.
const (
	VendorActive    = "ACTIVE"
	VendorSuspended = "SUSPENDED"
)

// Order statuses.
const (
	OrderPlaced    = "PLACED"
	OrderPaid      = "PAID"
	OrderShipped   = "SHIPPED"
	OrderDelivered = "DELIVERED"
	OrderCancelled = "CANCELLED"
)

// Address is a labelled postal address on a user.
type Address struct {
	Label   string `bson:"label" json:"label"`
	Address string `bson:"address" json:"address"`
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Phone     string             `bson:"phone"`
	Role      string             `bson:"role"`
	Addresses []Address          `bson:"addresses"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type Vendor struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	LegalName string             `bson:"legalName"`
	City      string             `bson:"city"`
	Tags      []string           `bson:"tags"`
	Rating    float64            `bson:"rating"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type Book struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Title         string             `bson:"title"`
	Subtitle      string             `bson:"subtitle"`
	Authors       []string           `bson:"authors"`
	Publisher     string             `bson:"publisher"`
	PublishedYear int                `bson:"publishedYear"`
	Categories    []string           `bson:"categories"`
	Price         float64            `bson:"price"`
	Currency      string             `bson:"currency"`
	ISBN13        string             `bson:"isbn13"`
	Pages         int                `bson:"pages"`
	Language      string             `bson:"language"`
	VendorID      primitive.ObjectID `bson:"vendorId"`
	Tags          []string           `bson:"tags"`
	Stock         int                `bson:"stock"`
	Description   string             `bson:"description"`
	CreatedAt     *time.Time         `bson:"createdAt,omitempty"`
}

// OrderItem is one line of an order. PriceAtPurchase freezes the book
// price when the order was placed.
type OrderItem struct {
	BookID          primitive.ObjectID `bson:"bookId"`
	Qty             int                `bson:"qty"`
	PriceAtPurchase float64            `bson:"priceAtPurchase"`
}

// Payment records how an order was paid. PaidAt is nil for unpaid orders.
type Payment struct {
	Method string     `bson:"method"`
	PaidAt *time.Time `bson:"paidAt"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	UserID          primitive.ObjectID `bson:"userId"`
	Items           []OrderItem        `bson:"items"`
	Status          string             `bson:"status"`
	ShippingAddress string             `bson:"shippingAddress"`
	Payment         Payment            `bson:"payment"`
	CreatedAt       time.Time          `bson:"createdAt"`
	DeliveredAt     *time.Time         `bson:"deliveredAt"`
}

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	BookID    primitive.ObjectID `bson:"bookId"`
	UserID    primitive.ObjectID `bson:"userId"`
	Rating    int                `bson:"rating"`
	Title     string             `bson:"title"`
	Body      string             `bson:"body"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// InventoryLog is a signed stock movement for a book.
type InventoryLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	BookID    primitive.ObjectID `bson:"bookId"`
	VendorID  primitive.ObjectID `bson:"vendorId"`
	Delta     int                `bson:"delta"`
	Reason    string             `bson:"reason"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId"`
	Token     string             `bson:"token"`
	CreatedAt time.Time          `bson:"createdAt"`
}

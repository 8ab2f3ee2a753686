// Package types provides the core data types shared by the storelabs workloads.
package types

import (
	"fmt"
	"time"
)

// EventType categorizes an event in a clickstream session.
type EventType string

const (
	EventOpenSession  EventType = "open_session"
	EventViewItem     EventType = "view_item"
	EventAddToCart    EventType = "add_to_cart"
	EventPurchase     EventType = "purchase"
	EventCloseSession EventType = "close_session"
)

// EventTypes lists every event type in declaration order.
var EventTypes = []EventType{
	EventOpenSession,
	EventViewItem,
	EventAddToCart,
	EventPurchase,
	EventCloseSession,
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	for _, et := range EventTypes {
		if t == et {
			return true
		}
	}
	return false
}

// IsItemEvent reports whether events of this type carry a product.
func (t EventType) IsItemEvent() bool {
	return t == EventViewItem || t == EventAddToCart || t == EventPurchase
}

// Price is a monetary amount in integer cents.
type Price int64

// String formats the price with two decimal places, e.g. "12.05".
func (p Price) String() string {
	sign := ""
	// Unsigned magnitude so math.MinInt64 negates without overflow.
	u := uint64(p)
	if p < 0 {
		sign = "-"
		u = -u
	}
	return fmt.Sprintf("%s%d.%02d", sign, u/100, u%100)
}

// Float returns the price in currency units.
func (p Price) Float() float64 {
	return float64(p) / 100
}

// Product is an item from the synthetic catalog.
type Product struct {
	ID       string `json:"product_id"`
	Category string `json:"category"`
	Price    Price  `json:"price"`
}

// Event is a single clickstream record.
type Event struct {
	// EventID is unique across a generated dataset and increases in emission order
	EventID int64 `json:"event_id"`

	// UserID identifies the synthetic user that owns the session
	UserID string `json:"user_id"`

	// SessionID identifies the session, unique per session
	SessionID string `json:"session_id"`

	// EventTime is non-decreasing within a session
	EventTime time.Time `json:"event_time"`

	// EventType is one of EventTypes
	EventType EventType `json:"event_type"`

	// Product is set only for item events (view_item, add_to_cart, purchase)
	Product *Product `json:"product,omitempty"`

	// City and DeviceType are constant within a session
	City       string `json:"city"`
	DeviceType string `json:"device_type"`
}

// ProductID returns the product id or "" when the event carries no product.
func (e Event) ProductID() string {
	if e.Product == nil {
		return ""
	}
	return e.Product.ID
}

// Category returns the product category or "" when the event carries no product.
func (e Event) Category() string {
	if e.Product == nil {
		return ""
	}
	return e.Product.Category
}

// Package domain contains the invoice form entities and the records that
// are persisted for them.
package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the layout of issue and due dates as entered on the form.
const DateLayout = "2006-01-02"

// Number is a form-entered numeric value. Decoding never fails: anything
// that is not a finite number becomes 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*n = 0
			return nil
		}
		*n = ParseNumber(s)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

// Float returns the value, mapping NaN and infinities to 0.
func (n Number) Float() float64 {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseNumber parses user input leniently.
func ParseNumber(s string) Number {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return Number(v).normalized()
}

func (n Number) normalized() Number {
	return Number(n.Float())
}

type BusinessProfile struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address string  `json:"address"`
	Logo    *string `json:"logo"`
}

type ClientProfile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Meta carries the invoice number, dates and notes.
type Meta struct {
	Number    string `json:"number"`
	IssueDate string `json:"date"`
	DueDate   string `json:"dueDate"`
	Notes     string `json:"notes"`
}

type LineItem struct {
	Description string `json:"description"`
	Quantity    Number `json:"quantity"`
	Price       Number `json:"price"`
}

// Amount is quantity × price with non-numeric parts treated as 0.
func (l LineItem) Amount() float64 {
	return l.Quantity.Float() * l.Price.Float()
}

func (l LineItem) IsBlank() bool {
	return strings.TrimSpace(l.Description) == ""
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Discount struct {
	Type  DiscountType `json:"type"`
	Value Number       `json:"value"`
}

// Invoice is the full form state. It is what a draft stores and what a
// history snapshot captures.
type Invoice struct {
	Business BusinessProfile `json:"business"`
	Client   ClientProfile   `json:"client"`
	Meta     Meta            `json:"invoice"`
	Items    []LineItem      `json:"items"`
	Discount Discount        `json:"discount"`
	Currency string          `json:"currency"`
	TaxRate  Number          `json:"taxRate"`
	Template string          `json:"template"`
}

// Clone returns a deep copy so that snapshots never alias live state.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.Items != nil {
		out.Items = make([]LineItem, len(inv.Items))
		copy(out.Items, inv.Items)
	}
	if inv.Business.Logo != nil {
		logo := *inv.Business.Logo
		out.Business.Logo = &logo
	}
	return out
}

// Draft is the autosaved in-progress invoice.
type Draft struct {
	Invoice
	SavedAt time.Time `json:"savedAt"`
	Writer  string    `json:"writer,omitempty"`
}

// Snapshot is an immutable history entry.
type Snapshot struct {
	ID            string    `json:"id"`
	SavedAt       time.Time `json:"savedAt"`
	InvoiceNumber string    `json:"invoiceNumber"`
	ClientName    string    `json:"clientName"`
	Total         float64   `json:"total"`
	Currency      string    `json:"currency"`
	Data          Invoice   `json:"data"`
}

type Preferences struct {
	Currency string  `json:"currency"`
	TaxRate  float64 `json:"taxRate"`
	Template string  `json:"template"`
}

type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

type SubscriptionRecord struct {
	CustomerID     string             `json:"customerId"`
	SubscriptionID string             `json:"subscriptionId"`
	Status         SubscriptionStatus `json:"status"`
	Plan           string             `json:"plan"`
	ExpiresAt      *time.Time         `json:"expiresAt"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// UsageCounter counts invocations of a rate-limited feature on one day.
type UsageCounter struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

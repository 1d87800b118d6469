package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices go over the wire as plain numbers (2.99), not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Bounds of the sweets.price NUMERIC(10,2) and sweets.quantity INTEGER columns.
const (
	MaxQuantity = math.MaxInt32

	priceScale     = 2
	priceIntDigits = 8
	// values written with more fractional zeros than this are not worth rescaling
	maxPriceFractionDigits = 18
)

var MaxPrice = decimal.New(9999999999, -priceScale)

// PriceInRange reports whether d is positive and not above MaxPrice. Exponent
// and digit count are checked before any comparison, so a value such as
// 1e400000000 is rejected without being expanded.
func PriceInRange(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	exp := int(d.Exponent())
	if exp < -maxPriceFractionDigits || exp > priceIntDigits {
		return false
	}
	if int(d.NumDigits())+exp > priceIntDigits {
		return false
	}
	return d.LessThanOrEqual(MaxPrice)
}

// ValidPrice is PriceInRange plus at most two decimal places.
func ValidPrice(d decimal.Decimal) bool {
	return PriceInRange(d) && d.Equal(d.Round(priceScale))
}

type Sweet struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Category    string          `json:"category" db:"category"`
	Description *string         `json:"description,omitempty" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	ImageURL    *string         `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// SweetPatch carries the fields of a partial update. Nil means "leave as is".
type SweetPatch struct {
	Name        *string
	Category    *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	ImageURL    *string
}

func (p SweetPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Description == nil &&
		p.Price == nil && p.Quantity == nil && p.ImageURL == nil
}

// Apply copies the set fields of p onto s.
func (p SweetPatch) Apply(s *Sweet) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Description != nil {
		s.Description = p.Description
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
	if p.Quantity != nil {
		s.Quantity = *p.Quantity
	}
	if p.ImageURL != nil {
		s.ImageURL = p.ImageURL
	}
}

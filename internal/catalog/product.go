package catalog

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Category is one of the fixed product categories.
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryBooks       Category = "books"
	CategoryHome        Category = "home"
	CategorySports      Category = "sports"
	CategoryBeauty      Category = "beauty"
	CategoryToys        Category = "toys"
	CategoryFood        Category = "food"
	CategoryAutomotive  Category = "automotive"
	CategoryOther       Category = "other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryElectronics, CategoryClothing, CategoryBooks, CategoryHome, CategorySports,
	CategoryBeauty, CategoryToys, CategoryFood, CategoryAutomotive, CategoryOther,
}

// ParseCategory lower-cases raw input and reports whether it names a known category.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return c, false
}

// Image references a stored product picture.
type Image struct {
	URL       string `json:"url"`
	StorageID string `json:"storageId"`
}

// Product is a catalog entry.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    Category        `json:"category"`
	Image       *Image          `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NormalizeTitle trims the title and upper-cases its first letter.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return title
	}
	r, size := utf8.DecodeRuneInString(title)
	return string(unicode.ToUpper(r)) + title[size:]
}

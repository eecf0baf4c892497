package parser

import (
	"fmt"
	"strings"

	"github.com/mariemby1/data-scraping/models"
	"github.com/shopspring/decimal"
)

// currencySymbols are stripped from listing prices. The second form is the
// pound sign as it appears when a page is decoded as Latin-1.
var currencySymbols = []string{"Â£", "£"}

// ratingWords lists the star-rating class tokens in ascending order.
var ratingWords = []string{"One", "Two", "Three", "Four", "Five"}

// ErrMalformedPrice indicates a price that is not numeric once the currency
// symbol is removed.
type ErrMalformedPrice struct {
	Input string
	Err   error
}

func (e ErrMalformedPrice) Error() string {
	return fmt.Errorf("malformed price %q: %w", e.Input, e.Err).Error()
}

func (e ErrMalformedPrice) Unwrap() error {
	return e.Err
}

// ValidateEntry ensures the scraper captured the required fields.
func ValidateEntry(e *models.RawEntry) error {
	if e == nil {
		return fmt.Errorf("entry is nil")
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("entry missing title")
	}
	if strings.TrimSpace(e.PriceText) == "" {
		return fmt.Errorf("entry missing price for %s", e.Title)
	}
	if !e.HasRating {
		return fmt.Errorf("entry missing rating for %s", e.Title)
	}
	if !e.HasAvailability {
		return fmt.Errorf("entry missing availability for %s", e.Title)
	}
	return nil
}

// Extract converts a raw listing entry into a record.
func Extract(e *models.RawEntry) (models.Record, error) {
	if err := ValidateEntry(e); err != nil {
		return models.Record{}, err
	}
	price, err := ParsePrice(e.PriceText)
	if err != nil {
		return models.Record{}, err
	}
	return models.Record{
		Title:        strings.TrimSpace(e.Title),
		Price:        price,
		Rating:       RatingFromClass(e.RatingClass),
		Availability: NormalizeAvailability(e.Availability),
	}, nil
}

// NormalizePrice removes the currency symbol and surrounding whitespace.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	for _, symbol := range currencySymbols {
		price = strings.ReplaceAll(price, symbol, "")
	}
	return strings.TrimSpace(price)
}

// ParsePrice strips the currency symbol and parses the remainder as a decimal.
func ParsePrice(price string) (decimal.Decimal, error) {
	normalized := NormalizePrice(price)
	if normalized == "" {
		return decimal.Zero, ErrMalformedPrice{Input: price, Err: fmt.Errorf("empty amount")}
	}
	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, ErrMalformedPrice{Input: price, Err: err}
	}
	return value, nil
}

// NormalizeAvailability trims and collapses spacing in the availability text.
func NormalizeAvailability(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// RatingToNumeric converts the textual rating to a numeric scale.
func RatingToNumeric(rating string) int {
	switch strings.TrimSpace(rating) {
	case "Zero":
		return 0
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}

// RatingFromClass finds the rating word inside a star-rating class attribute
// such as "star-rating Three". Unrecognised encodings map to 0.
func RatingFromClass(class string) int {
	tokens := strings.Fields(class)
	for _, word := range ratingWords {
		for _, token := range tokens {
			if token == word {
				return RatingToNumeric(word)
			}
		}
	}
	return 0
}

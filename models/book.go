// Package models defines data structures for the scraper.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryLink is a navigation-menu entry that passed the allow-list.
type CategoryLink struct {
	Name string
	URL  string
}

// RawEntry holds the unparsed fields of one listing entry. The Has flags
// record whether the rating and availability elements were found at all.
type RawEntry struct {
	Title           string
	PriceText       string
	RatingClass     string
	Availability    string
	HasRating       bool
	HasAvailability bool
}

// Record is a listing entry after extraction.
type Record struct {
	Title        string
	Price        decimal.Decimal
	Rating       int
	Availability string
}

// Category is a row of the categories table.
type Category struct {
	ID    int    `csv:"id" json:"id" db:"id"`
	Title string `csv:"title" json:"title" db:"title"`
}

// Status is a row of the status table.
type Status struct {
	ID     int    `csv:"id" json:"id" db:"id"`
	Status string `csv:"status" json:"status" db:"status"`
}

// Book is a row of the books table.
type Book struct {
	ID         int             `csv:"id" json:"id" db:"id"`
	CategoryID int             `csv:"id_categorie" json:"id_categorie" db:"id_categorie"`
	StatusID   int             `csv:"id_status" json:"id_status" db:"id_status"`
	Ratings    int             `csv:"ratings" json:"ratings" db:"ratings"`
	Title      string          `csv:"title" json:"title" db:"title"`
	Price      decimal.Decimal `csv:"price" json:"price" db:"price"`
}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	StartTime         time.Time
	EndTime           time.Time
	CategoriesScraped []string
	CategoriesSkipped []string
	BookCount         int
	PageCount         int
	ErrorsByType      map[string]int
	Loaded            bool
}

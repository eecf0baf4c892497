// Package store accumulates the categories, status, and books tables for a
// single run before they are persisted.
package store

import (
	"fmt"

	"github.com/mariemby1/data-scraping/models"
)

// Tables is a run-scoped accumulator. Ids are allocated sequentially from 1
// and never reused. It is not safe for concurrent use.
type Tables struct {
	Categories []models.Category
	Statuses   []models.Status
	Books      []models.Book

	categoryIndex map[string]int
	statusIndex   map[string]int
}

// New returns empty tables.
func New() *Tables {
	return &Tables{
		categoryIndex: make(map[string]int),
		statusIndex:   make(map[string]int),
	}
}

// EnsureCategory returns the id of the named category, allocating one the
// first time the name is seen.
func (t *Tables) EnsureCategory(name string) int {
	if id, ok := t.categoryIndex[name]; ok {
		return id
	}
	id := len(t.Categories) + 1
	t.Categories = append(t.Categories, models.Category{ID: id, Title: name})
	t.categoryIndex[name] = id
	return id
}

// EnsureStatus returns the id of an availability string, allocating one the
// first time the text is seen in this run.
func (t *Tables) EnsureStatus(text string) int {
	if id, ok := t.statusIndex[text]; ok {
		return id
	}
	id := len(t.Statuses) + 1
	t.Statuses = append(t.Statuses, models.Status{ID: id, Status: text})
	t.statusIndex[text] = id
	return id
}

// AddBook always allocates a new book id.
func (t *Tables) AddBook(categoryID, statusID int, record models.Record) (int, error) {
	if categoryID <= 0 || categoryID > len(t.Categories) {
		return 0, fmt.Errorf("unknown category id %d", categoryID)
	}
	if statusID <= 0 || statusID > len(t.Statuses) {
		return 0, fmt.Errorf("unknown status id %d", statusID)
	}

	id := len(t.Books) + 1
	t.Books = append(t.Books, models.Book{
		ID:         id,
		CategoryID: categoryID,
		StatusID:   statusID,
		Ratings:    record.Rating,
		Title:      record.Title,
		Price:      record.Price,
	})
	return id, nil
}

// AddCategory records a fully scraped category and its records. A category
// is only added once all of its records are known, so a category that fails
// part way never consumes ids.
func (t *Tables) AddCategory(name string, records []models.Record) (int, error) {
	categoryID := t.EnsureCategory(name)
	for _, record := range records {
		statusID := t.EnsureStatus(record.Availability)
		if _, err := t.AddBook(categoryID, statusID, record); err != nil {
			return categoryID, err
		}
	}
	return categoryID, nil
}

// Empty reports whether no rows were accumulated.
func (t *Tables) Empty() bool {
	return len(t.Categories) == 0 && len(t.Statuses) == 0 && len(t.Books) == 0
}

package pipeline

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mariemby1/data-scraping/store"
)

// RenderTables prints the categories, status, and books tables to w.
func RenderTables(w io.Writer, tables *store.Tables) {
	categories := newTable(w, "Categories", table.Row{"id", "title"})
	for _, c := range tables.Categories {
		categories.AppendRow(table.Row{c.ID, c.Title})
	}
	categories.Render()

	statuses := newTable(w, "Status", table.Row{"id", "status"})
	for _, s := range tables.Statuses {
		statuses.AppendRow(table.Row{s.ID, s.Status})
	}
	statuses.Render()

	books := newTable(w, "Books", table.Row{"id", "id_categorie", "id_status", "ratings", "title", "price"})
	for _, b := range tables.Books {
		books.AppendRow(table.Row{b.ID, b.CategoryID, b.StatusID, b.Ratings, b.Title, b.Price.StringFixed(2)})
	}
	books.Render()
}

func newTable(w io.Writer, title string, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(header)
	return t
}

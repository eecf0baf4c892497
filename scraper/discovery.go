package scraper

import (
	"context"
	"fmt"

	"github.com/mariemby1/data-scraping/models"
	"github.com/mariemby1/data-scraping/parser"
)

// Discover loads the catalog home page and returns the navigation entries
// whose text exactly matches a name in allow. Results keep page order; a
// name listed twice keeps its first position and its last URL.
func Discover(ctx context.Context, session Session, baseURL string, allow []string) ([]models.CategoryLink, error) {
	page, err := session.Navigate(ctx, baseURL, parser.NavMarker)
	if err != nil {
		return nil, fmt.Errorf("load navigation: %w", err)
	}

	allowed := make(map[string]struct{}, len(allow))
	for _, name := range allow {
		allowed[name] = struct{}{}
	}

	var links []models.CategoryLink
	position := make(map[string]int)
	for _, link := range parser.ParseNavigation(page.Doc, page.URL) {
		if _, ok := allowed[link.Name]; !ok {
			continue
		}
		if i, seen := position[link.Name]; seen {
			links[i].URL = link.URL
			continue
		}
		position[link.Name] = len(links)
		links = append(links, link)
	}
	return links, nil
}

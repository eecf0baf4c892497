package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mariemby1/data-scraping/models"
)

// Selectors for the catalog markup.
const (
	NavMarker     = ".nav-list"
	ListingMarker = ".product_pod"

	navLinkSelector  = ".nav-list ul li a"
	entrySelector    = ".product_pod"
	nextLinkSelector = "li.next a"
)

// ParseNavigation returns every category link of the navigation menu in
// page order. Relative hrefs are resolved against base.
func ParseNavigation(doc *goquery.Document, base *url.URL) []models.CategoryLink {
	var links []models.CategoryLink
	doc.Find(navLinkSelector).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		href, ok := s.Attr("href")
		if name == "" || !ok {
			return
		}
		links = append(links, models.CategoryLink{
			Name: name,
			URL:  resolve(base, href),
		})
	})
	return links
}

// ParseEntries reads all listing entries of a catalog page.
func ParseEntries(doc *goquery.Document) []models.RawEntry {
	var entries []models.RawEntry
	doc.Find(entrySelector).Each(func(_ int, s *goquery.Selection) {
		link := s.Find("h3 a").First()
		title, _ := link.Attr("title")
		title = strings.TrimSpace(title)
		if title == "" {
			title = strings.TrimSpace(s.Find("h3").First().Text())
		}

		ratingClass, hasRating := s.Find(".star-rating").First().Attr("class")
		availability := s.Find(".availability").First()

		entries = append(entries, models.RawEntry{
			Title:           title,
			PriceText:       strings.TrimSpace(s.Find(".price_color").First().Text()),
			RatingClass:     ratingClass,
			Availability:    strings.TrimSpace(availability.Text()),
			HasRating:       hasRating,
			HasAvailability: availability.Length() > 0,
		})
	})
	return entries
}

// NextLink returns the absolute URL of the "next" pagination link.
func NextLink(doc *goquery.Document, base *url.URL) (string, bool) {
	href, ok := doc.Find(nextLinkSelector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", false
	}
	return resolve(base, href), true
}

// HasMarker reports whether the document contains the marker element.
func HasMarker(doc *goquery.Document, marker string) bool {
	return doc.Find(marker).Length() > 0
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

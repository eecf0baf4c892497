package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/mariemby1/data-scraping/parser"
)

// errMarkerMissing is wrapped when a page loaded but never showed its marker.
var errMarkerMissing = errors.New("marker element not found")

// ErrNavigationTimeout indicates the marker element did not appear within the
// navigation wait. Callers treat it as recoverable per navigation target.
type ErrNavigationTimeout struct {
	URL    string
	Marker string
	Err    error
}

func (e ErrNavigationTimeout) Error() string {
	return fmt.Errorf("timeout waiting for %s on %s: %w", e.Marker, e.URL, e.Err).Error()
}

func (e ErrNavigationTimeout) Unwrap() error {
	return e.Err
}

// ErrNavigation indicates any other failure to load a page.
type ErrNavigation struct {
	URL string
	Err error
}

func (e ErrNavigation) Error() string {
	return fmt.Errorf("navigate %s: %w", e.URL, e.Err).Error()
}

func (e ErrNavigation) Unwrap() error {
	return e.Err
}

// ErrorTypeLabel returns a stable label for metrics and run summaries.
func ErrorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrNavigationTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var price parser.ErrMalformedPrice
	if errors.As(err, &price) {
		return "malformed_price"
	}
	var nav ErrNavigation
	if errors.As(err, &nav) {
		return "navigation"
	}
	return "other"
}

func classifyNavigation(rawURL, marker string, err error) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return ErrNavigationTimeout{URL: rawURL, Marker: marker, Err: err}
	}
	return ErrNavigation{URL: rawURL, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

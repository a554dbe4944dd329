package scraper

import (
	"context"
	"time"
)

// Page is the readable text of an imported web page.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`

	// FetchedAt is when the page was downloaded.
	FetchedAt time.Time `json:"fetched_at"`
}

// Fetcher defines the interface for importing tactical web pages.
type Fetcher interface {
	GetPage(ctx context.Context, url string) (*Page, error)
}

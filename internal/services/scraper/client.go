// Package scraper imports tactical articles from the web as plain text.
package scraper

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tactix/internal/storage"
	"github.com/tactix/pkg/logger"
)

const (
	// MaxTextLength caps the text kept from one page.
	MaxTextLength = 12000

	// maxPageSize caps the downloaded HTML.
	maxPageSize = 5 << 20

	// cacheTTL is how long a cached page is served before it is fetched again.
	cacheTTL = 24 * time.Hour

	textSelector = "h1, h2, h3, h4, p, li, td"
)

var (
	// ErrBlockedAddress is returned when a page resolves to a loopback,
	// private or link-local address.
	ErrBlockedAddress = errors.New("address not allowed")

	// ErrPageTooLarge is returned when a page exceeds the download cap.
	ErrPageTooLarge = errors.New("page too large")
)

// Client is the scraper client.
type Client struct {
	httpClient *http.Client
	cache      storage.Backend
	now        func() time.Time
	allowed    map[string]bool
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces time.Now for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithAllowedAddrs lets the client dial the given ip:port addresses even
// though they are not public.
func WithAllowedAddrs(addrs ...string) Option {
	return func(c *Client) {
		for _, a := range addrs {
			c.allowed[a] = true
		}
	}
}

// NewClient creates a new scraper client. cache may be nil.
func NewClient(cache storage.Backend, opts ...Option) *Client {
	c := &Client{
		cache:   cache,
		now:     time.Now,
		allowed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}

	// The guard runs on every dial, so redirects are checked too.
	dialer := &net.Dialer{
		Timeout: 5 * time.Second,
		Control: c.checkDial,
	}
	c.httpClient = &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 5 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
		},
	}
	return c
}

// checkDial rejects connections to addresses that are not publicly routable.
func (c *Client) checkDial(network, address string, _ syscall.RawConn) error {
	if c.allowed[address] {
		return nil
	}
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip := ap.Addr().Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	return nil
}

// GetPage fetches rawURL and returns its readable text.
func (c *Client) GetPage(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	pageURL := u.String()

	sum := sha1.Sum([]byte(pageURL))
	cacheKey := "page:v1:" + hex.EncodeToString(sum[:])

	if c.cache != nil {
		if val, ok, err := c.cache.Get(ctx, cacheKey); err == nil && ok {
			var page Page
			if err := json.Unmarshal([]byte(val), &page); err == nil && c.now().Sub(page.FetchedAt) < cacheTTL {
				logger.Log.Debugf("Page cache hit for %s", pageURL)
				return &page, nil
			}
		}
	}

	logger.Log.Infof("Scraping page %s", pageURL)
	page, err := c.scrape(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		data, _ := json.Marshal(page)
		if err := c.cache.Set(ctx, cacheKey, string(data)); err != nil {
			logger.Log.Warnf("Page cache write failed: %v", err)
		}
	}

	return page, nil
}

func (c *Client) scrape(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code error: %d %s", resp.StatusCode, resp.Status)
	}
	if resp.ContentLength > maxPageSize {
		return nil, fmt.Errorf("%w: %s", ErrPageTooLarge, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxPageSize {
		return nil, fmt.Errorf("%w: %s", ErrPageTooLarge, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &Page{
		URL:       pageURL,
		Title:     strings.TrimSpace(doc.Find("title").First().Text()),
		Text:      extractText(doc),
		FetchedAt: c.now(),
	}
	if page.Text == "" {
		return nil, fmt.Errorf("no readable text on %s", pageURL)
	}
	return page, nil
}

// extractText collects headings, paragraphs and list items from the main
// content of doc, one per line. Blocks nested in another block are covered
// by the outer one.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var sb strings.Builder
	root.Find(textSelector).Each(func(i int, s *goquery.Selection) {
		if sb.Len() >= MaxTextLength {
			return
		}
		if s.ParentsFilteredUntilSelection(textSelector, root).Length() > 0 {
			return
		}
		line := strings.Join(strings.Fields(s.Text()), " ")
		if line == "" {
			return
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	})

	text := strings.TrimSpace(sb.String())
	if len(text) > MaxTextLength {
		text = strings.ToValidUTF8(text[:MaxTextLength], "")
	}
	return text
}

// Package feed fetches an RSS or Atom feed and selects the recent items.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/mmcdole/gofeed"
)

const (
	userAgent     = "rss-bluesky-bridge/1.0"
	errorReadSize = 16384
)

// Item is a feed entry that carries everything the pipeline stages.
type Item struct {
	GUID        string
	Title       string
	Description string
	Link        string
	Published   time.Time
}

// PubDate formats Published the way it is stored on the execution item.
func (i Item) PubDate() string {
	return i.Published.Format(time.RFC1123Z)
}

// Source reads one feed URL.
type Source struct {
	url    string
	client *http.Client
	parser *gofeed.Parser
	clock  func() time.Time
}

// Option configures a [Source].
type Option func(*Source)

// WithHTTPClient replaces the default client, which times out after 30 seconds.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithClock replaces time.Now for the age filter.
func WithClock(clock func() time.Time) Option {
	return func(s *Source) {
		s.clock = clock
	}
}

func NewSource(url string, opts ...Option) *Source {
	s := &Source{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		clock:  time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// URL returns the feed address.
func (s *Source) URL() string {
	return s.url
}

// Recent fetches the feed and returns the items published at most maxAge ago,
// in feed order. Items without a guid or a parseable publish date are
// skipped. Age is compared in whole hours, so an item 48h59m old is still
// recent for a 48 hour window.
func (s *Source) Recent(ctx context.Context, maxAge time.Duration) ([]Item, error) {
	parsed, err := s.fetch(ctx)
	if err != nil {
		return nil, &types.UpstreamError{Service: "feed", Op: "Fetch", Err: err}
	}

	return Select(parsed.Items, maxAge, s.clock()), nil
}

func (s *Source) fetch(ctx context.Context) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.url, err)
	}

	req.Header.Set("User-Agent", userAgent)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RSS feed from %s: %w", s.url, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, errorReadSize))
		return nil, fmt.Errorf("failed to fetch RSS feed from %s: status %d: %s", s.url, res.StatusCode, strings.TrimSpace(string(body)))
	}

	parsed, err := s.parser.Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed from %s: %w", s.url, err)
	}

	return parsed, nil
}

// Select applies the guid and age rules of [Source.Recent] to parsed items.
func Select(items []*gofeed.Item, maxAge time.Duration, now time.Time) []Item {
	maxHours := int64(maxAge / time.Hour)
	selected := make([]Item, 0, len(items))

	for _, it := range items {
		if it == nil || strings.TrimSpace(it.GUID) == "" || it.PublishedParsed == nil {
			continue
		}

		if int64(now.Sub(*it.PublishedParsed)/time.Hour) > maxHours {
			continue
		}

		selected = append(selected, Item{
			GUID:        it.GUID,
			Title:       it.Title,
			Description: it.Description,
			Link:        it.Link,
			Published:   *it.PublishedParsed,
		})
	}

	return selected
}

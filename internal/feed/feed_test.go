package feed_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/feed"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <link>https://example.com</link>
    <description>Example feed</description>
    <item>
      <title>Fresh</title>
      <link>https://example.com/fresh</link>
      <description>&lt;p&gt;New &amp;amp; shiny&lt;/p&gt;</description>
      <guid>https://example.com/fresh</guid>
      <pubDate>Sun, 10 Mar 2024 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Old</title>
      <link>https://example.com/old</link>
      <guid>https://example.com/old</guid>
      <pubDate>Wed, 06 Mar 2024 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>No guid</title>
      <link>https://example.com/noguid</link>
      <pubDate>Sun, 10 Mar 2024 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>No date</title>
      <guid>https://example.com/nodate</guid>
    </item>
  </channel>
</rss>`

func TestSource_Recent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rss-bluesky-bridge/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	t.Cleanup(srv.Close)

	src := feed.NewSource(srv.URL, feed.WithClock(func() time.Time { return now }))

	items, err := src.Recent(t.Context(), 48*time.Hour)
	require.NoError(t, err)

	want := []feed.Item{{
		GUID:        "https://example.com/fresh",
		Title:       "Fresh",
		Description: "<p>New &amp; shiny</p>",
		Link:        "https://example.com/fresh",
		Published:   time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
	}}

	if diff := cmp.Diff(want, items, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("Recent() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "Sun, 10 Mar 2024 10:00:00 +0000", items[0].PubDate())
}

func TestSource_Recent_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	_, err := feed.NewSource(srv.URL).Recent(t.Context(), time.Hour)

	var upstreamErr *types.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, "feed", upstreamErr.Service)
	assert.Contains(t, err.Error(), "status 410")
}

func TestSource_Recent_ParseError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	}))
	t.Cleanup(srv.Close)

	_, err := feed.NewSource(srv.URL).Recent(t.Context(), time.Hour)
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*types.UpstreamError)))
}

func TestSelect_WholeHours(t *testing.T) {
	t.Parallel()

	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	items := []*gofeed.Item{
		{GUID: "a", PublishedParsed: at(2*time.Hour + 59*time.Minute)},
		{GUID: "b", PublishedParsed: at(3 * time.Hour)},
		{GUID: "c", PublishedParsed: at(-time.Hour)},
		{GUID: " ", PublishedParsed: at(0)},
		nil,
	}

	got := feed.Select(items, 2*time.Hour, now)

	guids := make([]string, 0, len(got))
	for _, it := range got {
		guids = append(guids, it.GUID)
	}

	assert.Equal(t, []string{"a", "c"}, guids)
}

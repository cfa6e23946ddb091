package bluesky_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/bluesky"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *bluesky.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return bluesky.New(srv.URL+"/", bluesky.WithClock(func() time.Time {
		return time.Date(2024, 3, 10, 12, 30, 0, 123456789, time.UTC)
	}))
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/com.atproto.server.createSession", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))

		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, map[string]string{"identifier": "bridge.bsky.social", "password": "app-password"}, in)

		_, _ = w.Write([]byte(`{"accessJwt":"access","refreshJwt":"refresh","handle":"bridge.bsky.social","did":"did:plc:abc"}`))
	})

	session, err := client.CreateSession(t.Context(), "bridge.bsky.social", "app-password")
	require.NoError(t, err)

	assert.Equal(t, &bluesky.Session{AccessJwt: "access", RefreshJwt: "refresh", Handle: "bridge.bsky.social", DID: "did:plc:abc"}, session)
}

func TestCreateSession_XRPCError(t *testing.T) {
	t.Parallel()

	client := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
	})

	_, err := client.CreateSession(t.Context(), "bridge", "wrong")

	var xerr *bluesky.XRPCError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, http.StatusUnauthorized, xerr.StatusCode)
	assert.Equal(t, "AuthenticationRequired", xerr.Name)
	assert.Contains(t, err.Error(), "Invalid identifier or password")
}

func TestCreatePost(t *testing.T) {
	t.Parallel()

	var record map[string]any

	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/com.atproto.repo.createRecord", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		var in map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "did:plc:abc", in["repo"])
		assert.Equal(t, bluesky.PostCollection, in["collection"])

		record, _ = in["record"].(map[string]any)

		_, _ = w.Write([]byte(`{"uri":"at://did:plc:abc/app.bsky.feed.post/3k","cid":"bafy"}`))
	})

	session := &bluesky.Session{AccessJwt: "access", DID: "did:plc:abc"}

	ref, err := client.CreatePost(t.Context(), session, bluesky.Post{
		Text:        "New post",
		Link:        "https://example.com/a",
		Title:       "A title",
		Description: "New post",
	})
	require.NoError(t, err)

	assert.Equal(t, bluesky.RecordRef{URI: "at://did:plc:abc/app.bsky.feed.post/3k", CID: "bafy"}, ref)

	want := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      "New post",
		"createdAt": "2024-03-10T12:30:00.123Z",
		"embed": map[string]any{
			"$type": "app.bsky.embed.external",
			"external": map[string]any{
				"uri":         "https://example.com/a",
				"title":       "A title",
				"description": "New post",
			},
		},
	}

	if diff := cmp.Diff(want, record); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestCreatePost_WithoutLink(t *testing.T) {
	t.Parallel()

	var record map[string]any

	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		record, _ = in["record"].(map[string]any)

		_, _ = w.Write([]byte(`{"uri":"at://x","cid":"y"}`))
	})

	_, err := client.CreatePost(t.Context(), &bluesky.Session{DID: "did:plc:abc"}, bluesky.Post{Text: "hello"})
	require.NoError(t, err)

	assert.NotContains(t, record, "embed")
	assert.NotContains(t, record, "facets")
}

func TestLinkFacets(t *testing.T) {
	t.Parallel()

	text := "Read “this” at https://example.com/a?b=c, then http://go.dev."

	facets := bluesky.LinkFacets(text)
	require.Len(t, facets, 2)

	first := facets[0]
	assert.Equal(t, "https://example.com/a?b=c", text[first.Index.ByteStart:first.Index.ByteEnd])
	assert.Equal(t, "https://example.com/a?b=c", first.Features[0].URI)
	assert.Equal(t, "app.bsky.richtext.facet#link", first.Features[0].Type)

	second := facets[1]
	assert.Equal(t, "http://go.dev", text[second.Index.ByteStart:second.Index.ByteEnd])

	assert.Empty(t, bluesky.LinkFacets("no links here, just http:// alone"))
}

// Package bluesky is a minimal XRPC client that logs in with an app password
// and creates posts with an external link card.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	PostCollection = "app.bsky.feed.post"

	createSessionMethod = "com.atproto.server.createSession"
	createRecordMethod  = "com.atproto.repo.createRecord"

	embedExternalType = "app.bsky.embed.external"
	linkFeatureType   = "app.bsky.richtext.facet#link"

	createdAtLayout = "2006-01-02T15:04:05.000Z"
	errorReadSize   = 16384
)

// Session is the result of createSession.
type Session struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	DID        string `json:"did"`
}

// Post is the content of one feed post.
type Post struct {
	Text string

	// Link, Title and Description fill the external embed. No embed is
	// attached when Link is empty.
	Link        string
	Title       string
	Description string
}

// RecordRef identifies a created record.
type RecordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// XRPCError is a non-2xx XRPC response.
type XRPCError struct {
	Method     string
	StatusCode int
	Name       string `json:"error"`
	Message    string `json:"message"`
}

func (e *XRPCError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s returned status %d", e.Method, e.StatusCode)
	}

	return fmt.Sprintf("%s returned status %d: %s: %s", e.Method, e.StatusCode, e.Name, e.Message)
}

type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type FacetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

// Facet annotates a byte range of the post text.
type Facet struct {
	Index    ByteSlice      `json:"index"`
	Features []FacetFeature `json:"features"`
}

type external struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type externalEmbed struct {
	Type     string   `json:"$type"`
	External external `json:"external"`
}

type postRecord struct {
	Type      string         `json:"$type"`
	Text      string         `json:"text"`
	CreatedAt string         `json:"createdAt"`
	Facets    []Facet        `json:"facets,omitempty"`
	Embed     *externalEmbed `json:"embed,omitempty"`
}

type createRecordInput struct {
	Repo       string     `json:"repo"`
	Collection string     `json:"collection"`
	Record     postRecord `json:"record"`
}

// Client talks to one PDS host. It is safe for concurrent use.
type Client struct {
	host    string
	http    *http.Client
	limiter *rate.Limiter
	clock   func() time.Time
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 30 seconds.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithRateLimit paces outgoing requests. Default: 5 per second, burst 5.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func New(host string, opts ...Option) *Client {
	c := &Client{
		host:    strings.TrimRight(host, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		clock:   time.Now,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// CreateSession logs in with a handle (or email) and an app password.
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	in := map[string]string{"identifier": identifier, "password": password}

	var session Session
	if err := c.call(ctx, createSessionMethod, "", in, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

// CreatePost writes an app.bsky.feed.post record to the session's repo. Links
// in the text are annotated with link facets.
func (c *Client) CreatePost(ctx context.Context, session *Session, post Post) (RecordRef, error) {
	record := postRecord{
		Type:      PostCollection,
		Text:      post.Text,
		CreatedAt: c.clock().UTC().Format(createdAtLayout),
		Facets:    LinkFacets(post.Text),
	}

	if post.Link != "" {
		record.Embed = &externalEmbed{
			Type: embedExternalType,
			External: external{
				URI:         post.Link,
				Title:       post.Title,
				Description: post.Description,
			},
		}
	}

	in := createRecordInput{Repo: session.DID, Collection: PostCollection, Record: record}

	var ref RecordRef
	if err := c.call(ctx, createRecordMethod, session.AccessJwt, in, &ref); err != nil {
		return RecordRef{}, err
	}

	return ref, nil
}

func (c *Client) call(ctx context.Context, method, token string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s input: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/xrpc/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		xerr := &XRPCError{Method: method, StatusCode: res.StatusCode}

		raw, _ := io.ReadAll(io.LimitReader(res.Body, errorReadSize))
		_ = json.Unmarshal(raw, xerr)

		return xerr
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s output: %w", method, err)
	}

	return nil
}

var linkPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// LinkFacets returns a link facet for every http(s) URL in text. Offsets are
// UTF-8 byte offsets; trailing punctuation is not part of the link.
func LinkFacets(text string) []Facet {
	var facets []Facet

	for _, loc := range linkPattern.FindAllStringIndex(text, -1) {
		uri := strings.TrimRight(text[loc[0]:loc[1]], ".,;:!?)]}'")

		if _, rest, _ := strings.Cut(uri, "://"); rest == "" {
			continue
		}

		facets = append(facets, Facet{
			Index:    ByteSlice{ByteStart: loc[0], ByteEnd: loc[0] + len(uri)},
			Features: []FacetFeature{{Type: linkFeatureType, URI: uri}},
		})
	}

	return facets
}

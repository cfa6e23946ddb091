package stage_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/bluesky"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/feed"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/secrets"
	"github.com/anoopengineer/rss-bluesky-bridge/sqs"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory types.Repository.
type memStore struct {
	mu          sync.Mutex
	items       map[types.ItemIdentifier]*types.ExecutionItem
	records     map[string]bool
	failBatch   error
	failDelete  error
	unprocessed []types.ItemIdentifier
}

var _ types.Repository = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		items:   make(map[types.ItemIdentifier]*types.ExecutionItem),
		records: make(map[string]bool),
	}
}

func (m *memStore) put(item *types.ExecutionItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *item
	m.items[item.Identifier()] = &cp
}

func (m *memStore) CreateOne(_ context.Context, item *types.ExecutionItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	m.put(item)

	return nil
}

func (m *memStore) CreateBatch(_ context.Context, items []*types.ExecutionItem) (types.BulkResult, error) {
	if m.failBatch != nil {
		return types.BulkResult{Processed: len(items) - len(m.unprocessed), Unprocessed: m.unprocessed}, m.failBatch
	}

	for _, item := range items {
		m.put(item)
	}

	return types.BulkResult{Processed: len(items)}, nil
}

func (m *memStore) GetOne(_ context.Context, executionID, guid string) (*types.ExecutionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[types.ItemIdentifier{ExecutionID: executionID, GUID: guid}]
	if !ok {
		return nil, fmt.Errorf("execution item %s/%s: %w", executionID, guid, types.ErrNotFound)
	}

	cp := *item

	return &cp, nil
}

func (m *memStore) UpdateSummary(_ context.Context, executionID, guid, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[types.ItemIdentifier{ExecutionID: executionID, GUID: guid}]
	if !ok {
		return &types.StorageError{Op: "UpdateSummary", Table: "mem", Err: types.ErrNotFound}
	}

	item.Summary = &summary

	return nil
}

func (m *memStore) DeleteByRun(_ context.Context, executionID string) (types.BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failDelete != nil {
		return types.BulkResult{Unprocessed: m.unprocessed}, m.failDelete
	}

	keys := make([]types.ItemIdentifier, 0)

	for id := range m.items {
		if id.ExecutionID == executionID {
			keys = append(keys, id)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].GUID < keys[j].GUID })

	for _, id := range keys {
		delete(m.items, id)
	}

	return types.BulkResult{Processed: len(keys)}, nil
}

func (m *memStore) Create(_ context.Context, guid string) error {
	if err := types.RequireNonBlank("guid", guid); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[guid] = true

	return nil
}

func (m *memStore) Exists(_ context.Context, guid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.records[guid], nil
}

func (m *memStore) Get(_ context.Context, guid string) (*types.RecordItem, error) {
	ok, _ := m.Exists(context.Background(), guid)
	if !ok {
		return nil, types.ErrNotFound
	}

	return &types.RecordItem{GUID: guid, Kind: types.KindRecordItem}, nil
}

type fakeSource struct {
	items  []feed.Item
	err    error
	maxAge time.Duration
}

func (f *fakeSource) Recent(_ context.Context, maxAge time.Duration) ([]feed.Item, error) {
	f.maxAge = maxAge
	return f.items, f.err
}

type fakeModel struct {
	summary string
	err     error
	input   string
}

func (f *fakeModel) Summarize(_ context.Context, description string) (string, error) {
	f.input = description
	return f.summary, f.err
}

type fakeCredentials struct {
	creds secrets.Credentials
	err   error
	name  string
}

func (f *fakeCredentials) Credentials(_ context.Context, secretName string) (secrets.Credentials, error) {
	f.name = secretName
	return f.creds, f.err
}

type fakePoster struct {
	sessionErr error
	postErr    error
	login      [2]string
	post       bluesky.Post
}

func (f *fakePoster) CreateSession(_ context.Context, identifier, password string) (*bluesky.Session, error) {
	f.login = [2]string{identifier, password}

	if f.sessionErr != nil {
		return nil, f.sessionErr
	}

	return &bluesky.Session{AccessJwt: "jwt", DID: "did:plc:abc"}, nil
}

func (f *fakePoster) CreatePost(_ context.Context, _ *bluesky.Session, post bluesky.Post) (bluesky.RecordRef, error) {
	f.post = post

	if f.postErr != nil {
		return bluesky.RecordRef{}, f.postErr
	}

	return bluesky.RecordRef{URI: "at://did:plc:abc/app.bsky.feed.post/1", CID: "cid"}, nil
}

type fakeQueue struct {
	mu      sync.Mutex
	reports []*sqs.FailureReport
	err     error
}

func (f *fakeQueue) SendFailure(_ context.Context, report *sqs.FailureReport) error {
	if err := report.Validate(); err != nil {
		return err
	}

	if f.err != nil {
		return f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reports = append(f.reports, report)

	return nil
}

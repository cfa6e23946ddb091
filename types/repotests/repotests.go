// Package repotests holds the behavioural suite every [types.Repository]
// backend must pass. Backends call the exported checks, or [RunAll], from
// their own tests, passing a connected repository bound to an empty table.
package repotests

import (
	"fmt"
	"strings"
	"testing"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runID derives a run identifier unique to the calling test so that suites
// sharing one table do not interfere.
func runID(t *testing.T) string {
	t.Helper()

	return "run-" + strings.NewReplacer("/", "-", " ", "_").Replace(t.Name())
}

func newItem(t *testing.T, executionID, guid string) *types.ExecutionItem {
	t.Helper()

	item, err := types.NewExecutionItem(executionID, guid)
	require.NoError(t, err)

	item.Title = types.StringPtr("Title " + guid)
	item.Description = types.StringPtr("<p>Description of " + guid + "</p>")
	item.Link = types.StringPtr("https://example.com/" + guid)
	item.PubDate = types.StringPtr("Mon, 15 Jan 2024 12:00:00 +0000")

	return item
}

func newItems(t *testing.T, executionID string, n int) []*types.ExecutionItem {
	t.Helper()

	items := make([]*types.ExecutionItem, 0, n)
	for i := range n {
		items = append(items, newItem(t, executionID, fmt.Sprintf("guid-%03d", i)))
	}

	return items
}

// CreateAndGet writes one item and reads it back.
func CreateAndGet(t *testing.T, repo types.Repository) {
	ctx := t.Context()
	run := runID(t)

	item := newItem(t, run, "g1")
	require.NoError(t, repo.CreateOne(ctx, item))

	got, err := repo.GetOne(ctx, run, "g1")
	require.NoError(t, err)

	assert.Equal(t, run, got.ExecutionID)
	assert.Equal(t, "g1", got.GUID)
	assert.Equal(t, item.Title, got.Title)
	assert.Equal(t, item.Description, got.Description)
	assert.Equal(t, item.Link, got.Link)
	assert.Equal(t, item.PubDate, got.PubDate)
	assert.Nil(t, got.Summary)
	assert.NotNil(t, got.TTL)
	assert.Equal(t, types.KindExecutionItem, got.Kind)
}

// CreateOmitsAbsentAttributes writes an item with only its keys.
func CreateOmitsAbsentAttributes(t *testing.T, repo types.Repository) {
	ctx := t.Context()
	run := runID(t)

	item, err := types.NewExecutionItem(run, "bare")
	require.NoError(t, err)
	require.NoError(t, repo.CreateOne(ctx, item))

	got, err := repo.GetOne(ctx, run, "bare")
	require.NoError(t, err)

	assert.Nil(t, got.Title)
	assert.Nil(t, got.Description)
	assert.Nil(t, got.Link)
	assert.Nil(t, got.Summary)
	assert.Nil(t, got.PubDate)
}

// GetMissing checks that a point read of an unknown key reports not found.
func GetMissing(t *testing.T, repo types.Repository) {
	_, err := repo.GetOne(t.Context(), runID(t), "nope")
	require.ErrorIs(t, err, types.ErrNotFound)
}

// CreateBatchLastWriteWins writes two overlapping batches; the second
// batch's attributes must win.
func CreateBatchLastWriteWins(t *testing.T, repo types.Repository) {
	ctx := t.Context()
	run := runID(t)

	first := newItems(t, run, 30)

	result, err := repo.CreateBatch(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 30, result.Processed)
	assert.Empty(t, result.Unprocessed)

	second := newItems(t, run, 5)
	for _, item := range second {
		item.Title = types.StringPtr("updated " + item.GUID)
	}

	result, err = repo.CreateBatch(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Processed)

	got, err := repo.GetOne(ctx, run, "guid-002")
	require.NoError(t, err)
	assert.Equal(t, "updated guid-002", types.StringValue(got.Title))

	got, err = repo.GetOne(ctx, run, "guid-029")
	require.NoError(t, err)
	assert.Equal(t, "Title guid-029", types.StringValue(got.Title))
}

// UpdateSummary sets the summary of an existing item and refuses to
// create a missing one.
func UpdateSummary(t *testing.T, repo types.Repository) {
	ctx := t.Context()
	run := runID(t)

	require.NoError(t, repo.CreateOne(ctx, newItem(t, run, "g1")))
	require.NoError(t, repo.UpdateSummary(ctx, run, "g1", "a short summary"))

	got, err := repo.GetOne(ctx, run, "g1")
	require.NoError(t, err)
	assert.Equal(t, "a short summary", types.StringValue(got.Summary))
	assert.Equal(t, "Title g1", types.StringValue(got.Title))

	err = repo.UpdateSummary(ctx, run, "missing", "x")

	var storageErr *types.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.ErrorIs(t, err, types.ErrNotFound)

	_, err = repo.GetOne(ctx, run, "missing")
	require.ErrorIs(t, err, types.ErrNotFound)
}

// DeleteByRun removes all 30 rows of a run and leaves other runs alone.
func DeleteByRun(t *testing.T, repo types.Repository) {
	ctx := t.Context()
	run := runID(t)
	other := run + "-other"

	_, err := repo.CreateBatch(ctx, newItems(t, run, 30))
	require.NoError(t, err)

	require.NoError(t, repo.CreateOne(ctx, newItem(t, other, "keep")))

	result, err := repo.DeleteByRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, 30, result.Processed)
	assert.Empty(t, result.Unprocessed)

	for i := range 30 {
		_, err := repo.GetOne(ctx, run, fmt.Sprintf("guid-%03d", i))
		require.ErrorIs(t, err, types.ErrNotFound)
	}

	_, err = repo.GetOne(ctx, other, "keep")
	require.NoError(t, err)

	result, err = repo.DeleteByRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
}

// Dedup walks a guid through exists, create, exists and a repeated
// create.
func Dedup(t *testing.T, repo types.Repository) {
	ctx := t.Context()
	guid := runID(t) + "-g1"

	exists, err := repo.Exists(ctx, guid)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Get(ctx, guid)
	require.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, repo.Create(ctx, guid))

	exists, err = repo.Exists(ctx, guid)
	require.NoError(t, err)
	assert.True(t, exists)

	record, err := repo.Get(ctx, guid)
	require.NoError(t, err)
	assert.Equal(t, guid, record.GUID)
	assert.Equal(t, types.KindRecordItem, record.Kind)

	require.NoError(t, repo.Create(ctx, guid))
}

// DedupKeySpaceIsDisjoint checks that a record marker never shows up as
// an execution item of a run with the same name, and the reverse.
func DedupKeySpaceIsDisjoint(t *testing.T, repo types.Repository) {
	ctx := t.Context()
	guid := runID(t)

	require.NoError(t, repo.Create(ctx, guid))

	result, err := repo.DeleteByRun(ctx, guid)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)

	exists, err := repo.Exists(ctx, guid)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.CreateOne(ctx, newItem(t, guid, "A")))

	exists, err = repo.Exists(ctx, runID(t)+"-unused")
	require.NoError(t, err)
	assert.False(t, exists)

	// A run named after the record partition must not reach the marker.
	var vErr *types.ValidationError

	_, err = repo.DeleteByRun(ctx, types.RecordKeyPrefix+guid)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "execution_id", vErr.Field)

	exists, err = repo.Exists(ctx, guid)
	require.NoError(t, err)
	assert.True(t, exists)

	other := runID(t) + "-other"

	err = repo.CreateOne(ctx, &types.ExecutionItem{
		ExecutionID: types.RecordKeyPrefix + other,
		GUID:        "A",
		Kind:        types.KindExecutionItem,
	})
	require.ErrorAs(t, err, &vErr)

	exists, err = repo.Exists(ctx, other)
	require.NoError(t, err)
	assert.False(t, exists)
}

// Validation checks that blank keys are rejected before any I/O.
func Validation(t *testing.T, repo types.Repository) {
	ctx := t.Context()

	var vErr *types.ValidationError

	require.ErrorAs(t, repo.CreateOne(ctx, &types.ExecutionItem{ExecutionID: " ", GUID: "g"}), &vErr)
	require.ErrorAs(t, repo.UpdateSummary(ctx, "run", "", "x"), &vErr)
	require.ErrorAs(t, repo.Create(ctx, "  "), &vErr)

	_, err := repo.Exists(ctx, "")
	require.ErrorAs(t, err, &vErr)

	_, err = repo.GetOne(ctx, "", "g")
	require.ErrorAs(t, err, &vErr)

	_, err = repo.DeleteByRun(ctx, "")
	require.ErrorAs(t, err, &vErr)

	result, err := repo.CreateBatch(ctx, []*types.ExecutionItem{
		{ExecutionID: "run", GUID: "ok"},
		{ExecutionID: "run", GUID: ""},
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 0, result.Processed)
	assert.Len(t, result.Unprocessed, 2)
}

// RunAll runs every check of the suite as a subtest.
func RunAll(t *testing.T, repo types.Repository) {
	tests := map[string]func(*testing.T, types.Repository){
		"CreateAndGet":                CreateAndGet,
		"CreateOmitsAbsentAttributes": CreateOmitsAbsentAttributes,
		"GetMissing":                  GetMissing,
		"CreateBatchLastWriteWins":    CreateBatchLastWriteWins,
		"UpdateSummary":               UpdateSummary,
		"DeleteByRun":                 DeleteByRun,
		"Dedup":                       Dedup,
		"DedupKeySpaceIsDisjoint":     DedupKeySpaceIsDisjoint,
		"Validation":                  Validation,
	}

	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			fn(t, repo)
		})
	}
}

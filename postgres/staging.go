package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/jackc/pgx/v5"
)

// CreateOne upserts a single execution item. Every column of the table is
// written, so absent optional attributes become NULL.
func (c *Client) CreateOne(ctx context.Context, item *types.ExecutionItem) error {
	if c.conn == nil {
		return errNotConnected
	}

	if err := item.Validate(); err != nil {
		return err
	}

	sql, args, err := c.executionInsertSQL(item)
	if err != nil {
		return err
	}

	if _, err := c.conn.Exec(ctx, sql, args...); err != nil {
		return c.storageError("INSERT", fmt.Errorf("failed to write execution item %s: %w", item.Identifier(), err))
	}

	return nil
}

// CreateBatch upserts items with one pgx batch per chunk. A batch runs in an
// implicit transaction, so a failing chunk writes nothing: that chunk and
// every later one are reported as unprocessed along with a
// [types.StorageError].
func (c *Client) CreateBatch(ctx context.Context, items []*types.ExecutionItem) (types.BulkResult, error) {
	ids := make([]types.ItemIdentifier, 0, len(items))

	for _, item := range items {
		if item == nil {
			ids = append(ids, types.ItemIdentifier{})
		} else {
			ids = append(ids, item.Identifier())
		}
	}

	if c.conn == nil {
		return types.BulkResult{Unprocessed: ids}, errNotConnected
	}

	statements := make([]*pgx.QueuedQuery, 0, len(items))

	for i, item := range items {
		if err := item.Validate(); err != nil {
			return types.BulkResult{Unprocessed: ids}, fmt.Errorf("item %d: %w", i, err)
		}

		sql, args, err := c.executionInsertSQL(item)
		if err != nil {
			return types.BulkResult{Unprocessed: ids}, err
		}

		statements = append(statements, &pgx.QueuedQuery{SQL: sql, Arguments: args})
	}

	return c.execChunks(ctx, "INSERT", statements, ids)
}

// GetOne reads one execution item. A missing item yields an error wrapping
// [types.ErrNotFound].
func (c *Client) GetOne(ctx context.Context, executionID, guid string) (*types.ExecutionItem, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	id, err := types.NewItemIdentifier(executionID, guid)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.Select(itemColumns...).From(c.opts.table).Where(executionKey(id.ExecutionID, id.GUID)).ToSql()
	if err != nil {
		return nil, err
	}

	row := &executionRow{}

	if err := c.conn.QueryRow(ctx, query, args...).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("execution item %s in Postgres table %s: %w", id, c.opts.table, types.ErrNotFound)
		}

		return nil, c.storageError("SELECT", fmt.Errorf("failed to read execution item %s: %w", id, err))
	}

	return row.item(), nil
}

// UpdateSummary sets the summary column of an existing execution item. It
// never inserts: when no row matches, the returned [types.StorageError]
// wraps [types.ErrNotFound].
func (c *Client) UpdateSummary(ctx context.Context, executionID, guid, summary string) error {
	if c.conn == nil {
		return errNotConnected
	}

	id, err := types.NewItemIdentifier(executionID, guid)
	if err != nil {
		return err
	}

	sql, args, err := psql.Update(c.opts.table).Set("summary", summary).Where(executionKey(id.ExecutionID, id.GUID)).ToSql()
	if err != nil {
		return err
	}

	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return c.storageError("UPDATE", fmt.Errorf("failed to update summary of execution item %s: %w", id, err))
	}

	if tag.RowsAffected() == 0 {
		return c.storageError("UPDATE", fmt.Errorf("execution item %s: %w", id, types.ErrNotFound))
	}

	return nil
}

// DeleteByRun removes every execution item of the run. The keys are listed
// first and then deleted in chunks with the same partial-failure contract as
// [Client.CreateBatch].
func (c *Client) DeleteByRun(ctx context.Context, executionID string) (types.BulkResult, error) {
	ids, err := c.RunKeys(ctx, executionID)
	if err != nil {
		return types.BulkResult{}, err
	}

	statements := make([]*pgx.QueuedQuery, 0, len(ids))

	for _, id := range ids {
		sql, args, err := psql.Delete(c.opts.table).Where(executionKey(id.ExecutionID, id.GUID)).ToSql()
		if err != nil {
			return types.BulkResult{Unprocessed: ids}, err
		}

		statements = append(statements, &pgx.QueuedQuery{SQL: sql, Arguments: args})
	}

	return c.execChunks(ctx, "DELETE", statements, ids)
}

// RunKeys lists the identifiers of every execution item staged for a run,
// ordered by guid.
func (c *Client) RunKeys(ctx context.Context, executionID string) ([]types.ItemIdentifier, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if err := types.ValidateExecutionID(executionID); err != nil {
		return nil, err
	}

	query, args, err := psql.
		Select("sk").
		From(c.opts.table).
		Where(sq.Eq{"kind": types.KindExecutionItem, "pk": executionID}).
		OrderBy("sk").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, c.storageError("SELECT", fmt.Errorf("failed to list items for execution %s: %w", executionID, err))
	}

	defer rows.Close()

	var ids []types.ItemIdentifier

	for rows.Next() {
		var guid string

		if err := rows.Scan(&guid); err != nil {
			return nil, c.storageError("SELECT", fmt.Errorf("failed to scan item key for execution %s: %w", executionID, err))
		}

		ids = append(ids, types.ItemIdentifier{ExecutionID: executionID, GUID: guid})
	}

	if err := rows.Err(); err != nil {
		return nil, c.storageError("SELECT", fmt.Errorf("error iterating over items for execution %s: %w", executionID, err))
	}

	return ids, nil
}

// execChunks sends statements in batches of batchSize and accounts for every
// id. ids[i] is the key touched by statements[i].
func (c *Client) execChunks(ctx context.Context, op string, statements []*pgx.QueuedQuery, ids []types.ItemIdentifier) (types.BulkResult, error) {
	result := types.BulkResult{}

	for start := 0; start < len(statements); start += c.opts.batchSize {
		end := min(start+c.opts.batchSize, len(statements))

		if err := ctx.Err(); err != nil {
			result.Unprocessed = append(result.Unprocessed, ids[start:]...)
			return result, c.storageError(op, err)
		}

		if err := c.sendBatch(ctx, statements[start:end]); err != nil {
			result.Unprocessed = append(result.Unprocessed, ids[start:]...)
			return result, c.storageError(op, fmt.Errorf("failed to send batch of %d items: %w", end-start, err))
		}

		result.Processed += end - start
	}

	return result, nil
}

func (c *Client) sendBatch(ctx context.Context, statements []*pgx.QueuedQuery) error {
	batch := &pgx.Batch{}

	for _, s := range statements {
		batch.Queue(s.SQL, s.Arguments...)
	}

	results := c.conn.SendBatch(ctx, batch)

	for range statements {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}

	return results.Close()
}

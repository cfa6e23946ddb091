package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/jackc/pgx/v5"
)

// Create upserts the record item marking guid as processed.
func (c *Client) Create(ctx context.Context, guid string) error {
	if c.conn == nil {
		return errNotConnected
	}

	if _, err := types.NewRecordItem(guid); err != nil {
		return err
	}

	sql, args, err := c.recordInsertSQL(guid)
	if err != nil {
		return err
	}

	if _, err := c.conn.Exec(ctx, sql, args...); err != nil {
		return c.storageError("INSERT", fmt.Errorf("failed to write record item for guid %s: %w", guid, err))
	}

	return nil
}

// Exists reports whether a record item exists for guid.
func (c *Client) Exists(ctx context.Context, guid string) (bool, error) {
	if c.conn == nil {
		return false, errNotConnected
	}

	if err := types.RequireNonBlank("guid", guid); err != nil {
		return false, err
	}

	query, args, err := psql.
		Select("1").
		Prefix("SELECT EXISTS (").
		From(c.opts.table).
		Where(recordKey(guid)).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, err
	}

	var exists bool

	if err := c.conn.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, c.storageError("SELECT", fmt.Errorf("failed to read record item for guid %s: %w", guid, err))
	}

	return exists, nil
}

// Get reads the record item for guid. A missing record yields an error
// wrapping [types.ErrNotFound].
func (c *Client) Get(ctx context.Context, guid string) (*types.RecordItem, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if err := types.RequireNonBlank("guid", guid); err != nil {
		return nil, err
	}

	query, args, err := psql.Select("pk", "kind").From(c.opts.table).Where(recordKey(guid)).ToSql()
	if err != nil {
		return nil, err
	}

	var pk, kind string

	if err := c.conn.QueryRow(ctx, query, args...).Scan(&pk, &kind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("record item for guid %s in Postgres table %s: %w", guid, c.opts.table, types.ErrNotFound)
		}

		return nil, c.storageError("SELECT", fmt.Errorf("failed to read record item for guid %s: %w", guid, err))
	}

	decoded, err := decodeRecordKey(pk)
	if err != nil {
		return nil, c.storageError("SELECT", err)
	}

	return &types.RecordItem{GUID: decoded, Kind: kind}, nil
}

package postgres

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
)

// Key layout shared with the DynamoDB backend.
const (
	RecordKeyPrefix = types.RecordKeyPrefix
	RecordSortKey   = "A"
)

var itemColumns = []string{"pk", "sk", "kind", "title", "description", "link", "summary", "ttl", "pub_date"}

const upsertSuffix = "ON CONFLICT (pk, sk) DO UPDATE SET kind = EXCLUDED.kind, title = EXCLUDED.title, description = EXCLUDED.description, link = EXCLUDED.link, summary = EXCLUDED.summary, ttl = EXCLUDED.ttl, pub_date = EXCLUDED.pub_date"

func recordPartitionKey(guid string) string {
	return RecordKeyPrefix + guid
}

// executionInsertSQL returns an upsert for item. A nil TTL is replaced with
// clock + executionItemTimeToLive; the caller's item is not modified.
func (c *Client) executionInsertSQL(item *types.ExecutionItem) (string, []any, error) {
	ttl := item.TTL
	if ttl == nil {
		expires := c.opts.clock().Add(c.opts.executionItemTimeToLive).Unix()
		ttl = &expires
	}

	sql, args, err := psql.
		Insert(c.opts.table).
		Columns(itemColumns...).
		Values(item.ExecutionID, item.GUID, types.KindExecutionItem, item.Title, item.Description, item.Link, item.Summary, ttl, item.PubDate).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build insert for execution item %s: %w", item.Identifier(), err)
	}

	return sql, args, nil
}

func (c *Client) recordInsertSQL(guid string) (string, []any, error) {
	sql, args, err := psql.
		Insert(c.opts.table).
		Columns("pk", "sk", "kind").
		Values(recordPartitionKey(guid), RecordSortKey, types.KindRecordItem).
		Suffix("ON CONFLICT (pk, sk) DO UPDATE SET kind = EXCLUDED.kind").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build insert for record item %s: %w", guid, err)
	}

	return sql, args, nil
}

// executionKey matches one execution item. Record rows share the table but
// never carry the execution kind.
func executionKey(executionID, guid string) sq.Eq {
	return sq.Eq{"kind": types.KindExecutionItem, "pk": executionID, "sk": guid}
}

func recordKey(guid string) sq.Eq {
	return sq.Eq{"kind": types.KindRecordItem, "pk": recordPartitionKey(guid), "sk": RecordSortKey}
}

// executionRow is the scan target for itemColumns.
type executionRow struct {
	pk          string
	sk          string
	kind        string
	title       *string
	description *string
	link        *string
	summary     *string
	ttl         *int64
	pubDate     *string
}

func (r *executionRow) dest() []any {
	return []any{&r.pk, &r.sk, &r.kind, &r.title, &r.description, &r.link, &r.summary, &r.ttl, &r.pubDate}
}

func (r *executionRow) item() *types.ExecutionItem {
	return &types.ExecutionItem{
		ExecutionID: r.pk,
		GUID:        r.sk,
		Title:       r.title,
		Description: r.description,
		Link:        r.link,
		Summary:     r.summary,
		TTL:         r.ttl,
		PubDate:     r.pubDate,
		Kind:        r.kind,
	}
}

func decodeRecordKey(pk string) (string, error) {
	guid, ok := strings.CutPrefix(pk, RecordKeyPrefix)
	if !ok || guid == "" {
		return "", fmt.Errorf("record key %q does not carry the %q prefix", pk, RecordKeyPrefix)
	}

	return guid, nil
}

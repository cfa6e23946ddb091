package dynamodb

import (
	"fmt"
	"strings"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// executionRow is the stored shape of an execution item. Absent optional
// attributes are omitted rather than written as NULL.
type executionRow struct {
	PK          string  `dynamodbav:"PK"`
	SK          string  `dynamodbav:"SK"`
	Title       *string `dynamodbav:"title,omitempty"`
	Description *string `dynamodbav:"description,omitempty"`
	Link        *string `dynamodbav:"link,omitempty"`
	Summary     *string `dynamodbav:"summary,omitempty"`
	TTL         *int64  `dynamodbav:"ttl,omitempty"`
	PubDate     *string `dynamodbav:"pub_date,omitempty"`
	Kind        string  `dynamodbav:"_TYPE"`
}

type recordRow struct {
	PK   string `dynamodbav:"PK"`
	SK   string `dynamodbav:"SK"`
	Kind string `dynamodbav:"_TYPE"`
}

func recordPartitionKey(guid string) string {
	return RecordKeyPrefix + guid
}

// encodeExecutionItem converts item to DynamoDB attributes, filling in the
// ttl from the client clock when the item has none.
func (c *Client) encodeExecutionItem(item *types.ExecutionItem) (map[string]dynamodbtypes.AttributeValue, error) {
	ttl := item.TTL
	if ttl == nil {
		v := c.opts.clock().Add(c.opts.executionItemTimeToLive).Unix()
		ttl = &v
	}

	row := executionRow{
		PK:          item.ExecutionID,
		SK:          item.GUID,
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
		Summary:     item.Summary,
		TTL:         ttl,
		PubDate:     item.PubDate,
		Kind:        types.KindExecutionItem,
	}

	av, err := attributevalue.MarshalMap(row)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution item %s: %w", item.Identifier(), err)
	}

	return av, nil
}

func encodeRecordItem(guid string) (map[string]dynamodbtypes.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(recordRow{
		PK:   recordPartitionKey(guid),
		SK:   RecordSortKey,
		Kind: types.KindRecordItem,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record item %s: %w", guid, err)
	}

	return av, nil
}

// decodeExecutionItem is the single place where stored attributes are turned
// back into an execution item. The keys are required; every optional
// attribute that is missing, NULL or of the wrong type decodes as absent.
func decodeExecutionItem(attrs map[string]dynamodbtypes.AttributeValue) (*types.ExecutionItem, error) {
	pk, ok := stringValue(attrs, PartitionKey)
	if !ok {
		return nil, fmt.Errorf("item has no string %s attribute", PartitionKey)
	}

	sk, ok := stringValue(attrs, SortKey)
	if !ok {
		return nil, fmt.Errorf("item has no string %s attribute", SortKey)
	}

	kind, ok := stringValue(attrs, KindAttr)
	if !ok {
		kind = types.KindExecutionItem
	}

	return &types.ExecutionItem{
		ExecutionID: pk,
		GUID:        sk,
		Title:       optionalString(attrs, TitleAttr),
		Description: optionalString(attrs, DescriptionAttr),
		Link:        optionalString(attrs, LinkAttr),
		Summary:     optionalString(attrs, SummaryAttr),
		TTL:         optionalInt64(attrs, TTLAttr),
		PubDate:     optionalString(attrs, PubDateAttr),
		Kind:        kind,
	}, nil
}

func decodeRecordItem(attrs map[string]dynamodbtypes.AttributeValue) (*types.RecordItem, error) {
	pk, _ := stringValue(attrs, PartitionKey)

	guid, found := strings.CutPrefix(pk, RecordKeyPrefix)
	if !found || guid == "" {
		return nil, fmt.Errorf("item has no record %s attribute", PartitionKey)
	}

	kind, ok := stringValue(attrs, KindAttr)
	if !ok {
		kind = types.KindRecordItem
	}

	return &types.RecordItem{GUID: guid, Kind: kind}, nil
}

// decodeIdentifier extracts the key of an execution item from a key or item
// attribute map.
func decodeIdentifier(attrs map[string]dynamodbtypes.AttributeValue) types.ItemIdentifier {
	pk, _ := stringValue(attrs, PartitionKey)
	sk, _ := stringValue(attrs, SortKey)

	return types.ItemIdentifier{ExecutionID: pk, GUID: sk}
}

func stringValue(attrs map[string]dynamodbtypes.AttributeValue, name string) (string, bool) {
	if v, ok := attrs[name].(*dynamodbtypes.AttributeValueMemberS); ok {
		return v.Value, true
	}

	return "", false
}

func optionalString(attrs map[string]dynamodbtypes.AttributeValue, name string) *string {
	if v, ok := stringValue(attrs, name); ok {
		return &v
	}

	return nil
}

func optionalInt64(attrs map[string]dynamodbtypes.AttributeValue, name string) *int64 {
	av, ok := attrs[name].(*dynamodbtypes.AttributeValueMemberN)
	if !ok {
		return nil
	}

	var v int64
	if err := attributevalue.Unmarshal(av, &v); err != nil {
		return nil
	}

	return &v
}

package dynamodb

import (
	"context"
	"fmt"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Create writes the record item marking guid as processed. It does not check
// for an existing record; repeated calls overwrite it.
func (c *Client) Create(ctx context.Context, guid string) error {
	if _, err := types.NewRecordItem(guid); err != nil {
		return err
	}

	attributes, err := encodeRecordItem(guid)
	if err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      attributes,
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return c.storageError("PutItem", fmt.Errorf("failed to write record item for guid %s: %w", guid, err))
	}

	return nil
}

// Exists reports whether a record item exists for guid. Only the partition
// key is projected.
func (c *Client) Exists(ctx context.Context, guid string) (bool, error) {
	if err := types.RequireNonBlank("guid", guid); err != nil {
		return false, err
	}

	input := &dynamodb.GetItemInput{
		TableName:                &c.tableName,
		Key:                      primaryKey(recordPartitionKey(guid), RecordSortKey),
		ProjectionExpression:     aws.String("#pk"),
		ExpressionAttributeNames: map[string]string{"#pk": PartitionKey},
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return false, c.storageError("GetItem", fmt.Errorf("failed to read record item for guid %s: %w", guid, err))
	}

	return len(output.Item) > 0, nil
}

// Get reads the record item for guid. A missing record yields an error
// wrapping [types.ErrNotFound].
func (c *Client) Get(ctx context.Context, guid string) (*types.RecordItem, error) {
	if err := types.RequireNonBlank("guid", guid); err != nil {
		return nil, err
	}

	input := &dynamodb.GetItemInput{
		TableName: &c.tableName,
		Key:       primaryKey(recordPartitionKey(guid), RecordSortKey),
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, c.storageError("GetItem", fmt.Errorf("failed to read record item for guid %s: %w", guid, err))
	}

	if len(output.Item) == 0 {
		return nil, fmt.Errorf("record item for guid %s in DynamoDB table %s: %w", guid, c.tableName, types.ErrNotFound)
	}

	record, err := decodeRecordItem(output.Item)
	if err != nil {
		return nil, c.storageError("GetItem", fmt.Errorf("failed to decode record item for guid %s: %w", guid, err))
	}

	return record, nil
}

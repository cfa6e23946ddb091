package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CreateOne writes a single execution item. Absent optional attributes are
// not written. An existing item with the same key is replaced.
func (c *Client) CreateOne(ctx context.Context, item *types.ExecutionItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	attributes, err := c.encodeExecutionItem(item)
	if err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      attributes,
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return c.storageError("PutItem", fmt.Errorf("failed to write execution item %s: %w", item.Identifier(), err))
	}

	return nil
}

// CreateBatch writes items with one BatchWriteItem request per 25 items.
//
// Unprocessed requests are not retried. The first chunk that leaves requests
// unprocessed, or that fails outright, ends the operation: its leftovers and
// every later chunk are reported in the result, and the error is a
// [types.PartialWriteError] or a [types.StorageError] respectively.
func (c *Client) CreateBatch(ctx context.Context, items []*types.ExecutionItem) (types.BulkResult, error) {
	ids := make([]types.ItemIdentifier, 0, len(items))
	requests := make([]dynamodbtypes.WriteRequest, 0, len(items))

	for _, item := range items {
		if item == nil {
			ids = append(ids, types.ItemIdentifier{})
		} else {
			ids = append(ids, item.Identifier())
		}
	}

	for i, item := range items {
		if err := item.Validate(); err != nil {
			return types.BulkResult{Unprocessed: ids}, fmt.Errorf("item %d: %w", i, err)
		}

		attributes, err := c.encodeExecutionItem(item)
		if err != nil {
			return types.BulkResult{Unprocessed: ids}, err
		}

		requests = append(requests, dynamodbtypes.WriteRequest{
			PutRequest: &dynamodbtypes.PutRequest{Item: attributes},
		})
	}

	return c.batchWrite(ctx, "BatchWriteItem", requests, ids)
}

// GetOne reads one execution item. A missing item yields an error wrapping
// [types.ErrNotFound].
func (c *Client) GetOne(ctx context.Context, executionID, guid string) (*types.ExecutionItem, error) {
	id, err := types.NewItemIdentifier(executionID, guid)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.GetItemInput{
		TableName: &c.tableName,
		Key:       primaryKey(id.ExecutionID, id.GUID),
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, c.storageError("GetItem", fmt.Errorf("failed to read execution item %s: %w", id, err))
	}

	if len(output.Item) == 0 {
		return nil, fmt.Errorf("execution item %s in DynamoDB table %s: %w", id, c.tableName, types.ErrNotFound)
	}

	item, err := decodeExecutionItem(output.Item)
	if err != nil {
		return nil, c.storageError("GetItem", fmt.Errorf("failed to decode execution item %s: %w", id, err))
	}

	return item, nil
}

// UpdateSummary sets the summary attribute of an existing execution item and
// leaves every other attribute untouched. It never creates an item: when the
// key does not exist the returned [types.StorageError] wraps
// [types.ErrNotFound].
func (c *Client) UpdateSummary(ctx context.Context, executionID, guid, summary string) error {
	id, err := types.NewItemIdentifier(executionID, guid)
	if err != nil {
		return err
	}

	input := &dynamodb.UpdateItemInput{
		TableName:           &c.tableName,
		Key:                 primaryKey(id.ExecutionID, id.GUID),
		UpdateExpression:    aws.String("SET #summary = :summary"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#summary": SummaryAttr,
			"#pk":      PartitionKey,
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":summary": stringAttr(summary),
		},
	}

	if _, err := c.client.UpdateItem(ctx, input); err != nil {
		var conditionFailed *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return c.storageError("UpdateItem", fmt.Errorf("execution item %s: %w", id, types.ErrNotFound))
		}

		return c.storageError("UpdateItem", fmt.Errorf("failed to update summary of execution item %s: %w", id, err))
	}

	return nil
}

// DeleteByRun removes every execution item of the run. It pages through the
// partition with Query until no LastEvaluatedKey remains, then deletes the
// collected keys in chunks of 25 with the same partial-failure contract as
// [Client.CreateBatch]. Processed in the result is the number of items
// removed.
func (c *Client) DeleteByRun(ctx context.Context, executionID string) (types.BulkResult, error) {
	keys, err := c.queryRunKeys(ctx, executionID)
	if err != nil {
		return types.BulkResult{}, err
	}

	ids := make([]types.ItemIdentifier, 0, len(keys))
	requests := make([]dynamodbtypes.WriteRequest, 0, len(keys))

	for _, key := range keys {
		ids = append(ids, decodeIdentifier(key))
		requests = append(requests, deleteRequest(key[PartitionKey], key[SortKey]))
	}

	return c.batchWrite(ctx, "BatchWriteItem", requests, ids)
}

// RunKeys lists the identifiers of every execution item staged for a run.
func (c *Client) RunKeys(ctx context.Context, executionID string) ([]types.ItemIdentifier, error) {
	keys, err := c.queryRunKeys(ctx, executionID)
	if err != nil {
		return nil, err
	}

	ids := make([]types.ItemIdentifier, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, decodeIdentifier(key))
	}

	return ids, nil
}

func (c *Client) queryRunKeys(ctx context.Context, executionID string) ([]map[string]dynamodbtypes.AttributeValue, error) {
	if err := types.ValidateExecutionID(executionID); err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                &c.tableName,
		KeyConditionExpression:   aws.String("#pk = :pk"),
		ProjectionExpression:     aws.String("#pk, #sk"),
		ExpressionAttributeNames: keyAttributeNames(),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringAttr(executionID),
		},
	}

	var keys []map[string]dynamodbtypes.AttributeValue

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := c.client.Query(ctx, input)
		if err != nil {
			return nil, c.storageError("Query", fmt.Errorf("failed to query items for execution %s: %w", executionID, err))
		}

		keys = append(keys, output.Items...)

		if len(output.LastEvaluatedKey) == 0 {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return keys, nil
}

// batchWrite sends requests in chunks and accounts for every id. ids[i] is
// the key of requests[i].
func (c *Client) batchWrite(ctx context.Context, op string, requests []dynamodbtypes.WriteRequest, ids []types.ItemIdentifier) (types.BulkResult, error) {
	result := types.BulkResult{}

	for start := 0; start < len(requests); start += c.opts.batchSize {
		end := min(start+c.opts.batchSize, len(requests))

		if err := ctx.Err(); err != nil {
			result.Unprocessed = append(result.Unprocessed, ids[start:]...)
			return result, c.storageError(op, err)
		}

		input := &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]dynamodbtypes.WriteRequest{
				c.tableName: requests[start:end],
			},
		}

		output, err := c.client.BatchWriteItem(ctx, input)
		if err != nil {
			result.Unprocessed = append(result.Unprocessed, ids[start:]...)
			return result, c.storageError(op, fmt.Errorf("failed to send batch of %d items: %w", end-start, err))
		}

		leftover := output.UnprocessedItems[c.tableName]
		result.Processed += (end - start) - len(leftover)

		if len(leftover) > 0 {
			for _, req := range leftover {
				result.Unprocessed = append(result.Unprocessed, writeRequestIdentifier(req))
			}

			result.Unprocessed = append(result.Unprocessed, ids[end:]...)

			return result, &types.PartialWriteError{Op: op, Result: cloneResult(result)}
		}
	}

	return result, nil
}

func writeRequestIdentifier(req dynamodbtypes.WriteRequest) types.ItemIdentifier {
	switch {
	case req.PutRequest != nil:
		return decodeIdentifier(req.PutRequest.Item)
	case req.DeleteRequest != nil:
		return decodeIdentifier(req.DeleteRequest.Key)
	default:
		return types.ItemIdentifier{}
	}
}

func cloneResult(r types.BulkResult) types.BulkResult {
	return types.BulkResult{Processed: r.Processed, Unprocessed: slices.Clone(r.Unprocessed)}
}

func (c *Client) storageError(op string, err error) error {
	return &types.StorageError{Op: op, Table: c.tableName, Err: err}
}

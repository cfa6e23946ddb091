package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// PartitionKey is the DynamoDB partition key attribute name.
	PartitionKey = "PK"

	// SortKey is the DynamoDB sort key attribute name.
	SortKey = "SK"

	// TTLAttr is the attribute name used for DynamoDB TTL-based expiration. The
	// table must have TTL enabled on this attribute.
	TTLAttr = "ttl"

	// KindAttr holds the row kind ("ExecutionItem" or "RecordItem").
	KindAttr = "_TYPE"

	TitleAttr       = "title"
	DescriptionAttr = "description"
	LinkAttr        = "link"
	SummaryAttr     = "summary"
	PubDateAttr     = "pub_date"

	// RecordKeyPrefix is prepended to a guid to form the partition key of its
	// record item.
	RecordKeyPrefix = types.RecordKeyPrefix

	// RecordSortKey is the fixed sort key of every record item.
	RecordSortKey = "A"

	// maxBatchSize is the BatchWriteItem request limit.
	maxBatchSize = 25

	// maxBackoff is the maximum backoff duration for the DropAllData retry loop.
	maxBackoff = 2 * time.Second
)

// Client is a DynamoDB-backed implementation of the [types.Repository]
// interface.
//
// Use [New] to create a Client, [Client.Connect] to initialize the underlying
// DynamoDB connection, and [Client.Init] to validate the table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

var _ types.Repository = (*Client)(nil)

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	if c.tableName == "" {
		return errors.New("table name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	// Use injected DynamoDB API if provided (useful for testing).
	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		if c.awsCfg == nil {
			return errors.New("AWS config cannot be nil")
		}

		c.client = dynamodb.NewFromConfig(*c.awsCfg)
	}

	return nil
}

// TableName returns the table the client is bound to.
func (c *Client) TableName() string {
	return c.tableName
}

// Init validates the DynamoDB table schema. It checks that the table exists
// and is active, has the partition key PK and sort key SK, and has TTL
// enabled on the ttl attribute.
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if response.Table == nil {
		return fmt.Errorf("table %s has no description", c.tableName)
	}

	if err := verifyKeySchema(c.tableName, response.Table.KeySchema); err != nil {
		return err
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	ttlInput := &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(c.tableName),
	}

	ttlResponse, err := c.client.DescribeTimeToLive(ctx, ttlInput)
	if err != nil {
		return fmt.Errorf("failed to describe TTL of table %s: %w", c.tableName, err)
	}

	if ttlResponse.TimeToLiveDescription == nil {
		return fmt.Errorf("table %s has no TTL description", c.tableName)
	}

	if ttlResponse.TimeToLiveDescription.TimeToLiveStatus != dynamodbtypes.TimeToLiveStatusEnabled {
		return fmt.Errorf("table %s has TTL status %s (expected %s)", c.tableName, ttlResponse.TimeToLiveDescription.TimeToLiveStatus, dynamodbtypes.TimeToLiveStatusEnabled)
	}

	if aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName) != TTLAttr {
		return fmt.Errorf("TTL attribute name for table %s is %s, expected %s", c.tableName, aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName), TTLAttr)
	}

	return nil
}

func verifyKeySchema(tableName string, schema []dynamodbtypes.KeySchemaElement) error {
	var hash, rangeKey string

	for _, k := range schema {
		switch k.KeyType {
		case dynamodbtypes.KeyTypeHash:
			hash = aws.ToString(k.AttributeName)
		case dynamodbtypes.KeyTypeRange:
			rangeKey = aws.ToString(k.AttributeName)
		}
	}

	if hash == "" {
		return fmt.Errorf("table %s has no key schema", tableName)
	}

	if hash != PartitionKey {
		return fmt.Errorf("table %s has partition key %s, expected %s", tableName, hash, PartitionKey)
	}

	if rangeKey == "" {
		return fmt.Errorf("table %s has a simple primary key, expected composite", tableName)
	}

	if rangeKey != SortKey {
		return fmt.Errorf("table %s has sort key %s, expected %s", tableName, rangeKey, SortKey)
	}

	return nil
}

// DropAllData deletes every item from the DynamoDB table. It scans the table
// in pages and removes each page using BatchWriteItem with exponential backoff
// for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(c.tableName),
		ProjectionExpression:     aws.String("#pk, #sk"),
		ExpressionAttributeNames: keyAttributeNames(),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		for batch := range slices.Chunk(output.Items, maxBatchSize) {
			requestItems := make([]dynamodbtypes.WriteRequest, 0, len(batch))

			for _, item := range batch {
				requestItems = append(requestItems, deleteRequest(item[PartitionKey], item[SortKey]))
			}

			if err := c.deleteWithBackoff(ctx, requestItems); err != nil {
				return err
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

func (c *Client) deleteWithBackoff(ctx context.Context, requestItems []dynamodbtypes.WriteRequest) error {
	batchInput := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]dynamodbtypes.WriteRequest{
			c.tableName: requestItems,
		},
	}

	const maxRetries = 5
	backoff := 50 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		batchResult, err := c.client.BatchWriteItem(ctx, batchInput)
		if err != nil {
			return fmt.Errorf("failed to batch delete items from DynamoDB table %s: %w", c.tableName, err)
		}

		if len(batchResult.UnprocessedItems[c.tableName]) == 0 {
			return nil
		}

		if attempt == maxRetries {
			return fmt.Errorf("%d unprocessed items after %d retries in DropAllData",
				len(batchResult.UnprocessedItems[c.tableName]), maxRetries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
		batchInput.RequestItems = batchResult.UnprocessedItems
	}

	return nil
}

func keyAttributeNames() map[string]string {
	return map[string]string{
		"#pk": PartitionKey,
		"#sk": SortKey,
	}
}

func stringAttr(s string) *dynamodbtypes.AttributeValueMemberS {
	return &dynamodbtypes.AttributeValueMemberS{Value: s}
}

func primaryKey(pk, sk string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		PartitionKey: stringAttr(pk),
		SortKey:      stringAttr(sk),
	}
}

func deleteRequest(pk, sk dynamodbtypes.AttributeValue) dynamodbtypes.WriteRequest {
	return dynamodbtypes.WriteRequest{
		DeleteRequest: &dynamodbtypes.DeleteRequest{
			Key: map[string]dynamodbtypes.AttributeValue{
				PartitionKey: pk,
				SortKey:      sk,
			},
		},
	}
}

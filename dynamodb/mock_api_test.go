package dynamodb

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockAPI is a mock implementation of API for testing.
type mockAPI struct {
	putItemFunc            func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	getItemFunc            func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	updateItemFunc         func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	queryFunc              func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	scanFunc               func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	batchWriteItemFunc     func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	describeTableFunc      func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	describeTimeToLiveFunc func(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error)
}

func (m *mockAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockAPI) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if m.updateItemFunc != nil {
		return m.updateItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params, optFns...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.scanFunc != nil {
		return m.scanFunc(ctx, params, optFns...)
	}
	return &dynamodb.ScanOutput{}, nil
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if m.batchWriteItemFunc != nil {
		return m.batchWriteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeTableFunc != nil {
		return m.describeTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (m *mockAPI) DescribeTimeToLive(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	if m.describeTimeToLiveFunc != nil {
		return m.describeTimeToLiveFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTimeToLiveOutput{}, nil
}

// memoryTable is an in-memory single table that understands the requests
// the Client sends. Query pages are pageSize items long.
type memoryTable struct {
	mu       sync.Mutex
	items    map[[2]string]map[string]dynamodbtypes.AttributeValue
	pageSize int
}

func newMemoryTable(pageSize int) *memoryTable {
	return &memoryTable{
		items:    map[[2]string]map[string]dynamodbtypes.AttributeValue{},
		pageSize: pageSize,
	}
}

func tableKey(attrs map[string]dynamodbtypes.AttributeValue) [2]string {
	pk, _ := stringValue(attrs, PartitionKey)
	sk, _ := stringValue(attrs, SortKey)
	return [2]string{pk, sk}
}

func (m *memoryTable) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[tableKey(params.Item)] = maps.Clone(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memoryTable) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: maps.Clone(m.items[tableKey(params.Key)])}, nil
}

func (m *memoryTable) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[tableKey(params.Key)]
	if !ok {
		return nil, &dynamodbtypes.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	item[SummaryAttr] = params.ExpressionAttributeValues[":summary"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *memoryTable) sortedKeys(pk *string) [][2]string {
	keys := make([][2]string, 0, len(m.items))
	for k := range m.items {
		if pk == nil || k[0] == *pk {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b [2]string) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})
	return keys
}

func (m *memoryTable) page(keys [][2]string, start map[string]dynamodbtypes.AttributeValue) ([]map[string]dynamodbtypes.AttributeValue, map[string]dynamodbtypes.AttributeValue) {
	from := 0
	if len(start) > 0 {
		from = slices.Index(keys, tableKey(start)) + 1
	}
	to := min(from+m.pageSize, len(keys))

	items := make([]map[string]dynamodbtypes.AttributeValue, 0, to-from)
	for _, k := range keys[from:to] {
		items = append(items, primaryKey(k[0], k[1]))
	}

	var last map[string]dynamodbtypes.AttributeValue
	if to < len(keys) {
		last = primaryKey(keys[to-1][0], keys[to-1][1])
	}
	return items, last
}

func (m *memoryTable) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, _ := stringValue(params.ExpressionAttributeValues, ":pk")
	items, last := m.page(m.sortedKeys(&pk), params.ExclusiveStartKey)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (m *memoryTable) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, last := m.page(m.sortedKeys(nil), params.ExclusiveStartKey)
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (m *memoryTable) BatchWriteItem(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, requests := range params.RequestItems {
		for _, req := range requests {
			switch {
			case req.PutRequest != nil:
				m.items[tableKey(req.PutRequest.Item)] = maps.Clone(req.PutRequest.Item)
			case req.DeleteRequest != nil:
				delete(m.items, tableKey(req.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *memoryTable) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return validTableDescription(), nil
}

func (m *memoryTable) DescribeTimeToLive(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	return validTTLDescription(), nil
}

func (m *memoryTable) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func validTableDescription() *dynamodb.DescribeTableOutput {
	return &dynamodb.DescribeTableOutput{
		Table: &dynamodbtypes.TableDescription{
			TableStatus: dynamodbtypes.TableStatusActive,
			KeySchema: []dynamodbtypes.KeySchemaElement{
				{AttributeName: aws.String(PartitionKey), KeyType: dynamodbtypes.KeyTypeHash},
				{AttributeName: aws.String(SortKey), KeyType: dynamodbtypes.KeyTypeRange},
			},
		},
	}
}

func validTTLDescription() *dynamodb.DescribeTimeToLiveOutput {
	return &dynamodb.DescribeTimeToLiveOutput{
		TimeToLiveDescription: &dynamodbtypes.TimeToLiveDescription{
			TimeToLiveStatus: dynamodbtypes.TimeToLiveStatusEnabled,
			AttributeName:    aws.String(TTLAttr),
		},
	}
}

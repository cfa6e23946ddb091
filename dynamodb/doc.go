// Package dynamodb provides a DynamoDB-backed implementation of the
// [github.com/anoopengineer/rss-bluesky-bridge/types.Repository] interface.
//
// # Overview
//
// The package uses a single-table design with two kinds of rows sharing the
// composite primary key ("PK" partition key, "SK" sort key):
//
//   - Execution items: PK = <execution_id>, SK = <guid>
//   - Record items:    PK = guid-<guid>,    SK = A
//
// Execution items hold the per-run staging data of one feed item and expire
// through DynamoDB TTL. Record items mark a guid as processed and never
// expire. The "guid-" prefix keeps the two key spaces apart.
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config and the table name:
//
//	client := dynamodb.New(&awsCfg, tableName)
//
//	if err := client.Connect(); err != nil {
//	    return err
//	}
//
//	if err := client.Init(ctx, false); err != nil {
//	    return err
//	}
//
// By default, [Client.Connect] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// # Bulk Operations
//
// [Client.CreateBatch] and [Client.DeleteByRun] send BatchWriteItem requests
// of at most 25 rows. They never retry: if DynamoDB reports unprocessed
// requests, or a request fails, the returned
// [github.com/anoopengineer/rss-bluesky-bridge/types.BulkResult] lists every
// key that was not handled (including chunks that were never sent) and the
// error is a PartialWriteError or a StorageError. Earlier chunks stay
// written.
//
// # TTL Behaviour
//
// Execution items created without a ttl get one of now + 24 hours,
// configurable with [WithExecutionItemTimeToLive]. The value is stored as a
// Unix timestamp in the "ttl" attribute; the table must have TTL enabled on
// that attribute, which [Client.Init] verifies.
//
// # Concurrency
//
// A connected Client holds no mutable state and is safe for concurrent use.
// Concurrent writers of the same row are not serialised; the last write wins.
package dynamodb

// Package postgres provides a PostgreSQL-backed implementation of
// types.Repository, the staging and dedup store used by the pipeline stages.
//
// It uses pgx v5 with connection pooling (pgxpool) and builds its statements
// with squirrel. All rows live in one table keyed by (pk, sk), with the same
// key layout as the DynamoDB backend, so either store can be selected at
// start-up without the stages noticing.
//
// # Usage
//
// Create a client using [New] with functional options, call [Client.Connect]
// to establish the connection pool, and then [Client.Init] to create the
// table:
//
//	client := postgres.New(
//	    postgres.WithConnectionString(os.Getenv("POSTGRES_URL")),
//	    postgres.WithTable("pipeline_items"),
//	)
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	if err := client.Init(ctx, false); err != nil {
//	    log.Fatal(err)
//	}
//
// # Table Layout
//
// Execution items are stored with pk = execution id and sk = guid. Record
// items are stored with pk = "guid-" + guid and sk = "A". The kind column
// tells the two apart and is part of every lookup. Absent optional
// attributes are NULL.
//
// # Bulk Operations
//
// [Client.CreateBatch] and [Client.DeleteByRun] send one pgx batch per chunk
// of at most 25 statements. A batch is applied atomically. The first chunk
// that fails ends the operation; it and every later chunk are listed in
// Unprocessed of the returned types.BulkResult.
//
// # TTL and Cleanup
//
// Execution items written without a TTL get one of 24 hours from the
// configured clock ([WithExecutionItemTimeToLive]). A background goroutine
// started by [Client.Init] deletes expired rows; its interval defaults to 1
// hour and can be changed with [WithTTLCleanupInterval] or disabled with
// [WithTTLCleanupDisabled]. [Client.Close] stops it.
//
// # Schema Validation
//
// When [Client.Init] is called with skipSchemaValidation set to false, it
// queries information_schema.columns and verifies that every expected column
// exists with the correct data type and nullability.
package postgres

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/anoopengineer/rss-bluesky-bridge/postgres"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/anoopengineer/rss-bluesky-bridge/types/repotests"
)

var client *postgres.Client

func TestMain(m *testing.M) {
	ctx := context.Background()

	opts := []postgres.Option{
		postgres.WithHost("localhost"),
		postgres.WithPort(5432),
		postgres.WithUser("postgres"),
		postgres.WithPassword("qwerty"),
		postgres.WithDatabase("rss_bluesky_bridge"),
		postgres.WithSSLMode(postgres.SSLModeDisable),
		postgres.WithTable("__pipeline_items_integration_test"),
		postgres.WithTTLCleanupDisabled(),
	}

	if url := os.Getenv("POSTGRES_URL"); url != "" {
		opts = append(opts, postgres.WithConnectionString(url))
	}

	c := postgres.New(opts...)

	// Verify that the client implements the types.Repository interface
	var _ types.Repository = c

	err := c.Connect(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Ensure the database is clean before running tests
	err = c.DropAllData(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to drop integration test table: %w", err))
		os.Exit(1)
	}

	err = c.Init(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client = c

	code := m.Run()

	err = client.DropAllData(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to drop integration test table: %w", err))
		os.Exit(1)
	}

	err = client.Close(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to close client: %w", err))
		os.Exit(1)
	}

	os.Exit(code)
}

func TestRepositoryIntegration(t *testing.T) {
	repotests.RunAll(t, client)
}

func TestDeleteExpiredRowsIntegration(t *testing.T) {
	ctx := t.Context()

	item, err := types.NewExecutionItem("run-expired", "g1")
	if err != nil {
		t.Fatal(err)
	}

	past := int64(1)
	item.TTL = &past

	if err := client.CreateOne(ctx, item); err != nil {
		t.Fatal(err)
	}

	deleted, err := client.DeleteExpiredRows(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if deleted < 1 {
		t.Errorf("expected at least one expired row to be deleted, got %d", deleted)
	}

	if _, err := client.GetOne(ctx, "run-expired", "g1"); !types.IsNotFound(err) {
		t.Errorf("expected expired item to be gone, got %v", err)
	}
}

package dynamodb

import (
	"testing"

	"github.com/anoopengineer/rss-bluesky-bridge/types/repotests"
)

func TestRepositorySuite(t *testing.T) {
	t.Parallel()
	client := newTestClient(newMemoryTable(7))

	repotests.RunAll(t, client)
}

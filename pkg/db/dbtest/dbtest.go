// Package dbtest opens isolated in-memory sqlite databases for store and
// service tests.
package dbtest

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/healthoasis/wallet-backend/pkg/db"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
)

// Open returns a migrated client on a fresh shared-cache memory database.
// The pool holds one connection, so code under test must route every query
// of a unit through the transaction handle it was given.
func Open(t *testing.T) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared"
	client, err := db.NewSQLite(context.Background(), dsn, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return client
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"verticadialect/internal/introspect"
)

type stubDialect struct {
	driver  string
	snapErr error
}

func (s stubDialect) Driver() string { return s.driver }

func (s stubDialect) Snapshot(ctx context.Context, dbConn *sql.DB, schema string) (introspect.Catalog, error) {
	if s.snapErr != nil {
		return introspect.Catalog{}, s.snapErr
	}
	return introspect.Catalog{Schemas: []string{schema}}, nil
}

func TestRegisterAndLookup(t *testing.T) {
	Register("Stub", stubDialect{driver: "sqlite"})

	d, ok := Lookup("stub")
	require.True(t, ok)
	assert.Equal(t, "sqlite", d.Driver())

	// lookup is case-insensitive
	_, ok = Lookup("STUB")
	assert.True(t, ok)

	_, ok = Lookup("no-such-dialect")
	assert.False(t, ok)

	assert.Contains(t, Registered(), "stub")
}

func TestConnectAndSnapshot(t *testing.T) {
	Register("stub", stubDialect{driver: "sqlite"})

	cat, err := ConnectAndSnapshot("stub", ":memory:", "main", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, cat.Schemas)
}

func TestConnectAndSnapshotErrors(t *testing.T) {
	_, err := ConnectAndSnapshot("unregistered", ":memory:", "", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialect not registered")

	boom := errors.New("catalog unavailable")
	Register("stub-failing", stubDialect{driver: "sqlite", snapErr: boom})
	_, err = ConnectAndSnapshot("stub-failing", ":memory:", "", 5)
	assert.ErrorIs(t, err, boom)
}

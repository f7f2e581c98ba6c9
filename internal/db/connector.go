package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/vertica/vertica-sql-go"

	"verticadialect/internal/introspect"
)

// Querier is the query-execution boundary the dialects run through: execute
// a parameterized text query, get back an iterable of rows. *sql.DB,
// *sql.Conn and *sql.Tx all satisfy it; connection lifecycle and transaction
// boundaries belong to the caller.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect answers structural questions about one database vendor.
type Dialect interface {

	// Driver returns the database/sql driver name the dialect speaks through.
	Driver() string

	// Snapshot reflects the catalog for schema (empty = current schema).
	Snapshot(ctx context.Context, dbConn *sql.DB, schema string) (introspect.Catalog, error)
}

var dialects = map[string]Dialect{}

// Register makes a Dialect available under name.
func Register(name string, d Dialect) {
	dialects[strings.ToLower(name)] = d
}

// Lookup returns the Dialect registered under name.
func Lookup(name string) (Dialect, bool) {
	d, ok := dialects[strings.ToLower(name)]
	return d, ok
}

// Registered returns the registered dialect keys (for diagnostics).
func Registered() []string {
	keys := make([]string, 0, len(dialects))
	for k := range dialects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConnectAndSnapshot connects to the database and reflects the catalog for
// schema through the named dialect.
func ConnectAndSnapshot(name, dsn, schema string, timeoutSec int) (introspect.Catalog, error) {
	d, ok := Lookup(name)
	if !ok {
		return introspect.Catalog{}, fmt.Errorf("dialect not registered: %q (available: %v)", name, Registered())
	}
	dbConn, err := sql.Open(d.Driver(), dsn)
	if err != nil {
		return introspect.Catalog{}, err
	}
	defer dbConn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		return introspect.Catalog{}, err
	}
	return d.Snapshot(ctx, dbConn, schema)
}

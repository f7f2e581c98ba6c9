package vertica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"verticadialect/internal/db"
	"verticadialect/internal/introspect"
)

// DriverName is the database/sql driver the dialect speaks through.
const DriverName = "vertica"

// ErrNoSuchTable is returned by TableOID when neither a table nor a view
// matches. It is the only lookup that treats absence as an error; everything
// else degrades to an empty result.
var ErrNoSuchTable = errors.New("no such table")

// Dialect reflects catalog metadata from a Vertica database. It holds no
// per-connection state; the type lookup table is built once and read-only
// afterwards, so a single Dialect is safe for concurrent use.
type Dialect struct {
	types *TypeTranslator
}

// New returns a ready-to-use dialect.
func New() *Dialect {
	return &Dialect{types: NewTypeTranslator()}
}

func init() {
	db.Register(DriverName, New())
}

// Driver implements db.Dialect.
func (d *Dialect) Driver() string { return DriverName }

// NormalizeName canonicalizes an identifier for catalog comparison: catalog
// lookups are case-insensitive regardless of how identifiers are stored.
func (d *Dialect) NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DenormalizeName is the identity: the database's identifier case is already
// its canonical display case.
func (d *Dialect) DenormalizeName(name string) string { return name }

// Version is a parsed server version triple.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

var versionPattern = regexp.MustCompile(`Vertica Analytic Database v(\d+)\.(\d+)\.(\d+)`)

// parseServerVersion extracts the version triple from the version() banner.
// A malformed banner is a real error: version gating depends on it.
func parseServerVersion(banner string) (Version, error) {
	m := versionPattern.FindStringSubmatch(banner)
	if m == nil {
		return Version{}, fmt.Errorf("could not determine version from string %q", banner)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// ServerVersion queries and parses the server version banner.
func (d *Dialect) ServerVersion(ctx context.Context, q db.Querier) (Version, error) {
	var banner string
	if err := q.QueryRowContext(ctx, "SELECT version()").Scan(&banner); err != nil {
		return Version{}, fmt.Errorf("query version: %w", err)
	}
	return parseServerVersion(banner)
}

// CurrentSchema returns the connection's current schema.
func (d *Dialect) CurrentSchema(ctx context.Context, q db.Querier) (string, error) {
	var schema string
	if err := q.QueryRowContext(ctx, "SELECT current_schema()").Scan(&schema); err != nil {
		return "", fmt.Errorf("query current schema: %w", err)
	}
	return schema, nil
}

// resolveSchema substitutes the current schema for an empty one. Listing and
// existence functions default to the connection's schema; comment/property
// lookups instead use schemaFilter and match all schemas.
func (d *Dialect) resolveSchema(ctx context.Context, q db.Querier, schema string) (string, error) {
	if schema != "" {
		return schema, nil
	}
	return d.CurrentSchema(ctx, q)
}

// schemaFilter builds the schema predicate for a query. An empty schema
// degenerates to an always-true predicate; otherwise the comparison is
// case-folded and the value is bound, not spliced.
func schemaFilter(column, schema string) (string, []any) {
	if schema == "" {
		return "1 = 1", nil
	}
	return "lower(" + column + ") = ?", []any{strings.ToLower(schema)}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// validIdentifier reports whether name is safe to interpolate into query
// text. Bind parameters are used for every literal value, but procedure
// parameters like GET_MODEL_ATTRIBUTE's model_name cannot be bound and must
// pass this allow-list first.
func validIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// Snapshot implements db.Dialect: a composite reflection of schemas, tables
// with columns and comments, views, projections and models for one schema
// scope. Composed of independent point-in-time lookups; not atomic under
// concurrent DDL.
func (d *Dialect) Snapshot(ctx context.Context, dbConn *sql.DB, schema string) (introspect.Catalog, error) {
	var cat introspect.Catalog

	schemas, err := d.SchemaNames(ctx, dbConn)
	if err != nil {
		return cat, err
	}
	cat.Schemas = schemas

	tables, err := d.TableNames(ctx, dbConn, schema)
	if err != nil {
		return cat, err
	}
	for _, name := range tables {
		cols, err := d.Columns(ctx, dbConn, name, schema)
		if err != nil {
			return cat, fmt.Errorf("columns of %s: %w", name, err)
		}
		comment, err := d.TableComment(ctx, dbConn, name, schema)
		if err != nil {
			return cat, fmt.Errorf("comment of %s: %w", name, err)
		}
		cat.Tables = append(cat.Tables, introspect.Table{
			Schema:  schema,
			Name:    name,
			Columns: cols,
			Comment: &comment,
		})
	}

	if cat.Views, err = d.ViewNames(ctx, dbConn, schema); err != nil {
		return cat, err
	}
	if cat.Projections, err = d.ProjectionNames(ctx, dbConn, schema); err != nil {
		return cat, err
	}
	if cat.Models, err = d.ModelNames(ctx, dbConn, schema); err != nil {
		return cat, err
	}
	return cat, nil
}

package vertica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"verticadialect/internal/db"
	"verticadialect/internal/introspect"
)

// ObjectKind selects the catalog an owner lookup runs against.
type ObjectKind string

const (
	ObjectTable      ObjectKind = "table"
	ObjectProjection ObjectKind = "projection"
	ObjectView       ObjectKind = "view"
)

// stringColumn runs a query and collects its first column.
func stringColumn(ctx context.Context, q db.Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// exists runs an existence subquery: true iff it yields at least one row.
func exists(ctx context.Context, q db.Querier, query string, args ...any) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, query, args...).Scan(&ok)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

// HasSchema reports whether a schema with the given name exists.
func (d *Dialect) HasSchema(ctx context.Context, q db.Querier, schema string) (bool, error) {
	return exists(ctx, q, `
		SELECT EXISTS (
		SELECT schema_name
		FROM v_catalog.schemata
		WHERE lower(schema_name) = ?)`, d.NormalizeName(schema))
}

// HasTable reports whether a table exists in schema (empty = current schema).
func (d *Dialect) HasTable(ctx context.Context, q db.Querier, table, schema string) (bool, error) {
	schema, err := d.resolveSchema(ctx, q, schema)
	if err != nil {
		return false, err
	}
	return exists(ctx, q, `
		SELECT EXISTS (
		SELECT table_name
		FROM v_catalog.all_tables
		WHERE lower(table_name) = ?
		AND lower(schema_name) = ?)`, d.NormalizeName(table), d.NormalizeName(schema))
}

// HasSequence reports whether a sequence exists in schema.
func (d *Dialect) HasSequence(ctx context.Context, q db.Querier, sequence, schema string) (bool, error) {
	schema, err := d.resolveSchema(ctx, q, schema)
	if err != nil {
		return false, err
	}
	return exists(ctx, q, `
		SELECT EXISTS (
		SELECT sequence_name
		FROM v_catalog.sequences
		WHERE lower(sequence_name) = ?
		AND lower(sequence_schema) = ?)`, d.NormalizeName(sequence), d.NormalizeName(schema))
}

// HasType reports whether a type with the given name exists.
func (d *Dialect) HasType(ctx context.Context, q db.Querier, typeName string) (bool, error) {
	return exists(ctx, q, `
		SELECT EXISTS (
		SELECT type_name
		FROM v_catalog.types
		WHERE lower(type_name) = ?)`, d.NormalizeName(typeName))
}

// SchemaNames lists user schemas, skipping the v_-internal ones.
func (d *Dialect) SchemaNames(ctx context.Context, q db.Querier) ([]string, error) {
	names, err := stringColumn(ctx, q, `
		SELECT schema_name
		FROM v_catalog.schemata`)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if !strings.HasPrefix(n, "v_") {
			out = append(out, n)
		}
	}
	return out, nil
}

// TableNames lists base tables, schema-filtered when schema is non-empty.
func (d *Dialect) TableNames(ctx context.Context, q db.Querier, schema string) ([]string, error) {
	cond, args := schemaFilter("table_schema", schema)
	return stringColumn(ctx, q, fmt.Sprintf(`
		SELECT table_name
		FROM v_catalog.tables
		WHERE %s
		ORDER BY table_schema, table_name`, cond), args...)
}

// TempTableNames lists session-scoped temporary tables.
func (d *Dialect) TempTableNames(ctx context.Context, q db.Querier, schema string) ([]string, error) {
	cond, args := schemaFilter("table_schema", schema)
	return stringColumn(ctx, q, fmt.Sprintf(`
		SELECT table_name
		FROM v_catalog.tables
		WHERE %s
		AND is_temp_table
		ORDER BY table_schema, table_name`, cond), args...)
}

// ViewNames lists views, schema-filtered when schema is non-empty.
func (d *Dialect) ViewNames(ctx context.Context, q db.Querier, schema string) ([]string, error) {
	cond, args := schemaFilter("table_schema", schema)
	return stringColumn(ctx, q, fmt.Sprintf(`
		SELECT table_name
		FROM v_catalog.views
		WHERE %s
		ORDER BY table_schema, table_name`, cond), args...)
}

// TempViewNames is always empty: global temporary views are not supported.
func (d *Dialect) TempViewNames(ctx context.Context, q db.Querier, schema string) ([]string, error) {
	return nil, nil
}

// ViewDefinition returns the view's defining query, or "" when absent.
func (d *Dialect) ViewDefinition(ctx context.Context, q db.Querier, view, schema string) (string, error) {
	cond, condArgs := schemaFilter("table_schema", schema)
	args := append([]any{d.NormalizeName(view)}, condArgs...)

	var def sql.NullString
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT view_definition
		FROM v_catalog.views
		WHERE lower(table_name) = ? AND %s`, cond), args...).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return def.String, nil
}

// ProjectionNames lists projections, schema-filtered when schema is non-empty.
func (d *Dialect) ProjectionNames(ctx context.Context, q db.Querier, schema string) ([]string, error) {
	cond, args := schemaFilter("projection_schema", schema)
	return stringColumn(ctx, q, fmt.Sprintf(`
		SELECT projection_name
		FROM v_catalog.projections
		WHERE %s`, cond), args...)
}

// ModelNames lists ML models in schema (empty = current schema).
func (d *Dialect) ModelNames(ctx context.Context, q db.Querier, schema string) ([]string, error) {
	schema, err := d.resolveSchema(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	return stringColumn(ctx, q, `
		SELECT model_name
		FROM models
		WHERE lower(schema_name) = ?
		ORDER BY model_name`, d.NormalizeName(schema))
}

// OAuthNames lists the configured OAUTH authentication records.
func (d *Dialect) OAuthNames(ctx context.Context, q db.Querier) ([]string, error) {
	return stringColumn(ctx, q, `
		SELECT auth_name
		FROM v_catalog.client_auth
		WHERE auth_method = 'OAUTH'`)
}

// TableOID resolves the catalog identifier of a table or view. Absence is a
// hard error (ErrNoSuchTable): dependent constraint lookups need a valid
// identifier to proceed.
func (d *Dialect) TableOID(ctx context.Context, q db.Querier, table, schema string) (int64, error) {
	schema, err := d.resolveSchema(ctx, q, schema)
	if err != nil {
		return 0, err
	}

	var oid int64
	err = q.QueryRowContext(ctx, `
		SELECT A.table_id
		FROM
			(SELECT table_id, table_name, table_schema FROM v_catalog.tables
				UNION
			 SELECT table_id, table_name, table_schema FROM v_catalog.views) AS A
		WHERE lower(A.table_name) = ?
		AND lower(A.table_schema) = ?`,
		d.NormalizeName(table), d.NormalizeName(schema)).Scan(&oid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s.%s", ErrNoSuchTable, schema, table)
	}
	if err != nil {
		return 0, err
	}
	return oid, nil
}

// Columns reflects the columns of a table, view or projection: the three
// catalog sources are unioned so the same call serves all of them.
// Primary-key membership comes from a separate lookup merged in by
// normalized name.
func (d *Dialect) Columns(ctx context.Context, q db.Querier, table, schema string) ([]introspect.Column, error) {
	cond, condArgs := schemaFilter("table_schema", schema)
	name := d.NormalizeName(table)

	query := fmt.Sprintf(`
		SELECT column_name, data_type, column_default, is_nullable
		FROM v_catalog.columns
		WHERE lower(table_name) = ?
		AND %[1]s
		UNION ALL
		SELECT column_name, data_type, '' AS column_default, true AS is_nullable
		FROM v_catalog.view_columns
		WHERE lower(table_name) = ?
		AND %[1]s
		UNION ALL
		SELECT projection_column_name, data_type, '' AS column_default, true AS is_nullable
		FROM v_catalog.projection_columns
		WHERE lower(projection_name) = ?
		AND %[1]s`, cond)

	args := make([]any, 0, 3*(1+len(condArgs)))
	for i := 0; i < 3; i++ {
		args = append(args, name)
		args = append(args, condArgs...)
	}

	pk, err := d.PrimaryKey(ctx, q, table, schema)
	if err != nil {
		return nil, err
	}
	pkSet := make(map[string]bool, len(pk.Columns))
	for _, c := range pk.Columns {
		pkSet[d.NormalizeName(c)] = true
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []introspect.Column
	for rows.Next() {
		var (
			colName  string
			dataType string
			colDef   sql.NullString
			nullable bool
		)
		if err := rows.Scan(&colName, &dataType, &colDef, &nullable); err != nil {
			return nil, err
		}
		col := d.types.Column(colName, strings.ToLower(dataType), colDef.String, nullable, schema)
		col.PrimaryKey = pkSet[d.NormalizeName(colName)]
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// PrimaryKey returns the primary-key constraint of a table, or a zero value
// when the table has none.
func (d *Dialect) PrimaryKey(ctx context.Context, q db.Querier, table, schema string) (introspect.PrimaryKey, error) {
	cond, condArgs := schemaFilter("table_schema", schema)
	args := append([]any{d.NormalizeName(table)}, condArgs...)

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT constraint_name, column_name
		FROM v_catalog.primary_keys
		WHERE lower(table_name) = ?
		AND constraint_type = 'p'
		AND %s`, cond), args...)
	if err != nil {
		return introspect.PrimaryKey{}, err
	}
	defer rows.Close()

	var pk introspect.PrimaryKey
	for rows.Next() {
		var constraint, column string
		if err := rows.Scan(&constraint, &column); err != nil {
			return introspect.PrimaryKey{}, err
		}
		pk.Name = constraint
		pk.Columns = append(pk.Columns, column)
	}
	return pk, rows.Err()
}

// UniqueConstraints lists unique and primary-key constraints with their
// column lists in catalog order.
func (d *Dialect) UniqueConstraints(ctx context.Context, q db.Querier, table, schema string) ([]introspect.UniqueConstraint, error) {
	schema, err := d.resolveSchema(ctx, q, schema)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT constraint_name, column_name
		FROM v_catalog.constraint_columns
		WHERE lower(table_name) = ?
		AND lower(table_schema) = ?
		AND constraint_type IN ('p', 'u')`,
		d.NormalizeName(table), d.NormalizeName(schema))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out   []introspect.UniqueConstraint
		index = map[string]int{}
	)
	for rows.Next() {
		var constraint, column string
		if err := rows.Scan(&constraint, &column); err != nil {
			return nil, err
		}
		i, ok := index[constraint]
		if !ok {
			i = len(out)
			index[constraint] = i
			out = append(out, introspect.UniqueConstraint{Name: constraint})
		}
		out[i].Columns = append(out[i].Columns, column)
	}
	return out, rows.Err()
}

// CheckConstraints lists check constraints, resolved through the table's
// catalog identifier (so a missing table surfaces as ErrNoSuchTable).
func (d *Dialect) CheckConstraints(ctx context.Context, q db.Querier, table, schema string) ([]introspect.CheckConstraint, error) {
	oid, err := d.TableOID(ctx, q, table, schema)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT constraint_name, column_name
		FROM v_catalog.constraint_columns
		WHERE table_id = ?
		AND constraint_type = 'c'`, oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []introspect.CheckConstraint
	for rows.Next() {
		var c introspect.CheckConstraint
		if err := rows.Scan(&c.Name, &c.SQLText); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ForeignKeys is always empty: foreign keys are not reflectable objects in
// this database. Documented limitation, not a bug.
func (d *Dialect) ForeignKeys(ctx context.Context, q db.Querier, table, schema string) ([]introspect.UniqueConstraint, error) {
	return nil, nil
}

// Indexes is always empty: indexes are not a thing here, projections are.
func (d *Dialect) Indexes(ctx context.Context, q db.Querier, table, schema string) ([]string, error) {
	return nil, nil
}

// Owners maps object names to their owning principal for one object kind.
func (d *Dialect) Owners(ctx context.Context, q db.Querier, kind ObjectKind, schema string) (map[string]string, error) {
	var query string
	var args []any

	switch kind {
	case ObjectTable:
		cond, condArgs := schemaFilter("table_schema", schema)
		query = fmt.Sprintf(`
			SELECT table_name, owner_name
			FROM v_catalog.tables
			WHERE %s`, cond)
		args = condArgs
	case ObjectProjection:
		cond, condArgs := schemaFilter("projection_schema", schema)
		query = fmt.Sprintf(`
			SELECT projection_name AS table_name, owner_name
			FROM v_catalog.projections
			WHERE %s`, cond)
		args = condArgs
	case ObjectView:
		cond, condArgs := schemaFilter("table_schema", schema)
		query = fmt.Sprintf(`
			SELECT table_name, owner_name
			FROM v_catalog.views
			WHERE %s`, cond)
		args = condArgs
	default:
		return nil, fmt.Errorf("unknown object kind %q", kind)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := map[string]string{}
	for rows.Next() {
		var name, owner string
		if err := rows.Scan(&name, &owner); err != nil {
			return nil, err
		}
		owners[name] = owner
	}
	return owners, rows.Err()
}

// ROSCount returns the projection's ROS container count, 0 when unknown.
func (d *Dialect) ROSCount(ctx context.Context, q db.Querier, projection, schema string) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx, `
		SELECT ros_count
		FROM v_monitor.projection_storage
		WHERE lower(projection_name) = ?`, d.NormalizeName(projection)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Segmentation returns the projection's segmentation flag and, when
// segmented, its segmentation key expression.
func (d *Dialect) Segmentation(ctx context.Context, q db.Querier, projection, schema string) (bool, string, error) {
	name := d.NormalizeName(projection)

	var segmented bool
	err := q.QueryRowContext(ctx, `
		SELECT is_segmented
		FROM v_catalog.projections
		WHERE lower(projection_name) = ?`, name).Scan(&segmented)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if !segmented {
		return false, "", nil
	}

	var expr sql.NullString
	err = q.QueryRowContext(ctx, `
		SELECT segment_expression
		FROM v_catalog.projections
		WHERE lower(projection_name) = ?`, name).Scan(&expr)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return true, "", err
	}
	return true, expr.String, nil
}

// projectionTypeLabels names the projection type flags, in catalog order.
var projectionTypeLabels = []string{
	"is_super_projection",
	"is_key_constraint_projection",
	"is_aggregate_projection",
	"has_expressions",
}

// ProjectionTypes returns the set of type flags that hold for a projection;
// multiple may hold simultaneously.
func (d *Dialect) ProjectionTypes(ctx context.Context, q db.Querier, projection, schema string) ([]string, error) {
	cond, condArgs := schemaFilter("projection_schema", schema)
	args := append([]any{d.NormalizeName(projection)}, condArgs...)

	flags := make([]bool, len(projectionTypeLabels))
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT is_super_projection, is_key_constraint_projection, is_aggregate_projection, has_expressions
		FROM v_catalog.projections
		WHERE lower(projection_name) = ?
		AND %s`, cond), args...).Scan(&flags[0], &flags[1], &flags[2], &flags[3])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var types []string
	for i, set := range flags {
		if set {
			types = append(types, projectionTypeLabels[i])
		}
	}
	return types, nil
}

// PartitionKey returns the projection's partition key expression, "" when
// the projection is unpartitioned.
func (d *Dialect) PartitionKey(ctx context.Context, q db.Querier, projection, schema string) (string, error) {
	var key sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT partition_key
		FROM v_monitor.partitions
		WHERE lower(projection_name) = ?
		LIMIT 1`, d.NormalizeName(projection)).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return key.String, nil
}

// PartitionCount returns the projection's partition (ROS container) count.
func (d *Dialect) PartitionCount(ctx context.Context, q db.Querier, projection, schema string) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(ros_id) AS np
		FROM v_monitor.partitions
		WHERE lower(projection_name) = ?`, d.NormalizeName(projection)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ProjectionSizeKB returns the projection's storage footprint in whole
// kilobytes, 0 when no storage row exists.
func (d *Dialect) ProjectionSizeKB(ctx context.Context, q db.Querier, projection, schema string) (int64, error) {
	var kb sql.NullFloat64
	err := q.QueryRowContext(ctx, `
		SELECT ROUND(used_bytes / 1024) AS used_kb
		FROM v_monitor.projection_storage
		WHERE lower(projection_name) = ?`, d.NormalizeName(projection)).Scan(&kb)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(kb.Float64), nil
}

// ProjectionCached reports whether a depot pin policy keeps the projection's
// data in the depot.
func (d *Dialect) ProjectionCached(ctx context.Context, q db.Querier, projection, schema string) (bool, error) {
	var pins int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM depot_pin_policies
		WHERE lower(object_name) = ?`, d.NormalizeName(projection)).Scan(&pins)
	if err != nil {
		return false, err
	}
	return pins > 0, nil
}

// FetchProjectionDetails gathers every physical-storage attribute of a
// projection. Seven independent single-purpose queries per call: fine for
// interactive browsing, too chatty for bulk enumeration.
func (d *Dialect) FetchProjectionDetails(ctx context.Context, q db.Querier, projection, schema string) (introspect.ProjectionDetails, error) {
	var det introspect.ProjectionDetails
	var err error

	if det.ROSCount, err = d.ROSCount(ctx, q, projection, schema); err != nil {
		return det, err
	}
	if det.Segmented, det.SegmentationKey, err = d.Segmentation(ctx, q, projection, schema); err != nil {
		return det, err
	}
	if det.Types, err = d.ProjectionTypes(ctx, q, projection, schema); err != nil {
		return det, err
	}
	if det.PartitionKey, err = d.PartitionKey(ctx, q, projection, schema); err != nil {
		return det, err
	}
	if det.PartitionCount, err = d.PartitionCount(ctx, q, projection, schema); err != nil {
		return det, err
	}
	if det.SizeKB, err = d.ProjectionSizeKB(ctx, q, projection, schema); err != nil {
		return det, err
	}
	if det.Cached, err = d.ProjectionCached(ctx, q, projection, schema); err != nil {
		return det, err
	}
	return det, nil
}

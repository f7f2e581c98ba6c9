package vertica

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"verticadialect/internal/db"
	"verticadialect/internal/introspect"
	"verticadialect/internal/logger"
)

const tableCommentText = "References the properties of a native table in Vertica. " +
	"Vertica physically stores table data in projections, which are collections of table columns. " +
	"Projections store data in a format that optimizes query execution. " +
	"In order to query or perform any operation on a Vertica table, the table must have one or more projections associated with it."

const projectionCommentText = "Vertica physically stores table data in projections, " +
	"which are collections of table columns. Projections store data in a format that optimizes query execution. " +
	"For more info on projections and corresponding properties check out the Vertica Docs: https://www.vertica.com/docs"

const modelCommentText = "Vertica provides a number of machine learning functions for performing in-database analysis. " +
	"These functions perform data preparation, model training, and predictive tasks. " +
	"These properties show the model attributes and specifications in the current schema."

const oauthCommentText = "Vertica supports OAUTH based authentication. " +
	"These properties are only visible if you have access to the authorization table in Vertica. " +
	"All the properties shown here are what Vertica uses for a client connecting via OAUTH."

// TableComment aggregates the create time and total storage size of a table
// or view into the fixed comment envelope.
func (d *Dialect) TableComment(ctx context.Context, q db.Querier, table, schema string) (introspect.Comment, error) {
	cond, condArgs := schemaFilter("table_schema", schema)
	name := d.NormalizeName(table)

	query := fmt.Sprintf(`
		SELECT create_time, table_name
		FROM v_catalog.tables
		WHERE lower(table_name) = ?
		AND %[1]s
		UNION ALL
		SELECT create_time, table_name
		FROM v_catalog.views
		WHERE lower(table_name) = ?
		AND %[1]s`, cond)

	args := make([]any, 0, 2*(1+len(condArgs)))
	for i := 0; i < 2; i++ {
		args = append(args, name)
		args = append(args, condArgs...)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return introspect.Comment{}, err
	}
	defer rows.Close()

	var createTime string
	for rows.Next() {
		var ct sql.NullString
		var tn string
		if err := rows.Scan(&ct, &tn); err != nil {
			return introspect.Comment{}, err
		}
		createTime = ct.String
	}
	if err := rows.Err(); err != nil {
		return introspect.Comment{}, err
	}

	// Total size is summed across column storage and truncated to whole KB;
	// a table with no storage rows reports zero.
	var sizeKB int64
	var size sql.NullFloat64
	err = q.QueryRowContext(ctx, `
		SELECT ROUND(SUM(used_bytes) / 1024) AS table_size
		FROM v_monitor.column_storage
		WHERE lower(anchor_table_name) = ?`, name).Scan(&size)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return introspect.Comment{}, err
	}
	if size.Valid {
		sizeKB = int64(math.Trunc(size.Float64))
	}

	return introspect.Comment{
		Text: tableCommentText,
		Properties: map[string]string{
			"create_time":      createTime,
			"Total_Table_Size": strconv.FormatInt(sizeKB, 10) + " KB",
		},
	}, nil
}

// ProjectionComment aggregates the projection's physical-storage attributes
// into the fixed comment envelope. Pass pre-fetched details to skip the
// seven per-attribute queries; nil fetches them here.
func (d *Dialect) ProjectionComment(ctx context.Context, q db.Querier, projection, schema string, details *introspect.ProjectionDetails) (introspect.Comment, error) {
	if details == nil {
		det, err := d.FetchProjectionDetails(ctx, q, projection, schema)
		if err != nil {
			return introspect.Comment{}, err
		}
		details = &det
	}

	return introspect.Comment{
		Text: projectionCommentText,
		Properties: map[string]string{
			"ROS Count":            strconv.FormatInt(details.ROSCount, 10),
			"Is Segmented":         strconv.FormatBool(details.Segmented),
			"Segmentation Key":     details.SegmentationKey,
			"Projection Type":      strings.Join(details.Types, ", "),
			"Partition Key":        details.PartitionKey,
			"Number of Partitions": strconv.FormatInt(details.PartitionCount, 10),
			"Projection Size":      strconv.FormatInt(details.SizeKB, 10) + " KB",
			"Projection Cached":    strconv.FormatBool(details.Cached),
		},
	}, nil
}

// ModelAttributes enumerates the attribute groups of a model through the
// model-introspection procedure. The model name is interpolated into the
// procedure call (procedure parameters cannot be bound), so both parts must
// pass the identifier allow-list.
func (d *Dialect) ModelAttributes(ctx context.Context, q db.Querier, model, schema string) ([]introspect.ModelAttribute, error) {
	schema, err := d.resolveSchema(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	model, schema = d.NormalizeName(model), d.NormalizeName(schema)
	if !validIdentifier(model) || !validIdentifier(schema) {
		return nil, fmt.Errorf("unsafe model identifier %q.%q", schema, model)
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT GET_MODEL_ATTRIBUTE ( USING PARAMETERS model_name='%s.%s')`, schema, model))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attrs []introspect.ModelAttribute
	for rows.Next() {
		var (
			name     string
			fields   string
			rowCount int64
		)
		if err := rows.Scan(&name, &fields, &rowCount); err != nil {
			return nil, err
		}
		attrs = append(attrs, introspect.ModelAttribute{
			Name:     name,
			Fields:   splitFields(fields),
			RowCount: rowCount,
		})
	}
	return attrs, rows.Err()
}

// modelAttributeValues fetches the value rows of one attribute group and
// pivots them into a field-name keyed mapping.
func (d *Dialect) modelAttributeValues(ctx context.Context, q db.Querier, model, schema string, attr introspect.ModelAttribute) (map[string][]string, error) {
	if !validIdentifier(attr.Name) {
		return nil, fmt.Errorf("unsafe attribute identifier %q", attr.Name)
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT GET_MODEL_ATTRIBUTE ( USING PARAMETERS model_name='%s.%s', attr_name='%s')`,
		schema, model, attr.Name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var values [][]string
	for rows.Next() {
		raw := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			row[i] = v.String
		}
		values = append(values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pivotAttributeValues(attr.Fields, values), nil
}

// pivotAttributeValues turns positional value rows into a mapping from field
// name to the ordered list of that field's values.
func pivotAttributeValues(fields []string, rows [][]string) map[string][]string {
	out := make(map[string][]string, len(fields))
	for _, row := range rows {
		if len(fields) > 1 {
			for i, field := range fields {
				if i < len(row) {
					out[field] = append(out[field], row[i])
				}
			}
		} else if len(fields) == 1 && len(row) > 0 {
			out[fields[0]] = append(out[fields[0]], row[0])
		}
	}
	return out
}

func splitFields(fields string) []string {
	parts := strings.Split(fields, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ModelComment aggregates a model's owner, attribute groups and per-group
// value tables into the fixed comment envelope. One detail query per
// attribute group by construction: the catalog offers no joined view.
func (d *Dialect) ModelComment(ctx context.Context, q db.Querier, model, schema string) (introspect.Comment, error) {
	schema, err := d.resolveSchema(ctx, q, schema)
	if err != nil {
		return introspect.Comment{}, err
	}

	var owner string
	err = q.QueryRowContext(ctx, `
		SELECT owner_name
		FROM models
		WHERE lower(model_name) = ?
		AND lower(schema_name) = ?`,
		d.NormalizeName(model), d.NormalizeName(schema)).Scan(&owner)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return introspect.Comment{}, err
	}

	attrs, err := d.ModelAttributes(ctx, q, model, schema)
	if err != nil {
		return introspect.Comment{}, err
	}

	type attrDetail struct {
		Name   string              `json:"attr_name"`
		Values map[string][]string `json:"values,omitempty"`
	}
	details := make([]attrDetail, 0, len(attrs))
	for _, attr := range attrs {
		values, err := d.modelAttributeValues(ctx, q, d.NormalizeName(model), d.NormalizeName(schema), attr)
		if err != nil {
			return introspect.Comment{}, err
		}
		details = append(details, attrDetail{Name: attr.Name, Values: values})
	}

	attrsJSON, _ := json.Marshal(attrs)
	detailsJSON, _ := json.Marshal(details)

	return introspect.Comment{
		Text: modelCommentText,
		Properties: map[string]string{
			"used_by":              owner,
			"Model Attributes":     string(attrsJSON),
			"Model Specifications": string(detailsJSON),
		},
	}, nil
}

// oauthParameterKeys are the fields expected inside the auth_parameters
// blob. Missing keys are a soft error: they are logged and left empty.
var oauthParameterKeys = []string{"client_id", "client_secret", "discovery_url", "introspect_url"}

// parseAuthParameters decomposes the semi-structured "k=v, k=v" parameter
// blob into a mapping, tolerant of reordering and missing keys.
func parseAuthParameters(blob string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(blob, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

// OAuthComment aggregates the OAUTH authentication record into the fixed
// comment envelope. name narrows to one record when non-empty.
func (d *Dialect) OAuthComment(ctx context.Context, q db.Querier, name string) (introspect.Comment, error) {
	query := `
		SELECT auth_oid,
		is_auth_enabled,
		is_fallthrough_enabled,
		auth_parameters,
		auth_priority,
		address_priority
		FROM v_catalog.client_auth
		WHERE auth_method = 'OAUTH'`
	var args []any
	if name != "" {
		query += `
		AND lower(auth_name) = ?`
		args = append(args, d.NormalizeName(name))
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return introspect.Comment{}, err
	}
	defer rows.Close()

	var (
		authOID               int64
		authEnabled, fallthru bool
		parameters            string
		authPrio, addressPrio int64
	)
	for rows.Next() {
		if err := rows.Scan(&authOID, &authEnabled, &fallthru, &parameters, &authPrio, &addressPrio); err != nil {
			return introspect.Comment{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return introspect.Comment{}, err
	}

	params := parseAuthParameters(parameters)
	for _, key := range oauthParameterKeys {
		if _, ok := params[key]; !ok {
			logger.Warn("oauth record %d: auth_parameters missing %q", authOID, key)
		}
	}

	return introspect.Comment{
		Text: oauthCommentText,
		Properties: map[string]string{
			"client_id":              params["client_id"],
			"client_secret":          params["client_secret"],
			"discovery_url":          params["discovery_url"],
			"introspect_url":         params["introspect_url"],
			"auth_oid":               strconv.FormatInt(authOID, 10),
			"is_auth_enabled":        strconv.FormatBool(authEnabled),
			"is_fallthrough_enabled": strconv.FormatBool(fallthru),
			"auth_priority":          strconv.FormatInt(authPrio, 10),
			"address_priority":       strconv.FormatInt(addressPrio, 10),
		},
	}, nil
}

// DatabaseProperties reflects deployment mode, communal storage, and disk
// usage. Extended properties are best-effort enrichment: any failure is
// logged and the result is nil, never an error.
func (d *Dialect) DatabaseProperties(ctx context.Context, q db.Querier, database string) map[string]string {
	props, err := d.databaseProperties(ctx, q)
	if err != nil {
		logger.Warn("%s: unable to get extended properties: %v", database, err)
		return nil
	}
	return props
}

func (d *Dialect) databaseProperties(ctx context.Context, q db.Querier) (map[string]string, error) {
	// Shard metadata distinguishes Eon from Enterprise deployments.
	var mode string
	err := q.QueryRowContext(ctx, `
		SELECT CASE COUNT(*) WHEN 0 THEN 'Enterprise' ELSE 'Eon' END AS database_mode
		FROM v_catalog.shards`).Scan(&mode)
	if err != nil {
		return nil, err
	}

	communal := ""
	if strings.EqualFold(mode, "eon") {
		paths, err := stringColumn(ctx, q, `
			SELECT location_path
			FROM storage_locations
			WHERE sharing_type = 'COMMUNAL'`)
		if err != nil {
			return nil, err
		}
		communal = strings.Join(paths, " | ")
	}

	rows, err := q.QueryContext(ctx, `
		SELECT subclusters.subcluster_name, CAST(SUM(disk_space_used_mb / 1024) AS varchar(10)) AS subcluster_size
		FROM subclusters
		INNER JOIN disk_storage USING (node_name)
		GROUP BY subclusters.subcluster_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subclusters []string
	for rows.Next() {
		var name, size string
		if err := rows.Scan(&name, &size); err != nil {
			return nil, err
		}
		subclusters = append(subclusters, name+" -- "+size+" GB")
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var clusterGB sql.NullFloat64
	err = q.QueryRowContext(ctx, `
		SELECT ROUND(SUM(disk_space_used_mb) / 1024) AS cluster_size
		FROM disk_storage`).Scan(&clusterGB)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return map[string]string{
		"cluster_type":          mode,
		"cluster_size":          strconv.FormatInt(int64(clusterGB.Float64), 10) + " GB",
		"subcluster":            strings.Join(subclusters, " | "),
		"communal_storage_path": communal,
	}, nil
}

// SchemaProperties reflects projection count, user-defined libraries and
// user-defined function names for one schema. Best-effort like
// DatabaseProperties: failures are logged, never propagated.
func (d *Dialect) SchemaProperties(ctx context.Context, q db.Querier, schema string) map[string]string {
	props, err := d.schemaProperties(ctx, q, schema)
	if err != nil {
		logger.Warn("%s: unable to get extended properties: %v", schema, err)
		return nil
	}
	return props
}

func (d *Dialect) schemaProperties(ctx context.Context, q db.Querier, schema string) (map[string]string, error) {
	name := d.NormalizeName(schema)

	var projectionCount int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(projection_name) AS pc
		FROM v_catalog.projections
		WHERE lower(projection_schema) = ?`, name).Scan(&projectionCount)
	if err != nil {
		return nil, err
	}

	functions, err := stringColumn(ctx, q, `
		SELECT function_name
		FROM user_functions
		WHERE lower(schema_name) = ?`, name)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT lib_name, description
		FROM user_libraries
		WHERE lower(schema_name) = ?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libraries []string
	for rows.Next() {
		var lib string
		var desc sql.NullString
		if err := rows.Scan(&lib, &desc); err != nil {
			return nil, err
		}
		libraries = append(libraries, lib+" -- "+desc.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return map[string]string{
		"projection_count": strconv.FormatInt(projectionCount, 10),
		"udx_list":         strings.Join(functions, ", "),
		"udx_language":     strings.Join(libraries, " | "),
	}, nil
}

package vertica

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// newCatalogDB builds an in-memory stand-in for the system catalog: the
// v_catalog and v_monitor schemas are attached databases, the session-scoped
// tables live in main. A single pooled connection keeps the attached
// databases alive for the test's lifetime.
func newCatalogDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`ATTACH ':memory:' AS v_catalog`,
		`ATTACH ':memory:' AS v_monitor`,

		`CREATE TABLE v_catalog.schemata (schema_name TEXT)`,
		`CREATE TABLE v_catalog.all_tables (table_name TEXT, schema_name TEXT)`,
		`CREATE TABLE v_catalog.tables (
			table_id INTEGER, table_name TEXT, table_schema TEXT,
			owner_name TEXT, create_time TEXT, is_temp_table INTEGER)`,
		`CREATE TABLE v_catalog.views (
			table_id INTEGER, table_name TEXT, table_schema TEXT,
			owner_name TEXT, create_time TEXT, view_definition TEXT)`,
		`CREATE TABLE v_catalog.columns (
			table_name TEXT, table_schema TEXT, column_name TEXT,
			data_type TEXT, column_default TEXT, is_nullable INTEGER)`,
		`CREATE TABLE v_catalog.view_columns (
			table_name TEXT, table_schema TEXT, column_name TEXT, data_type TEXT)`,
		`CREATE TABLE v_catalog.projection_columns (
			projection_name TEXT, table_schema TEXT,
			projection_column_name TEXT, data_type TEXT)`,
		`CREATE TABLE v_catalog.primary_keys (
			table_name TEXT, table_schema TEXT, constraint_name TEXT,
			column_name TEXT, constraint_type TEXT)`,
		`CREATE TABLE v_catalog.constraint_columns (
			table_id INTEGER, table_name TEXT, table_schema TEXT,
			constraint_name TEXT, column_name TEXT, constraint_type TEXT)`,
		`CREATE TABLE v_catalog.sequences (sequence_name TEXT, sequence_schema TEXT)`,
		`CREATE TABLE v_catalog.types (type_name TEXT)`,
		`CREATE TABLE v_catalog.projections (
			projection_name TEXT, projection_schema TEXT, owner_name TEXT,
			is_segmented INTEGER, segment_expression TEXT,
			is_super_projection INTEGER, is_key_constraint_projection INTEGER,
			is_aggregate_projection INTEGER, has_expressions INTEGER)`,
		`CREATE TABLE v_catalog.client_auth (
			auth_name TEXT, auth_method TEXT, auth_oid INTEGER,
			is_auth_enabled INTEGER, is_fallthrough_enabled INTEGER,
			auth_parameters TEXT, auth_priority INTEGER, address_priority INTEGER)`,
		`CREATE TABLE v_catalog.shards (shard_name TEXT)`,

		`CREATE TABLE v_monitor.projection_storage (
			projection_name TEXT, ros_count INTEGER, used_bytes INTEGER)`,
		`CREATE TABLE v_monitor.partitions (
			projection_name TEXT, partition_key TEXT, ros_id INTEGER)`,
		`CREATE TABLE v_monitor.column_storage (anchor_table_name TEXT, used_bytes INTEGER)`,

		`CREATE TABLE models (model_name TEXT, schema_name TEXT, owner_name TEXT)`,
		`CREATE TABLE storage_locations (location_path TEXT, sharing_type TEXT)`,
		`CREATE TABLE subclusters (subcluster_name TEXT, node_name TEXT)`,
		`CREATE TABLE disk_storage (node_name TEXT, disk_space_used_mb INTEGER)`,
		`CREATE TABLE depot_pin_policies (object_name TEXT)`,
		`CREATE TABLE user_libraries (schema_name TEXT, lib_name TEXT, description TEXT)`,
		`CREATE TABLE user_functions (schema_name TEXT, function_name TEXT)`,

		`INSERT INTO v_catalog.schemata VALUES ('public'), ('sales'), ('v_internal')`,
		`INSERT INTO v_catalog.all_tables VALUES ('t', 'public'), ('v', 'public')`,
		`INSERT INTO v_catalog.tables VALUES
			(1001, 't', 'public', 'dbadmin', '2023-02-14 02:33:17', 0),
			(1002, 'scratch', 'public', 'dbadmin', '2023-02-15 00:00:00', 1)`,
		`INSERT INTO v_catalog.views VALUES
			(2001, 'v', 'public', 'dbadmin', '2023-03-01 10:00:00', 'SELECT id FROM t')`,
		`INSERT INTO v_catalog.columns VALUES
			('t', 'public', 'id', 'int', 'nextval(''t_id_seq'')', 0),
			('t', 'public', 'name', 'varchar(256)', NULL, 1)`,
		`INSERT INTO v_catalog.view_columns VALUES ('v', 'public', 'id', 'int')`,
		`INSERT INTO v_catalog.projection_columns VALUES
			('t_super', 'public', 'id', 'int'),
			('t_super', 'public', 'name', 'varchar(256)')`,
		`INSERT INTO v_catalog.primary_keys VALUES ('t', 'public', 'C_PRIMARY', 'id', 'p')`,
		`INSERT INTO v_catalog.constraint_columns VALUES
			(1001, 't', 'public', 'C_PRIMARY', 'id', 'p'),
			(1001, 't', 'public', 'uq_tag', 'tag', 'u'),
			(1001, 't', 'public', 'uq_tag', 'name', 'u'),
			(1001, 't', 'public', 'C_CHECK', '(id > 0)', 'c')`,
		`INSERT INTO v_catalog.sequences VALUES ('t_id_seq', 'public')`,
		`INSERT INTO v_catalog.types VALUES ('int'), ('varchar'), ('boolean')`,
		`INSERT INTO v_catalog.projections VALUES
			('t_super', 'public', 'dbadmin', 1, 'hash(t.id)', 1, 0, 0, 0),
			('sales_p', 'sales', 'dbadmin', 0, NULL, 1, 0, 0, 0)`,
		`INSERT INTO v_catalog.client_auth VALUES
			('v_oauth', 'OAUTH', 45035996273705425, 1, 0,
			 'client_id=abc, client_secret=s3cr3t, discovery_url=https://idp.example.com/.well-known/openid-configuration, introspect_url=https://idp.example.com/oauth2/introspect',
			 5, 10)`,

		`INSERT INTO v_monitor.projection_storage VALUES ('t_super', 14, 4194304)`,
		`INSERT INTO v_monitor.column_storage VALUES ('t', 1048576), ('t', 2097152)`,

		`INSERT INTO models VALUES ('clf', 'sales', 'ml_admin')`,
		`INSERT INTO storage_locations VALUES ('s3://mybucket/verticadb', 'COMMUNAL')`,
		`INSERT INTO subclusters VALUES
			('default_subcluster', 'node1'), ('default_subcluster', 'node2')`,
		`INSERT INTO disk_storage VALUES ('node1', 10240), ('node2', 10240)`,
		`INSERT INTO depot_pin_policies VALUES ('t_super')`,
		`INSERT INTO user_libraries VALUES ('sales', 'MyLib', 'Python UDx library')`,
		`INSERT INTO user_functions VALUES ('sales', 'predictor')`,
	} {
		_, err := conn.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	return conn
}

func TestExistenceChecks(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	ok, err := d.HasSchema(ctx, conn, "PUBLIC")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.HasSchema(ctx, conn, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.HasTable(ctx, conn, "T", "public")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.HasTable(ctx, conn, "missing", "public")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.HasSequence(ctx, conn, "t_id_seq", "public")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.HasSequence(ctx, conn, "t_id_seq", "sales")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.HasType(ctx, conn, "INT")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.HasType(ctx, conn, "geo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNameListings(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	schemas, err := d.SchemaNames(ctx, conn)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"public", "sales"}, schemas, "internal schemas must be skipped")

	tables, err := d.TableNames(ctx, conn, "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"scratch", "t"}, tables)

	tables, err = d.TableNames(ctx, conn, "sales")
	require.NoError(t, err)
	assert.Empty(t, tables)

	temp, err := d.TempTableNames(ctx, conn, "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"scratch"}, temp)

	views, err := d.ViewNames(ctx, conn, "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, views)

	tempViews, err := d.TempViewNames(ctx, conn, "public")
	require.NoError(t, err)
	assert.Empty(t, tempViews)

	projections, err := d.ProjectionNames(ctx, conn, "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"t_super"}, projections)

	projections, err = d.ProjectionNames(ctx, conn, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t_super", "sales_p"}, projections)

	models, err := d.ModelNames(ctx, conn, "sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"clf"}, models)

	oauth, err := d.OAuthNames(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"v_oauth"}, oauth)
}

func TestViewDefinition(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	def, err := d.ViewDefinition(ctx, conn, "V", "public")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM t", def)

	def, err = d.ViewDefinition(ctx, conn, "missing", "public")
	require.NoError(t, err)
	assert.Empty(t, def)
}

func TestTableOID(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	oid, err := d.TableOID(ctx, conn, "t", "public")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), oid)

	// views resolve through the same lookup
	oid, err = d.TableOID(ctx, conn, "v", "public")
	require.NoError(t, err)
	assert.Equal(t, int64(2001), oid)

	_, err = d.TableOID(ctx, conn, "missing", "public")
	assert.True(t, errors.Is(err, ErrNoSuchTable), "got %v", err)
}

func TestColumns(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	t.Run("table", func(t *testing.T) {
		cols, err := d.Columns(ctx, conn, "t", "public")
		require.NoError(t, err)
		require.Len(t, cols, 2)

		byName := map[string]int{}
		for i, c := range cols {
			byName[c.Name] = i
		}

		id := cols[byName["id"]]
		assert.Equal(t, "INT", id.Type.String())
		assert.True(t, id.PrimaryKey)
		assert.True(t, id.Autoincrement)
		assert.False(t, id.Nullable)
		assert.Equal(t, `nextval('"public".t_id_seq')`, id.Default)

		name := cols[byName["name"]]
		assert.Equal(t, "VARCHAR(256)", name.Type.String())
		assert.False(t, name.PrimaryKey)
		assert.True(t, name.Nullable)
		assert.Empty(t, name.Default)
	})

	t.Run("view", func(t *testing.T) {
		cols, err := d.Columns(ctx, conn, "v", "public")
		require.NoError(t, err)
		require.Len(t, cols, 1)
		assert.Equal(t, "id", cols[0].Name)
		assert.True(t, cols[0].Nullable)
		assert.False(t, cols[0].PrimaryKey)
	})

	t.Run("projection", func(t *testing.T) {
		cols, err := d.Columns(ctx, conn, "t_super", "public")
		require.NoError(t, err)
		require.Len(t, cols, 2)
		assert.Equal(t, "id", cols[0].Name)
		assert.Equal(t, "name", cols[1].Name)
	})

	t.Run("absent object yields no columns", func(t *testing.T) {
		cols, err := d.Columns(ctx, conn, "missing", "public")
		require.NoError(t, err)
		assert.Empty(t, cols)
	})
}

func TestConstraints(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	pk, err := d.PrimaryKey(ctx, conn, "t", "public")
	require.NoError(t, err)
	assert.Equal(t, "C_PRIMARY", pk.Name)
	assert.Equal(t, []string{"id"}, pk.Columns)

	pk, err = d.PrimaryKey(ctx, conn, "scratch", "public")
	require.NoError(t, err)
	assert.Empty(t, pk.Name)
	assert.Empty(t, pk.Columns)

	uniques, err := d.UniqueConstraints(ctx, conn, "t", "public")
	require.NoError(t, err)
	require.Len(t, uniques, 2)
	byName := map[string][]string{}
	for _, u := range uniques {
		byName[u.Name] = u.Columns
	}
	assert.Equal(t, []string{"id"}, byName["C_PRIMARY"])
	assert.Equal(t, []string{"tag", "name"}, byName["uq_tag"])

	checks, err := d.CheckConstraints(ctx, conn, "t", "public")
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, "C_CHECK", checks[0].Name)
	assert.Equal(t, "(id > 0)", checks[0].SQLText)

	_, err = d.CheckConstraints(ctx, conn, "missing", "public")
	assert.True(t, errors.Is(err, ErrNoSuchTable))

	fks, err := d.ForeignKeys(ctx, conn, "t", "public")
	require.NoError(t, err)
	assert.Empty(t, fks)

	indexes, err := d.Indexes(ctx, conn, "t", "public")
	require.NoError(t, err)
	assert.Empty(t, indexes)
}

func TestOwners(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	owners, err := d.Owners(ctx, conn, ObjectTable, "public")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"t": "dbadmin", "scratch": "dbadmin"}, owners)

	owners, err = d.Owners(ctx, conn, ObjectView, "public")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"v": "dbadmin"}, owners)

	owners, err = d.Owners(ctx, conn, ObjectProjection, "sales")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sales_p": "dbadmin"}, owners)

	_, err = d.Owners(ctx, conn, ObjectKind("sequence"), "public")
	assert.Error(t, err)
}

func TestProjectionDetails(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	count, err := d.ROSCount(ctx, conn, "T_SUPER", "public")
	require.NoError(t, err)
	assert.Equal(t, int64(14), count)

	count, err = d.ROSCount(ctx, conn, "missing", "public")
	require.NoError(t, err)
	assert.Zero(t, count)

	segmented, key, err := d.Segmentation(ctx, conn, "t_super", "public")
	require.NoError(t, err)
	assert.True(t, segmented)
	assert.Equal(t, "hash(t.id)", key)

	segmented, key, err = d.Segmentation(ctx, conn, "sales_p", "sales")
	require.NoError(t, err)
	assert.False(t, segmented)
	assert.Empty(t, key)

	types, err := d.ProjectionTypes(ctx, conn, "t_super", "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"is_super_projection"}, types)

	key, err = d.PartitionKey(ctx, conn, "t_super", "public")
	require.NoError(t, err)
	assert.Empty(t, key)

	count, err = d.PartitionCount(ctx, conn, "t_super", "public")
	require.NoError(t, err)
	assert.Zero(t, count)

	kb, err := d.ProjectionSizeKB(ctx, conn, "t_super", "public")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), kb)

	cached, err := d.ProjectionCached(ctx, conn, "t_super", "public")
	require.NoError(t, err)
	assert.True(t, cached)

	cached, err = d.ProjectionCached(ctx, conn, "sales_p", "sales")
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestFetchProjectionDetailsPartitioned(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, `INSERT INTO v_monitor.partitions VALUES
		('sales_p', '2023', 101), ('sales_p', '2024', 102)`)
	require.NoError(t, err)

	det, err := d.FetchProjectionDetails(ctx, conn, "sales_p", "sales")
	require.NoError(t, err)
	assert.Zero(t, det.ROSCount)
	assert.False(t, det.Segmented)
	assert.Equal(t, []string{"is_super_projection"}, det.Types)
	assert.Equal(t, "2023", det.PartitionKey)
	assert.Equal(t, int64(2), det.PartitionCount)
	assert.Zero(t, det.SizeKB)
	assert.False(t, det.Cached)
}

func TestSnapshot(t *testing.T) {
	d := New()
	conn := newCatalogDB(t)
	ctx := context.Background()

	cat, err := d.Snapshot(ctx, conn, "public")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"public", "sales"}, cat.Schemas)
	require.Len(t, cat.Tables, 2)
	assert.Equal(t, "scratch", cat.Tables[0].Name)
	assert.Equal(t, "t", cat.Tables[1].Name)
	assert.Len(t, cat.Tables[1].Columns, 2)
	require.NotNil(t, cat.Tables[1].Comment)
	assert.Equal(t, "3072 KB", cat.Tables[1].Comment.Properties["Total_Table_Size"])
	assert.Equal(t, []string{"v"}, cat.Views)
	assert.Equal(t, []string{"t_super"}, cat.Projections)
	assert.Empty(t, cat.Models)
}

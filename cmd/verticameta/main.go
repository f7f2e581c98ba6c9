package main

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"verticadialect/internal/db/dialects/vertica"
	"verticadialect/pkg/config"
)

var (
	cfgPath string
	dsn     string
	schema  string
	timeout int

	dialect = vertica.New()
)

// connect resolves the DSN from flags or the config file and dials it.
func connect(ctx context.Context) (*sql.DB, error) {
	target := dsn
	if target == "" && cfgPath != "" {
		cfg, err := config.LoadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		target, err = config.BuildDSN(cfg.Database)
		if err != nil {
			return nil, err
		}
		schema = cmp.Or(schema, cfg.Database.Schema)
	}
	if target == "" {
		return nil, fmt.Errorf("no connection target; pass --dsn or --config")
	}
	conn, err := sql.Open(vertica.DriverName, target)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// run dials the database and hands the connection to fn with a deadline.
func run(fn func(ctx context.Context, conn *sql.DB) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
		defer cancel()
		conn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		out, err := fn(ctx, conn)
		if err != nil {
			return err
		}
		enc, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(enc))
		return nil
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "verticameta",
		Short:         "Inspect Vertica catalog metadata",
		Long:          "verticameta reflects schemas, tables, columns, projections and ML models from a Vertica database and prints them as JSON.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config YAML")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "connection string (overrides config)")
	rootCmd.PersistentFlags().StringVar(&schema, "schema", "", "schema to reflect (empty = current schema)")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 10, "operation timeout in seconds")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "snapshot",
			Short: "Reflect the full catalog",
			RunE: run(func(ctx context.Context, conn *sql.DB) (any, error) {
				return dialect.Snapshot(ctx, conn, schema)
			}),
		},
		&cobra.Command{
			Use:   "schemas",
			Short: "List schema names",
			RunE: run(func(ctx context.Context, conn *sql.DB) (any, error) {
				return dialect.SchemaNames(ctx, conn)
			}),
		},
		&cobra.Command{
			Use:   "tables",
			Short: "List table names in a schema",
			RunE: run(func(ctx context.Context, conn *sql.DB) (any, error) {
				return dialect.TableNames(ctx, conn, schema)
			}),
		},
		&cobra.Command{
			Use:   "views",
			Short: "List view names in a schema",
			RunE: run(func(ctx context.Context, conn *sql.DB) (any, error) {
				return dialect.ViewNames(ctx, conn, schema)
			}),
		},
		&cobra.Command{
			Use:   "columns <table>",
			Short: "Describe the columns of a table, view or projection",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(func(ctx context.Context, conn *sql.DB) (any, error) {
					return dialect.Columns(ctx, conn, args[0], schema)
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "comment <table>",
			Short: "Show the synthesized comment for a table or view",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(func(ctx context.Context, conn *sql.DB) (any, error) {
					return dialect.TableComment(ctx, conn, args[0], schema)
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "projection <name>",
			Short: "Show projection details and comment",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(func(ctx context.Context, conn *sql.DB) (any, error) {
					return dialect.ProjectionComment(ctx, conn, args[0], schema, nil)
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "model <name>",
			Short: "Show ML model attributes and comment",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(func(ctx context.Context, conn *sql.DB) (any, error) {
					return dialect.ModelComment(ctx, conn, args[0], schema)
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "oauth [name]",
			Short: "Show OAuth authentication record properties",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				return run(func(ctx context.Context, conn *sql.DB) (any, error) {
					return dialect.OAuthComment(ctx, conn, name)
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "database-properties [name]",
			Short: "Show cluster-level database properties",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				return run(func(ctx context.Context, conn *sql.DB) (any, error) {
					return dialect.DatabaseProperties(ctx, conn, name), nil
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "schema-properties",
			Short: "Show projection and UDx properties of a schema",
			RunE: run(func(ctx context.Context, conn *sql.DB) (any, error) {
				return dialect.SchemaProperties(ctx, conn, schema), nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the server version",
			RunE: run(func(ctx context.Context, conn *sql.DB) (any, error) {
				v, err := dialect.ServerVersion(ctx, conn)
				if err != nil {
					return nil, err
				}
				return v.String(), nil
			}),
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

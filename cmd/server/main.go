package main

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"verticadialect/internal/db"
	"verticadialect/internal/db/dialects/vertica"
	"verticadialect/internal/introspect"
	"verticadialect/internal/logger"
	"verticadialect/pkg/config"
)

var (
	activeMu      sync.RWMutex
	activeDSN     string
	activeSchema  string
	activeTimeout = 10
	defaultPort   = 8080

	dialect = vertica.New()
)

// setActive sets the active database connection parameters.
func setActive(dsn, schema string, timeout int) {
	activeMu.Lock()
	defer activeMu.Unlock()
	activeDSN = dsn
	activeSchema = schema
	activeTimeout = timeout
}

// getActive returns the active database connection parameters.
func getActive() (string, string, int) {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return activeDSN, activeSchema, activeTimeout
}

// withConn dials the active database and hands the connection to fn.
func withConn(fn func(ctx context.Context, conn *sql.DB) error) error {
	dsn, _, timeout := getActive()
	if dsn == "" {
		return fmt.Errorf("no active connection; POST /api/connect to create one")
	}
	conn, err := sql.Open(vertica.DriverName, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return err
	}
	return fn(ctx, conn)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// schemaParam resolves the request's schema, falling back to the active one.
func schemaParam(r *http.Request) string {
	if s := r.URL.Query().Get("schema"); s != "" {
		return s
	}
	_, schema, _ := getActive()
	return schema
}

func main() {
	// flags
	cfgPath := flag.String("config", filepath.Join(".", "configs", "example.yaml"), "path to config YAML")
	dsnFlag := flag.String("dsn", "", "dsn override")
	schemaFlag := flag.String("schema", "", "default reflection schema (empty = current schema)")
	port := flag.Int("port", 0, fmt.Sprintf("http port (overrides config, default %d)", defaultPort))
	timeout := flag.Int("timeout", 10, "db connect timeout seconds")
	flag.Parse()

	// attempt to load config file (optional)
	var appCfg config.AppConfig
	if cfgPath != nil {
		logger.Info("config file %s", *cfgPath)
		if c, err := config.LoadFile(*cfgPath); err == nil {
			appCfg = c
		} else {
			logger.Error("error reading config file: %v", err)
		}
	}

	// allow CLI overrides
	if *dsnFlag != "" {
		setActive(*dsnFlag, cmp.Or(*schemaFlag, appCfg.Database.Schema), *timeout)
	} else if appCfg.Database.Dialect != "" || appCfg.Database.DSN != "" {
		dsn, err := config.BuildDSN(appCfg.Database)
		if err == nil {
			setActive(dsn, cmp.Or(*schemaFlag, appCfg.Database.Schema), *timeout)
		} else {
			logger.Error("error building DSN: %v", err)
		}
	}

	*port = cmp.Or(*port, appCfg.Server.Port, defaultPort)

	// connect endpoint: user requests DB params
	http.HandleFunc("/api/getConnect", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, struct {
			OK     bool            `json:"ok"`
			Config config.DBConfig `json:"config"`
		}{OK: true, Config: appCfg.Database})
	})

	// connect endpoint: user posts DB params to create/test connection
	http.HandleFunc("/api/connect", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var dbReq config.DBConfig
		if err := json.NewDecoder(r.Body).Decode(&dbReq); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		appCfg.Database = dbReq
		dsn, err := config.BuildDSN(dbReq)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// test connection and return the catalog on success
		cat, err := db.ConnectAndSnapshot(config.NormalizeDialect(cmp.Or(dbReq.Dialect, "vertica")), dsn, dbReq.Schema, *timeout)
		if err != nil {
			http.Error(w, "connection failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		// persist active connection
		setActive(dsn, dbReq.Schema, *timeout)

		writeJSON(w, struct {
			OK      bool               `json:"ok"`
			Catalog introspect.Catalog `json:"catalog"`
		}{OK: true, Catalog: cat})
	})

	// catalog endpoint uses the active connection
	http.HandleFunc("/api/catalog", func(w http.ResponseWriter, r *http.Request) {
		schema := schemaParam(r)
		err := withConn(func(ctx context.Context, conn *sql.DB) error {
			cat, err := dialect.Snapshot(ctx, conn, schema)
			if err != nil {
				return err
			}
			writeJSON(w, cat)
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	http.HandleFunc("/api/columns", func(w http.ResponseWriter, r *http.Request) {
		table := r.URL.Query().Get("table")
		if table == "" {
			http.Error(w, "missing table parameter", http.StatusBadRequest)
			return
		}
		err := withConn(func(ctx context.Context, conn *sql.DB) error {
			cols, err := dialect.Columns(ctx, conn, table, schemaParam(r))
			if err != nil {
				return err
			}
			writeJSON(w, cols)
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	http.HandleFunc("/api/projection", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "missing name parameter", http.StatusBadRequest)
			return
		}
		err := withConn(func(ctx context.Context, conn *sql.DB) error {
			comment, err := dialect.ProjectionComment(ctx, conn, name, schemaParam(r), nil)
			if err != nil {
				return err
			}
			writeJSON(w, comment)
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	http.HandleFunc("/api/model", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "missing name parameter", http.StatusBadRequest)
			return
		}
		err := withConn(func(ctx context.Context, conn *sql.DB) error {
			comment, err := dialect.ModelComment(ctx, conn, name, schemaParam(r))
			if err != nil {
				return err
			}
			writeJSON(w, comment)
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	http.HandleFunc("/api/oauth", func(w http.ResponseWriter, r *http.Request) {
		err := withConn(func(ctx context.Context, conn *sql.DB) error {
			comment, err := dialect.OAuthComment(ctx, conn, r.URL.Query().Get("name"))
			if err != nil {
				return err
			}
			writeJSON(w, comment)
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	// extended properties are best-effort; absent properties serve as null
	http.HandleFunc("/api/database-properties", func(w http.ResponseWriter, r *http.Request) {
		err := withConn(func(ctx context.Context, conn *sql.DB) error {
			writeJSON(w, dialect.DatabaseProperties(ctx, conn, r.URL.Query().Get("name")))
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	http.HandleFunc("/api/schema-properties", func(w http.ResponseWriter, r *http.Request) {
		err := withConn(func(ctx context.Context, conn *sql.DB) error {
			writeJSON(w, dialect.SchemaProperties(ctx, conn, schemaParam(r)))
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	// HTTP server
	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Info("listening on %s", addr)
	logger.Info("registered dialects: %v", db.Registered())
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("%v", err)
	}
}

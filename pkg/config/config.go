package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DBConfig identifies the database to reflect.
type DBConfig struct {
	Dialect      string `yaml:"dialect" json:"dialect"`
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	DatabaseName string `yaml:"database_name" json:"database_name"`
	Schema       string `yaml:"schema" json:"schema"`   // default reflection scope; empty = current schema
	TLSMode      string `yaml:"tlsmode" json:"tlsmode"` // none, server, server-strict
	DSN          string `yaml:"dsn" json:"dsn"`         // optional explicit DSN
}

type ServerConfig struct {
	Port int `yaml:"port" json:"port"`
}

type AppConfig struct {
	Database DBConfig     `yaml:"database" json:"database"`
	Server   ServerConfig `yaml:"server" json:"server"`
}

// LoadFile loads YAML config from path.
func LoadFile(path string) (AppConfig, error) {
	var cfg AppConfig
	f, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NormalizeDialect maps common aliases to the canonical registry key.
func NormalizeDialect(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "vertica", "vertica-sql-go", "vsql":
		return "vertica"
	default:
		return strings.ToLower(strings.TrimSpace(d))
	}
}

// BuildDSN produces a connection string for the configured database.
func BuildDSN(db DBConfig) (string, error) {
	if db.DSN != "" {
		return db.DSN, nil
	}
	if db.Host == "" || db.DatabaseName == "" {
		return "", fmt.Errorf("host and database_name are required when no dsn is given")
	}
	port := db.Port
	if port == 0 {
		port = 5433
	}
	tlsmode := db.TLSMode
	if tlsmode == "" {
		tlsmode = "none"
	}
	return fmt.Sprintf("vertica://%s:%s@%s:%d/%s?tlsmode=%s",
		db.Username, db.Password, db.Host, port, db.DatabaseName, tlsmode), nil
}

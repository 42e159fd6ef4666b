package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Config holds connection settings for any of the supported drivers. DSN, when
// set, wins over the individual fields.
type Config struct {
	Driver   string
	Path     string // SQLite file location
	DSN      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	Options  map[string]string
}

// Open connects to the configured database. An empty driver means SQLite,
// which is the default deployment for single-device installs.
func Open(cfg Config) (*gorm.DB, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return openSQLite(cfg)
	case "postgres", "postgresql":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Package dbconfig holds the DatabaseConfig shape and its per-backend
// connection variants. It is a leaf package so both internal/backend/factory
// and the root odm package (which re-exports these types) can depend on it
// without creating an import cycle through internal/alias.
package dbconfig

import (
	"time"

	"github.com/crossdeck/odm/internal/cache"
	"github.com/crossdeck/odm/internal/pool"
	"github.com/crossdeck/odm/internal/value"
)

// Kind discriminates which of the four backends a DatabaseConfig targets.
type Kind int

const (
	KindSqlite Kind = iota
	KindPostgres
	KindMySql
	KindMongo
)

func (k Kind) String() string {
	switch k {
	case KindSqlite:
		return "sqlite"
	case KindPostgres:
		return "postgres"
	case KindMySql:
		return "mysql"
	case KindMongo:
		return "mongo"
	default:
		return "unknown"
	}
}

// ConnConfig is the marker interface every connection variant implements,
// letting AddDatabase switch on Kind() without a type assertion chain.
type ConnConfig interface {
	Kind() Kind
}

// SqliteConn is the connection shape for the embedded SQLite backend.
type SqliteConn struct {
	Path            string
	CreateIfMissing bool
}

func (SqliteConn) Kind() Kind { return KindSqlite }

// PostgresConn and MySqlConn share a shape: both are networked SQL
// backends addressed by host/port/database/credentials.
type PostgresConn struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	TLS      bool
}

func (PostgresConn) Kind() Kind { return KindPostgres }

type MySqlConn struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	TLS      bool
}

func (MySqlConn) Kind() Kind { return KindMySql }

// MongoConn additionally carries document-store-specific dial options.
type MongoConn struct {
	Host             string
	Port             int
	Database         string
	Username         string
	Password         string
	AuthSource       string
	DirectConnection bool
	TLS              bool
	Compression      string
}

func (MongoConn) Kind() Kind { return KindMongo }

// DatabaseConfig is the full description of one alias: which backend, how
// to connect, the pool and optional cache tuning, and the id strategy new
// models on this alias default to.
type DatabaseConfig struct {
	Alias      string
	Connection ConnConfig
	Pool       pool.Config
	Cache      *cache.Config
	IdStrategy value.IdStrategy
}

// DefaultPoolConfig is the conservative, static pool tuning the root
// package's DefaultPoolConfig exposes. The alias directory does not read it:
// a zero-valued Pool falls back to internal/config's resolved defaults.
func DefaultPoolConfig() pool.Config {
	return pool.Config{
		MinConns:           1,
		MaxConns:           8,
		AcquireTimeout:     5 * time.Second,
		IdleTimeout:        5 * time.Minute,
		MaxLifetime:        30 * time.Minute,
		MaxRetries:         3,
		RetryInterval:      200 * time.Millisecond,
		KeepaliveInterval:  30 * time.Second,
		HealthCheckTimeout: 2 * time.Second,
	}
}

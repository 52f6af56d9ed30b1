// Package factory dispatches a dbconfig.DatabaseConfig to the concrete
// backend.Adapter constructor for its Kind, the same "one interface, a
// map of constructors" shape a backend registry uses elsewhere in this
// codebase, generalized from a map lookup to a type switch since there are
// only four backends and each needs a differently shaped Config.
package factory

import (
	"context"
	"fmt"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/backend/mongo"
	"github.com/crossdeck/odm/internal/backend/mysql"
	"github.com/crossdeck/odm/internal/backend/postgres"
	"github.com/crossdeck/odm/internal/backend/sqlite"
	"github.com/crossdeck/odm/internal/dbconfig"
	"github.com/crossdeck/odm/internal/odmerr"
)

// Open builds and connects the concrete backend.Adapter described by cfg.
func Open(ctx context.Context, cfg dbconfig.DatabaseConfig) (backend.Adapter, error) {
	switch conn := cfg.Connection.(type) {
	case dbconfig.SqliteConn:
		return sqlite.Open(cfg.Alias, conn.Path)

	case dbconfig.MySqlConn:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", conn.Username, conn.Password, conn.Host, conn.Port, conn.Database)
		return mysql.Open(cfg.Alias, mysql.Config{
			DSN:          dsn,
			MaxOpenConns: cfg.Pool.MaxConns,
			MaxIdleConns: cfg.Pool.MinConns,
		})

	case dbconfig.PostgresConn:
		sslmode := "disable"
		if conn.TLS {
			sslmode = "require"
		}
		url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			conn.Username, conn.Password, conn.Host, conn.Port, conn.Database, sslmode)
		return postgres.Open(ctx, cfg.Alias, postgres.Config{
			URL:             url,
			MaxOpenConns:    cfg.Pool.MaxConns,
			MaxIdleConns:    cfg.Pool.MinConns,
			ConnMaxLifetime: cfg.Pool.MaxLifetime,
		})

	case dbconfig.MongoConn:
		uri := mongoURI(conn)
		return mongo.Open(ctx, cfg.Alias, mongo.Config{URI: uri, Database: conn.Database})

	default:
		return nil, odmerr.Newf(odmerr.KindConfigError, "unknown connection config type %T", cfg.Connection).WithAlias(cfg.Alias)
	}
}

func mongoURI(conn dbconfig.MongoConn) string {
	scheme := "mongodb"
	auth := ""
	if conn.Username != "" {
		auth = fmt.Sprintf("%s:%s@", conn.Username, conn.Password)
	}
	uri := fmt.Sprintf("%s://%s%s:%d/%s", scheme, auth, conn.Host, conn.Port, conn.Database)
	sep := "?"
	if conn.AuthSource != "" {
		uri += sep + "authSource=" + conn.AuthSource
		sep = "&"
	}
	if conn.DirectConnection {
		uri += sep + "directConnection=true"
		sep = "&"
	}
	if conn.Compression != "" {
		uri += sep + "compressors=" + conn.Compression
	}
	return uri
}

package odm

import (
	"github.com/crossdeck/odm/internal/cache"
	"github.com/crossdeck/odm/internal/dbconfig"
	"github.com/crossdeck/odm/internal/pool"
	"github.com/crossdeck/odm/internal/value"
)

// DatabaseConfig and its connection variants are re-exports of
// internal/dbconfig's types: the real definitions live there so
// internal/backend/factory can build connection strings from them without
// this package (which depends on internal/alias) creating an import cycle.
type (
	DatabaseConfig   = dbconfig.DatabaseConfig
	SqliteConn       = dbconfig.SqliteConn
	PostgresConn     = dbconfig.PostgresConn
	MySqlConn        = dbconfig.MySqlConn
	MongoConn        = dbconfig.MongoConn
	PoolConfig       = pool.Config
	CacheConfig      = cache.Config
	EvictionStrategy = cache.EvictionStrategy
	IdStrategy       = value.IdStrategy
)

// Cache eviction strategies, re-exported so a caller building a CacheConfig
// doesn't need to import internal/cache directly.
const (
	EvictionLFU  = cache.EvictionLFU
	EvictionLRU  = cache.EvictionLRU
	EvictionFIFO = cache.EvictionFIFO
)

// IdStrategy kinds, re-exported for callers building a DatabaseConfig or
// ModelMeta without reaching into internal/value directly.
const (
	StrategyAutoIncrement = value.StrategyAutoIncrement
	StrategyUuid          = value.StrategyUuid
	StrategySnowflake     = value.StrategySnowflake
	StrategyObjectId      = value.StrategyObjectId
	StrategyCustomPrefix  = value.StrategyCustomPrefix
)

// DefaultPoolConfig returns a conservative, static pool tuning for a caller
// that sets DatabaseConfig.Pool explicitly. A Pool left zero-valued does not
// use it: AddDatabase falls back to the ambient defaults resolved at startup
// (built-in values, an optional odm.yaml file, ODM_ environment variables).
func DefaultPoolConfig() PoolConfig {
	return dbconfig.DefaultPoolConfig()
}

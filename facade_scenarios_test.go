package odm_test

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdeck/odm"
	"github.com/crossdeck/odm/internal/backend/sqlite"
	"github.com/crossdeck/odm/internal/value"
)

func usersMeta() *odm.ModelMeta {
	return odm.NewModelMeta("users", "s", "id", odm.IdStrategy{Kind: odm.StrategyAutoIncrement}, []odm.NamedField{
		{Name: "id", Def: odm.FieldDefinition{Type: odm.IntegerType{}}},
		{Name: "name", Def: odm.FieldDefinition{Type: odm.StringType{MaxLen: intPtr(50)}}},
		{Name: "age", Def: odm.FieldDefinition{Type: odm.IntegerType{}}},
		{Name: "is_active", Def: odm.FieldDefinition{Type: odm.BooleanType{}}},
	}, nil)
}

// S1 — auto-register, insert, query on SQLite. Boolean-from-int coercion
// means is_active comes back as a true bool, and a case-insensitive
// condition matches regardless of the stored casing.
func TestScenarioAutoRegisterInsertQuerySQLite(t *testing.T) {
	ctx := context.Background()
	o := odm.New(nil)
	defer o.Close()

	require.NoError(t, o.AddDatabase(ctx, odm.DatabaseConfig{
		Alias:      "s",
		Connection: odm.SqliteConn{Path: ":memory:"},
		Pool:       odm.DefaultPoolConfig(),
	}))
	require.NoError(t, o.RegisterModel(ctx, usersMeta()))

	id, err := o.Create(ctx, "users", odm.Record{
		"name": odm.String("Ada"), "age": odm.Int(36), "is_active": odm.Bool(true),
	})
	require.NoError(t, err)
	n, ok := id.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 1, n)

	recs, err := o.Find(ctx, "users", []odm.QueryCondition{
		{Field: "name", Operator: odm.OpEq, Value: odm.String("ADA"), CaseInsensitive: true},
	}, odm.FindOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	active, ok := recs[0]["is_active"].AsBool()
	require.True(t, ok)
	assert.True(t, active)
}

// S3 (SQLite half) — under IdStrategy::ObjectId, a backend with no native
// ObjectId type still returns a 24-hex String id that round-trips through
// UpdateByID, matching the shape MongoDB's own ObjectId renders as.
func TestScenarioObjectIdParitySQLite(t *testing.T) {
	ctx := context.Background()
	o := odm.New(nil)
	defer o.Close()

	meta := odm.NewModelMeta("docs", "s", "id", odm.IdStrategy{Kind: odm.StrategyObjectId}, []odm.NamedField{
		{Name: "id", Def: odm.FieldDefinition{Type: odm.ObjectIdType{}}},
		{Name: "title", Def: odm.FieldDefinition{Type: odm.StringType{}}},
	}, nil)

	require.NoError(t, o.AddDatabase(ctx, odm.DatabaseConfig{
		Alias:      "s",
		Connection: odm.SqliteConn{Path: ":memory:"},
		Pool:       odm.DefaultPoolConfig(),
	}))
	require.NoError(t, o.RegisterModel(ctx, meta))

	id, err := o.Create(ctx, "docs", odm.Record{"title": odm.String("draft")})
	require.NoError(t, err)
	assert.Equal(t, value.KindObjectId, id.Kind())
	s, ok := id.AsString()
	require.True(t, ok)
	assert.Len(t, s, 24)

	ok2, err := o.UpdateByID(ctx, "docs", id, odm.Record{"title": odm.String("final")})
	require.NoError(t, err)
	assert.True(t, ok2)

	rec, found, err := o.FindByID(ctx, "docs", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "final", rec["title"].String())
	assert.Equal(t, value.KindObjectId, rec["id"].Kind())
}

// S4 — cache bypass. find_with_cache_control(bypass=true) observes a
// write made out of band through a second, directly opened adapter against
// the same file, while the cached plain find keeps returning the stale
// value and the bypass read doesn't poison the cache for later callers.
func TestScenarioCacheBypassObservesOutOfBandWrite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "s4.db")

	o := odm.New(nil)
	defer o.Close()
	require.NoError(t, o.AddDatabase(ctx, odm.DatabaseConfig{
		Alias:      "s",
		Connection: odm.SqliteConn{Path: dbPath},
		Pool:       odm.DefaultPoolConfig(),
		Cache: &odm.CacheConfig{
			Eviction: odm.EvictionLRU, MaxCapacity: 100, MaxMemoryMB: 8, DefaultTTL: time.Minute,
		},
	}))
	require.NoError(t, o.RegisterModel(ctx, usersMeta()))

	id, err := o.Create(ctx, "users", odm.Record{"name": odm.String("grace"), "age": odm.Int(40), "is_active": odm.Bool(true)})
	require.NoError(t, err)

	rec, found, err := o.FindByID(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "grace", rec["name"].String())

	direct, err := sqlite.Open("s4-direct", dbPath)
	require.NoError(t, err)
	defer direct.Close()
	// The direct adapter has its own (empty) model map, and UpdateByID needs
	// the collection's meta to know the id field; the table already exists,
	// so this only registers the meta.
	require.NoError(t, direct.CreateTable(ctx, "users", usersMeta()))
	ok, err := direct.UpdateByID(ctx, "users", id, map[string]odm.Value{"name": odm.String("hopper")})
	require.NoError(t, err)
	require.True(t, ok)

	stale, found, err := o.FindByID(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "grace", stale["name"].String(), "cached read must not see the out-of-band write")

	fresh, found, err := o.FindByIDWithCacheControl(ctx, "users", id, true)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hopper", fresh["name"].String())

	afterBypass, found, err := o.FindByID(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "grace", afterBypass["name"].String(), "a bypassed read must not repopulate the cache")
}

// S6 — ordering under contention. 100 concurrent creates against one alias,
// then a sorted find returns them in strict sequence order, demonstrating
// the single-worker-per-alias linearization.
func TestScenarioOrderingUnderContention(t *testing.T) {
	ctx := context.Background()
	o := odm.New(nil)
	defer o.Close()

	meta := odm.NewModelMeta("k", "s", "id", odm.IdStrategy{Kind: odm.StrategyAutoIncrement}, []odm.NamedField{
		{Name: "id", Def: odm.FieldDefinition{Type: odm.IntegerType{}}},
		{Name: "seq", Def: odm.FieldDefinition{Type: odm.IntegerType{}}},
	}, nil)

	require.NoError(t, o.AddDatabase(ctx, odm.DatabaseConfig{
		Alias:      "s",
		Connection: odm.SqliteConn{Path: ":memory:"},
		Pool:       odm.DefaultPoolConfig(),
	}))
	require.NoError(t, o.RegisterModel(ctx, meta))

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(seq int) {
			defer wg.Done()
			_, err := o.Create(ctx, "k", odm.Record{"seq": odm.Int(int64(seq))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	recs, err := o.Find(ctx, "k", nil, odm.FindOptions{
		Sort: []odm.SortField{{Field: "seq", Direction: odm.SortAscending}},
	})
	require.NoError(t, err)
	require.Len(t, recs, n)

	got := make([]int64, n)
	for i, r := range recs {
		v, _ := r["seq"].AsInt()
		got[i] = v
	}
	want := make([]int64, n)
	for i := range want {
		want[i] = int64(i)
	}
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }))
	assert.Equal(t, want, got)
}

func intPtr(n int) *int { return &n }

// Package postgres implements the backend.Adapter trait against PostgreSQL
// via database/sql and jackc/pgx/v5's stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Adapter is the backend.Adapter implementation for Postgres.
type Adapter struct {
	db    *sql.DB
	alias string

	lock   *backend.TableLock
	states *backend.StateTracker

	mu    sync.RWMutex
	metas map[string]*model.ModelMeta
}

// Config holds the usual database/sql connection-pool knobs
// (MaxOpenConns/MaxIdleConns/ConnMaxLifetime) as a per-alias setting.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open calls sql.Open("pgx", ...), applies pool settings, then pings with
// a bounded timeout to fail fast on a bad DSN.
func Open(ctx context.Context, alias string, cfg Config) (*Adapter, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, odmerr.Wrap(odmerr.KindConfigError, err, "failed to open postgres database").WithAlias(alias)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, odmerr.Wrap(odmerr.KindTransportError, err, "failed to ping postgres database").WithAlias(alias)
	}

	return &Adapter{
		db:     db,
		alias:  alias,
		lock:   backend.NewTableLock(),
		states: backend.NewStateTracker(),
		metas:  make(map[string]*model.ModelMeta),
	}, nil
}

func (a *Adapter) fieldType(collection, field string) value.FieldType {
	a.mu.RLock()
	defer a.mu.RUnlock()
	meta, ok := a.metas[collection]
	if !ok {
		return nil
	}
	def, ok := meta.Field(field)
	if !ok {
		return nil
	}
	return def.Type
}

func (a *Adapter) Close() error { return a.db.Close() }

func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.db.QueryRowContext(ctx, "show server_version").Scan(&version); err != nil {
		return "", odmerr.Wrap(odmerr.KindTransportError, err, "server_version").WithAlias(a.alias)
	}
	return version, nil
}

func columnType(ft value.FieldType, isID bool, strategy value.IdStrategy) string {
	switch ft.Kind() {
	case value.FieldInteger:
		if isID && strategy.Kind == value.StrategyAutoIncrement {
			return "BIGSERIAL"
		}
		return "BIGINT"
	case value.FieldFloat:
		return "DOUBLE PRECISION"
	case value.FieldBoolean:
		return "BOOLEAN"
	case value.FieldDateTime:
		return "TIMESTAMPTZ"
	case value.FieldUuid:
		return "UUID"
	case value.FieldObjectId:
		return "CHAR(24)"
	case value.FieldJson, value.FieldArray, value.FieldObject:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (a *Adapter) CreateTable(ctx context.Context, collection string, meta *model.ModelMeta) error {
	release := a.lock.Acquire(ctx, a.alias, collection)
	defer release()

	a.states.Set(collection, backend.StateCreating)

	var cols []string
	for _, name := range meta.FieldNames() {
		def, _ := meta.Field(name)
		col := fmt.Sprintf("%s %s", backend.DoubleQuoteIdent(name), columnType(def.Type, name == meta.IdField, meta.IdStrategy))
		if name == meta.IdField {
			col += " PRIMARY KEY"
		} else if def.Required {
			col += " NOT NULL"
		}
		if def.Unique {
			col += " UNIQUE"
		}
		cols = append(cols, col)
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", backend.DoubleQuoteIdent(collection), strings.Join(cols, ", "))
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		a.states.Set(collection, backend.StateUnknown)
		return backend.WrapDDLError("create_table", collection, err)
	}

	for _, idx := range meta.Indexes {
		if err := a.createIndexLocked(ctx, collection, idx.Name, idx.Fields, idx.Unique); err != nil {
			a.states.Set(collection, backend.StateUnknown)
			return err
		}
	}

	a.mu.Lock()
	a.metas[collection] = meta
	a.mu.Unlock()

	a.states.Set(collection, backend.StateReady)
	return nil
}

func (a *Adapter) CreateIndex(ctx context.Context, collection, name string, fields []string, unique bool) error {
	release := a.lock.Acquire(ctx, a.alias, collection)
	defer release()
	return a.createIndexLocked(ctx, collection, name, fields, unique)
}

func (a *Adapter) createIndexLocked(ctx context.Context, collection, name string, fields []string, unique bool) error {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = backend.DoubleQuoteIdent(f)
	}
	uniq := ""
	if unique {
		uniq = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		uniq, backend.DoubleQuoteIdent(name), backend.DoubleQuoteIdent(collection), strings.Join(cols, ", "))
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		return odmerr.Wrap(odmerr.KindSchemaError, err, "create_index").WithCollection(collection).WithField(name)
	}
	return nil
}

func (a *Adapter) TableExists(ctx context.Context, collection string) (bool, error) {
	if a.states.IsReady(collection) {
		return true, nil
	}
	var name string
	err := a.db.QueryRowContext(ctx,
		"select tablename from pg_catalog.pg_tables where schemaname = current_schema() and tablename = $1", collection).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, backend.WrapRowError("table_exists", collection, err)
	}
	a.states.Set(collection, backend.StateReady)
	return true, nil
}

func (a *Adapter) DropTable(ctx context.Context, collection string) error {
	release := a.lock.Acquire(ctx, a.alias, collection)
	defer release()

	if _, err := a.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", backend.DoubleQuoteIdent(collection))); err != nil {
		return backend.WrapDDLError("drop_table", collection, err)
	}
	a.states.Set(collection, backend.StateDropped)
	a.mu.Lock()
	delete(a.metas, collection)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) ensureReady(ctx context.Context, collection string) error {
	exists, err := a.TableExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return odmerr.TableNotExist(collection)
	}
	return nil
}

func (a *Adapter) Create(ctx context.Context, collection string, record backend.Record) (value.Value, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return value.Value{}, err
	}
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()

	var cols []string
	var args []any
	for name, v := range record {
		if v.IsNull() && name == meta.IdField && meta.IdStrategy.Kind == value.StrategyAutoIncrement {
			continue
		}
		driverVal, err := encodeValue(v, a.fieldType(collection, name))
		if err != nil {
			return value.Value{}, err
		}
		cols = append(cols, name)
		args = append(args, driverVal)
	}

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = backend.DoubleQuoteIdent(c)
		placeholders[i] = backend.DollarPlaceholder(i + 1)
	}

	idQuoted := backend.DoubleQuoteIdent(meta.IdField)
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		backend.DoubleQuoteIdent(collection), strings.Join(quoted, ", "), strings.Join(placeholders, ", "), idQuoted)

	var idRaw any
	if err := a.db.QueryRowContext(ctx, stmt, args...).Scan(&idRaw); err != nil {
		return value.Value{}, backend.WrapWriteError("create", collection, err, isPostgresConstraintError)
	}

	return decodeValue(idRaw, a.fieldType(collection, meta.IdField))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (a *Adapter) scanRow(row rowScanner, cols []string, collection string) (backend.Record, error) {
	dest := make([]any, len(cols))
	raw := make([]any, len(cols))
	for i := range dest {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec := make(backend.Record, len(cols))
	for i, c := range cols {
		v, err := decodeValue(raw[i], a.fieldType(collection, c))
		if err != nil {
			return nil, err
		}
		rec[c] = v
	}
	return rec, nil
}

func (a *Adapter) FindByID(ctx context.Context, collection string, id value.Value) (backend.Record, bool, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return nil, false, err
	}
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()

	idDriver, err := encodeValue(id, a.fieldType(collection, meta.IdField))
	if err != nil {
		return nil, false, err
	}

	cols := meta.FieldNames()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = backend.DoubleQuoteIdent(c)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(quoted, ", "), backend.DoubleQuoteIdent(collection), backend.DoubleQuoteIdent(meta.IdField))

	row := a.db.QueryRowContext(ctx, stmt, idDriver)
	rec, err := a.scanRow(row, cols, collection)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backend.WrapRowError("find_by_id", collection, err)
	}
	return rec, true, nil
}

func (a *Adapter) Find(ctx context.Context, collection string, conditions []backend.QueryCondition, opts backend.FindOptions) ([]backend.Record, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return nil, err
	}
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()

	cols := meta.FieldNames()
	if len(opts.Projection) > 0 {
		cols = opts.Projection
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = backend.DoubleQuoteIdent(c)
	}

	where, args, err := backend.BuildWhereClause(conditions, backend.DollarPlaceholder, 1, backend.DoubleQuoteIdent, "~", a.encodeCondition(collection), a.jsonContains)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), backend.DoubleQuoteIdent(collection))
	if where != "" {
		stmt += " WHERE " + where
	}
	stmt += backend.BuildOrderBy(opts.Sort, backend.DoubleQuoteIdent)
	if opts.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Skip > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", opts.Skip)
	}

	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, odmerr.Wrap(odmerr.KindTransportError, err, "find").WithCollection(collection).WithRetryable(true)
	}
	defer rows.Close()

	var out []backend.Record
	for rows.Next() {
		rec, err := a.scanRow(rows, cols, collection)
		if err != nil {
			return nil, odmerr.Wrap(odmerr.KindTransportError, err, "find").WithCollection(collection).WithRetryable(true)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *Adapter) Update(ctx context.Context, collection string, conditions []backend.QueryCondition, patch backend.Record) (int64, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return 0, err
	}

	var sets []string
	var args []any
	idx := 1
	for name, v := range patch {
		driverVal, err := encodeValue(v, a.fieldType(collection, name))
		if err != nil {
			return 0, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", backend.DoubleQuoteIdent(name), backend.DollarPlaceholder(idx)))
		args = append(args, driverVal)
		idx++
	}

	where, whereArgs, err := backend.BuildWhereClause(conditions, backend.DollarPlaceholder, idx, backend.DoubleQuoteIdent, "~", a.encodeCondition(collection), a.jsonContains)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	stmt := fmt.Sprintf("UPDATE %s SET %s", backend.DoubleQuoteIdent(collection), strings.Join(sets, ", "))
	if where != "" {
		stmt += " WHERE " + where
	}

	res, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, backend.WrapWriteError("update", collection, err, isPostgresConstraintError)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, odmerr.Wrap(odmerr.KindInternal, err, "update: failed to read affected rows").WithCollection(collection)
	}
	return n, nil
}

func (a *Adapter) UpdateByID(ctx context.Context, collection string, id value.Value, patch backend.Record) (bool, error) {
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()
	if meta == nil {
		return false, odmerr.TableNotExist(collection)
	}
	n, err := a.Update(ctx, collection, []backend.QueryCondition{{Field: meta.IdField, Operator: backend.OpEq, Value: id}}, patch)
	return n > 0, err
}

func (a *Adapter) Delete(ctx context.Context, collection string, conditions []backend.QueryCondition) (int64, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return 0, err
	}

	where, args, err := backend.BuildWhereClause(conditions, backend.DollarPlaceholder, 1, backend.DoubleQuoteIdent, "~", a.encodeCondition(collection), a.jsonContains)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("DELETE FROM %s", backend.DoubleQuoteIdent(collection))
	if where != "" {
		stmt += " WHERE " + where
	}

	res, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, odmerr.Wrap(odmerr.KindTransportError, err, "delete").WithCollection(collection).WithRetryable(true)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, odmerr.Wrap(odmerr.KindInternal, err, "delete: failed to read affected rows").WithCollection(collection)
	}
	return n, nil
}

func (a *Adapter) DeleteByID(ctx context.Context, collection string, id value.Value) (bool, error) {
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()
	if meta == nil {
		return false, odmerr.TableNotExist(collection)
	}
	n, err := a.Delete(ctx, collection, []backend.QueryCondition{{Field: meta.IdField, Operator: backend.OpEq, Value: id}})
	return n > 0, err
}

func (a *Adapter) Count(ctx context.Context, collection string, conditions []backend.QueryCondition) (int64, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return 0, err
	}

	where, args, err := backend.BuildWhereClause(conditions, backend.DollarPlaceholder, 1, backend.DoubleQuoteIdent, "~", a.encodeCondition(collection), a.jsonContains)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s", backend.DoubleQuoteIdent(collection))
	if where != "" {
		stmt += " WHERE " + where
	}

	var n int64
	if err := a.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, odmerr.Wrap(odmerr.KindTransportError, err, "count").WithCollection(collection).WithRetryable(true)
	}
	return n, nil
}

func (a *Adapter) Exists(ctx context.Context, collection string, conditions []backend.QueryCondition) (bool, error) {
	n, err := a.Count(ctx, collection, conditions)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func isPostgresConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23") // class 23: integrity constraint violation
}

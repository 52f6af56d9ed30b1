// Package sqlite implements the backend.Adapter trait against an embedded
// SQLite database via modernc.org/sqlite, the pure-Go driver registered
// under database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"

	_ "modernc.org/sqlite"
)

// Adapter is the backend.Adapter implementation for SQLite.
type Adapter struct {
	db    *sql.DB
	alias string

	lock   *backend.TableLock
	states *backend.StateTracker

	mu    sync.RWMutex
	metas map[string]*model.ModelMeta
}

// Open creates an Adapter for the given SQLite file path (or ":memory:"),
// building the DSN via ConnString.
func Open(alias, path string) (*Adapter, error) {
	db, err := sql.Open("sqlite", ConnString(path))
	if err != nil {
		return nil, odmerr.Wrap(odmerr.KindConfigError, err, "failed to open sqlite database").WithAlias(alias)
	}
	db.SetMaxOpenConns(1) // SQLite serializes writers anyway; the worker already serializes per alias.

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

func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.db.QueryRowContext(ctx, "select sqlite_version()").Scan(&version); err != nil {
		return "", odmerr.Wrap(odmerr.KindTransportError, err, "server_version").WithAlias(a.alias)
	}
	return version, nil
}

// columnType maps a FieldType to its SQLite storage affinity.
func columnType(ft value.FieldType) string {
	switch ft.Kind() {
	case value.FieldInteger, value.FieldBoolean, value.FieldDateTime:
		return "INTEGER"
	case value.FieldFloat:
		return "REAL"
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
		col := fmt.Sprintf("%s %s", backend.DoubleQuoteIdent(name), columnType(def.Type))
		if name == meta.IdField {
			col += " PRIMARY KEY"
			if def.Type.Kind() == value.FieldInteger && meta.IdStrategy.Kind == value.StrategyAutoIncrement {
				col += " AUTOINCREMENT"
			}
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
		"select name from sqlite_master where type = 'table' and name = ?", collection).Scan(&name)
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

	var cols, placeholders []string
	var args []any
	for name, v := range record {
		if v.IsNull() && name == meta.IdField && meta.IdStrategy.Kind == value.StrategyAutoIncrement {
			continue // let SQLite assign the rowid
		}
		ft := a.fieldType(collection, name)
		driverVal, err := encodeValue(v, ft)
		if err != nil {
			return value.Value{}, err
		}
		cols = append(cols, backend.DoubleQuoteIdent(name))
		placeholders = append(placeholders, "?")
		args = append(args, driverVal)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		backend.DoubleQuoteIdent(collection), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	res, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return value.Value{}, backend.WrapWriteError("create", collection, err, isSQLiteConstraintError)
	}

	if idv, ok := record[meta.IdField]; ok && !idv.IsNull() {
		return idv, nil
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return value.Value{}, odmerr.Wrap(odmerr.KindInternal, err, "create: failed to read assigned id").WithCollection(collection)
	}
	return value.Int(lastID), nil
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
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(quoted, ", "), backend.DoubleQuoteIdent(collection), backend.DoubleQuoteIdent(meta.IdField))

	row := a.db.QueryRowContext(ctx, stmt, idDriver)
	rec, err := a.scanRow(row, cols, collection, meta)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backend.WrapRowError("find_by_id", collection, err)
	}
	return rec, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (a *Adapter) scanRow(row rowScanner, cols []string, collection string, meta *model.ModelMeta) (backend.Record, error) {
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

	where, args, err := backend.BuildWhereClause(conditions, backend.QuestionPlaceholder, 1, backend.DoubleQuoteIdent, "", a.encodeCondition(collection), nil)
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
		if opts.Limit <= 0 {
			stmt += " LIMIT -1"
		}
		stmt += fmt.Sprintf(" OFFSET %d", opts.Skip)
	}

	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, odmerr.Wrap(odmerr.KindTransportError, err, "find").WithCollection(collection).WithRetryable(true)
	}
	defer rows.Close()

	var out []backend.Record
	for rows.Next() {
		rec, err := a.scanRow(rows, cols, collection, meta)
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
	for name, v := range patch {
		driverVal, err := encodeValue(v, a.fieldType(collection, name))
		if err != nil {
			return 0, err
		}
		sets = append(sets, fmt.Sprintf("%s = ?", backend.DoubleQuoteIdent(name)))
		args = append(args, driverVal)
	}

	where, whereArgs, err := backend.BuildWhereClause(conditions, backend.QuestionPlaceholder, 1, backend.DoubleQuoteIdent, "", a.encodeCondition(collection), nil)
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
		return 0, backend.WrapWriteError("update", collection, err, isSQLiteConstraintError)
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

	where, args, err := backend.BuildWhereClause(conditions, backend.QuestionPlaceholder, 1, backend.DoubleQuoteIdent, "", a.encodeCondition(collection), nil)
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

	where, args, err := backend.BuildWhereClause(conditions, backend.QuestionPlaceholder, 1, backend.DoubleQuoteIdent, "", a.encodeCondition(collection), nil)
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

// isSQLiteConstraintError recognizes modernc.org/sqlite's constraint error
// text (UNIQUE, NOT NULL, FOREIGN KEY, CHECK), fed into backend.WrapWriteError
// to classify SQLite write failures.
func isSQLiteConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "NOT NULL constraint") ||
		strings.Contains(msg, "FOREIGN KEY constraint") ||
		strings.Contains(msg, "CHECK constraint")
}

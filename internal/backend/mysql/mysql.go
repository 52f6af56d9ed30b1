// Package mysql implements the backend.Adapter trait against MySQL via
// database/sql and the go-sql-driver/mysql driver.
package mysql

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

	_ "github.com/go-sql-driver/mysql"
)

// Adapter is the backend.Adapter implementation for MySQL.
type Adapter struct {
	db    *sql.DB
	alias string

	lock   *backend.TableLock
	states *backend.StateTracker

	mu    sync.RWMutex
	metas map[string]*model.ModelMeta
}

// Config is the subset of connection settings the ODM's DatabaseConfig
// exposes for a MySQL alias.
type Config struct {
	DSN             string // e.g. "user:pass@tcp(host:3306)/dbname?parseTime=true"
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds, 0 means unbounded
}

func Open(alias string, cfg Config) (*Adapter, error) {
	dsn := cfg.DSN
	if !strings.Contains(dsn, "parseTime=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, odmerr.Wrap(odmerr.KindConfigError, err, "failed to open mysql database").WithAlias(alias)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
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
	if err := a.db.QueryRowContext(ctx, "select version()").Scan(&version); err != nil {
		return "", odmerr.Wrap(odmerr.KindTransportError, err, "server_version").WithAlias(a.alias)
	}
	return version, nil
}

func columnType(ft value.FieldType) string {
	switch ft.Kind() {
	case value.FieldInteger:
		return "BIGINT"
	case value.FieldFloat:
		return "DOUBLE"
	case value.FieldBoolean:
		return "TINYINT(1)"
	case value.FieldDateTime:
		return "DATETIME(6)"
	case value.FieldUuid:
		return "CHAR(36)"
	case value.FieldObjectId:
		return "CHAR(24)"
	case value.FieldJson, value.FieldArray, value.FieldObject:
		return "JSON"
	case value.FieldString:
		st, _ := ft.(value.StringType)
		if st.MaxLen != nil && *st.MaxLen <= 255 {
			return fmt.Sprintf("VARCHAR(%d)", *st.MaxLen)
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

// mysqlIndexKeyByteLimit is InnoDB's maximum combined key length for the
// DYNAMIC/COMPRESSED row formats this adapter creates tables with (1024
// bytes for the older COMPACT/REDUNDANT formats, per MySQL's own docs;
// crossdeck/odm always targets the larger modern limit).
const mysqlIndexKeyByteLimit = 3072

// mysqlBytesPerChar is the worst-case per-character byte width under
// utf8mb4, the charset every table in this adapter is created with. A
// VARCHAR(n) column's max_len is a character count, not a byte count, so
// the byte-sum check below multiplies by this to stay conservative for
// four-byte characters (emoji, rare CJK) rather than undercounting.
const mysqlBytesPerChar = 4

// checkIndexable rejects, at registration time, a composite index this
// adapter cannot actually build: one over a JSON-typed field, an
// unbounded string field, or whose declared string fields collectively
// exceed InnoDB's key-length limit once each is converted to its
// worst-case byte width.
func (a *Adapter) checkIndexable(meta *model.ModelMeta, idx model.IndexDef) error {
	if len(idx.Fields) <= 1 {
		return nil
	}
	totalBytes := 0
	for _, f := range idx.Fields {
		def, _ := meta.Field(f)
		if def.Type.Kind() == value.FieldJson || def.Type.Kind() == value.FieldArray || def.Type.Kind() == value.FieldObject {
			return odmerr.New(odmerr.KindSchemaError, "composite index cannot reference a JSON-typed field on mysql").WithCollection(meta.Collection).WithField(f)
		}
		if def.Type.Kind() == value.FieldString {
			st, _ := def.Type.(value.StringType)
			if st.MaxLen == nil {
				return odmerr.New(odmerr.KindSchemaError, "composite index requires a bounded max_len on every string field on mysql").WithCollection(meta.Collection).WithField(f)
			}
			totalBytes += *st.MaxLen * mysqlBytesPerChar
		}
	}
	if totalBytes > mysqlIndexKeyByteLimit {
		return odmerr.Newf(odmerr.KindSchemaError,
			"composite index's string fields sum to %d bytes, exceeding mysql's %d-byte key-length limit",
			totalBytes, mysqlIndexKeyByteLimit).WithCollection(meta.Collection).WithField(idx.Name)
	}
	return nil
}

func (a *Adapter) CreateTable(ctx context.Context, collection string, meta *model.ModelMeta) error {
	release := a.lock.Acquire(ctx, a.alias, collection)
	defer release()

	a.states.Set(collection, backend.StateCreating)

	var cols []string
	for _, name := range meta.FieldNames() {
		def, _ := meta.Field(name)
		col := fmt.Sprintf("%s %s", backend.BacktickIdent(name), columnType(def.Type))
		if name == meta.IdField {
			col += " PRIMARY KEY"
			if def.Type.Kind() == value.FieldInteger && meta.IdStrategy.Kind == value.StrategyAutoIncrement {
				col += " AUTO_INCREMENT"
			}
		} else if def.Required {
			col += " NOT NULL"
		}
		if def.Unique {
			col += " UNIQUE"
		}
		cols = append(cols, col)
	}

	for _, idx := range meta.Indexes {
		if err := a.checkIndexable(meta, idx); err != nil {
			a.states.Set(collection, backend.StateUnknown)
			return err
		}
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", backend.BacktickIdent(collection), strings.Join(cols, ", "))
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
		cols[i] = backend.BacktickIdent(f)
	}
	uniq := ""
	if unique {
		uniq = "UNIQUE "
	}
	// MySQL has no "CREATE INDEX IF NOT EXISTS"; duplicate-key errors are
	// swallowed since registration is idempotent by design.
	stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		uniq, backend.BacktickIdent(name), backend.BacktickIdent(collection), strings.Join(cols, ", "))
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		if strings.Contains(err.Error(), "Duplicate key name") {
			return nil
		}
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
		"select table_name from information_schema.tables where table_schema = database() and table_name = ?", collection).Scan(&name)
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

	if _, err := a.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", backend.BacktickIdent(collection))); err != nil {
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
			continue
		}
		driverVal, err := encodeValue(v, a.fieldType(collection, name))
		if err != nil {
			return value.Value{}, err
		}
		cols = append(cols, backend.BacktickIdent(name))
		placeholders = append(placeholders, "?")
		args = append(args, driverVal)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		backend.BacktickIdent(collection), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	res, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return value.Value{}, backend.WrapWriteError("create", collection, err, isMySQLConstraintError)
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
		quoted[i] = backend.BacktickIdent(c)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(quoted, ", "), backend.BacktickIdent(collection), backend.BacktickIdent(meta.IdField))

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
		quoted[i] = backend.BacktickIdent(c)
	}

	where, args, err := backend.BuildWhereClause(conditions, backend.QuestionPlaceholder, 1, backend.BacktickIdent, "REGEXP", a.encodeCondition(collection), a.jsonContains)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), backend.BacktickIdent(collection))
	if where != "" {
		stmt += " WHERE " + where
	}
	stmt += backend.BuildOrderBy(opts.Sort, backend.BacktickIdent)
	if opts.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Skip > 0 {
			stmt += fmt.Sprintf(" OFFSET %d", opts.Skip)
		}
	} else if opts.Skip > 0 {
		stmt += fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", opts.Skip)
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
	for name, v := range patch {
		driverVal, err := encodeValue(v, a.fieldType(collection, name))
		if err != nil {
			return 0, err
		}
		sets = append(sets, fmt.Sprintf("%s = ?", backend.BacktickIdent(name)))
		args = append(args, driverVal)
	}

	where, whereArgs, err := backend.BuildWhereClause(conditions, backend.QuestionPlaceholder, 1, backend.BacktickIdent, "REGEXP", a.encodeCondition(collection), a.jsonContains)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	stmt := fmt.Sprintf("UPDATE %s SET %s", backend.BacktickIdent(collection), strings.Join(sets, ", "))
	if where != "" {
		stmt += " WHERE " + where
	}

	res, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, backend.WrapWriteError("update", collection, err, isMySQLConstraintError)
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

	where, args, err := backend.BuildWhereClause(conditions, backend.QuestionPlaceholder, 1, backend.BacktickIdent, "REGEXP", a.encodeCondition(collection), a.jsonContains)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("DELETE FROM %s", backend.BacktickIdent(collection))
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

	where, args, err := backend.BuildWhereClause(conditions, backend.QuestionPlaceholder, 1, backend.BacktickIdent, "REGEXP", a.encodeCondition(collection), a.jsonContains)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s", backend.BacktickIdent(collection))
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

// isMySQLConstraintError recognizes go-sql-driver/mysql's *mysql.MySQLError
// duplicate-key and constraint failure codes without importing the driver's
// internal error type, matching on message text instead.
func isMySQLConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "cannot be null") ||
		strings.Contains(msg, "foreign key constraint")
}

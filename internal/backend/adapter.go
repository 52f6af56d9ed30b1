// Package backend defines the neutral Adapter trait every concrete
// backend (SQLite, MySQL, Postgres, MongoDB) implements, plus the
// cross-backend mechanics shared by all four: the per-table creation
// lock, the table state machine, and the TableNotExistError unification.
package backend

import (
	"context"

	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/value"
)

// Operator enumerates the comparison/match operators a QueryCondition may
// use. JsonContains is only implemented on Postgres and MongoDB; MySQL and
// SQLite adapters return UnsupportedOperator for it.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNotIn
	OpContains
	OpStartsWith
	OpEndsWith
	OpRegex
	OpExists
	OpIsNull
	OpIsNotNull
	OpJsonContains
)

// QueryCondition is one predicate in a find/update/delete/count/exists
// call.
type QueryCondition struct {
	Field           string
	Operator        Operator
	Value           value.Value
	CaseInsensitive bool
}

// SortDirection orders a FindOptions.Sort entry.
type SortDirection int

const (
	SortAscending SortDirection = iota
	SortDescending
)

type SortField struct {
	Field     string
	Direction SortDirection
}

// FindOptions controls pagination, ordering and field projection for find.
type FindOptions struct {
	Sort       []SortField
	Skip       int64
	Limit      int64
	Projection []string
}

// Record is a field-name to ValueDomain mapping decoded from one stored
// row/document.
type Record = map[string]value.Value

// Adapter is the flat interface every backend implements — one interface,
// N concrete structs, never an inheritance hierarchy.
type Adapter interface {
	Create(ctx context.Context, collection string, record Record) (value.Value, error)
	FindByID(ctx context.Context, collection string, id value.Value) (Record, bool, error)
	Find(ctx context.Context, collection string, conditions []QueryCondition, opts FindOptions) ([]Record, error)
	Update(ctx context.Context, collection string, conditions []QueryCondition, patch Record) (int64, error)
	UpdateByID(ctx context.Context, collection string, id value.Value, patch Record) (bool, error)
	Delete(ctx context.Context, collection string, conditions []QueryCondition) (int64, error)
	DeleteByID(ctx context.Context, collection string, id value.Value) (bool, error)
	Count(ctx context.Context, collection string, conditions []QueryCondition) (int64, error)
	Exists(ctx context.Context, collection string, conditions []QueryCondition) (bool, error)

	CreateTable(ctx context.Context, collection string, meta *model.ModelMeta) error
	CreateIndex(ctx context.Context, collection, name string, fields []string, unique bool) error
	TableExists(ctx context.Context, collection string) (bool, error)
	DropTable(ctx context.Context, collection string) error
	ServerVersion(ctx context.Context) (string, error)

	Close() error
}

package odm

import "github.com/crossdeck/odm/internal/backend"

// Query condition/result shapes, re-exported from internal/backend so a
// caller building a Find call never needs to import internal/ directly.
type (
	Operator       = backend.Operator
	QueryCondition = backend.QueryCondition
	SortDirection  = backend.SortDirection
	SortField      = backend.SortField
	FindOptions    = backend.FindOptions
	Record         = backend.Record
)

const (
	OpEq           = backend.OpEq
	OpNe           = backend.OpNe
	OpGt           = backend.OpGt
	OpGte          = backend.OpGte
	OpLt           = backend.OpLt
	OpLte          = backend.OpLte
	OpIn           = backend.OpIn
	OpNotIn        = backend.OpNotIn
	OpContains     = backend.OpContains
	OpStartsWith   = backend.OpStartsWith
	OpEndsWith     = backend.OpEndsWith
	OpRegex        = backend.OpRegex
	OpExists       = backend.OpExists
	OpIsNull       = backend.OpIsNull
	OpIsNotNull    = backend.OpIsNotNull
	OpJsonContains = backend.OpJsonContains
)

const (
	SortAscending  = backend.SortAscending
	SortDescending = backend.SortDescending
)

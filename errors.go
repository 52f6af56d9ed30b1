package odm

import "github.com/crossdeck/odm/internal/odmerr"

// Error and ErrorKind are thin re-exports of internal/odmerr's taxonomy:
// every failure the Facade returns is an *Error, regardless of which layer
// (pool, worker, adapter, cache) originated it.
type (
	Error     = odmerr.Error
	ErrorKind = odmerr.Kind
)

const (
	ErrConfigError         = odmerr.KindConfigError
	ErrAliasNotFound       = odmerr.KindAliasNotFound
	ErrAliasExists         = odmerr.KindAliasExists
	ErrModelConflict       = odmerr.KindModelConflict
	ErrUnknownField        = odmerr.KindUnknownField
	ErrInvalidValue        = odmerr.KindInvalidValue
	ErrSchemaError         = odmerr.KindSchemaError
	ErrTableNotExist       = odmerr.KindTableNotExist
	ErrConstraintViolation = odmerr.KindConstraintViolation
	ErrPoolExhausted       = odmerr.KindPoolExhausted
	ErrQueueFull           = odmerr.KindQueueFull
	ErrTimeout             = odmerr.KindTimeout
	ErrCancelled           = odmerr.KindCancelled
	ErrTransportError      = odmerr.KindTransportError
	ErrClockSkew           = odmerr.KindClockSkew
	ErrUnsupportedOperator = odmerr.KindUnsupportedOperator
	ErrSerializationError  = odmerr.KindSerializationError
	ErrInternal            = odmerr.KindInternal
)

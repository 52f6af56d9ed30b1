// Package odmerr defines the single error taxonomy shared by every internal
// package and re-exported from the module root, so that a caller can
// errors.As against one *Error type regardless of which layer produced it.
package odmerr

import "fmt"

// Kind is a stable identifier for a class of failure, per the propagation
// policy: transport and pool errors may be retried inside the worker;
// everything else surfaces to the caller unchanged.
type Kind int

const (
	KindConfigError Kind = iota
	KindAliasNotFound
	KindAliasExists
	KindModelConflict
	KindUnknownField
	KindInvalidValue
	KindSchemaError
	KindTableNotExist
	KindConstraintViolation
	KindPoolExhausted
	KindQueueFull
	KindTimeout
	KindCancelled
	KindTransportError
	KindClockSkew
	KindUnsupportedOperator
	KindSerializationError
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfigError:
		return "ConfigError"
	case KindAliasNotFound:
		return "AliasNotFound"
	case KindAliasExists:
		return "AliasExists"
	case KindModelConflict:
		return "ModelConflict"
	case KindUnknownField:
		return "UnknownField"
	case KindInvalidValue:
		return "InvalidValue"
	case KindSchemaError:
		return "SchemaError"
	case KindTableNotExist:
		return "TableNotExistError"
	case KindConstraintViolation:
		return "ConstraintViolation"
	case KindPoolExhausted:
		return "PoolExhausted"
	case KindQueueFull:
		return "QueueFull"
	case KindTimeout:
		return "Timeout"
	case KindCancelled:
		return "Cancelled"
	case KindTransportError:
		return "TransportError"
	case KindClockSkew:
		return "ClockSkew"
	case KindUnsupportedOperator:
		return "UnsupportedOperator"
	case KindSerializationError:
		return "SerializationError"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the single error type produced anywhere in the ODM. Collection
// and Field are populated when the failure can be attributed to a specific
// model field, e.g. UnknownField or TableNotExistError.
type Error struct {
	Kind       Kind
	Message    string
	Alias      string
	Collection string
	Field      string
	Cause      error

	// Retryable marks transport/pool failures the worker may retry up to
	// its configured max_retries before surfacing to the caller.
	Retryable bool
}

func (e *Error) Error() string {
	switch {
	case e.Collection != "" && e.Field != "":
		return fmt.Sprintf("%s: %s (collection=%s field=%s)", e.Kind, e.Message, e.Collection, e.Field)
	case e.Collection != "":
		return fmt.Sprintf("%s: %s (collection=%s)", e.Kind, e.Message, e.Collection)
	case e.Alias != "":
		return fmt.Sprintf("%s: %s (alias=%s)", e.Kind, e.Message, e.Alias)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, odmerr.New(Kind, "")) style sentinel checks by
// comparing Kind alone, ignoring message/fields/cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) WithAlias(alias string) *Error {
	e.Alias = alias
	return e
}

func (e *Error) WithCollection(collection string) *Error {
	e.Collection = collection
	return e
}

func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// TableNotExist builds the one error kind the propagation policy calls out
// by name: unified across backends, terminal for the operation, and a
// signal to the caller to register the model or insert first.
func TableNotExist(collection string) *Error {
	return &Error{
		Kind:       KindTableNotExist,
		Message:    "table does not exist for collection",
		Collection: collection,
	}
}

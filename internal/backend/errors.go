package backend

import (
	"database/sql"
	"errors"

	"github.com/crossdeck/odm/internal/odmerr"
)

// WrapRowError normalizes sql.ErrNoRows and any other driver error raised
// by a single-row fetch into the shared taxonomy, with an "op: wrap(err)"
// shape. Exported so the sqlite, mysql, and postgres adapter subpackages
// share one classification.
func WrapRowError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil // callers treat "not found" as (zero value, false, nil), not an error
	}
	return odmerr.Wrap(odmerr.KindTransportError, err, op).WithCollection(collection).WithRetryable(true)
}

// WrapWriteError classifies a write-path driver error into
// ConstraintViolation (not retried) or TransportError (retried):
// constraint violations are never retried, since retrying a unique or
// foreign-key conflict just fails the same way again.
func WrapWriteError(op, collection string, err error, isConstraintViolation func(error) bool) error {
	if err == nil {
		return nil
	}
	if isConstraintViolation != nil && isConstraintViolation(err) {
		return odmerr.Wrap(odmerr.KindConstraintViolation, err, op).WithCollection(collection)
	}
	return odmerr.Wrap(odmerr.KindTransportError, err, op).WithCollection(collection).WithRetryable(true)
}

// WrapDDLError classifies a DDL-path driver error as SchemaError. DDL
// errors (type mismatch, oversize index) are not retried.
func WrapDDLError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	return odmerr.Wrap(odmerr.KindSchemaError, err, op).WithCollection(collection)
}

package backend

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TableLock serializes CREATE TABLE/CREATE INDEX issuance per (alias,
// collection): before issuing DDL, the adapter acquires a mutex keyed on
// (alias, collection) to prevent duplicate CREATE TABLE under concurrent
// auto-registration. The lock is process-local; no cross-process
// coordination is in scope here.
type TableLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTableLock() *TableLock {
	return &TableLock{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the (alias, collection) lock is held, recording how
// long the caller waited as lockWaitMs and wrapping the wait in a span so a
// slow table-creation race is visible in a trace, not just a metric.
func (t *TableLock) Acquire(ctx context.Context, alias, collection string) func() {
	ctx, span := tableLockTracer.Start(ctx, "backend.TableLock.Acquire")
	defer span.End()

	key := alias + "\x00" + collection

	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()

	start := time.Now()
	l.Lock()
	waitMs := float64(time.Since(start).Milliseconds())
	tableLockMetrics.lockWaitMs.Record(ctx, waitMs, metric.WithAttributes(
		attribute.String("db.collection", collection),
		attribute.String("db.alias", alias),
	))

	return l.Unlock
}

var tableLockTracer = otel.Tracer("github.com/crossdeck/odm/internal/backend")

var tableLockMetrics struct {
	lockWaitMs metric.Float64Histogram
}

func init() {
	m := otel.Meter("github.com/crossdeck/odm/internal/backend")
	tableLockMetrics.lockWaitMs, _ = m.Float64Histogram("odm.table_lock.wait_ms",
		metric.WithDescription("Time spent waiting to acquire a per-(alias,collection) table creation lock"),
		metric.WithUnit("ms"),
	)
}

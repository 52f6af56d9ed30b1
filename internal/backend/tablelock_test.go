package backend

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTableLockSerializesSameKey(t *testing.T) {
	lock := NewTableLock()
	var inCriticalSection int32
	var maxObserved int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := lock.Acquire(context.Background(), "default", "users")
			defer release()

			n := atomic.AddInt32(&inCriticalSection, 1)
			for {
				max := atomic.LoadInt32(&maxObserved)
				if n <= max || atomic.CompareAndSwapInt32(&maxObserved, max, n) {
					break
				}
			}
			atomic.AddInt32(&inCriticalSection, -1)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxObserved, "at most one goroutine should hold the (alias, collection) lock at a time")
}

func TestTableLockDoesNotSerializeDifferentKeys(t *testing.T) {
	lock := NewTableLock()
	releaseA := lock.Acquire(context.Background(), "default", "users")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := lock.Acquire(context.Background(), "default", "orders")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different (alias, collection) keys should not contend")
	}
}

func TestStateTrackerTransitions(t *testing.T) {
	st := NewStateTracker()
	assert.Equal(t, StateUnknown, st.Get("users"))

	st.Set("users", StateCreating)
	assert.Equal(t, StateCreating, st.Get("users"))
	assert.False(t, st.IsReady("users"))

	st.Set("users", StateReady)
	assert.True(t, st.IsReady("users"))

	st.Set("users", StateDropped)
	assert.False(t, st.IsReady("users"))
}

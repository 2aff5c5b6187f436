package blobkeep

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyLock_ExclusivePerKey(t *testing.T) {
	l := newKeyLock()

	var active, maxActive int32
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("same")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, l.size())
}

func TestKeyLock_DifferentKeysIndependent(t *testing.T) {
	l := newKeyLock()

	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyLock_ReadersShare(t *testing.T) {
	l := newKeyLock()

	unlock1 := l.RLock("k")
	done := make(chan struct{})
	go func() {
		unlock2 := l.RLock("k")
		unlock2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked")
	}
	unlock1()

	assert.Equal(t, 0, l.size())
}

func TestKeyLock_WriterWaitsForReader(t *testing.T) {
	l := newKeyLock()

	unlockR := l.RLock("k")

	acquired := make(chan struct{})
	go func() {
		unlock := l.Lock("k")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("writer acquired while reader held the key")
	case <-time.After(50 * time.Millisecond):
	}

	unlockR()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("writer never acquired")
	}
}

func TestKeyLock_EntriesReleased(t *testing.T) {
	l := newKeyLock()

	for _, key := range []string{"a", "b", "c"} {
		unlock := l.Lock(key)
		assert.Equal(t, 1, l.size())
		unlock()
	}

	assert.Equal(t, 0, l.size())
}

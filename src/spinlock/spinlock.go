// Package spinlock provides the kernel's per-structure spinlock primitive:
// atomic test-and-set with a PAUSE hint, for user code that shares kernel
// structures across tasks (§4.H).
package spinlock

import (
	"runtime"
	"sync/atomic"
)

// Lock is a minimal spinlock built on a single flag word.
type Lock struct {
	flag uint32
}

// Acquire spins until the lock is taken, yielding the CPU via a PAUSE-style
// hint (runtime.Gosched, the closest a hosted Go program can come to the
// x86 PAUSE instruction) between attempts.
func (l *Lock) Acquire() {
	for !atomic.CompareAndSwapUint32(&l.flag, 0, 1) {
		runtime.Gosched()
	}
}

// Release frees the lock.
func (l *Lock) Release() {
	atomic.StoreUint32(&l.flag, 0)
}

// TryAcquire attempts to take the lock without spinning, reporting success.
func (l *Lock) TryAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.flag, 0, 1)
}

package mps

import "sync"

// fakeVM is a pure-Go vmProvider used by tests and by platforms without
// a real mmap/mprotect binding. It never touches actual page tables; it
// just remembers which ranges are "protected" so that higher layers
// (Shield) can still be exercised and checked without requiring a real
// OS-backed arena. This is the in-memory fallback allows a
// client to substitute for the real virtual-memory provider.
type fakeVM struct {
	mu     sync.Mutex
	next   Addr
	protect map[Addr]Protect // base -> mode, recorded per Protect call
}

// fakeVMBase is an arbitrary non-zero base so that Addr(0) keeps its
// meaning as "null" throughout the collector.
const fakeVMBase = Addr(0x10000)

func newFakeVM() *fakeVM {
	return &fakeVM{next: fakeVMBase, protect: make(map[Addr]Protect)}
}

func (v *fakeVM) Reserve(size uintptr) (Addr, Res) {
	v.mu.Lock()
	defer v.mu.Unlock()
	base := v.next
	v.next += Addr(size)
	return base, ResOK
}

func (v *fakeVM) Release(base Addr, size uintptr) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.protect, base)
}

func (v *fakeVM) Protect(base Addr, size uintptr, mode Protect) Res {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.protect[base] = mode
	return ResOK
}

package mps

import "testing"

// helpers_test.go provides small fixtures shared across this package's
// tests: a fakeVM-backed arena constructor and a minimal Format that
// tracks object layout in a side table, the same technique
// bitmapformat.go documents for working over an address space that
// need not be backed by real memory.

func newTestArena(tb testing.TB) *Arena {
	tb.Helper()
	a, res := ArenaCreate(ArenaOptions{Size: 1 << 20, GrainSize: 4096, VM: newFakeVM()})
	if res != ResOK {
		tb.Fatalf("ArenaCreate: %v", res)
	}
	return a
}

// testObj is one object's payload for testFormat: a fixed slot of
// references (the only thing a test ever needs to check) and a total
// size in bytes so Skip/Scan stay correct independent of how many of
// those slots are populated.
type testObj struct {
	refs []Addr
	size uintptr
}

// testFormat is a Format whose objects live in a Go map keyed by
// address rather than in real memory, exactly as bitmapformat.go's
// BitmapFormat does and for the same reason.
type testFormat struct {
	objs      map[Addr]*testObj
	alignment uintptr
}

func newTestFormat(alignment uintptr) *testFormat {
	return &testFormat{objs: make(map[Addr]*testObj), alignment: alignment}
}

// put records an object of the given size (in bytes) at addr, with refs
// as its scannable reference slots.
func (f *testFormat) put(addr Addr, size uintptr, refs ...Addr) {
	f.objs[addr] = &testObj{refs: refs, size: size}
}

func (f *testFormat) HeaderSize() uintptr { return 0 }
func (f *testFormat) Alignment() uintptr  { return f.alignment }

func (f *testFormat) Scan(ss *ScanState, base, limit Addr) Res {
	for addr := base; addr < limit; {
		obj, ok := f.objs[addr]
		if !ok {
			addr += Addr(f.alignment)
			continue
		}
		for i := range obj.refs {
			if res := ss.FixRef(&obj.refs[i]); res != ResOK {
				return res
			}
		}
		addr += Addr(obj.size)
	}
	return ResOK
}

func (f *testFormat) Skip(addr Addr) Addr {
	if obj, ok := f.objs[addr]; ok {
		return addr + Addr(obj.size)
	}
	return addr + Addr(f.alignment)
}

func (f *testFormat) Pad(base Addr, size uintptr) {
	delete(f.objs, base)
}

func (f *testFormat) refsOf(addr Addr) []Addr {
	if obj, ok := f.objs[addr]; ok {
		return obj.refs
	}
	return nil
}

func (f *testFormat) has(addr Addr) bool {
	_, ok := f.objs[addr]
	return ok
}

package mps

import "sort"

// Arena owns a virtual address space split into grain-aligned segments,
//. It is the sole owner of every Segment and Trace; pools
// exclusively own their segments' per-class payloads.
type Arena struct {
	grainSize uintptr
	reserved  uintptr
	committed uintptr
	base      Addr

	vm     vmProvider
	shield *Shield

	pools []*Pool
	roots []*Root

	// segments is kept sorted by base address across every pool, for
	// the O(log n) point query requires.
	segments []*Segment

	busyTraces    TraceSet
	flippedTraces TraceSet
	traces        [MaxTraces]*Trace

	messages MessageQueue

	parked bool

	poolSerial int

	// emergency marks the arena as out of memory mid-trace: once set,
	// every Fix dispatch uses the pool class's FixEmergency method,
	// which must not allocate and must always succeed.
	emergency bool
}

// ArenaOptions configures ArenaCreate; see config.go for the YAML-backed
// Options type these are usually derived from.
type ArenaOptions struct {
	Size      uintptr
	GrainSize uintptr
	VM        vmProvider // nil selects the platform default
}

// ArenaCreate creates an arena with the given reservation size and grain
// size.
func ArenaCreate(opts ArenaOptions) (*Arena, Res) {
	if opts.GrainSize == 0 || (opts.GrainSize&(opts.GrainSize-1)) != 0 {
		return nil, ResPARAM
	}
	if opts.Size == 0 {
		return nil, ResPARAM
	}
	vm := opts.VM
	if vm == nil {
		vm = newDefaultVM()
	}
	size := alignUp(opts.Size, opts.GrainSize)
	base, res := vm.Reserve(size)
	if res != ResOK {
		return nil, res
	}
	a := &Arena{
		grainSize: opts.GrainSize,
		reserved:  size,
		base:      base,
		vm:        vm,
		parked:    true,
	}
	a.shield = newShield(a)
	return a, ResOK
}

// Destroy destroys the arena. All pools must already be destroyed.
func (a *Arena) Destroy() Res {
	if len(a.pools) != 0 {
		return ResFAIL
	}
	a.vm.Release(a.base, a.reserved)
	return ResOK
}

// GrainSize returns the arena's grain alignment.
func (a *Arena) GrainSize() uintptr { return a.grainSize }

// ArenaCommitted returns the total memory committed from the OS.
func (a *Arena) ArenaCommitted() uintptr { return a.committed }

// ArenaHasAddr reports whether addr falls within some segment owned by
// some pool of the arena, including the requirement that the null
// address never has an owning segment.
func (a *Arena) ArenaHasAddr(addr Addr) bool {
	if addr == 0 {
		return false
	}
	_, ok := a.find(addr)
	return ok
}

// Park prevents background collector activity so the client can safely
// call a walker. Release resumes it. Both are required bracketing calls
// around ArenaFormattedObjectsWalk / ArenaRootsWalk / PoolWalk; since
// this module runs no background threads, Park/Release only toggle a
// flag that the walkers check.
func (a *Arena) Park() { a.parked = true }
func (a *Arena) Release() { a.parked = false }
func (a *Arena) IsParked() bool { return a.parked }

func (a *Arena) addSegment(seg *Segment) {
	i := sort.Search(len(a.segments), func(i int) bool {
		return a.segments[i].base >= seg.base
	})
	a.segments = append(a.segments, nil)
	copy(a.segments[i+1:], a.segments[i:])
	a.segments[i] = seg
}

func (a *Arena) removeSegment(seg *Segment) {
	i := sort.Search(len(a.segments), func(i int) bool {
		return a.segments[i].base >= seg.base
	})
	if i < len(a.segments) && a.segments[i] == seg {
		a.segments = append(a.segments[:i], a.segments[i+1:]...)
	}
}

// find locates the segment owning addr by binary search, satisfying
// "address→segment is a total partial function over
// committed addresses", in O(log n).
func (a *Arena) find(addr Addr) (*Segment, bool) {
	segs := a.segments
	i := sort.Search(len(segs), func(i int) bool {
		return segs[i].limit > addr
	})
	if i < len(segs) && segs[i].base <= addr && addr < segs[i].limit {
		return segs[i], true
	}
	return nil, false
}

// Segments returns every segment in the arena in address order.
func (a *Arena) Segments() []*Segment {
	out := make([]*Segment, len(a.segments))
	copy(out, a.segments)
	return out
}

// Messages exposes the arena's message queue.
func (a *Arena) Messages() *MessageQueue { return &a.messages }

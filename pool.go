package mps

// FormattedObjectsVisitor is the callback shape used by walkers,
//: (object, format, pool, closure).
type FormattedObjectsVisitor func(object Addr, format Format, pool *Pool, closure any)

// PoolClass is the pool-class vtable, rendered in Go as an interface
// rather than a C vtable. Each concrete class embeds
// UnimplementedPoolClass and overrides only the methods it supports --
// missing operations default to no-op or not-supported.
type PoolClass interface {
	Name() string

	BufferFill(pool *Pool, buf *Buffer, size uintptr) (base, limit Addr, res Res)
	BufferEmpty(pool *Pool, buf *Buffer, init, limit Addr)

	Whiten(pool *Pool, trace *Trace, seg *Segment) Res
	Grey(pool *Pool, trace *Trace, seg *Segment)
	Blacken(pool *Pool, traces TraceSet, seg *Segment)
	Scan(pool *Pool, ss *ScanState, seg *Segment) (total bool, res Res)
	Fix(pool *Pool, ss *ScanState, seg *Segment, refIO *Ref) Res
	FixEmergency(pool *Pool, ss *ScanState, seg *Segment, refIO *Ref) Res
	Reclaim(pool *Pool, trace *Trace, seg *Segment)

	Walk(pool *Pool, seg *Segment, format Format, fn FormattedObjectsVisitor, closure any)
	Access(pool *Pool, seg *Segment, addr Addr, mode Protect) Res

	// Merge joins segHi into segLo, which must immediately precede it
	// in the same pool; segHi is destroyed. Split divides seg at
	// address at into two segments, shrinking seg to [seg.base, at)
	// and returning a new segment covering [at, seg.limit). Both
	// default to ResUNIMPL: most pool classes have no notion of
	// coalescing or dividing their segments' colour tables.
	Merge(pool *Pool, segLo, segHi *Segment) Res
	Split(pool *Pool, seg *Segment, at Addr) (*Segment, Res)

	FramePush(pool *Pool, buf *Buffer) (AllocFrame, Res)
	FramePop(pool *Pool, buf *Buffer, frame AllocFrame) Res

	TotalSize(pool *Pool) uintptr
	FreeSize(pool *Pool) uintptr
	Describe(pool *Pool) string
}

// UnimplementedPoolClass gives every PoolClass method a "not supported"
// or no-op body. Concrete classes embed this and
// override the subset they implement.
type UnimplementedPoolClass struct{}

func (UnimplementedPoolClass) Name() string { return "unimplemented" }

func (UnimplementedPoolClass) BufferFill(pool *Pool, buf *Buffer, size uintptr) (Addr, Addr, Res) {
	return 0, 0, ResUNIMPL
}
func (UnimplementedPoolClass) BufferEmpty(pool *Pool, buf *Buffer, init, limit Addr) {}

func (UnimplementedPoolClass) Whiten(pool *Pool, trace *Trace, seg *Segment) Res { return ResOK }
func (UnimplementedPoolClass) Grey(pool *Pool, trace *Trace, seg *Segment)       {}
func (UnimplementedPoolClass) Blacken(pool *Pool, traces TraceSet, seg *Segment) {}
func (UnimplementedPoolClass) Scan(pool *Pool, ss *ScanState, seg *Segment) (bool, Res) {
	return true, ResOK
}
func (UnimplementedPoolClass) Fix(pool *Pool, ss *ScanState, seg *Segment, refIO *Ref) Res {
	return ResUNIMPL
}
func (c UnimplementedPoolClass) FixEmergency(pool *Pool, ss *ScanState, seg *Segment, refIO *Ref) Res {
	return c.Fix(pool, ss, seg, refIO)
}
func (UnimplementedPoolClass) Reclaim(pool *Pool, trace *Trace, seg *Segment) {}

func (UnimplementedPoolClass) Walk(pool *Pool, seg *Segment, format Format, fn FormattedObjectsVisitor, closure any) {
}
func (UnimplementedPoolClass) Access(pool *Pool, seg *Segment, addr Addr, mode Protect) Res {
	return ResUNIMPL
}

func (UnimplementedPoolClass) Merge(pool *Pool, segLo, segHi *Segment) Res { return ResUNIMPL }
func (UnimplementedPoolClass) Split(pool *Pool, seg *Segment, at Addr) (*Segment, Res) {
	return nil, ResUNIMPL
}

func (UnimplementedPoolClass) FramePush(pool *Pool, buf *Buffer) (AllocFrame, Res) {
	return FrameBottom, ResUNIMPL
}
func (UnimplementedPoolClass) FramePop(pool *Pool, buf *Buffer, frame AllocFrame) Res {
	return ResUNIMPL
}

func (UnimplementedPoolClass) TotalSize(pool *Pool) uintptr { return 0 }
func (UnimplementedPoolClass) FreeSize(pool *Pool) uintptr  { return 0 }
func (UnimplementedPoolClass) Describe(pool *Pool) string   { return "" }

// GenDesc describes one generation in a condemn-set chain.
// CapacityBytes and MortalityRate are configuration (config.go),
// never invented thresholds.
type GenDesc struct {
	CapacityBytes  uintptr
	MortalityRate  float64
	newSize        uintptr // bytes allocated into this generation since last collection
}

// Pool owns a slice of segments and a format, dispatching through class.
type Pool struct {
	arena     *Arena
	class     PoolClass
	format    Format
	alignment uintptr

	segs    []*Segment
	buffers []*Buffer

	chain []*GenDesc

	name string
}

// PoolOptions configures PoolCreate.
type PoolOptions struct {
	Format    Format
	Alignment uintptr
	Chain     []*GenDesc
	Name      string
}

// PoolCreate creates a pool of the given class in arena
// poolCreate(arena, class, options).
func PoolCreate(arena *Arena, class PoolClass, opts PoolOptions) (*Pool, Res) {
	alignment := opts.Alignment
	if alignment == 0 {
		alignment = arena.grainSize
	}
	p := &Pool{
		arena:     arena,
		class:     class,
		format:    opts.Format,
		alignment: alignment,
		chain:     opts.Chain,
		name:      opts.Name,
	}
	arena.pools = append(arena.pools, p)
	return p, ResOK
}

// PoolDestroy removes every segment of the pool from the arena and then
// removes the pool from the arena's pool list. It does not detach or
// destroy the pool's buffers.
func (p *Pool) PoolDestroy() Res {
	for _, seg := range p.segs {
		p.arena.removeSegment(seg)
	}
	p.segs = nil
	pools := p.arena.pools
	for i, other := range pools {
		if other == p {
			p.arena.pools = append(pools[:i], pools[i+1:]...)
			break
		}
	}
	return ResOK
}

func (p *Pool) Arena() *Arena   { return p.arena }
func (p *Pool) Format() Format  { return p.format }
func (p *Pool) Alignment() uintptr { return p.alignment }
func (p *Pool) Class() PoolClass { return p.class }
func (p *Pool) Segments() []*Segment {
	out := make([]*Segment, len(p.segs))
	copy(out, p.segs)
	return out
}

// NewSegment allocates a fresh segment of at least size bytes from the
// arena on behalf of pool, rounding up to a grain multiple. There is
// no real arena bump allocator here (that's the VM provider's job in
// a production arena); this core treats the whole reservation as
// available and simply carves out addresses sequentially, which is
// sufficient to exercise every collector invariant.
func (p *Pool) NewSegment(size uintptr) (*Segment, Res) {
	size = alignUp(size, p.arena.grainSize)
	if p.arena.committed+size > p.arena.reserved {
		return nil, ResMEMORY
	}
	base := p.arena.base + Addr(p.arena.committed)
	p.arena.committed += size
	seg := &Segment{
		pool:   p,
		base:   base,
		limit:  base + Addr(size),
		// grains counts units of the pool's own allocation alignment, not
		// the arena's page-sized grain -- AMS/AWL's bit tables are indexed
		// in these units (ams.go, awl.go).
		grains: uint(size / p.alignment),
	}
	p.segs = append(p.segs, seg)
	p.arena.addSegment(seg)
	return seg, ResOK
}

// FreeSegment returns seg's address range to the arena. Pool classes
// call this once a segment has no survivors and no buffer attached.
func (p *Pool) FreeSegment(seg *Segment) {
	for i, other := range p.segs {
		if other == seg {
			p.segs = append(p.segs[:i], p.segs[i+1:]...)
			break
		}
	}
	p.arena.removeSegment(seg)
}

// PoolWalk walks the formatted objects of this pool via the area-scan
// callback.
func (p *Pool) PoolWalk(areaScan func(base, limit Addr), closure any) Res {
	return poolWalk(p, areaScan, closure)
}

// RecordAlloc accounts size bytes of fresh client allocation against
// this pool's youngest generation, the newSize every successful
// Buffer.Reserve call bumps (ap.go). Pools with no configured chain
// have nothing to account against.
func (p *Pool) RecordAlloc(size uintptr) {
	if len(p.chain) == 0 {
		return
	}
	p.chain[0].newSize += size
}

// generationsToCollect reports the index of the oldest generation in
// p's chain that currently justifies collection, walking leaves-first
// (index 0 is youngest): a generation qualifies once its accumulated
// newSize has exceeded CapacityBytes and its predicted survivors
// (newSize weighted by 1-MortalityRate) are a small enough fraction of
// newSize to make the scan worthwhile, mirroring TraceCondemnEnd's
// mortality-weighted generation selection. The scan stops at the first
// generation that doesn't qualify -- an older generation is never
// collected on its own while a younger one hasn't matured, since
// leaves collect first. Returns -1 if nothing in the chain qualifies.
func (p *Pool) generationsToCollect() int {
	chosen := -1
	for i, g := range p.chain {
		if g.CapacityBytes == 0 || g.newSize < g.CapacityBytes {
			break
		}
		predicted := uintptr(float64(g.newSize) * (1 - g.MortalityRate))
		if predicted >= g.newSize {
			break
		}
		chosen = i
	}
	return chosen
}

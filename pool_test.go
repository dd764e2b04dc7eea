package mps

import "testing"

func TestPoolCreateDefaultsAlignmentToGrainSize(t *testing.T) {
	a := newTestArena(t)
	format := newTestFormat(8)
	pool, res := NewAMSPool(a, PoolOptions{Format: format, Name: "p"}, false)
	if res != ResOK {
		t.Fatalf("NewAMSPool: %v", res)
	}
	if pool.Alignment() != a.GrainSize() {
		t.Fatalf("Alignment() = %d, want arena grain size %d", pool.Alignment(), a.GrainSize())
	}
}

func TestNewSegmentGrainsMatchPoolAlignment(t *testing.T) {
	a := newTestArena(t)
	format := newTestFormat(8)
	pool, _ := NewAMSPool(a, PoolOptions{Format: format, Alignment: 8, Name: "p"}, false)
	seg, res := pool.NewSegment(4096)
	if res != ResOK {
		t.Fatalf("NewSegment: %v", res)
	}
	if want := uint(seg.Size() / pool.Alignment()); seg.grains != want {
		t.Fatalf("seg.grains = %d, want %d (size/alignment)", seg.grains, want)
	}
}

func TestNewSegmentRefusesWhenArenaExhausted(t *testing.T) {
	a, res := ArenaCreate(ArenaOptions{Size: 4096, GrainSize: 4096, VM: newFakeVM()})
	if res != ResOK {
		t.Fatalf("ArenaCreate: %v", res)
	}
	format := newTestFormat(8)
	pool, _ := NewAMSPool(a, PoolOptions{Format: format, Alignment: 8, Name: "p"}, false)
	if _, res := pool.NewSegment(4096); res != ResOK {
		t.Fatalf("first segment should fit exactly, got %v", res)
	}
	if _, res := pool.NewSegment(4096); res != ResMEMORY {
		t.Fatalf("a second segment should exceed the 1-grain reservation, got %v", res)
	}
}

func TestPoolDestroyRemovesSegmentsAndItself(t *testing.T) {
	a := newTestArena(t)
	format := newTestFormat(8)
	pool, _ := NewAMSPool(a, PoolOptions{Format: format, Alignment: 8, Name: "p"}, false)
	seg, _ := pool.NewSegment(4096)

	if res := pool.PoolDestroy(); res != ResOK {
		t.Fatalf("PoolDestroy: %v", res)
	}
	if a.ArenaHasAddr(seg.Base()) {
		t.Fatal("destroying the pool should remove its segments from the arena")
	}
	if len(a.pools) != 0 {
		t.Fatal("destroying the pool should remove it from the arena's pool list")
	}
}

func TestFreeSegmentRemovesFromPoolAndArena(t *testing.T) {
	a := newTestArena(t)
	format := newTestFormat(8)
	pool, _ := NewAMSPool(a, PoolOptions{Format: format, Alignment: 8, Name: "p"}, false)
	seg, _ := pool.NewSegment(4096)

	pool.FreeSegment(seg)
	if len(pool.Segments()) != 0 {
		t.Fatal("FreeSegment should remove the segment from the pool")
	}
	if a.ArenaHasAddr(seg.Base()) {
		t.Fatal("FreeSegment should remove the segment from the arena's lookup table")
	}
}

func TestUnimplementedPoolClassDefaults(t *testing.T) {
	var c UnimplementedPoolClass
	if _, _, res := c.BufferFill(nil, nil, 8); res != ResUNIMPL {
		t.Fatal("BufferFill should default to ResUNIMPL")
	}
	if res := c.Fix(nil, nil, nil, nil); res != ResUNIMPL {
		t.Fatal("Fix should default to ResUNIMPL")
	}
	if res := c.FixEmergency(nil, nil, nil, nil); res != ResUNIMPL {
		t.Fatal("FixEmergency should default to delegating to Fix, which is ResUNIMPL")
	}
	if res := c.Whiten(nil, nil, nil); res != ResOK {
		t.Fatal("Whiten should default to a no-op ResOK")
	}
}

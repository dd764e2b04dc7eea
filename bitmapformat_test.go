package mps

import "testing"

func TestDecodeLayoutConservativeTreatsEveryWordAsPointer(t *testing.T) {
	isPointer := decodeLayout(EncodeConservativeLayout())
	for i := uint(0); i < 5; i++ {
		if !isPointer(i) {
			t.Fatalf("conservative layout should treat word %d as a pointer", i)
		}
	}
}

func TestDecodeLayoutCyclesBitmapByPeriod(t *testing.T) {
	// period 2, bitmap 0b10: word 0 is data, word 1 is a pointer, and it
	// repeats: 2,3,4,5 mirror 0,1,0,1.
	header := EncodeLayout(2, 0b10)
	isPointer := decodeLayout(header)
	want := []bool{false, true, false, true, false, true}
	for i, w := range want {
		if got := isPointer(uint(i)); got != w {
			t.Fatalf("isPointer(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestBitmapFormatScanFixesOnlyPointerWords(t *testing.T) {
	f := NewBitmapFormat()
	header := EncodeLayout(2, 0b10)
	f.Put(0x1000, &BitmapObject{Header: header, Refs: []Addr{0xAAAA, 0xBBBB}})

	var fixed []Addr
	ss := newScanState(nil, TraceSetEMPTY, RankEXACT)
	ss.fix = func(ss *ScanState, refIO *Ref) Res {
		fixed = append(fixed, *refIO)
		return ResOK
	}
	if res := f.Scan(ss, 0x1000, 0x1010); res != ResOK {
		t.Fatalf("Scan: %v", res)
	}
	if len(fixed) != 1 || fixed[0] != 0xBBBB {
		t.Fatalf("fixed = %v, want only the pointer-word reference 0xBBBB", fixed)
	}
}

func TestBitmapFormatSkipAdvancesByObjectWordCount(t *testing.T) {
	f := NewBitmapFormat()
	f.Put(0x2000, &BitmapObject{Header: EncodeConservativeLayout(), Refs: []Addr{1, 2, 3}})
	if got := f.Skip(0x2000); got != 0x2000+3*8 {
		t.Fatalf("Skip = %#x, want %#x", got, 0x2000+3*8)
	}
}

func TestBitmapFormatSkipOverUnknownAddressStepsByAlignment(t *testing.T) {
	f := NewBitmapFormat()
	if got := f.Skip(0x3000); got != 0x3008 {
		t.Fatalf("Skip = %#x, want %#x", got, 0x3008)
	}
}

func TestBitmapFormatPadRemovesObject(t *testing.T) {
	f := NewBitmapFormat()
	f.Put(0x4000, &BitmapObject{Header: EncodeConservativeLayout(), Refs: []Addr{1}})
	f.Pad(0x4000, 8)
	if _, ok := f.objects[0x4000]; ok {
		t.Fatal("Pad should remove the object from the side table")
	}
}

func TestEncodeLayoutRejectsOutOfRangePeriod(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("EncodeLayout with an out-of-range period should panic")
		}
	}()
	EncodeLayout(0, 0)
}

//go:build unix

package mps

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixVM backs the virtual-memory provider with real anonymous mmap
// regions and mprotect, so that on a supported platform the Shield's
// barrier is an actual page-protection trap rather than a simulation.
// This is the one place the module reaches past the arena/segment
// bookkeeping to touch the OS, matching vm.go's collaborator
// boundary -- everything above this file only calls vmProvider.
type unixVM struct{}

func newUnixVM() *unixVM { return &unixVM{} }

func (v *unixVM) Reserve(size uintptr) (Addr, Res) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, ResRESOURCE
	}
	return Addr(uintptr(unsafe.Pointer(&b[0]))), ResOK
}

func (v *unixVM) Release(base Addr, size uintptr) {
	b := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(base))), size)
	_ = unix.Munmap(b)
}

func (v *unixVM) Protect(base Addr, size uintptr, mode Protect) Res {
	prot := unix.PROT_NONE
	if mode&ProtectRead != 0 {
		prot |= unix.PROT_READ
	}
	if mode&ProtectWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	// A segment that is neither grey nor white for any trace, and has
	// no rank, is fully accessible -- desired-protection
	// function returns ProtectNone for that case, which we treat as
	// "allow everything" rather than "allow nothing".
	if mode == ProtectNone {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(base))), size)
	if err := unix.Mprotect(b, prot); err != nil {
		return ResRESOURCE
	}
	return ResOK
}

package mps

// Res is the result code returned by every public operation, per the
// external interface contract: a client checks Res rather than an
// idiomatic Go error, because the collector's own critical paths (Fix,
// Scan) must not allocate to build an error value.
type Res int

const (
	ResOK Res = iota
	// ResMEMORY is returned when an allocation could not be satisfied
	// from the arena.
	ResMEMORY
	// ResRESOURCE is returned when an OS resource (address space,
	// handles) could not be obtained.
	ResRESOURCE
	// ResLIMIT is returned when a fixed limit is hit: TraceCreate returns
	// it when every trace id is in use.
	ResLIMIT
	// ResUNIMPL is returned when a pool class does not support the
	// requested operation.
	ResUNIMPL
	// ResFAIL is returned when an operation is semantically declined,
	// e.g. a single-access scan that could not handle the fault.
	ResFAIL
	// ResIO names a failure on an external stream. No operation in this
	// package returns it: Describe returns nothing, and LoadOptions
	// reports failures as a Go error.
	ResIO
	// ResPARAM is returned for an invalid argument.
	ResPARAM
)

func (r Res) String() string {
	switch r {
	case ResOK:
		return "OK"
	case ResMEMORY:
		return "MEMORY"
	case ResRESOURCE:
		return "RESOURCE"
	case ResLIMIT:
		return "LIMIT"
	case ResUNIMPL:
		return "UNIMPL"
	case ResFAIL:
		return "FAIL"
	case ResIO:
		return "IO"
	case ResPARAM:
		return "PARAM"
	default:
		return "UNKNOWN"
	}
}

func (r Res) Error() string {
	return "mps: " + r.String()
}

// IsRecoverable reports whether a caller can retry or otherwise continue
// after this Res, as opposed to a fatal assertion failure (which never
// surfaces as a Res at all -- see Asserts in check.go).
func (r Res) IsRecoverable() bool {
	switch r {
	case ResMEMORY, ResLIMIT, ResFAIL, ResRESOURCE:
		return true
	default:
		return false
	}
}

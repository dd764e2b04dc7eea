package mps

import "fmt"

// Asserts gates internal consistency checking, in the manner of a
// gcAsserts build constant. Tests run with it on; a client
// embedding this package for production use may turn it off once the
// object format and pool wiring are trusted.
var Asserts = true

// check panics with a formatted message when Asserts is enabled and cond
// is false. Assertion failures are fatal rather than recoverable: the
// arena has no way to stay consistent if, say, a segment's colour
// tables disagree with its white set, so there is no Res for this.
func check(cond bool, format string, args ...any) {
	if Asserts && !cond {
		panic(fmt.Sprintf("mps: assertion failed: "+format, args...))
	}
}

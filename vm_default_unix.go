//go:build unix

package mps

func newDefaultVM() vmProvider { return newUnixVM() }

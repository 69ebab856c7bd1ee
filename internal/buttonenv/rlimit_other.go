//go:build !unix

package buttonenv

// RaiseFileLimit is a no-op on platforms without POSIX rlimits (Windows
// has no equivalent notion of a per-process open-file ceiling worth
// raising here).
func RaiseFileLimit() error { return nil }

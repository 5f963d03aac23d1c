//go:build !voxeldebug

package world

// DebugInvariants reports whether invariant violations panic.
const DebugInvariants = false

// invariant is a no-op in release builds; callers clamp after it.
func invariant(bool, string) {}

//go:build voxeldebug

package world

const DebugInvariants = true

func invariant(ok bool, msg string) {
	if !ok {
		panic("world: invariant violated: " + msg)
	}
}

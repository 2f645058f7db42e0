//go:build !xyscopedebug

package ring

func invariantViolated(used, size uint64) {}

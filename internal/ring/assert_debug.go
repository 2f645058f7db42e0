//go:build xyscopedebug

package ring

import "fmt"

func invariantViolated(used, size uint64) {
	panic(fmt.Sprintf("ring: %d unread samples exceeds capacity %d", used, size))
}

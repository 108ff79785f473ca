// Package tunables holds the process-wide knobs controlling read-history
// collection. They are hot-reloadable: any caller may change them at any
// time and stores observe the new values on their next insertion. Reads
// never take a lock so that unrelated stores are not serialized.
package tunables

import "sync/atomic"

var (
	readHistory     atomic.Int64
	readHistoryHits atomic.Bool
)

// ReadHistory returns the maximum number of entries retained per store.
// Zero disables recording once a store is empty.
func ReadHistory() int {
	return int(readHistory.Load())
}

// SetReadHistory updates the retained-entry bound. Negative values are
// treated as zero. A decrease takes effect lazily, on the next insertion.
func SetReadHistory(n int) {
	if n < 0 {
		n = 0
	}
	readHistory.Store(int64(n))
}

// ReadHistoryHits reports whether reads served from cache are recorded.
func ReadHistoryHits() bool {
	return readHistoryHits.Load()
}

// SetReadHistoryHits toggles recording of cache-hit reads.
func SetReadHistoryHits(on bool) {
	readHistoryHits.Store(on)
}

package pool

import "time"

// msDuration converts a millisecond config value into a time.Duration.
// It has no special case for non-positive values (a zero context timeout
// would fire immediately), so callers only invoke this when ms > 0.
func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

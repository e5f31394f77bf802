package session

import "errors"

// Sentinel errors for the session package. Using sentinels instead of ad-hoc
// fmt.Errorf allows callers to match with errors.Is for reliable error handling.
var (
	// ErrNoSession is returned when no current snapshot exists to load.
	ErrNoSession = errors.New("no current session")

	// ErrContextTooLarge is returned when a compaction pass cannot bring
	// the session under the hard token limit.
	ErrContextTooLarge = errors.New("context too large even after compaction")
)

// Package accesswindow computes and validates time-boxed access grants.
//
// Timestamps and durations are uint64 unix seconds. Two values are
// distinguished: an expiry of 0 means the grant was never issued, and
// Permanent means the grant never expires. Everything else is an inclusive
// expiry instant.
package accesswindow

import "math"

// Permanent is the distinguished expiry meaning "never expires".
const Permanent = uint64(math.MaxUint64)

// ComputeExpiry returns the new expiry for a grant being issued or renewed.
//
//   - duration 0 always yields Permanent, regardless of prior state; permanent
//     access cannot be downgraded by a later call.
//   - An active grant (current > now) is extended from its existing expiry, so
//     an early renewal loses no time.
//   - A never-issued or lapsed grant starts a fresh window at now.
//
// The functions are pure; callers must bound current and duration so their sum
// is representable (the pool service enforces this at pool creation).
func ComputeExpiry(current, now, duration uint64) uint64 {
	if duration == 0 {
		return Permanent
	}
	if current > now {
		return current + duration
	}
	return now + duration
}

// IsValid reports whether a grant with the given expiry is valid at now.
// The boundary is inclusive: access holds through the exact expiry instant.
func IsValid(expiry, now uint64) bool {
	if expiry == 0 {
		return false
	}
	if expiry == Permanent {
		return true
	}
	return now <= expiry
}

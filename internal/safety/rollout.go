package safety

import "hash/fnv"

// Bucket deterministically maps a stable user or anonymous identifier into
// a 0-99 bucket. No RNG: the same identifier lands in the same bucket
// across sessions.
func Bucket(identifier string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identifier))
	return int(h.Sum32() % 100)
}

// Eligible reports whether the identifier falls inside the configured
// rollout percentage.
func Eligible(identifier string, percent int) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	return Bucket(identifier) < percent
}

package store

import "fmt"

// Fill journal key schema for Pebble:
//
//   fill:<ico_id>:<timestamp>:<fill_id> → Fill (JSON)
//
// Timestamp is zero-padded (20 digits) so a prefix scan is ordered oldest
// to newest and recent fills come from a reverse scan.

const prefixFill = "fill:"

func fillKey(icoID string, timestamp int64, fillID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefixFill, icoID, timestamp, fillID))
}

func fillPrefix(icoID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixFill, icoID))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

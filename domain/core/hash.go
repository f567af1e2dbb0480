package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex characters, for display
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// HistoryHash fingerprints an ordered assignment history. Two sessions that
// reloaded the same file agree on it.
type HistoryHash Hash

func (h HistoryHash) String() string { return Hash(h).String() }
func (h HistoryHash) Short() string  { return Hash(h).Short() }

// ComputeHistoryHash hashes the canonical row form of each record in order.
// Order matters: the history is chronological.
func ComputeHistoryHash(rows [][]string) HistoryHash {
	var data strings.Builder
	for _, row := range rows {
		data.WriteString(strings.Join(row, "\x1f"))
		data.WriteByte('\n')
	}
	return HistoryHash(NewHash([]byte(data.String())))
}

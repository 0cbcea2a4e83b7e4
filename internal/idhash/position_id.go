// Package idhash computes deterministic identifiers for positions and
// trades. The same inputs always produce the same ID, which makes store
// writes naturally idempotent under same-day re-runs.
package idhash

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

const dateLayout = "2006-01-02"

// ComputePositionID computes a deterministic position ID.
// Formula: base58(SHA256(strategy|symbol|entry_date)).
// Same-day re-entry is blocked upstream, so the triple is unique.
func ComputePositionID(strategy, symbol string, entryDate time.Time) string {
	data := fmt.Sprintf("%s|%s|%s",
		strategy,
		symbol,
		entryDate.UTC().Format(dateLayout),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

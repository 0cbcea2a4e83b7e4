package idhash

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// ComputeTradeID computes a deterministic trade ID.
// Formula: base58(SHA256(strategy|symbol|entry_date|exit_date)).
// A symbol cannot be reopened on the day it closed, so the tuple is unique.
func ComputeTradeID(strategy, symbol string, entryDate, exitDate time.Time) string {
	data := fmt.Sprintf("%s|%s|%s|%s",
		strategy,
		symbol,
		entryDate.UTC().Format(dateLayout),
		exitDate.UTC().Format(dateLayout),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

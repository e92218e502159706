// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Entity prefixes. Every stored record carries one so IDs are
// self-describing in logs and timelines.
const (
	PrefixGate       = "gate-"
	PrefixEvaluation = "eval-"
	PrefixException  = "exc-"
	PrefixApproval   = "apr-"
	PrefixTaskPacket = "tp-"
	PrefixEvent      = "ev-"
	PrefixFinding    = "fnd-"
	PrefixProject    = "proj-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Generate returns a new unique ID with the given entity prefix.
func Generate(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

package idgen

import (
	"regexp"
	"testing"
)

func TestGenerate_PrefixAndLength(t *testing.T) {
	for _, prefix := range []string{PrefixGate, PrefixEvaluation, PrefixException, PrefixApproval, PrefixTaskPacket, PrefixEvent, PrefixFinding, PrefixProject} {
		id, err := Generate(prefix)
		if err != nil {
			t.Fatalf("Generate(%q) error: %v", prefix, err)
		}
		if id[:len(prefix)] != prefix {
			t.Errorf("Generate(%q) = %q, want that prefix", prefix, id)
		}
		if len(id) != len(prefix)+Length {
			t.Errorf("Generate(%q) length = %d, want %d (id=%q)", prefix, len(id), len(prefix)+Length, id)
		}
	}
}

func TestGenerate_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^tp-[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := Generate(PrefixTaskPacket)
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("Generate() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := Generate(PrefixEvent)
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

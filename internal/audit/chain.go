package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// ComputeHash returns the SHA-256 of the RFC 8785 canonical JSON of fact,
// excluding the store-assigned sequence and the hash itself. PrevHash is
// included, which is what links a fact to its predecessor.
func ComputeHash(fact Fact) (string, error) {
	fact.Sequence = 0
	fact.Hash = ""
	fact.Timestamp = fact.Timestamp.UTC()

	raw, err := json.Marshal(fact)
	if err != nil {
		return "", fmt.Errorf("marshal audit fact: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize audit fact: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChain checks facts of a single entity, oldest first, and returns the
// index of the first broken link or -1 when the chain is intact.
func VerifyChain(facts []Fact) (int, error) {
	prev := ""
	for i, fact := range facts {
		if fact.PrevHash != prev {
			return i, nil
		}
		want, err := ComputeHash(fact)
		if err != nil {
			return i, err
		}
		if want != fact.Hash {
			return i, nil
		}
		prev = fact.Hash
	}
	return -1, nil
}

package search

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	qerrors "github.com/codequery-dev/codequery/internal/errors"
)

// NormalizedQuery is the canonical form of a raw query. Fingerprint is
// stable across runs and used as the cache key for embeddings, rerank
// results, and classifier memoization.
type NormalizedQuery struct {
	Raw         string
	Normalized  string
	Fingerprint string
}

// fingerprintLength is the hex length of the query fingerprint.
const fingerprintLength = 16

// Normalize canonicalizes a raw query: lowercase, unicode NFC,
// whitespace collapsed to single spaces. Pure; no I/O.
func Normalize(raw string) (NormalizedQuery, error) {
	if strings.TrimSpace(raw) == "" {
		return NormalizedQuery{}, qerrors.InvalidQuery("query must not be empty")
	}
	if len(raw) > MaxQueryLength {
		return NormalizedQuery{}, qerrors.InvalidQuery("query exceeds 2048 characters")
	}

	normalized := strings.ToLower(raw)
	normalized = norm.NFC.String(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	sum := sha256.Sum256([]byte(normalized))
	fingerprint := hex.EncodeToString(sum[:])[:fingerprintLength]

	return NormalizedQuery{
		Raw:         raw,
		Normalized:  normalized,
		Fingerprint: fingerprint,
	}, nil
}

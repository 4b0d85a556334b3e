package analysis

import (
	"errors"
	"fmt"

	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

// ErrMaxDepthMismatch reports an attempt to compare stores whose
// fingerprints were computed with different depth bounds. Such
// distributions can never match and comparing them silently would produce
// meaningless numbers.
var ErrMaxDepthMismatch = errors.New("stores have different max depths")

// PercResult measures how store A's fingerprint distribution diverges from
// store B's. SummedDiff is the probability mass of A in surplus over B,
// summed across fingerprints; PercNotInOther is the fraction of A's
// samples whose fingerprint never appears in B. The measure is directional
// on purpose: Compare(a, b) and Compare(b, a) differ in general.
type PercResult struct {
	SummedDiff     float32
	PercNotInOther float32
}

// Compare computes the divergence of a's distribution from b's.
func Compare(a, b *stackstore.Store) (PercResult, error) {
	if a.MaxDepth() != b.MaxDepth() {
		return PercResult{}, fmt.Errorf("comparing %q (depth %d) with %q (depth %d): %w",
			a.Name(), a.MaxDepth(), b.Name(), b.MaxDepth(), ErrMaxDepthMismatch)
	}

	distA := a.FingerprintFrequency()
	distB := b.FingerprintFrequency()

	var result PercResult
	for fp, pa := range distA {
		if diff := pa - distB[fp]; diff > 0 {
			result.SummedDiff += diff
		}
		if distB[fp] == 0 {
			result.PercNotInOther += pa
		}
	}
	return result, nil
}

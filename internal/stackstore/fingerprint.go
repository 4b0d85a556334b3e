// Package stackstore holds the core sample record: content-addressed stack
// fingerprints, the per-thread sample Store, and the text codec used to
// persist stores between capture and analysis.
package stackstore

import (
	"crypto/sha256"
	"io"
	"strings"
)

// Fingerprint identifies a normalized, depth-bounded call-stack shape.
// It is a fixed-size SHA-256 digest, compared by byte equality, and is
// usable directly as a map key.
type Fingerprint [sha256.Size]byte

// ErrorFingerprint is the sentinel recorded for samples whose stack could
// not be captured (e.g. a profiler event that reports a sampling failure).
// It is the all-zero fingerprint, which no real stack can produce in
// practice.
var ErrorFingerprint = Fingerprint{}

// Frame is a single call-stack entry as reported by a capture collaborator,
// ordered leaf-first within a stack (the innermost call at index 0).
type Frame struct {
	ClassName  string
	MethodName string
}

const lambdaMarker = "$$Lambda"

// normalizeClassName strips runtime-generated per-instance suffixes from a
// class name. The name is truncated at the first character outside
// [A-Za-z0-9_$.] (dropping e.g. the "/0x0000..." address suffix of
// java.lang.invoke.LambdaForm$DMH/0x0000...), and any generated-lambda
// suffix is collapsed to the literal "$$Lambda" so that structurally
// identical call sites hash identically across runs.
func normalizeClassName(name string) string {
	if i := strings.IndexFunc(name, isNotNameRune); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, lambdaMarker); i >= 0 {
		name = name[:i+len(lambdaMarker)]
	}
	return name
}

func isNotNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
	case r >= 'A' && r <= 'Z':
	case r >= '0' && r <= '9':
	case r == '_' || r == '$' || r == '.':
	default:
		return true
	}
	return false
}

// FingerprintStack hashes a stack into its Fingerprint. Frames must be
// ordered leaf-first; when the stack is deeper than maxDepth only the
// trailing (outermost, root-side) maxDepth frames contribute, so a bounded
// fingerprint keeps the stable caller context rather than the leaf detail.
//
// Stacks with fewer than two frames carry no comparable shape and yield
// ok == false; callers are expected to drop the sample.
//
// For a fixed maxDepth and identical normalized frame sequence the result
// is byte-identical across calls, processes and platforms. The hash state
// is created per call; there is no shared hashing context.
func FingerprintStack(frames []Frame, maxDepth int) (fp Fingerprint, ok bool) {
	if len(frames) < 2 {
		return Fingerprint{}, false
	}
	start := len(frames) - maxDepth
	if start < 0 {
		start = 0
	}
	h := sha256.New()
	for _, f := range frames[start:] {
		io.WriteString(h, normalizeClassName(f.ClassName))
		io.WriteString(h, ".")
		io.WriteString(h, f.MethodName)
	}
	h.Sum(fp[:0])
	return fp, true
}

// FingerprintFromBytes converts raw digest bytes into a Fingerprint,
// rejecting any length other than the fixed digest size.
func FingerprintFromBytes(b []byte) (Fingerprint, bool) {
	var fp Fingerprint
	if len(b) != len(fp) {
		return fp, false
	}
	copy(fp[:], b)
	return fp, true
}

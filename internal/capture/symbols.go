// Package capture converts externally recorded profiles into sample stores.
// The only adapter shipped here reads pprof protobuf profiles; anything that
// can map its frames to (class, method) pairs and supply per-sample
// timestamps can feed a store the same way.
package capture

import (
	"strings"

	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

// SplitSymbol maps one symbolized function name to a stack frame. The split
// point is the last '.' of the name: everything before it is the class (the
// package path and receiver type, for Go symbols), everything after it the
// method.
//
// The class part is then rewritten so fingerprint normalization keeps its
// identity: path-separator slashes become dots ("github.com/user/pkg" and
// "java/util/HashMap" both carry package identity that truncation at '/'
// would erase), receiver punctuation is dropped ("pkg.(*Type)" reads
// "pkg.Type"), and Go type parameters are cut at '['. A "/0x..." suffix is
// NOT treated as a path separator; it stays slashed so that normalization
// strips it like any other per-instance address.
func SplitSymbol(symbol string) stackstore.Frame {
	symbol = stripTypeParams(symbol)
	dot := strings.LastIndexByte(symbol, '.')
	if dot < 0 {
		return stackstore.Frame{MethodName: symbol}
	}
	return stackstore.Frame{
		ClassName:  rewriteClass(symbol[:dot]),
		MethodName: symbol[dot+1:],
	}
}

// stripTypeParams removes bracketed instantiation segments, which can sit
// mid-symbol for generic methods ("pkg.(*List[go.shape.int]).Push").
func stripTypeParams(symbol string) string {
	if !strings.ContainsRune(symbol, '[') {
		return symbol
	}
	var b strings.Builder
	b.Grow(len(symbol))
	depth := 0
	for i := 0; i < len(symbol); i++ {
		switch symbol[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteByte(symbol[i])
			}
		}
	}
	return b.String()
}

func rewriteClass(class string) string {
	if !strings.ContainsAny(class, "/(") {
		return class
	}
	var b strings.Builder
	b.Grow(len(class))
	for i := 0; i < len(class); i++ {
		switch c := class[i]; c {
		case '/':
			if strings.HasPrefix(class[i+1:], "0x") {
				b.WriteString(class[i:])
				return b.String()
			}
			b.WriteByte('.')
		case '(', ')', '*':
			// receiver punctuation
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

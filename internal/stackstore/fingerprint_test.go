package stackstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeClassName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain name unchanged",
			input: "java.util.HashMap",
			want:  "java.util.HashMap",
		},
		{
			name:  "address suffix stripped",
			input: "java.lang.invoke.LambdaForm$DMH/0x0000007c01001000",
			want:  "java.lang.invoke.LambdaForm$DMH",
		},
		{
			name:  "generated lambda collapsed",
			input: "com.example.Handler$$Lambda$337/0x00000008012b4440",
			want:  "com.example.Handler$$Lambda",
		},
		{
			name:  "lambda without address collapsed",
			input: "com.example.Handler$$Lambda$42",
			want:  "com.example.Handler$$Lambda",
		},
		{
			name:  "truncates at first invalid rune",
			input: "scala.Function1<init>",
			want:  "scala.Function1",
		},
		{
			name:  "underscore and dollar kept",
			input: "my_pkg.Outer$Inner",
			want:  "my_pkg.Outer$Inner",
		},
		{
			name:  "empty stays empty",
			input: "",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeClassName(tt.input))
		})
	}
}

func TestFingerprintStackDeterministic(t *testing.T) {
	frames := []Frame{
		{ClassName: "com.example.Worker", MethodName: "run"},
		{ClassName: "java.lang.Thread", MethodName: "run"},
	}

	first, ok := FingerprintStack(frames, 8)
	require.True(t, ok)
	second, ok := FingerprintStack(frames, 8)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.NotEqual(t, ErrorFingerprint, first)
}

func TestFingerprintStackTooShort(t *testing.T) {
	_, ok := FingerprintStack(nil, 8)
	assert.False(t, ok)

	_, ok = FingerprintStack([]Frame{{ClassName: "a.B", MethodName: "c"}}, 8)
	assert.False(t, ok)
}

func TestFingerprintStackDepthBound(t *testing.T) {
	deep := []Frame{
		{ClassName: "leaf.Class", MethodName: "inner"},
		{ClassName: "mid.Class", MethodName: "call"},
		{ClassName: "root.Class", MethodName: "outer"},
		{ClassName: "java.lang.Thread", MethodName: "run"},
	}

	// Depth 2 keeps only the two root-side frames, so the bounded
	// fingerprint must match a stack consisting of just those frames.
	bounded, ok := FingerprintStack(deep, 2)
	require.True(t, ok)
	tail, ok := FingerprintStack(deep[2:], 2)
	require.True(t, ok)
	assert.Equal(t, tail, bounded)

	// A depth larger than the stack uses every frame.
	full, ok := FingerprintStack(deep, 100)
	require.True(t, ok)
	exact, ok := FingerprintStack(deep, 4)
	require.True(t, ok)
	assert.Equal(t, exact, full)
	assert.NotEqual(t, bounded, full)
}

func TestFingerprintStackCollapsesLambdaCallSites(t *testing.T) {
	run1 := []Frame{
		{ClassName: "com.example.Srv$$Lambda$17/0x00000008010c2000", MethodName: "apply"},
		{ClassName: "java.lang.Thread", MethodName: "run"},
	}
	run2 := []Frame{
		{ClassName: "com.example.Srv$$Lambda$91/0x00000008010c7400", MethodName: "apply"},
		{ClassName: "java.lang.Thread", MethodName: "run"},
	}

	fp1, ok := FingerprintStack(run1, 8)
	require.True(t, ok)
	fp2, ok := FingerprintStack(run2, 8)
	require.True(t, ok)
	assert.Equal(t, fp1, fp2)
}

func TestFingerprintStackClassMethodJoin(t *testing.T) {
	// The digest input is the undelimited concatenation "<class>.<method>",
	// so frames that differ only in where the class ends hash identically.
	// This pins the established format.
	left := []Frame{
		{ClassName: "a.b", MethodName: "c"},
		{ClassName: "java.lang.Thread", MethodName: "run"},
	}
	right := []Frame{
		{ClassName: "a", MethodName: "b.c"},
		{ClassName: "java.lang.Thread", MethodName: "run"},
	}

	fpLeft, ok := FingerprintStack(left, 8)
	require.True(t, ok)
	fpRight, ok := FingerprintStack(right, 8)
	require.True(t, ok)
	assert.Equal(t, fpLeft, fpRight)
}

func TestFingerprintFromBytes(t *testing.T) {
	raw := make([]byte, 32)
	raw[0] = 0xab

	fp, ok := FingerprintFromBytes(raw)
	require.True(t, ok)
	assert.Equal(t, byte(0xab), fp[0])

	_, ok = FingerprintFromBytes(raw[:31])
	assert.False(t, ok)
	_, ok = FingerprintFromBytes(append(raw, 0x01))
	assert.False(t, ok)
	_, ok = FingerprintFromBytes(nil)
	assert.False(t, ok)
}

package agent

import (
	"bufio"
	"bytes"
	"runtime"
	"strings"

	"github.com/parttimenerd/sampler-comparison/internal/capture"
	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

// goroutineStack is one goroutine block parsed out of a runtime.Stack dump:
// its numeric id, scheduler state, and frames ordered leaf-first.
type goroutineStack struct {
	id     uint64
	state  string
	frames []stackstore.Frame
}

// parseGoroutineDump splits the text produced by runtime.Stack(buf, true)
// into per-goroutine stacks. Frame lines are the unindented lines ending in
// ')' between a "goroutine N [state]:" header and the next blank line;
// the tab-indented file:line lines and the "created by" trailer are skipped.
// Goroutines whose block carries no usable frame lines are returned with an
// empty frame list; dropping them is the store's decision, not the parser's.
func parseGoroutineDump(dump []byte) []goroutineStack {
	var stacks []goroutineStack
	current := -1

	sc := bufio.NewScanner(bytes.NewReader(dump))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			current = -1
		case strings.HasPrefix(line, "goroutine "):
			id, state, ok := parseGoroutineHeader(line)
			if !ok {
				current = -1
				continue
			}
			stacks = append(stacks, goroutineStack{id: id, state: state})
			current = len(stacks) - 1
		case current < 0,
			strings.HasPrefix(line, "\t"),
			strings.HasPrefix(line, "created by "):
			// location line, creation trailer, or text outside any block
		case strings.HasSuffix(line, ")"):
			stacks[current].frames = append(stacks[current].frames, capture.SplitSymbol(stripCallArgs(line)))
		}
	}
	// Dumps come from an in-memory buffer; the only scanner failure mode is
	// a single line above the buffer cap, and such a line is no frame.
	return stacks
}

// stripCallArgs removes the trailing "(...)" argument list of a traceback
// frame line. The last '(' opens the argument list even for method symbols,
// whose receiver parentheses sit earlier in the name.
func stripCallArgs(line string) string {
	if i := strings.LastIndexByte(line, '('); i >= 0 {
		return line[:i]
	}
	return line
}

// parseGoroutineHeader extracts id and state from a "goroutine N [state]:"
// line. States with a wait duration ("[chan receive, 5 minutes]") are cut at
// the comma.
func parseGoroutineHeader(line string) (id uint64, state string, ok bool) {
	rest, found := strings.CutPrefix(line, "goroutine ")
	if !found {
		return 0, "", false
	}
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		id = id*10 + uint64(rest[i]-'0')
		i++
	}
	if i == 0 {
		return 0, "", false
	}
	open := strings.IndexByte(rest[i:], '[')
	if open < 0 {
		return id, "", true
	}
	state = rest[i+open+1:]
	if end := strings.IndexAny(state, ",]"); end >= 0 {
		state = state[:end]
	}
	return id, state, true
}

// currentGoroutineID reads the calling goroutine's id from its own stack
// header. The sampling worker uses it to rename itself in the dump so that
// the ignored-thread filter drops the sampler's own stacks.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	id, _, _ := parseGoroutineHeader(string(buf[:n]))
	return id
}

// captureDump snapshots the stacks of every goroutine, growing buf until the
// dump fits. It returns the dump and the (possibly grown) buffer so that the
// sampling loop reuses one allocation across rounds.
func captureDump(buf []byte) (dump, grown []byte) {
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n], buf
		}
		buf = make([]byte, 2*len(buf))
	}
}

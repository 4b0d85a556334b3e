package stackstore

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Timestamps are persisted in base 36, the densest base the decoder of the
// established format accepts.
const timestampBase = 36

const gzipSuffix = ".gz"

// ErrFormat classifies every persisted-store parsing failure. Match with
// errors.Is; inspect the offending line via errors.As on *FormatError.
var ErrFormat = errors.New("malformed store data")

// FormatError reports where and why parsing persisted store data failed.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed store data: line %d: %s", e.Line, e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// Save writes the store as line-oriented text:
//
//	<store name>
//	<max depth, decimal>
//	<base64(thread name)>
//	<timestamp, base 36> <base64(fingerprint)>
//	...
//
// A line with one token opens a thread section, a line with two tokens is a
// sample record for the open section; base64 alphabets contain no
// whitespace, so the token count is unambiguous. Threads are written in
// sorted name order, so identical stores serialize byte-identically.
func Save(w io.Writer, s *Store) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n%d\n", s.Name(), s.MaxDepth())
	for _, thread := range s.ThreadNames() {
		fmt.Fprintln(bw, base64.StdEncoding.EncodeToString([]byte(thread)))
		for _, sample := range s.Samples(thread) {
			fmt.Fprintf(bw, "%s %s\n",
				strconv.FormatUint(sample.TimeNanos, timestampBase),
				base64.StdEncoding.EncodeToString(sample.Fingerprint[:]))
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing store data: %w", err)
	}
	return nil
}

// Load parses the format written by Save into a fresh store. Any structural
// problem (missing header lines, unparseable max depth, a record before the
// first thread section, bad base64, a fingerprint of the wrong size, an
// unexpected token count) fails with a *FormatError and no store is
// returned; a failed load never yields partial data.
func Load(r io.Reader) (*Store, error) {
	sc := bufio.NewScanner(r)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading store data: %w", err)
		}
		return nil, &FormatError{Line: 1, Msg: "missing store name line"}
	}
	name := sc.Text()

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading store data: %w", err)
		}
		return nil, &FormatError{Line: 2, Msg: "missing max depth line"}
	}
	maxDepth, err := strconv.Atoi(sc.Text())
	if err != nil {
		return nil, &FormatError{Line: 2, Msg: fmt.Sprintf("max depth %q is not an integer", sc.Text())}
	}
	store, err := New(name, maxDepth)
	if err != nil {
		return nil, &FormatError{Line: 2, Msg: err.Error()}
	}

	var thread string
	haveThread := false
	for lineNo := 3; sc.Scan(); lineNo++ {
		tokens := strings.Fields(sc.Text())
		switch len(tokens) {
		case 1:
			raw, err := base64.StdEncoding.DecodeString(tokens[0])
			if err != nil {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("thread name is not valid base64: %v", err)}
			}
			thread = string(raw)
			haveThread = true
			store.touchThread(thread)
		case 2:
			if !haveThread {
				return nil, &FormatError{Line: lineNo, Msg: "sample record before any thread header"}
			}
			ts, err := strconv.ParseUint(tokens[0], timestampBase, 64)
			if err != nil {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("timestamp %q is not a base-36 integer", tokens[0])}
			}
			raw, err := base64.StdEncoding.DecodeString(tokens[1])
			if err != nil {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("fingerprint is not valid base64: %v", err)}
			}
			fp, ok := FingerprintFromBytes(raw)
			if !ok {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("fingerprint is %d bytes, want %d", len(raw), len(fp))}
			}
			store.AddFingerprint(thread, ts, fp)
		default:
			return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("want 1 or 2 tokens, got %d", len(tokens))}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading store data: %w", err)
	}
	return store, nil
}

// touchThread ensures a thread section exists even when it carries no
// records, so that an empty section survives a save/load round trip.
func (s *Store) touchThread(threadName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byThread[threadName]; !ok {
		s.byThread[threadName] = nil
	}
}

// SaveFile writes the store to path, gzip-compressed when the path carries
// a .gz suffix.
func SaveFile(s *Store, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating store file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing store file: %w", cerr)
		}
	}()

	if !strings.HasSuffix(path, gzipSuffix) {
		return Save(f, s)
	}
	zw := gzip.NewWriter(f)
	defer func() {
		if cerr := zw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("flushing compressed store file: %w", cerr)
		}
	}()
	return Save(zw, s)
}

// LoadFile reads a store from path. Compression is detected from the file
// contents rather than the name, so renamed captures still load.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening store file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening compressed store file: %w", err)
		}
		defer zr.Close()
		return Load(zr)
	}
	return Load(br)
}

package safe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type failingCloser struct {
	err    error
	closed bool
}

func (c *failingCloser) Close() error {
	c.closed = true
	return c.err
}

func TestClose(t *testing.T) {
	t.Run("nil closer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)

		Close(nil, logger, "close failed")

		if buf.Len() > 0 {
			t.Errorf("expected no log output for nil closer, got %q", buf.String())
		}
	})

	t.Run("successful close logs nothing", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		c := &failingCloser{}

		Close(c, logger, "close failed")

		if !c.closed {
			t.Error("Close() was not called on the closer")
		}
		if buf.Len() > 0 {
			t.Errorf("expected no log output, got %q", buf.String())
		}
	})

	t.Run("failed close is logged", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		c := &failingCloser{err: errors.New("disk gone")}

		Close(c, logger, "close failed")

		if !c.closed {
			t.Error("Close() was not called on the closer")
		}
		out := buf.String()
		if out == "" {
			t.Fatal("expected a log entry for the failed close")
		}
		if !bytes.Contains(buf.Bytes(), []byte("disk gone")) {
			t.Errorf("log output %q does not carry the close error", out)
		}
	})
}

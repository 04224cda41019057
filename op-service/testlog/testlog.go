// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bytes"
	"log/slog"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var useColor = os.Getenv("BRIDGE_TESTLOG_DISABLE_COLOR") != "true"

// Testing is the subset of testing.TB the logger needs.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	Cleanup(func())
}

// Logger returns a logger which logs to the unit test log of t.
// Records are buffered per line, and anything still buffered is flushed when the test ends.
func Logger(t Testing, level slog.Level) log.Logger {
	w := &testWriter{t: t}
	t.Cleanup(w.flush)
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, level, useColor))
}

type testWriter struct {
	t   Testing
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buf.Write(line)
			break
		}
		w.t.Helper()
		w.t.Logf("%s", bytes.TrimRight(line, "\n"))
	}
	return len(p), nil
}

func (w *testWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.t.Logf("%s", w.buf.String())
		w.buf.Reset()
	}
}

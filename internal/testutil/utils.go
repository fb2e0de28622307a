package testutil

import (
	"bytes"
	"log"
	"os"
	"sync"
	"testing"
)

func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// SyncBuffer is a bytes.Buffer safe for a logger written from several goroutines.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CaptureLogger returns a logger whose output is collected in the returned buffer.
func CaptureLogger(t *testing.T) (*log.Logger, *SyncBuffer) {
	buf := &SyncBuffer{}
	logger := TestLogger(t)
	logger.SetOutput(buf)
	return logger, buf
}

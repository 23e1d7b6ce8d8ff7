package pmu

import (
	"sync"
	"time"
)

// ScriptTransport is a test helper that simulates the timing behaviour of a
// serial port: reads return nothing until the device has been sent a command,
// then hand back the scripted reply one chunk per ReadChunk call. Stale bytes
// can be queued separately to exercise the pre-send drain.
type ScriptTransport struct {
	mu      sync.Mutex
	stale   [][]byte
	replies [][]byte
	armed   bool
	writes  []string
	readErr error
	closed  bool
}

// NewScriptTransport creates a transport with the given reply chunks, which
// become readable after the first Write.
func NewScriptTransport(replies ...string) *ScriptTransport {
	t := &ScriptTransport{}
	for _, r := range replies {
		t.replies = append(t.replies, []byte(r))
	}
	return t
}

// QueueStale adds bytes that are readable before any command is written,
// simulating leftovers from a previous interaction.
func (t *ScriptTransport) QueueStale(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stale = append(t.stale, []byte(data))
}

// FailReads makes every subsequent ReadChunk return err.
func (t *ScriptTransport) FailReads(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readErr = err
}

// Writes returns everything written so far.
func (t *ScriptTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

func (t *ScriptTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, string(p))
	t.armed = true
	return len(p), nil
}

func (t *ScriptTransport) ReadChunk(maxWait time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	if !t.armed {
		if len(t.stale) > 0 {
			chunk := t.stale[0]
			t.stale = t.stale[1:]
			return chunk, nil
		}
		return nil, nil
	}
	if len(t.replies) > 0 {
		chunk := t.replies[0]
		t.replies = t.replies[1:]
		return chunk, nil
	}
	return nil, nil
}

func (t *ScriptTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Closed reports whether Close was called.
func (t *ScriptTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

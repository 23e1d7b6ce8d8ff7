// Package pmu implements the serial transport and framing engine for the
// e-ink power-management unit. It turns a command line into a complete,
// cleaned reply: draining stale bytes, writing the command, accumulating the
// reply until a prompt marker or idle window, and tolerating commands that
// intentionally sever the link.
package pmu

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dynamicdevices.com/eink/pmuctl/shell"
)

// execState tracks a command round-trip through the framing engine. The
// transitions are driven solely by elapsed time and byte arrival.
type execState int

const (
	stateDraining execState = iota
	stateSent
	stateAccumulating
	stateCompleted
	stateTimedOut
)

// drainPoll is the per-read wait while discarding stale bytes. Shorter than
// the accumulation poll so an empty buffer is detected quickly.
const drainPoll = 50 * time.Millisecond

// Client owns one serial link to the PMU. A Client is safe for concurrent
// use: a mutex keeps exactly one command in flight per link, and the caller
// of the active command exclusively owns the transport for the round-trip.
type Client struct {
	mu        sync.Mutex
	config    Config
	transport Transport
	closed    bool
	log       *slog.Logger
}

// New creates a Client from the given configuration. The link stays closed
// until Connect is called.
func New(config Config) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()
	return &Client{
		config: config,
		log:    config.Logger.With("component", "pmu"),
	}, nil
}

// Connect opens the serial link and, unless disabled in the configuration,
// verifies the firmware responds to a ping. Connecting an already-open
// Client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	if c.transport != nil {
		return nil
	}

	transport, err := c.config.Dialer.Dial()
	if err != nil {
		return err
	}
	c.transport = transport
	c.log.Debug("link opened")

	if !c.config.SkipProbe {
		if _, err := c.execute(ctx, Command{Text: "ping"}); err != nil {
			transport.Close()
			c.transport = nil
			return fmt.Errorf("probe firmware: %w", err)
		}
	}
	return nil
}

// Connected reports whether the link is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport != nil && !c.closed
}

// Close releases the serial link. Subsequent commands fail with
// ErrAlreadyClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	c.closed = true

	if c.transport != nil {
		c.log.Debug("closing link that is still open")
		err := c.transport.Close()
		c.transport = nil
		return err
	}
	return nil
}

// Execute performs one command round-trip and returns the cleaned Reply.
// Replies carrying a device-reported failure marker surface as
// *ControllerError alongside the reply itself, so partial output stays
// available for diagnosis.
func (c *Client) Execute(ctx context.Context, cmd Command) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.execute(ctx, cmd)
	if err != nil {
		return reply, err
	}
	if !cmd.Disruptive {
		if msg, ok := shell.Fault(reply.Text); ok {
			return reply, &ControllerError{Message: msg}
		}
	}
	return reply, nil
}

// execute runs the framing state machine. The caller must hold c.mu.
func (c *Client) execute(ctx context.Context, cmd Command) (Reply, error) {
	if c.closed {
		return Reply{}, ErrAlreadyClosed
	}
	if c.transport == nil {
		return Reply{}, ErrNotConnected
	}
	if strings.ContainsAny(cmd.Text, "\r\n") || strings.TrimSpace(cmd.Text) == "" {
		return Reply{}, &InvalidCommandError{Command: cmd.Text}
	}

	state := stateDraining
	c.drain(nil, c.config.DrainWindow)

	state = stateSent
	c.log.Debug("sending command", "command", cmd.Text, "disruptive", cmd.Disruptive)
	if _, err := c.transport.Write([]byte(cmd.Text + "\n")); err != nil {
		return Reply{}, fmt.Errorf("write command %q: %w", cmd.Text, err)
	}

	if cmd.Disruptive {
		return c.collectDisruptive(cmd)
	}

	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = c.config.CommandTimeout
	}

	var buf bytes.Buffer
	start := time.Now()
	last := start
	received := false
	terminated := false

	state = stateAccumulating
	for state == stateAccumulating {
		if err := ctx.Err(); err != nil {
			return Reply{}, fmt.Errorf("command %q: %w", cmd.Text, err)
		}

		chunk, err := c.transport.ReadChunk(c.config.PollInterval)
		if err != nil {
			return Reply{}, fmt.Errorf("read reply to %q: %w", cmd.Text, err)
		}

		if len(chunk) > 0 {
			buf.Write(chunk)
			last = time.Now()
			received = true
			if shell.HasTerminator(buf.String(), c.config.Terminators) {
				// Catch trailing bytes still in flight behind the prompt.
				c.drain(&buf, c.config.TrailWindow)
				terminated = true
				state = stateCompleted
				continue
			}
		} else if received && time.Since(last) > c.config.IdleWindow {
			// Gap between arrivals exceeded: end of reply, not an error.
			state = stateCompleted
			continue
		}

		if time.Since(start) > timeout {
			state = stateTimedOut
		}
	}

	if state == stateTimedOut {
		return Reply{}, &TimeoutError{Timeout: timeout}
	}

	raw := strings.ToValidUTF8(buf.String(), "")
	reply := Reply{
		Text:    shell.Clean(raw, cmd.Text, c.config.Terminators),
		Raw:     raw,
		Cause:   StopIdle,
		Idle:    time.Since(last),
		Elapsed: time.Since(start),
	}
	if terminated {
		reply.Cause = StopTerminator
	}
	c.log.Debug("reply complete", "command", cmd.Text, "cause", reply.Cause.String(), "bytes", len(raw))
	return reply, nil
}

// collectDisruptive reads whatever arrives within the fixed disruptive
// window. The device is expected to reset mid-transmission, so read errors
// and silence are both success; this path never times out.
func (c *Client) collectDisruptive(cmd Command) (Reply, error) {
	var buf bytes.Buffer
	start := time.Now()
	deadline := start.Add(c.config.DisruptiveWindow)
	for time.Now().Before(deadline) {
		chunk, err := c.transport.ReadChunk(c.config.PollInterval)
		if err != nil {
			// The link severing under us is the expected outcome.
			c.log.Debug("link dropped during disruptive command", "command", cmd.Text, "error", err)
			break
		}
		buf.Write(chunk)
	}

	raw := strings.ToValidUTF8(buf.String(), "")
	return Reply{
		Text:    shell.Clean(raw, cmd.Text, c.config.Terminators),
		Raw:     raw,
		Cause:   StopWindow,
		Elapsed: time.Since(start),
	}, nil
}

// drain reads and discards (or, when buf is non-nil, keeps) bytes already
// buffered, stopping at the first empty read or when the window elapses.
func (c *Client) drain(buf *bytes.Buffer, window time.Duration) {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		chunk, err := c.transport.ReadChunk(drainPoll)
		if err != nil || len(chunk) == 0 {
			return
		}
		if buf != nil {
			buf.Write(chunk)
		}
	}
}

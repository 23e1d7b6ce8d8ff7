package pmu_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"dynamicdevices.com/eink/pmuctl/pmu"
)

type transportDialer struct {
	transport pmu.Transport
}

func (d transportDialer) Dial() (pmu.Transport, error) {
	return d.transport, nil
}

// testConfig returns a configuration with windows shrunk so transitions
// driven by real elapsed time stay fast.
func testConfig(transport pmu.Transport) pmu.Config {
	return pmu.Config{
		Dialer:           transportDialer{transport: transport},
		CommandTimeout:   100 * time.Millisecond,
		IdleWindow:       20 * time.Millisecond,
		DrainWindow:      10 * time.Millisecond,
		TrailWindow:      10 * time.Millisecond,
		PollInterval:     time.Millisecond,
		DisruptiveWindow: 30 * time.Millisecond,
		SkipProbe:        true,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func connectedClient(t *testing.T, transport pmu.Transport) *pmu.Client {
	t.Helper()
	client, err := pmu.New(testConfig(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return client
}

func TestExecuteNotConnected(t *testing.T) {
	transport := pmu.NewScriptTransport()
	client, err := pmu.New(testConfig(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Execute(context.Background(), pmu.Command{Text: "ping"})
	if !errors.Is(err, pmu.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got: %v", err)
	}
	if n := len(transport.Writes()); n != 0 {
		t.Errorf("expected no bytes written before connect, got %d writes", n)
	}
}

func TestExecuteTerminator(t *testing.T) {
	transport := pmu.NewScriptTransport(
		"ltc2959 read\r\n",
		"Voltage: 3850 mV\r\nCurrent: -125 mA\r\n",
		"uart:~$ ",
	)
	client := connectedClient(t, transport)

	reply, err := client.Execute(context.Background(), pmu.Command{Text: "ltc2959 read"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply.Text != "Voltage: 3850 mV\nCurrent: -125 mA" {
		t.Errorf("unexpected cleaned text: %q", reply.Text)
	}
	if !reply.Terminated() {
		t.Errorf("expected terminator stop, got %v", reply.Cause)
	}
	writes := transport.Writes()
	if len(writes) != 1 || writes[0] != "ltc2959 read\n" {
		t.Errorf("unexpected writes: %q", writes)
	}
}

func TestExecuteIdleFallback(t *testing.T) {
	// Unrecognized prompt, so the idle window ends the reply.
	transport := pmu.NewScriptTransport(
		"version\r\n",
		"2.2.0\r\nshell> ",
	)
	client := connectedClient(t, transport)

	reply, err := client.Execute(context.Background(), pmu.Command{Text: "version"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Cause != pmu.StopIdle {
		t.Errorf("expected idle stop, got %v", reply.Cause)
	}
	if reply.Text != "2.2.0\nshell>" {
		t.Errorf("unexpected cleaned text: %q", reply.Text)
	}
}

func TestExecuteTimeout(t *testing.T) {
	// A silent device runs to the overall command timeout, not the idle
	// window: the idle rule only applies once at least one byte arrived.
	transport := pmu.NewScriptTransport()
	client := connectedClient(t, transport)

	start := time.Now()
	_, err := client.Execute(context.Background(), pmu.Command{Text: "system info"})

	var timeoutErr *pmu.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got: %v", err)
	}
	if timeoutErr.Timeout != 100*time.Millisecond {
		t.Errorf("TimeoutError should carry the configured timeout, got %v", timeoutErr.Timeout)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("returned before the configured timeout: %v", elapsed)
	}
}

func TestExecuteTimeoutOverride(t *testing.T) {
	transport := pmu.NewScriptTransport()
	client := connectedClient(t, transport)

	_, err := client.Execute(context.Background(), pmu.Command{Text: "pm stats", Timeout: 40 * time.Millisecond})

	var timeoutErr *pmu.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got: %v", err)
	}
	if timeoutErr.Timeout != 40*time.Millisecond {
		t.Errorf("expected per-command override in error, got %v", timeoutErr.Timeout)
	}
}

func TestExecuteEmptyReply(t *testing.T) {
	transport := pmu.NewScriptTransport("ping\r\nuart:~$ ")
	client := connectedClient(t, transport)

	reply, err := client.Execute(context.Background(), pmu.Command{Text: "ping"})
	if err != nil {
		t.Fatalf("an empty terminated reply is not an error, got: %v", err)
	}
	if reply.Text != "" {
		t.Errorf("expected empty cleaned reply, got %q", reply.Text)
	}
	if !reply.Terminated() {
		t.Errorf("expected terminator stop, got %v", reply.Cause)
	}
}

func TestExecuteControllerError(t *testing.T) {
	transport := pmu.NewScriptTransport(
		"ltc2959 bogus\r\nError: unknown subcommand\r\nuart:~$ ",
	)
	client := connectedClient(t, transport)

	reply, err := client.Execute(context.Background(), pmu.Command{Text: "ltc2959 bogus"})

	var ctrlErr *pmu.ControllerError
	if !errors.As(err, &ctrlErr) {
		t.Fatalf("expected ControllerError, got: %v", err)
	}
	if ctrlErr.Message != "Error: unknown subcommand" {
		t.Errorf("unexpected controller message: %q", ctrlErr.Message)
	}
	if reply.Text != "Error: unknown subcommand" {
		t.Errorf("reply text should stay available for diagnosis, got %q", reply.Text)
	}
}

func TestExecuteDisruptive(t *testing.T) {
	t.Run("No reply is success", func(t *testing.T) {
		transport := pmu.NewScriptTransport()
		client := connectedClient(t, transport)

		reply, err := client.Execute(context.Background(), pmu.Command{Text: "board reset", Disruptive: true})
		if err != nil {
			t.Fatalf("disruptive command must tolerate silence, got: %v", err)
		}
		if reply.Cause != pmu.StopWindow {
			t.Errorf("expected window stop, got %v", reply.Cause)
		}
		if reply.Text != "" {
			t.Errorf("expected empty reply, got %q", reply.Text)
		}
	})

	t.Run("Partial bytes are kept", func(t *testing.T) {
		transport := pmu.NewScriptTransport("board reset\r\nResetting")
		client := connectedClient(t, transport)

		reply, err := client.Execute(context.Background(), pmu.Command{Text: "board reset", Disruptive: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply.Text != "Resetting" {
			t.Errorf("unexpected reply text: %q", reply.Text)
		}
	})

	t.Run("Link dropping mid-read is success", func(t *testing.T) {
		transport := pmu.NewScriptTransport()
		client := connectedClient(t, transport)
		transport.FailReads(errors.New("input/output error"))

		_, err := client.Execute(context.Background(), pmu.Command{Text: "system reboot", Disruptive: true})
		if err != nil {
			t.Fatalf("disruptive command must tolerate a dropped link, got: %v", err)
		}
	})
}

func TestExecuteDrainsStaleBytes(t *testing.T) {
	transport := pmu.NewScriptTransport("ping\r\npong\r\nuart:~$ ")
	transport.QueueStale("leftover output\r\nuart:~$ ")
	client := connectedClient(t, transport)

	reply, err := client.Execute(context.Background(), pmu.Command{Text: "ping"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "pong" {
		t.Errorf("stale bytes leaked into the reply: %q", reply.Text)
	}
}

func TestExecuteAfterClose(t *testing.T) {
	transport := pmu.NewScriptTransport()
	client := connectedClient(t, transport)

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !transport.Closed() {
		t.Error("transport should be closed")
	}

	_, err := client.Execute(context.Background(), pmu.Command{Text: "ping"})
	if !errors.Is(err, pmu.ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got: %v", err)
	}
	if err := client.Close(); !errors.Is(err, pmu.ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed on second Close, got: %v", err)
	}
}

func TestExecuteWriteError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTransport := pmu.NewMockTransport(ctrl)
	mockTransport.EXPECT().ReadChunk(gomock.Any()).Return(nil, nil).AnyTimes()
	mockTransport.EXPECT().Write(gomock.Any()).Return(0, errors.New("broken pipe"))

	client := connectedClient(t, mockTransport)

	_, err := client.Execute(context.Background(), pmu.Command{Text: "ping"})
	if err == nil || err.Error() != `write command "ping": broken pipe` {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConnect(t *testing.T) {
	t.Run("Dialer error surfaces", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDialer := pmu.NewMockDialer(ctrl)
		dialErr := &pmu.DeviceNotFoundError{Device: "/dev/ttyLP2"}
		mockDialer.EXPECT().Dial().Return(nil, dialErr)

		config := testConfig(nil)
		config.Dialer = mockDialer
		client, err := pmu.New(config)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		var notFound *pmu.DeviceNotFoundError
		if err := client.Connect(context.Background()); !errors.As(err, &notFound) {
			t.Errorf("expected DeviceNotFoundError, got: %v", err)
		}
		if client.Connected() {
			t.Error("client should not report connected after dial failure")
		}
	})

	t.Run("Probe failure closes the link", func(t *testing.T) {
		transport := pmu.NewScriptTransport() // silent device
		config := testConfig(transport)
		config.SkipProbe = false
		client, err := pmu.New(config)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		if err := client.Connect(context.Background()); err == nil {
			t.Fatal("expected probe failure on silent device")
		}
		if !transport.Closed() {
			t.Error("transport should be closed after failed probe")
		}
		if client.Connected() {
			t.Error("client should not report connected")
		}
	})

	t.Run("Probe success", func(t *testing.T) {
		transport := pmu.NewScriptTransport("ping\r\npong\r\nuart:~$ ")
		config := testConfig(transport)
		config.SkipProbe = false
		client, err := pmu.New(config)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		if err := client.Connect(context.Background()); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		if !client.Connected() {
			t.Error("client should report connected")
		}
	})
}

// Package firmware manages PMU firmware images. The image transfer itself is
// delegated to the external mcumgr tool invoked as a subprocess; this package
// only orchestrates the reset-upload-verify sequence around it, using the
// serial core for the disruptive reset commands.
package firmware

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"dynamicdevices.com/eink/pmuctl/pmu"
)

// Executor is the slice of the serial client the firmware manager needs.
type Executor interface {
	Execute(ctx context.Context, cmd pmu.Command) (pmu.Reply, error)
}

// Runner invokes an external tool and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Manager drives firmware operations against one PMU.
type Manager struct {
	client Executor
	port   string
	baud   int
	runner Runner
	log    *slog.Logger

	// ResetSettle is how long to wait after a reset command before the
	// bootloader is expected to answer.
	ResetSettle time.Duration
	// BootWait is how long to wait after the final reset for new firmware
	// to boot before verification.
	BootWait time.Duration
}

// NewManager creates a Manager talking to the PMU over client for shell
// commands and over mcumgr on the given port for image transfer.
func NewManager(client Executor, port string, baud int, logger *slog.Logger) *Manager {
	if baud == 0 {
		baud = 115200
	}
	return &Manager{
		client:      client,
		port:        port,
		baud:        baud,
		runner:      execRunner{},
		log:         logger.With("component", "firmware"),
		ResetSettle: 2 * time.Second,
		BootWait:    15 * time.Second,
	}
}

// SetRunner replaces the subprocess runner. Tests use this to avoid invoking
// the real mcumgr binary.
func (m *Manager) SetRunner(r Runner) {
	m.runner = r
}

func (m *Manager) connArgs() []string {
	return []string{
		"--conntype", "serial",
		"--connstring", fmt.Sprintf("%s,baud=%d", m.port, m.baud),
	}
}

func (m *Manager) mcumgr(ctx context.Context, args ...string) (string, error) {
	out, err := m.runner.Run(ctx, "mcumgr", append(m.connArgs(), args...)...)
	if err != nil {
		return string(out), fmt.Errorf("mcumgr %s: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// ListImages returns the mcumgr image list output.
func (m *Manager) ListImages(ctx context.Context) (string, error) {
	m.log.Info("listing firmware images")
	return m.mcumgr(ctx, "image", "list")
}

// Info returns image slots plus, when available, bootloader task state.
func (m *Manager) Info(ctx context.Context) (string, error) {
	images, err := m.ListImages(ctx)
	if err != nil {
		return "", err
	}

	bootloader, err := m.mcumgr(ctx, "taskstat")
	if err != nil {
		bootloader = "Bootloader info not available"
	}

	return fmt.Sprintf("=== Firmware Information ===\n\n--- Images ---\n%s\n--- Bootloader ---\n%s", images, bootloader), nil
}

// ResetToBootloader sends a disruptive system reset over the shell and waits
// for the bootloader to come up. The shell command failing is tolerated: the
// PMU may already be sitting in the bootloader, where the shell is gone.
func (m *Manager) ResetToBootloader(ctx context.Context) (string, error) {
	m.log.Info("resetting PMU into bootloader mode")

	cmd := pmu.Command{Text: "system reset", Disruptive: true}
	if _, err := m.client.Execute(ctx, cmd); err != nil {
		m.log.Warn("system reset failed, PMU may already be in bootloader mode", "error", err)
	}

	select {
	case <-time.After(m.ResetSettle):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if _, err := m.mcumgr(ctx, "echo", "bootloader_test"); err != nil {
		m.log.Warn("could not verify bootloader mode", "error", err)
		return "Reset command sent, PMU should be in bootloader mode", nil
	}
	return "PMU successfully reset to bootloader mode", nil
}

// Upload flashes a firmware image: reset into the bootloader (unless
// skipReset), transfer the image via mcumgr, reset again to run it, then wait
// for boot and probe the new version.
func (m *Manager) Upload(ctx context.Context, path string, skipReset bool) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("firmware file not found: %s", path)
	}

	var steps []string

	if skipReset {
		steps = append(steps, "reset: skipped (assuming bootloader mode)")
	} else {
		result, err := m.ResetToBootloader(ctx)
		if err != nil {
			return "", err
		}
		steps = append(steps, "reset: "+result)
	}

	m.log.Info("uploading firmware image", "file", path)
	if _, err := m.mcumgr(ctx, "image", "upload", path); err != nil {
		return "", err
	}
	steps = append(steps, "upload: image transferred")

	// mcumgr reset often exits non-zero because the device drops the link
	// immediately; that is not a failure.
	if out, err := m.mcumgr(ctx, "reset"); err != nil {
		m.log.Warn("mcumgr reset reported an error", "error", err, "output", out)
	}
	steps = append(steps, "reset: PMU restarted to run new firmware")

	select {
	case <-time.After(m.BootWait):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if version, err := m.verify(ctx); err != nil {
		m.log.Warn("could not verify new firmware", "error", err)
		steps = append(steps, "verify: firmware may still be booting")
	} else {
		steps = append(steps, "verify: "+version)
	}

	return strings.Join(steps, "\n"), nil
}

func (m *Manager) verify(ctx context.Context) (string, error) {
	reply, err := m.client.Execute(ctx, pmu.Command{Text: "version"})
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(reply.Text, "\n")
	if line == "" {
		return "", fmt.Errorf("empty version reply")
	}
	return "new firmware version: " + line, nil
}

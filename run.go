package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"dynamicdevices.com/eink/pmuctl/firmware"
	"dynamicdevices.com/eink/pmuctl/parse"
	"dynamicdevices.com/eink/pmuctl/pmu"
)

// serialClient is the slice of pmu.Client the application layer uses,
// abstracted so tests can substitute a fake.
type serialClient interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context, cmd pmu.Command) (pmu.Reply, error)
	Close() error
}

// App wires the serial core to the command-line surface.
type App struct {
	Client serialClient
	Config *Config
	Logger *slog.Logger
	Out    io.Writer
}

// Run dispatches one invocation: either a local subcommand (monitor, batch,
// firmware) or a single category/action round-trip against the PMU shell.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("no command provided, see --help")
	}

	switch args[0] {
	case "monitor":
		return a.runMonitor(ctx, args[1:])
	case "batch":
		return a.runBatch(ctx, args[1:])
	case "firmware":
		return a.runFirmware(ctx, args[1:])
	}

	category := args[0]
	action := ""
	var rest []string
	if len(args) > 1 {
		action = args[1]
		rest = args[2:]
	}

	cmd, err := pmu.Build(category, action, rest)
	if err != nil {
		return err
	}

	if err := a.Client.Connect(ctx); err != nil {
		return err
	}
	defer a.Client.Close()

	reply, err := a.Client.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	record := parse.Classify(parse.Category(category), reply.Text)
	if gpio, ok := record.(*parse.GPIOState); ok && len(rest) >= 2 {
		gpio.Port = rest[0]
		if pin, err := strconv.Atoi(rest[1]); err == nil {
			gpio.Pin = pin
		}
	}

	return writeOutput(a.Out, a.Config.Format, cmd.Text, reply, record)
}

// runMonitor polls battery measurements at a fixed interval until the sample
// count is reached or the context is cancelled.
func (a *App) runMonitor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	interval := fs.Duration("interval", 30*time.Second, "Sampling interval")
	count := fs.Int("count", 0, "Number of samples (0 = until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.Client.Connect(ctx); err != nil {
		return err
	}
	defer a.Client.Close()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	taken := 0
	for {
		reply, err := a.Client.Execute(ctx, pmu.Command{Text: "ltc2959 read"})
		if err != nil {
			return err
		}
		record := parse.Classify(parse.CategoryBattery, reply.Text)
		if err := writeOutput(a.Out, a.Config.Format, "ltc2959 read", reply, record); err != nil {
			return err
		}

		taken++
		if *count > 0 && taken >= *count {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runBatch executes raw shell commands from a file, one per line. Lines
// rejected by the firmware are reported but do not abort the batch; link
// failures do.
func (a *App) runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	file := fs.String("file", "", "File containing commands to execute")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("batch requires -file")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	if err := a.Client.Connect(ctx); err != nil {
		return err
	}
	defer a.Client.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		reply, err := a.Client.Execute(ctx, pmu.Command{Text: line})
		var ctrlErr *pmu.ControllerError
		if errors.As(err, &ctrlErr) {
			fmt.Fprintf(a.Out, "> %s\n%s\n", line, ctrlErr.Message)
			continue
		}
		if err != nil {
			return fmt.Errorf("batch command %q: %w", line, err)
		}
		fmt.Fprintf(a.Out, "> %s\n%s\n", line, reply.Text)
	}
	return scanner.Err()
}

// runFirmware dispatches firmware management through mcumgr.
func (a *App) runFirmware(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("firmware requires an action (list|info|reset|upload)")
	}
	action := args[0]

	fs := flag.NewFlagSet("firmware "+action, flag.ContinueOnError)
	port := fs.String("port", a.Config.Device, "Serial port for mcumgr")
	baud := fs.Int("baud", a.Config.Baud, "Baud rate for mcumgr")
	file := fs.String("file", "", "Firmware image file (upload)")
	skipReset := fs.Bool("skip-reset", false, "Assume the PMU is already in bootloader mode (upload)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	manager := firmware.NewManager(a.Client, *port, *baud, a.Logger)

	switch action {
	case "list":
		out, err := manager.ListImages(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.Out, strings.TrimSpace(out))
		return nil

	case "info":
		out, err := manager.Info(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.Out, strings.TrimSpace(out))
		return nil

	case "reset":
		a.connectBestEffort(ctx)
		defer a.Client.Close()
		out, err := manager.ResetToBootloader(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.Out, out)
		return nil

	case "upload":
		if *file == "" {
			return errors.New("firmware upload requires -file")
		}
		a.connectBestEffort(ctx)
		defer a.Client.Close()
		out, err := manager.Upload(ctx, *file, *skipReset)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.Out, out)
		return nil
	}
	return fmt.Errorf("unknown firmware action: %s", action)
}

// connectBestEffort opens the shell link if possible. Firmware operations
// must proceed even when the PMU sits in the bootloader, where the shell does
// not answer.
func (a *App) connectBestEffort(ctx context.Context) {
	if err := a.Client.Connect(ctx); err != nil {
		a.Logger.Warn("Shell link unavailable, PMU may be in bootloader mode", "error", err)
	}
}

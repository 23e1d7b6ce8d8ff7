// Command pmuctl talks to the MCXC143VFM e-ink power-management unit over its
// UART shell: power rails, battery and coulomb-counter readings, NFC, GPIO,
// RTC, resets and firmware updates.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"dynamicdevices.com/eink/pmuctl/pmu"
)

const version = "1.0.0"

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: pmuctl [flags] <category> [action] [args...]

Categories:
  system | power | battery | gpio | nfc | board | ltc2959 | pm | rtc
  ping | version
  monitor  [-interval d] [-count n]   poll battery readings
  batch    -file path                 run raw commands from a file
  firmware list|info|reset|upload     manage firmware images via mcumgr

Anything else is sent to the PMU shell verbatim.

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.String("device", "/dev/ttyLP2", "Serial device path of the PMU")
	flag.Int("baud", 115200, "Baud rate for serial communication")
	flag.Duration("timeout", 0, "Overall command timeout (default 3s)")
	flag.String("format", "human", "Output format (human, json, csv)")
	flag.String("config", "", "Configuration file path")
	flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flag.Bool("quiet", false, "Suppress non-error output")
	flag.Usage = usage
	flag.Parse()

	configPath := flag.Lookup("config").Value.String()
	config, err := LoadConfig(WithDefaults(), WithFile(configPath), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if !config.Quiet {
		fmt.Printf("pmuctl v%s\n\n", version)
	}

	clientConfig, err := pmu.NewConfigBuilder().
		WithDialer(pmu.SerialDialer{DevicePath: config.Device, BaudRate: config.Baud}).
		WithCommandTimeout(config.Timeout).
		WithIdleWindow(config.IdleWindow).
		WithDrainWindow(config.DrainWindow).
		WithTerminators(config.Terminators).
		WithLogger(logger).
		Build()
	if err != nil {
		logger.Error("Failed to build client configuration", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	client, err := pmu.New(clientConfig)
	if err != nil {
		logger.Error("Failed to create client", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &App{
		Client: client,
		Config: config,
		Logger: logger,
		Out:    os.Stdout,
	}

	if err := app.Run(ctx, flag.Args()); err != nil {
		logger.Error("Command failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

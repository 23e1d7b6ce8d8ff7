package pmu

import (
	"fmt"
	"strings"
	"time"
)

// Command is one immutable line of text sent to the firmware shell, plus the
// policy needed to read its reply.
type Command struct {
	// Text is the wire form without the trailing newline.
	Text string
	// Disruptive marks reset-class commands that sever the link before a
	// normal reply can be observed. They are read with a short fixed
	// window and never time out.
	Disruptive bool
	// Timeout overrides the configured command timeout when non-zero.
	Timeout time.Duration
}

// StopCause records how the reply read ended.
type StopCause int

const (
	// StopTerminator means a prompt marker was observed.
	StopTerminator StopCause = iota
	// StopIdle means the idle window elapsed after the last byte.
	StopIdle
	// StopWindow means the fixed disruptive-command window elapsed.
	StopWindow
)

func (c StopCause) String() string {
	switch c {
	case StopTerminator:
		return "terminator"
	case StopIdle:
		return "idle"
	case StopWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Reply is the outcome of one command round-trip.
type Reply struct {
	// Text is the cleaned payload: echo and prompt stripped, whitespace
	// trimmed.
	Text string
	// Raw is the accumulated reply as received, lossily decoded.
	Raw string
	// Cause tells how the read ended.
	Cause StopCause
	// Idle is the gap since the last byte arrived when the read ended.
	Idle time.Duration
	// Elapsed is the total round-trip time.
	Elapsed time.Duration
}

// Terminated reports whether a prompt marker was observed.
func (r Reply) Terminated() bool {
	return r.Cause == StopTerminator
}

var powerStates = map[string]bool{"on": true, "off": true, "status": true}

// Build maps a logical (category, action, args) triple onto the wire command
// the firmware shell understands, validating required arguments before
// anything is sent. Unknown categories pass through verbatim so new firmware
// commands stay reachable without a tool update.
func Build(category, action string, args []string) (Command, error) {
	tokens := append([]string{action}, args...)
	for _, tok := range tokens {
		if strings.ContainsAny(tok, "\r\n") {
			return Command{}, &InvalidCommandError{Command: "embedded newline in " + category + " command"}
		}
	}

	switch category {
	case "ping", "version":
		if action != "" {
			return Command{}, &InvalidCommandError{Command: category + " takes no action"}
		}
		return Command{Text: category}, nil

	case "battery":
		switch action {
		case "read", "status", "enable", "disable":
			return Command{Text: "ltc2959 " + action}, nil
		}
		return Command{}, &InvalidCommandError{Command: fmt.Sprintf("unknown battery action: %s", action)}

	case "coulomb", "ltc2959":
		if action == "" {
			return Command{}, &InvalidCommandError{Command: category + " requires an action"}
		}
		return Command{Text: join("ltc2959", action, args)}, nil

	case "power":
		switch action {
		case "stats", "coulomb":
			return Command{Text: "power " + action}, nil
		case "pmic", "wifi", "disp":
			if len(args) < 1 {
				return Command{}, &InvalidCommandError{Command: fmt.Sprintf("power %s requires a state (on|off|status)", action)}
			}
			if !powerStates[args[0]] {
				return Command{}, &InvalidCommandError{Command: fmt.Sprintf("unknown power state: %s", args[0])}
			}
			return Command{Text: fmt.Sprintf("power %s %s", action, args[0])}, nil
		}
		return Command{}, &InvalidCommandError{Command: fmt.Sprintf("unknown power rail: %s", action)}

	case "pm":
		if action == "" {
			return Command{}, &InvalidCommandError{Command: "pm requires an action"}
		}
		return Command{Text: join("pm", action, args)}, nil

	case "nfc":
		if action == "" {
			return Command{}, &InvalidCommandError{Command: "nfc requires an action"}
		}
		return Command{Text: join("nfc", action, args)}, nil

	case "gpio":
		switch action {
		case "get":
			if len(args) < 2 {
				return Command{}, &InvalidCommandError{Command: "gpio get requires a port and pin"}
			}
			return Command{Text: fmt.Sprintf("gpio get %s %s", args[0], args[1])}, nil
		case "set":
			if len(args) < 3 {
				return Command{}, &InvalidCommandError{Command: "gpio set requires a port, pin and value"}
			}
			return Command{Text: fmt.Sprintf("gpio set %s %s %s", args[0], args[1], args[2])}, nil
		case "config":
			if len(args) < 3 {
				return Command{}, &InvalidCommandError{Command: "gpio config requires a port, pin and mode"}
			}
			return Command{Text: fmt.Sprintf("gpio config %s %s %s", args[0], args[1], args[2])}, nil
		}
		return Command{}, &InvalidCommandError{Command: fmt.Sprintf("unknown gpio action: %s", action)}

	case "board":
		switch action {
		case "reset", "shutdown":
			// Both cut power to the link.
			return Command{Text: "board " + action, Disruptive: true}, nil
		}
		return Command{}, &InvalidCommandError{Command: fmt.Sprintf("unknown board action: %s", action)}

	case "system":
		if action == "" {
			return Command{}, &InvalidCommandError{Command: "system requires an action"}
		}
		cmd := Command{Text: join("system", action, args)}
		if action == "reboot" || action == "reset" {
			cmd.Disruptive = true
		}
		return cmd, nil

	case "rtc":
		if action == "" {
			return Command{}, &InvalidCommandError{Command: "rtc requires an action"}
		}
		return Command{Text: join("rtc", action, args)}, nil
	}

	// Raw passthrough.
	text := strings.TrimSpace(join(category, action, args))
	if text == "" {
		return Command{}, &InvalidCommandError{Command: "empty command"}
	}
	return Command{Text: text}, nil
}

func join(prefix, action string, args []string) string {
	parts := append([]string{prefix, action}, args...)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// Package shell handles the line-oriented text protocol spoken by the PMU
// firmware's interactive shell: prompt detection, echo/prompt stripping and
// device-reported failure markers.
package shell

import "strings"

const (
	// ErrorPrefix marks a device-reported failure in a reply.
	ErrorPrefix = "Error:"
	// FailedPrefix is the alternative failure marker some firmware
	// subsystems emit instead of ErrorPrefix.
	FailedPrefix = "Failed:"
)

// DefaultTerminators returns the prompt markers emitted by current firmware
// builds at the end of each interactive reply. The set is firmware-build
// dependent, so callers may override it through configuration.
func DefaultTerminators() []string {
	return []string{":~$", "uart:"}
}

// HasTerminator reports whether text contains any of the prompt markers.
func HasTerminator(text string, terminators []string) bool {
	for _, t := range terminators {
		if t != "" && strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// Clean turns a raw accumulated reply into its payload text. It drops the
// leading line echoing the sent command, drops every line carrying a prompt
// marker, and trims surrounding whitespace. Invalid UTF-8 sequences are
// discarded rather than failing the whole reply.
func Clean(raw, command string, terminators []string) string {
	text := strings.ToValidUTF8(raw, "")

	var kept []string
	echoSeen := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		// The device echoes input, so the first non-blank line that
		// matches the command verbatim is not payload.
		if !echoSeen && trimmed != "" {
			echoSeen = true
			if trimmed == strings.TrimSpace(command) {
				continue
			}
		}
		if HasTerminator(line, terminators) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Fault reports whether a cleaned reply carries a device-reported failure
// marker and returns the reply text as the failure message. The protocol has
// no status envelope; a substring scan is the contract.
func Fault(reply string) (string, bool) {
	if strings.Contains(reply, ErrorPrefix) || strings.Contains(reply, FailedPrefix) {
		return reply, true
	}
	return "", false
}

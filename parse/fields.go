package parse

import (
	"strconv"
	"strings"
)

// fieldValue finds the first line containing label and returns the trimmed
// text following it on the same line.
func fieldValue(text, label string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, label); i >= 0 {
			return strings.TrimSpace(line[i+len(label):]), true
		}
	}
	return "", false
}

// textField extracts the remainder of the labelled line as-is.
func textField(text, label string) *string {
	v, ok := fieldValue(text, label)
	if !ok || v == "" {
		return nil
	}
	return &v
}

// intField extracts a signed integer. When unit is non-empty the token after
// the number must equal it, so "Voltage: 3850 mV" matches but "Voltage: 3850
// ticks" does not.
func intField(text, label, unit string) *int {
	v, ok := fieldValue(text, label)
	if !ok {
		return nil
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil
	}
	if unit != "" && (len(fields) < 2 || fields[1] != unit) {
		return nil
	}
	return &n
}

func int64Field(text, label, unit string) *int64 {
	v, ok := fieldValue(text, label)
	if !ok {
		return nil
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil
	}
	if unit != "" && (len(fields) < 2 || fields[1] != unit) {
		return nil
	}
	return &n
}

// floatField extracts a decimal number, tolerating a unit glued to the value
// the way the firmware prints temperatures ("23C", "23.5°C").
func floatField(text, label string) *float64 {
	v, ok := fieldValue(text, label)
	if !ok {
		return nil
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil
	}
	numeric := strings.TrimRightFunc(fields[0], func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	})
	f, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return nil
	}
	return &f
}

// hexField extracts a register value written as 0xNN.
func hexField(text, label string) *string {
	v, ok := fieldValue(text, label)
	if !ok {
		return nil
	}
	fields := strings.Fields(v)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "0x") {
		return nil
	}
	if _, err := strconv.ParseUint(fields[0][2:], 16, 64); err != nil {
		return nil
	}
	return &fields[0]
}

// boolField derives a flag from the mutually exclusive YES/NO literals the
// firmware prints. Neither literal present leaves the field nil.
func boolField(text, label string) *bool {
	v, ok := fieldValue(text, label)
	if !ok {
		return nil
	}
	word := v
	if fields := strings.Fields(v); len(fields) > 0 {
		word = fields[0]
	}
	switch word {
	case "YES":
		b := true
		return &b
	case "NO":
		b := false
		return &b
	}
	return nil
}

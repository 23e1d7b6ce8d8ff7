package parse

import (
	"strconv"
	"strings"
)

// Classify extracts the record shape matching the category from a cleaned
// reply. Categories without a known schema return nil, signalling that the
// raw reply should be passed through unmodified. Fields are extracted
// independently; a missing or malformed field never blocks the others.
func Classify(category Category, reply string) any {
	switch category {
	case CategoryBattery:
		return Battery(reply)
	case CategorySystem:
		return System(reply)
	case CategoryPower:
		return Power(reply)
	case CategoryNFC:
		return NFC(reply)
	case CategoryCoulomb, CategoryLTC2959:
		return Coulomb(reply)
	case CategoryGPIO:
		return GPIO(reply)
	case CategoryRTC:
		return RTC(reply)
	default:
		return nil
	}
}

// Battery parses an "ltc2959 read" measurement reply.
func Battery(reply string) *BatteryReading {
	return &BatteryReading{
		VoltageMV:    intField(reply, "Voltage:", "mV"),
		CurrentMA:    intField(reply, "Current:", "mA"),
		ChargeMAH:    intField(reply, "Charge:", "mAh"),
		PowerMW:      intField(reply, "Power:", "mW"),
		TemperatureC: floatField(reply, "Temperature:"),
	}
}

// System parses a "system info" reply.
func System(reply string) *SystemInfo {
	info := &SystemInfo{}
	for _, f := range []struct {
		label string
		dst   **string
	}{
		{"Board:", &info.Board},
		{"SoC:", &info.SoC},
		{"Version:", &info.Version},
		{"Build:", &info.Build},
		{"Build Type:", &info.BuildType},
		{"System Uptime:", &info.Uptime},
	} {
		*f.dst = textField(reply, f.label)
	}
	return info
}

// Power parses a "power stats" reply.
func Power(reply string) *PowerStats {
	return &PowerStats{
		SleepCycles:  intField(reply, "Sleep Cycles:", ""),
		WakeCycles:   intField(reply, "Wake Cycles:", ""),
		LTC2959State: textField(reply, "LTC2959:"),
		NFCState:     textField(reply, "NFC:"),
		UARTState:    textField(reply, "UART:"),
		UptimeMS:     int64Field(reply, "Uptime:", "ms"),
	}
}

// NFC parses an "nfc status" or "nfc debug" reply.
func NFC(reply string) *NFCStatus {
	return &NFCStatus{
		StatusRegister: hexField(reply, "NTA5332 Status:"),
		RFField:        textField(reply, "RF Field:"),
		NFCActive:      boolField(reply, "NFC Active:"),
		I2CReady:       boolField(reply, "I2C Ready:"),
		EEPROM:         textField(reply, "EEPROM:"),
		SRAM:           textField(reply, "SRAM:"),
	}
}

// Coulomb parses an "ltc2959 status" reply, which carries device status and
// may repeat the measurement block.
func Coulomb(reply string) *CoulombStatus {
	return &CoulombStatus{
		BatteryReading: *Battery(reply),
		StatusRegister: hexField(reply, "LTC2959 Status Register:"),
		ADCMode:        textField(reply, "ADC Mode:"),
		CoulombCounter: textField(reply, "Coulomb Counter:"),
		ChargeComplete: boolField(reply, "Charge Complete:"),
	}
}

// GPIO parses a "gpio get"/"gpio set" reply. The addressed port and pin are
// not in the reply; callers fill them in afterwards.
func GPIO(reply string) *GPIOState {
	state := &GPIOState{
		Value: gpioValue(reply),
	}
	if strings.Contains(reply, "INPUT") {
		d := "INPUT"
		state.Direction = &d
	} else if strings.Contains(reply, "OUTPUT") {
		d := "OUTPUT"
		state.Direction = &d
	}
	if strings.Contains(reply, "HIGH") {
		s := "HIGH"
		state.State = &s
	} else if strings.Contains(reply, "LOW") {
		s := "LOW"
		state.State = &s
	}
	return state
}

// gpioValue finds the pin level in either reply shape the firmware uses:
// "Pin value: 1" or "GPIO A0: 1".
func gpioValue(reply string) *int {
	if v := intField(reply, "Pin value:", ""); v != nil && (*v == 0 || *v == 1) {
		return v
	}
	for _, line := range strings.Split(reply, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "GPIO ")
		if !ok {
			continue
		}
		_, after, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		fields := strings.Fields(after)
		if len(fields) == 0 {
			continue
		}
		if n, err := strconv.Atoi(fields[0]); err == nil && (n == 0 || n == 1) {
			return &n
		}
	}
	return nil
}

// RTC parses an "rtc status"/"rtc get" reply.
func RTC(reply string) *RTCStatus {
	return &RTCStatus{
		Counter:         int64Field(reply, "RTC Counter:", ""),
		External:        textField(reply, "PCF2131:"),
		InterruptAction: textField(reply, "Interrupt Action:"),
		BatteryLow:      boolField(reply, "Battery Low:"),
	}
}

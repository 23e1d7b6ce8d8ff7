// Package parse extracts typed records from cleaned PMU shell replies. Every
// field is optional: a nil field means the label was not found in the reply,
// never that the value was zero. A record therefore never asserts a value the
// raw reply did not literally contain.
package parse

// Category names the logical command family a reply belongs to. It selects
// which record shape, if any, Classify extracts.
type Category string

const (
	CategoryBattery Category = "battery"
	CategorySystem  Category = "system"
	CategoryPower   Category = "power"
	CategoryNFC     Category = "nfc"
	CategoryCoulomb Category = "coulomb"
	CategoryLTC2959 Category = "ltc2959"
	CategoryGPIO    Category = "gpio"
	CategoryRTC     Category = "rtc"
	CategoryGeneric Category = "generic"
)

// BatteryReading holds one LTC2959 measurement set.
type BatteryReading struct {
	VoltageMV    *int     `json:"voltage_mv,omitempty"`
	CurrentMA    *int     `json:"current_ma,omitempty"`
	ChargeMAH    *int     `json:"charge_mah,omitempty"`
	PowerMW      *int     `json:"power_mw,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
}

// SystemInfo describes the firmware and board as reported by "system info".
type SystemInfo struct {
	Board     *string `json:"board,omitempty"`
	SoC       *string `json:"soc,omitempty"`
	Version   *string `json:"version,omitempty"`
	Build     *string `json:"build,omitempty"`
	BuildType *string `json:"build_type,omitempty"`
	Uptime    *string `json:"uptime,omitempty"`
}

// PowerStats holds the power-management counters from "power stats".
type PowerStats struct {
	SleepCycles  *int    `json:"sleep_cycles,omitempty"`
	WakeCycles   *int    `json:"wake_cycles,omitempty"`
	LTC2959State *string `json:"ltc2959_state,omitempty"`
	NFCState     *string `json:"nfc_state,omitempty"`
	UARTState    *string `json:"uart_state,omitempty"`
	UptimeMS     *int64  `json:"uptime_ms,omitempty"`
}

// NFCStatus reflects the NTA5332 NFC chip state.
type NFCStatus struct {
	StatusRegister *string `json:"status_register,omitempty"`
	RFField        *string `json:"rf_field,omitempty"`
	NFCActive      *bool   `json:"nfc_active,omitempty"`
	I2CReady       *bool   `json:"i2c_ready,omitempty"`
	EEPROM         *string `json:"eeprom_status,omitempty"`
	SRAM           *string `json:"sram_status,omitempty"`
}

// CoulombStatus combines LTC2959 device status with any measurement values
// present in the same reply.
type CoulombStatus struct {
	BatteryReading

	StatusRegister *string `json:"status_register,omitempty"`
	ADCMode        *string `json:"adc_mode,omitempty"`
	CoulombCounter *string `json:"coulomb_counter,omitempty"`
	ChargeComplete *bool   `json:"charge_complete,omitempty"`
}

// GPIOState describes one pin. Port and Pin identify the pin the command
// addressed; they come from the caller, not from the reply.
type GPIOState struct {
	Port      string  `json:"port,omitempty"`
	Pin       int     `json:"pin"`
	Value     *int    `json:"value,omitempty"`
	Direction *string `json:"direction,omitempty"`
	State     *string `json:"state,omitempty"`
}

// RTCStatus covers the internal RTC counter and the external PCF2131.
type RTCStatus struct {
	Counter         *int64  `json:"counter,omitempty"`
	External        *string `json:"external,omitempty"`
	InterruptAction *string `json:"interrupt_action,omitempty"`
	BatteryLow      *bool   `json:"battery_low,omitempty"`
}

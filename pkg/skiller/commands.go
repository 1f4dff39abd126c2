// SPDX-License-Identifier: GPL-3.0-only

package skiller

const (
	// ReportID is the HID report ID carried in byte 0 of every command.
	ReportID byte = 0x07

	// ReportSize is the fixed length of every command report in bytes.
	ReportSize = 8

	// MaxBrightnessLevel is the highest static brightness level the
	// firmware understands. ColorCommand implies it.
	MaxBrightnessLevel uint8 = 10
)

// Command selector bytes at offset 1 of the report.
const (
	cmdPollingRate   byte = 0x01
	cmdSwitchProfile byte = 0x02
	cmdLighting      byte = 0x0a
	cmdWinKey        byte = 0x0b
)

// Effect bytes at offset 3 of a lighting report. Static effects use the
// brightness level itself; these two select the animated effects.
const (
	effectPulsating byte = 0x0b
	effectCycle     byte = 0x0c
)

// lightingParam is a fixed byte at offset 4 of every lighting report.
// Its meaning is unknown; the stock Windows tool always sends it.
const lightingParam byte = 0x04

// Offsets of the variable fields within a report.
const (
	offCommand = 1
	offProfile = 2
	offEffect  = 3
	offParam   = 4
	offColor   = 6
)

// SwitchProfileCommand returns the report that activates a profile slot.
// The firmware also requires this report as a preamble before lighting
// writes, which Keyboard takes care of.
func SwitchProfileCommand(profile Profile) []byte {
	report := make([]byte, ReportSize)
	report[0] = ReportID
	report[offCommand] = cmdSwitchProfile
	report[offProfile] = byte(profile)
	return report
}

// ColorCommand returns the report that sets a profile slot to a static
// color at full brightness.
func ColorCommand(color Color, profile Profile) []byte {
	return lightingReport(profile, MaxBrightnessLevel, byte(color))
}

// BrightnessCommand returns the report that writes a lighting effect to a
// profile slot. The brightness value goes onto the wire as-is: levels or
// colors the firmware does not know are not rejected here.
func BrightnessCommand(brightness Brightness, profile Profile) []byte {
	switch brightness.Mode {
	case ModePulsating:
		return lightingReport(profile, effectPulsating, byte(brightness.Color))
	case ModeCycle:
		// The cycle effect runs through all colors and ignores the
		// color byte; the stock tool zeroes it.
		return lightingReport(profile, effectCycle, 0)
	default:
		return lightingReport(profile, brightness.Level, byte(brightness.Color))
	}
}

// PollingRateCommand returns the report that sets the global USB polling
// rate. The rate applies to the whole keyboard, not a profile slot.
func PollingRateCommand(rate PollingRate) []byte {
	report := make([]byte, ReportSize)
	report[0] = ReportID
	report[offCommand] = cmdPollingRate
	report[offProfile] = byte(rate)
	return report
}

// WinKeyCommand returns the report that enables or disables the Windows
// key for a profile slot. The firmware flag is inverted: 0 enables the
// key, 1 disables it.
func WinKeyCommand(enabled bool, profile Profile) []byte {
	report := make([]byte, ReportSize)
	report[0] = ReportID
	report[offCommand] = cmdWinKey
	report[offProfile] = byte(profile)
	if !enabled {
		report[offEffect] = 1
	}
	return report
}

func lightingReport(profile Profile, effect byte, color byte) []byte {
	report := make([]byte, ReportSize)
	report[0] = ReportID
	report[offCommand] = cmdLighting
	report[offProfile] = byte(profile)
	report[offEffect] = effect
	report[offParam] = lightingParam
	report[offColor] = color
	return report
}

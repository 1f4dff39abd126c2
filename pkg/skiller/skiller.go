// SPDX-License-Identifier: GPL-3.0-only

// Package skiller drives the lighting and input settings of the Sharkoon
// Skiller Pro+ keyboard over USB HID feature reports.
//
// The firmware stores settings in three on-board profile slots. Every
// setting is written with a fixed 8-byte feature report; the package maps
// the exported Color, Brightness, Profile and PollingRate values onto the
// byte codes the firmware expects and sends them through an open Keyboard
// handle.
package skiller

import (
	"fmt"
	"strings"
)

// Color is one of the LED colors supported by the keyboard firmware.
// The constant values are the wire codes written into lighting reports.
type Color uint8

const (
	Red Color = iota
	Green
	Blue
	Purple
	Cyan
	Yellow
	White
)

// String returns the lowercase color name, or a hex form for codes the
// firmware does not document.
func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case Purple:
		return "purple"
	case Cyan:
		return "cyan"
	case Yellow:
		return "yellow"
	case White:
		return "white"
	default:
		return fmt.Sprintf("color(0x%02x)", uint8(c))
	}
}

// ParseColor converts a color name to its Color value. Matching is
// case-insensitive.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(s) {
	case "red":
		return Red, nil
	case "green":
		return Green, nil
	case "blue":
		return Blue, nil
	case "purple":
		return Purple, nil
	case "cyan":
		return Cyan, nil
	case "yellow":
		return Yellow, nil
	case "white":
		return White, nil
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

// Profile identifies one of the keyboard's three on-board memory slots.
// The constant values are the wire codes written into command reports.
type Profile uint8

const (
	P1 Profile = iota + 1
	P2
	P3
)

// String returns the lowercase slot name ("p1".."p3"), or a hex form for
// slots the firmware does not document.
func (p Profile) String() string {
	switch p {
	case P1:
		return "p1"
	case P2:
		return "p2"
	case P3:
		return "p3"
	default:
		return fmt.Sprintf("profile(0x%02x)", uint8(p))
	}
}

// ParseProfile converts a slot name ("p1".."p3") to its Profile value.
// Matching is case-insensitive.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(s) {
	case "p1":
		return P1, nil
	case "p2":
		return P2, nil
	case "p3":
		return P3, nil
	}
	return 0, fmt.Errorf("unknown profile %q", s)
}

// PollingRate is the global USB polling rate of the keyboard. The constant
// values are the wire codes of the polling-rate report; note that a higher
// rate has a lower code.
type PollingRate uint8

const (
	PollingRate125Hz  PollingRate = 8
	PollingRate250Hz  PollingRate = 4
	PollingRate500Hz  PollingRate = 2
	PollingRate1000Hz PollingRate = 1
)

// Hz returns the polling rate in Hertz, or 0 for codes the firmware does
// not document.
func (r PollingRate) Hz() uint32 {
	switch r {
	case PollingRate125Hz:
		return 125
	case PollingRate250Hz:
		return 250
	case PollingRate500Hz:
		return 500
	case PollingRate1000Hz:
		return 1000
	default:
		return 0
	}
}

func (r PollingRate) String() string {
	if hz := r.Hz(); hz != 0 {
		return fmt.Sprintf("%dhz", hz)
	}
	return fmt.Sprintf("pollingrate(0x%02x)", uint8(r))
}

// PollingRateFromHz converts a rate in Hertz to its PollingRate value.
func PollingRateFromHz(hz uint32) (PollingRate, error) {
	switch hz {
	case 125:
		return PollingRate125Hz, nil
	case 250:
		return PollingRate250Hz, nil
	case 500:
		return PollingRate500Hz, nil
	case 1000:
		return PollingRate1000Hz, nil
	}
	return 0, fmt.Errorf("unsupported polling rate %d Hz", hz)
}

// BrightnessMode selects the lighting effect family of a Brightness value.
type BrightnessMode uint8

const (
	// ModeStatic shows the configured color at a fixed brightness level.
	ModeStatic BrightnessMode = iota
	// ModePulsating fades the configured color in and out.
	ModePulsating
	// ModeCycle pulses through all colors; the color payload is ignored.
	ModeCycle
)

func (m BrightnessMode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModePulsating:
		return "pulsating"
	case ModeCycle:
		return "cycle"
	default:
		return fmt.Sprintf("mode(0x%02x)", uint8(m))
	}
}

// ParseBrightnessMode converts an effect name to its BrightnessMode value.
// Matching is case-insensitive.
func ParseBrightnessMode(s string) (BrightnessMode, error) {
	switch strings.ToLower(s) {
	case "static":
		return ModeStatic, nil
	case "pulsating":
		return ModePulsating, nil
	case "cycle":
		return ModeCycle, nil
	}
	return 0, fmt.Errorf("unknown brightness mode %q", s)
}

// Brightness describes the lighting effect written to a profile slot.
//
// For ModeStatic the Level field is the raw effect byte; the firmware's
// full scale ends at MaxBrightnessLevel. Level and Color are passed through
// unvalidated: combinations the firmware rejects are the firmware's
// business, not this package's.
type Brightness struct {
	Mode  BrightnessMode
	Level uint8
	Color Color
}

// Static returns a fixed-brightness effect showing color at level.
func Static(level uint8, color Color) Brightness {
	return Brightness{Mode: ModeStatic, Level: level, Color: color}
}

// Pulsating returns a fading effect in the given color.
func Pulsating(color Color) Brightness {
	return Brightness{Mode: ModePulsating, Color: color}
}

// Cycle returns the all-colors pulse effect.
func Cycle() Brightness {
	return Brightness{Mode: ModeCycle}
}

func (b Brightness) String() string {
	switch b.Mode {
	case ModeStatic:
		return fmt.Sprintf("static(level=%d, color=%s)", b.Level, b.Color)
	case ModePulsating:
		return fmt.Sprintf("pulsating(color=%s)", b.Color)
	default:
		return b.Mode.String()
	}
}

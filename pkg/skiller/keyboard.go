package skiller

import (
	"fmt"
	"sync"
)

const (
	// VendorID is the USB vendor ID of Holtek Semiconductor, whose
	// controller drives the Skiller Pro+.
	VendorID uint16 = 0x04d9

	// ProductID is the USB product ID of the Sharkoon Skiller Pro+.
	ProductID uint16 = 0xa096

	// ControlInterface is the USB interface number that accepts setting
	// commands. Interface 0 is the plain keyboard input endpoint.
	ControlInterface = 0x01
)

// Keyboard represents a Skiller Pro+ keyboard with its setting controls.
// All methods are thread-safe and can be called concurrently.
type Keyboard struct {
	device Device
	mu     sync.Mutex
	closed bool
}

// NewKeyboard creates a new Keyboard instance wrapping the given HID device.
func NewKeyboard(device Device) *Keyboard {
	return &Keyboard{device: device}
}

// ErrKeyboardClosed is returned when an operation is attempted on a closed keyboard.
var ErrKeyboardClosed = fmt.Errorf("keyboard is closed")

// SetColor sets a profile slot to a static color at full brightness.
// The firmware wants the slot activated before the lighting write, so this
// sends a switch-profile report followed by the color report.
func (k *Keyboard) SetColor(color Color, profile Profile) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKeyboardClosed
	}

	return k.send(SwitchProfileCommand(profile), ColorCommand(color, profile))
}

// SetBrightness writes a lighting effect to a profile slot. Like SetColor,
// the slot is activated first.
func (k *Keyboard) SetBrightness(brightness Brightness, profile Profile) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKeyboardClosed
	}

	return k.send(SwitchProfileCommand(profile), BrightnessCommand(brightness, profile))
}

// SetProfile activates a profile slot.
func (k *Keyboard) SetProfile(profile Profile) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKeyboardClosed
	}

	return k.send(SwitchProfileCommand(profile))
}

// SetPollingRate sets the global USB polling rate of the keyboard.
func (k *Keyboard) SetPollingRate(rate PollingRate) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKeyboardClosed
	}

	return k.send(PollingRateCommand(rate))
}

// SetWinKey enables or disables the Windows key for a profile slot.
func (k *Keyboard) SetWinKey(enabled bool, profile Profile) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKeyboardClosed
	}

	return k.send(WinKeyCommand(enabled, profile))
}

// send writes the given reports to the device in order. The caller must
// hold k.mu.
func (k *Keyboard) send(reports ...[]byte) error {
	for _, report := range reports {
		if _, err := k.device.SendFeatureReport(report); err != nil {
			return fmt.Errorf("failed to send feature report: %w", err)
		}
	}
	return nil
}

// Info returns information about the underlying device.
// This method does not require locking as device info is immutable.
func (k *Keyboard) Info() DeviceInfo {
	return k.device.Info()
}

// Serial returns the serial number of the keyboard.
func (k *Keyboard) Serial() string {
	return k.device.Info().Serial
}

// ProductName returns the product name of the keyboard.
func (k *Keyboard) ProductName() string {
	return k.device.Info().Product
}

// Close closes the underlying HID device.
func (k *Keyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil // Already closed
	}

	k.closed = true
	return k.device.Close()
}

package skiller

import (
	"errors"
	"strings"
	"syscall"
)

// ErrKeyboardNotFound is returned when no Skiller Pro+ keyboard is
// connected, or none matches the requested serial number.
var ErrKeyboardNotFound = errors.New("no Skiller Pro+ keyboard found")

// IsKeyboardGoneError reports whether err indicates that the keyboard was
// disconnected, as opposed to a transient transport failure. It recognizes
// the errno values the kernel returns for a vanished USB device as well as
// hidapi error strings, which flatten the errno into text.
func IsKeyboardGoneError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ENODEV) || errors.Is(err, syscall.ENXIO) || errors.Is(err, syscall.EIO) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such device") || strings.Contains(msg, "device disconnected")
}

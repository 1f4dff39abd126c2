package skiller

//go:generate mockgen -source=device.go -destination=mocks/device_mock.go -package=mocks

// DeviceInfo contains information about a HID endpoint of a keyboard.
type DeviceInfo struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Serial       string
	Manufacturer string
	Product      string
	Interface    int
}

// Device represents an interface for HID device operations.
// This interface allows for mocking in tests. The Skiller Pro+ protocol is
// write-only, so there is no read counterpart.
type Device interface {
	// SendFeatureReport writes a feature report to the device.
	// The first byte is the report ID.
	SendFeatureReport(data []byte) (int, error)

	// Close closes the device handle.
	Close() error

	// Info returns information about the device.
	Info() DeviceInfo
}

// Opener is a function type that opens the control endpoint of a keyboard
// by serial number. An empty serial opens the first keyboard found.
type Opener func(serial string) (Device, error)

// Enumerator is a function type that lists the control endpoints of all
// connected keyboards.
type Enumerator func() ([]DeviceInfo, error)

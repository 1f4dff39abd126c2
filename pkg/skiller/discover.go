package skiller

import (
	"errors"
	"time"
)

// defaultPollInterval is how often Discover rescans the bus while waiting
// for a keyboard to appear.
const defaultPollInterval = 250 * time.Millisecond

// DiscoverOption is a functional option for configuring Discover.
type DiscoverOption func(*discoverer)

type discoverer struct {
	opener       Opener
	pollInterval time.Duration
}

// WithOpener sets a custom device opener for testing.
func WithOpener(fn Opener) DiscoverOption {
	return func(d *discoverer) {
		d.opener = fn
	}
}

// WithPollInterval sets the rescan interval used while waiting for a
// keyboard to appear.
func WithPollInterval(interval time.Duration) DiscoverOption {
	return func(d *discoverer) {
		d.pollInterval = interval
	}
}

// defaultDiscoverOpener wraps OpenKeyboard to match the Opener signature.
func defaultDiscoverOpener(serial string) (Device, error) {
	return OpenKeyboard(serial)
}

// Discover scans the bus for a Skiller Pro+ keyboard and returns an open
// handle to the first one found, rescanning until timeout has elapsed.
// USB devices enumerate slowly after plug-in, so a timeout of a second or
// two makes discovery robust right after hotplug.
//
// A timeout of zero or less performs exactly one scan. When the timeout
// expires without a keyboard appearing, the returned error wraps
// ErrKeyboardNotFound; enumeration and open failures are returned as-is.
func Discover(timeout time.Duration, opts ...DiscoverOption) (*Keyboard, error) {
	d := &discoverer{
		opener:       defaultDiscoverOpener,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}

	deadline := time.Now().Add(timeout)
	for {
		device, err := d.opener("")
		if err == nil {
			return NewKeyboard(device), nil
		}
		if !errors.Is(err, ErrKeyboardNotFound) {
			return nil, err
		}

		remaining := time.Until(deadline)
		if timeout <= 0 || remaining <= 0 {
			return nil, err
		}

		sleep := d.pollInterval
		if remaining < sleep {
			sleep = remaining
		}
		time.Sleep(sleep)
	}
}

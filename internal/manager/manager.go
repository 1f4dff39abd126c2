// SPDX-License-Identifier: GPL-3.0-only

// Package manager tracks the set of connected Skiller Pro+ keyboards and
// owns their open handles.
package manager

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/PotatoMaaan/libskiller/pkg/skiller"
)

// Manager handles the lifecycle of multiple Skiller Pro+ keyboards.
type Manager struct {
	keyboards  map[string]*skiller.Keyboard // serial -> keyboard
	mu         sync.RWMutex
	enumerator skiller.Enumerator
	opener     skiller.Opener
}

// Option is a functional option for configuring a Manager.
type Option func(*Manager)

// WithEnumerator sets a custom device enumerator for testing.
func WithEnumerator(fn skiller.Enumerator) Option {
	return func(m *Manager) {
		m.enumerator = fn
	}
}

// WithOpener sets a custom device opener for testing.
func WithOpener(fn skiller.Opener) Option {
	return func(m *Manager) {
		m.opener = fn
	}
}

// New creates a new keyboard manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		keyboards:  make(map[string]*skiller.Keyboard),
		enumerator: skiller.EnumerateKeyboards,
		opener:     defaultOpener,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// defaultOpener wraps OpenKeyboard to match the Opener signature.
func defaultOpener(serial string) (skiller.Device, error) {
	return skiller.OpenKeyboard(serial)
}

// ListKeyboards returns information about all connected keyboards.
func (m *Manager) ListKeyboards() []skiller.DeviceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]skiller.DeviceInfo, 0, len(m.keyboards))
	for _, k := range m.keyboards {
		infos = append(infos, k.Info())
	}
	return infos
}

// GetKeyboard returns a keyboard by serial number.
func (m *Manager) GetKeyboard(serial string) (*skiller.Keyboard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keyboard, ok := m.keyboards[serial]
	if !ok {
		return nil, fmt.Errorf("keyboard with serial %s: %w", serial, skiller.ErrKeyboardNotFound)
	}
	return keyboard, nil
}

// RefreshKeyboards re-enumerates connected keyboards and updates the internal state.
// It opens new keyboards and closes disconnected ones.
func (m *Manager) RefreshKeyboards() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Enumerate current keyboards
	currentDevices, err := m.enumerator()
	if err != nil {
		return fmt.Errorf("failed to enumerate keyboards: %w", err)
	}

	currentSerials := make(map[string]skiller.DeviceInfo)
	for _, info := range currentDevices {
		currentSerials[info.Serial] = info
	}

	// Find and close disconnected keyboards
	for serial, keyboard := range m.keyboards {
		if _, exists := currentSerials[serial]; !exists {
			log.Info().Str("serial", serial).Msg("Keyboard disconnected")
			if err := keyboard.Close(); err != nil {
				log.Warn().Err(err).Str("serial", serial).Msg("Failed to close disconnected keyboard")
			}
			delete(m.keyboards, serial)
		}
	}

	// Open new keyboards
	for serial, info := range currentSerials {
		if _, exists := m.keyboards[serial]; !exists {
			device, err := m.opener(serial)
			if err != nil {
				log.Error().Err(err).Str("serial", serial).Msg("Failed to open keyboard")
				continue
			}
			m.keyboards[serial] = skiller.NewKeyboard(device)
			log.Info().Str("serial", serial).Str("product", info.Product).Msg("Keyboard connected")
		}
	}

	return nil
}

// Close closes all open keyboards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for serial, keyboard := range m.keyboards {
		if err := keyboard.Close(); err != nil {
			log.Error().Err(err).Str("serial", serial).Msg("Failed to close keyboard")
		}
		delete(m.keyboards, serial)
	}
	return nil
}

// Count returns the number of connected keyboards.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keyboards)
}

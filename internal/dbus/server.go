// SPDX-License-Identifier: GPL-3.0-only

// Package dbus provides the D-Bus service implementation for Skiller Pro+ keyboard control.
package dbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/PotatoMaaan/libskiller/pkg/skiller"
)

// ErrEmptySerial is returned when an empty serial number is provided.
var ErrEmptySerial = errors.New("serial cannot be empty")

// ErrRateLimitExceeded is returned when setting change requests exceed the rate limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

const (
	// rateLimitPerSecond is the maximum number of setting changes per second.
	rateLimitPerSecond = 20

	// rateLimitBurst is the maximum burst size for setting changes.
	rateLimitBurst = 5
)

const (
	// ServiceName is the D-Bus service name.
	ServiceName = "io.github.potatomaaan.Skiller"

	// ObjectPath is the D-Bus object path.
	ObjectPath = "/io/github/potatomaaan/Skiller"

	// InterfaceName is the D-Bus interface name.
	InterfaceName = "io.github.potatomaaan.Skiller"
)

// IntrospectXML is the D-Bus introspection XML for the service.
const IntrospectXML = `
<node name="` + ObjectPath + `">
  <interface name="` + InterfaceName + `">
    <method name="ListKeyboards">
      <arg name="keyboards" type="a(ss)" direction="out"/>
    </method>
    <method name="RefreshKeyboards"/>
    <method name="SetColor">
      <arg name="serial" type="s" direction="in"/>
      <arg name="color" type="s" direction="in"/>
      <arg name="profile" type="s" direction="in"/>
    </method>
    <method name="SetBrightness">
      <arg name="serial" type="s" direction="in"/>
      <arg name="mode" type="s" direction="in"/>
      <arg name="level" type="u" direction="in"/>
      <arg name="color" type="s" direction="in"/>
      <arg name="profile" type="s" direction="in"/>
    </method>
    <method name="SetProfile">
      <arg name="serial" type="s" direction="in"/>
      <arg name="profile" type="s" direction="in"/>
    </method>
    <method name="SetPollingRate">
      <arg name="serial" type="s" direction="in"/>
      <arg name="rate" type="u" direction="in"/>
    </method>
    <method name="SetWinKey">
      <arg name="serial" type="s" direction="in"/>
      <arg name="enabled" type="b" direction="in"/>
      <arg name="profile" type="s" direction="in"/>
    </method>
    <method name="SetAllColor">
      <arg name="color" type="s" direction="in"/>
      <arg name="profile" type="s" direction="in"/>
    </method>
    <signal name="KeyboardAdded">
      <arg name="serial" type="s"/>
      <arg name="productName" type="s"/>
    </signal>
    <signal name="KeyboardRemoved">
      <arg name="serial" type="s"/>
    </signal>
    <signal name="ColorChanged">
      <arg name="serial" type="s"/>
      <arg name="color" type="s"/>
      <arg name="profile" type="s"/>
    </signal>
    <signal name="BrightnessChanged">
      <arg name="serial" type="s"/>
      <arg name="mode" type="s"/>
      <arg name="profile" type="s"/>
    </signal>
  </interface>
  ` + introspect.IntrospectDataString + `
</node>
`

// KeyboardManager is an interface for managing keyboards.
// This allows for mocking in tests.
type KeyboardManager interface {
	// ListKeyboards returns information about all connected keyboards.
	ListKeyboards() []skiller.DeviceInfo

	// GetKeyboard returns a keyboard by serial number.
	GetKeyboard(serial string) (*skiller.Keyboard, error)

	// RefreshKeyboards re-enumerates connected keyboards.
	RefreshKeyboards() error
}

// DeviceErrorHandler is called when a device error (e.g., keyboard disconnected) is detected.
// This allows the caller to trigger recovery actions like re-enumerating keyboards.
type DeviceErrorHandler func(serial string, err error)

// KeyboardInfo represents keyboard information returned via D-Bus.
// Serializes to D-Bus type (ss) - a struct containing serial and product name.
type KeyboardInfo struct {
	Serial      string
	ProductName string
}

// Server implements the D-Bus service for keyboard control.
//
// Thread safety:
//   - The underlying Manager and Keyboard types are individually thread-safe,
//     and the Keyboard mutex keeps the switch-profile preamble and the
//     lighting write of a single call together.
//   - The connMu mutex protects the D-Bus connection field for signal emission.
//   - The handlerMu mutex protects the deviceErrorHandler field.
type Server struct {
	conn               *dbus.Conn
	connMu             sync.RWMutex // Protects conn field only
	manager            KeyboardManager
	rateLimiter        *rate.Limiter
	handlerMu          sync.RWMutex // Protects deviceErrorHandler
	deviceErrorHandler DeviceErrorHandler
}

// NewServer creates a new D-Bus server with the given keyboard manager.
func NewServer(manager KeyboardManager) *Server {
	return &Server{
		manager:     manager,
		rateLimiter: rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
	}
}

// Start connects to the session bus and exports the service.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	// Ensure connection is closed if setup fails
	success := false
	defer func() {
		if !success {
			if closeErr := conn.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("Failed to close D-Bus connection during cleanup")
			}
		}
	}()

	// Export the server object
	err = conn.Export(s, ObjectPath, InterfaceName)
	if err != nil {
		return fmt.Errorf("failed to export server: %w", err)
	}

	// Export introspectable interface
	err = conn.Export(introspect.Introspectable(IntrospectXML), ObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	// Request the service name
	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}

	// Store connection with mutex protection
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	success = true
	log.Info().Str("service", ServiceName).Msg("D-Bus service started")
	return nil
}

// Stop disconnects from the session bus.
func (s *Server) Stop() error {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// SetDeviceErrorHandler sets the callback invoked when device errors are detected.
// This is typically used to trigger recovery actions like re-enumerating keyboards
// when a keyboard is found to be disconnected during setting operations.
//
// This method is thread-safe and can be called at any time.
func (s *Server) SetDeviceErrorHandler(handler DeviceErrorHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.deviceErrorHandler = handler
}

// handleDeviceError checks if the error indicates a disconnected keyboard and triggers recovery.
// Returns true if the error was a device error and recovery was triggered.
func (s *Server) handleDeviceError(serial string, err error) bool {
	if err == nil || !skiller.IsKeyboardGoneError(err) {
		return false
	}

	log.Warn().
		Err(err).
		Str("serial", serial).
		Msg("Device error detected, triggering recovery")

	s.handlerMu.RLock()
	handler := s.deviceErrorHandler
	s.handlerMu.RUnlock()

	if handler != nil {
		// Run recovery asynchronously to not block the D-Bus response
		go handler(serial, err)
	}

	return true
}

// ListKeyboards returns a list of all connected keyboards.
// Returns an array of structs: [{Serial, ProductName}, ...]
func (s *Server) ListKeyboards() ([]KeyboardInfo, *dbus.Error) {
	keyboards := s.manager.ListKeyboards()
	result := make([]KeyboardInfo, len(keyboards))
	for i, k := range keyboards {
		result[i] = KeyboardInfo{Serial: k.Serial, ProductName: k.Product}
	}

	log.Debug().Int("count", len(result)).Msg("Listed keyboards")
	return result, nil
}

// RefreshKeyboards re-enumerates connected keyboards on request.
func (s *Server) RefreshKeyboards() *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for RefreshKeyboards")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if err := s.manager.RefreshKeyboards(); err != nil {
		log.Error().Err(err).Msg("Failed to refresh keyboards")
		return dbus.MakeFailedError(err)
	}

	log.Debug().Msg("Refreshed keyboards")
	return nil
}

// SetColor sets a profile slot of a keyboard to a static color at full
// brightness.
func (s *Server) SetColor(serial, colorName, profileName string) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetColor")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if serial == "" {
		return dbus.MakeFailedError(ErrEmptySerial)
	}

	color, err := skiller.ParseColor(colorName)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	profile, err := skiller.ParseProfile(profileName)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	keyboard, err := s.manager.GetKeyboard(serial)
	if err != nil {
		log.Error().Err(err).Str("serial", serial).Msg("Failed to get keyboard")
		return dbus.MakeFailedError(err)
	}

	if err := keyboard.SetColor(color, profile); err != nil {
		s.handleDeviceError(serial, err)
		log.Error().Err(err).Str("serial", serial).Msg("Failed to set color")
		return dbus.MakeFailedError(err)
	}

	log.Debug().Str("serial", serial).Stringer("color", color).Stringer("profile", profile).Msg("Set color")

	// Emit signal
	s.emitColorChanged(serial, color, profile)

	return nil
}

// SetBrightness writes a lighting effect to a profile slot of a keyboard.
// The mode is one of "static", "pulsating" or "cycle"; level only applies
// to static mode and is clamped to the firmware's full scale; color is
// ignored by cycle mode.
func (s *Server) SetBrightness(serial, modeName string, level uint32, colorName, profileName string) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetBrightness")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if serial == "" {
		return dbus.MakeFailedError(ErrEmptySerial)
	}

	mode, err := skiller.ParseBrightnessMode(modeName)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	profile, err := skiller.ParseProfile(profileName)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	var brightness skiller.Brightness
	switch mode {
	case skiller.ModeCycle:
		brightness = skiller.Cycle()
	default:
		color, err := skiller.ParseColor(colorName)
		if err != nil {
			return dbus.MakeFailedError(err)
		}

		if mode == skiller.ModePulsating {
			brightness = skiller.Pulsating(color)
		} else {
			if level > uint32(skiller.MaxBrightnessLevel) {
				level = uint32(skiller.MaxBrightnessLevel)
			}
			// #nosec G115 -- level is clamped to 0-10, safe for uint8
			brightness = skiller.Static(uint8(level), color)
		}
	}

	keyboard, err := s.manager.GetKeyboard(serial)
	if err != nil {
		log.Error().Err(err).Str("serial", serial).Msg("Failed to get keyboard")
		return dbus.MakeFailedError(err)
	}

	if err := keyboard.SetBrightness(brightness, profile); err != nil {
		s.handleDeviceError(serial, err)
		log.Error().Err(err).Str("serial", serial).Msg("Failed to set brightness")
		return dbus.MakeFailedError(err)
	}

	log.Debug().Str("serial", serial).Stringer("brightness", brightness).Stringer("profile", profile).Msg("Set brightness")

	// Emit signal
	s.emitBrightnessChanged(serial, mode, profile)

	return nil
}

// SetProfile activates a profile slot of a keyboard.
func (s *Server) SetProfile(serial, profileName string) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetProfile")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if serial == "" {
		return dbus.MakeFailedError(ErrEmptySerial)
	}

	profile, err := skiller.ParseProfile(profileName)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	keyboard, err := s.manager.GetKeyboard(serial)
	if err != nil {
		log.Error().Err(err).Str("serial", serial).Msg("Failed to get keyboard")
		return dbus.MakeFailedError(err)
	}

	if err := keyboard.SetProfile(profile); err != nil {
		s.handleDeviceError(serial, err)
		log.Error().Err(err).Str("serial", serial).Msg("Failed to switch profile")
		return dbus.MakeFailedError(err)
	}

	log.Debug().Str("serial", serial).Stringer("profile", profile).Msg("Switched profile")
	return nil
}

// SetPollingRate sets the global USB polling rate of a keyboard.
// The rate is given in Hertz and must be one of 125, 250, 500 or 1000.
func (s *Server) SetPollingRate(serial string, rateHz uint32) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetPollingRate")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if serial == "" {
		return dbus.MakeFailedError(ErrEmptySerial)
	}

	pollingRate, err := skiller.PollingRateFromHz(rateHz)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	keyboard, err := s.manager.GetKeyboard(serial)
	if err != nil {
		log.Error().Err(err).Str("serial", serial).Msg("Failed to get keyboard")
		return dbus.MakeFailedError(err)
	}

	if err := keyboard.SetPollingRate(pollingRate); err != nil {
		s.handleDeviceError(serial, err)
		log.Error().Err(err).Str("serial", serial).Msg("Failed to set polling rate")
		return dbus.MakeFailedError(err)
	}

	log.Debug().Str("serial", serial).Uint32("rate", rateHz).Msg("Set polling rate")
	return nil
}

// SetWinKey enables or disables the Windows key for a profile slot of a
// keyboard.
func (s *Server) SetWinKey(serial string, enabled bool, profileName string) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetWinKey")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if serial == "" {
		return dbus.MakeFailedError(ErrEmptySerial)
	}

	profile, err := skiller.ParseProfile(profileName)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	keyboard, err := s.manager.GetKeyboard(serial)
	if err != nil {
		log.Error().Err(err).Str("serial", serial).Msg("Failed to get keyboard")
		return dbus.MakeFailedError(err)
	}

	if err := keyboard.SetWinKey(enabled, profile); err != nil {
		s.handleDeviceError(serial, err)
		log.Error().Err(err).Str("serial", serial).Msg("Failed to set win key")
		return dbus.MakeFailedError(err)
	}

	log.Debug().Str("serial", serial).Bool("enabled", enabled).Stringer("profile", profile).Msg("Set win key")
	return nil
}

// SetAllColor sets a profile slot of all connected keyboards to a static
// color at full brightness.
func (s *Server) SetAllColor(colorName, profileName string) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetAllColor")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	color, err := skiller.ParseColor(colorName)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	profile, err := skiller.ParseProfile(profileName)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	keyboards := s.manager.ListKeyboards()
	for _, info := range keyboards {
		keyboard, err := s.manager.GetKeyboard(info.Serial)
		if err != nil {
			log.Error().Err(err).Str("serial", info.Serial).Msg("Failed to get keyboard")
			continue
		}

		if err := keyboard.SetColor(color, profile); err != nil {
			s.handleDeviceError(info.Serial, err)
			log.Error().Err(err).Str("serial", info.Serial).Msg("Failed to set color")
			continue
		}

		s.emitColorChanged(info.Serial, color, profile)
	}

	log.Debug().Stringer("color", color).Int("count", len(keyboards)).Msg("Set all colors")
	return nil
}

// emitColorChanged emits the ColorChanged signal.
func (s *Server) emitColorChanged(serial string, color skiller.Color, profile skiller.Profile) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	err := conn.Emit(ObjectPath, InterfaceName+".ColorChanged", serial, color.String(), profile.String())
	if err != nil {
		log.Error().Err(err).Msg("Failed to emit ColorChanged signal")
	}
}

// emitBrightnessChanged emits the BrightnessChanged signal.
func (s *Server) emitBrightnessChanged(serial string, mode skiller.BrightnessMode, profile skiller.Profile) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	err := conn.Emit(ObjectPath, InterfaceName+".BrightnessChanged", serial, mode.String(), profile.String())
	if err != nil {
		log.Error().Err(err).Msg("Failed to emit BrightnessChanged signal")
	}
}

// EmitKeyboardAdded emits the KeyboardAdded signal.
func (s *Server) EmitKeyboardAdded(serial, productName string) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	err := conn.Emit(ObjectPath, InterfaceName+".KeyboardAdded", serial, productName)
	if err != nil {
		log.Error().Err(err).Msg("Failed to emit KeyboardAdded signal")
	}
	log.Info().Str("serial", serial).Str("product", productName).Msg("Keyboard added")
}

// EmitKeyboardRemoved emits the KeyboardRemoved signal.
func (s *Server) EmitKeyboardRemoved(serial string) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	err := conn.Emit(ObjectPath, InterfaceName+".KeyboardRemoved", serial)
	if err != nil {
		log.Error().Err(err).Msg("Failed to emit KeyboardRemoved signal")
	}
	log.Info().Str("serial", serial).Msg("Keyboard removed")
}

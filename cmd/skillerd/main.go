// Package main provides the entry point for the Skiller Pro+ keyboard daemon.
package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/PotatoMaaan/libskiller/internal/dbus"
	"github.com/PotatoMaaan/libskiller/internal/manager"
	"github.com/PotatoMaaan/libskiller/internal/udev"
	"github.com/PotatoMaaan/libskiller/pkg/skiller"
)

var (
	verbose bool
	rootCmd = &cobra.Command{
		Use:   "skillerd",
		Short: "D-Bus daemon for controlling Sharkoon Skiller Pro+ keyboards",
		Long: `skillerd is a D-Bus service that provides an interface
for controlling Sharkoon Skiller Pro+ gaming keyboards via USB HID.

It exposes methods for listing connected keyboards, switching profiles,
and setting backlight color, brightness mode, polling rate and win key
state, and emits signals when keyboards are connected or disconnected.`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func run() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("Starting skillerd")

	// Initialize keyboard manager
	mgr := manager.New()
	if err := mgr.RefreshKeyboards(); err != nil {
		log.Error().Err(err).Msg("Failed to enumerate keyboards")
	}

	keyboardCount := mgr.Count()
	if keyboardCount == 0 {
		log.Warn().Msg("No Skiller Pro+ keyboards found")
	} else {
		log.Info().Int("count", keyboardCount).Msg("Found Skiller Pro+ keyboards")
	}

	// Initialize D-Bus server
	server := dbus.NewServer(mgr)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start D-Bus server")
	}

	// A failed feature report usually means the keyboard was unplugged
	// mid-command, so treat it like a hot-plug event and re-enumerate.
	recovery := createRecoveryHandler(mgr, server)
	server.SetDeviceErrorHandler(func(serial string, err error) {
		log.Warn().Err(err).Str("serial", serial).Msg("Keyboard communication failed, re-enumerating")
		recovery()
	})

	// Initialize udev monitor for hot-plug detection
	monitor := udev.NewMonitor(createHotplugHandler(mgr, server))
	monitor.SetRecoveryHandler(recovery)
	if err := monitor.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start udev monitor (hot-plug detection disabled)")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("Daemon running, press Ctrl+C to stop")
	<-sigChan

	// Cleanup
	log.Info().Msg("Shutting down...")
	if err := monitor.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop udev monitor")
	}
	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop D-Bus server")
	}
	if err := mgr.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close keyboard manager")
	}

	log.Info().Msg("Daemon stopped")
}

// refreshMu serializes keyboard refresh operations to prevent race conditions
// between hotplug handlers and recovery handlers.
var refreshMu sync.Mutex

// refreshKeyboardsWithRetry attempts to refresh keyboards with linear backoff.
// It retries up to maxRetries times with increasing delays between attempts,
// treating an empty enumeration as a retryable condition. The returned bool
// reports whether any keyboard was found.
func refreshKeyboardsWithRetry(mgr *manager.Manager, maxRetries int) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff: 500ms, 1000ms, 1500ms, ...
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			log.Debug().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying keyboard refresh")
			time.Sleep(backoff)
		}

		if err := mgr.RefreshKeyboards(); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Int("maxRetries", maxRetries+1).
				Msg("Keyboard refresh failed")
			continue
		}

		if mgr.Count() == 0 {
			// HID enumeration can momentarily come back empty while the
			// device is still settling, so give it another chance.
			log.Debug().Int("attempt", attempt+1).Msg("Keyboard refresh found no keyboards")
			continue
		}

		if attempt > 0 {
			log.Info().Int("attempts", attempt+1).Msg("Keyboard refresh succeeded after retry")
		}
		return true, nil
	}
	return false, lastErr
}

// getKeyboardsSnapshot returns the currently known keyboards keyed by serial.
func getKeyboardsSnapshot(mgr *manager.Manager) map[string]skiller.DeviceInfo {
	snapshot := make(map[string]skiller.DeviceInfo)
	for _, info := range mgr.ListKeyboards() {
		snapshot[info.Serial] = info
	}
	return snapshot
}

// keyboardChanges describes the difference between two keyboard snapshots.
type keyboardChanges struct {
	added   []skiller.DeviceInfo
	removed []string
}

// diffKeyboards compares two snapshots and returns the added and removed keyboards.
func diffKeyboards(oldKeyboards, newKeyboards map[string]skiller.DeviceInfo) keyboardChanges {
	var changes keyboardChanges
	for serial, info := range newKeyboards {
		if _, exists := oldKeyboards[serial]; !exists {
			changes.added = append(changes.added, info)
		}
	}
	for serial := range oldKeyboards {
		if _, exists := newKeyboards[serial]; !exists {
			changes.removed = append(changes.removed, serial)
		}
	}
	return changes
}

// emitKeyboardChanges emits D-Bus signals for the given changes.
func emitKeyboardChanges(server *dbus.Server, changes keyboardChanges) {
	for _, info := range changes.added {
		server.EmitKeyboardAdded(info.Serial, info.Product)
	}
	for _, serial := range changes.removed {
		server.EmitKeyboardRemoved(serial)
	}
}

// createHotplugHandler returns an event handler that refreshes keyboards and emits D-Bus signals.
// The handler uses the shared refreshMu to prevent race conditions with recovery handlers.
func createHotplugHandler(mgr *manager.Manager, server *dbus.Server) udev.EventHandler {
	return func(event udev.Event) {
		// Use shared mutex to serialize with recovery handler
		refreshMu.Lock()
		defer refreshMu.Unlock()

		oldKeyboards := getKeyboardsSnapshot(mgr)

		// For add events, wait for the device to fully initialize.
		// USB devices need time to enumerate all interfaces before HID is accessible.
		// Remove events don't need this delay as the device is already gone.
		if event.Type == udev.EventAdd {
			time.Sleep(500 * time.Millisecond)
		}

		// Refresh keyboards with retry logic for resilience
		found, err := refreshKeyboardsWithRetry(mgr, 3)
		if err != nil {
			log.Error().Err(err).Msg("Failed to refresh keyboards after hot-plug event (all retries exhausted)")
			return
		}

		// An empty refresh may have raced device initialization. Skipping the
		// diff avoids emitting KeyboardRemoved for keyboards still present.
		if !found {
			log.Debug().Msg("No keyboards found after refresh, skipping change detection")
			return
		}

		newKeyboards := getKeyboardsSnapshot(mgr)
		emitKeyboardChanges(server, diffKeyboards(oldKeyboards, newKeyboards))
	}
}

// createRecoveryHandler returns a handler that re-enumerates keyboards after an
// error condition such as a netlink buffer overflow or a failed feature report.
// The handler uses the shared refreshMu to prevent race conditions with hotplug handlers.
func createRecoveryHandler(mgr *manager.Manager, server *dbus.Server) udev.RecoveryHandler {
	return func() {
		// Use shared mutex to serialize with hotplug handler
		refreshMu.Lock()
		defer refreshMu.Unlock()

		log.Info().Msg("Performing recovery refresh")

		oldKeyboards := getKeyboardsSnapshot(mgr)

		// Wait a moment for any pending USB operations to settle
		time.Sleep(500 * time.Millisecond)

		found, err := refreshKeyboardsWithRetry(mgr, 3)
		if err != nil {
			log.Error().Err(err).Msg("Recovery refresh failed (all retries exhausted)")
			return
		}

		if !found {
			log.Debug().Msg("No keyboards found during recovery, skipping change detection")
			return
		}

		newKeyboards := getKeyboardsSnapshot(mgr)
		emitKeyboardChanges(server, diffKeyboards(oldKeyboards, newKeyboards))

		log.Info().Int("keyboards", len(newKeyboards)).Msg("Recovery refresh completed")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

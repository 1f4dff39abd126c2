package skiller_test

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/PotatoMaaan/libskiller/pkg/skiller"
	"github.com/stretchr/testify/assert"
)

func TestIsKeyboardGoneError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "ENODEV",
			err:      syscall.ENODEV,
			expected: true,
		},
		{
			name:     "wrapped ENODEV",
			err:      fmt.Errorf("failed to send feature report: %w", syscall.ENODEV),
			expected: true,
		},
		{
			name:     "ENXIO",
			err:      syscall.ENXIO,
			expected: true,
		},
		{
			name:     "EIO",
			err:      syscall.EIO,
			expected: true,
		},
		{
			name:     "hidapi flattens errno into text",
			err:      errors.New("ioctl: No such device"),
			expected: true,
		},
		{
			name:     "hidapi disconnect message",
			err:      errors.New("hidapi: device disconnected"),
			expected: true,
		},
		{
			name:     "generic error",
			err:      errors.New("random error"),
			expected: false,
		},
		{
			name:     "keyboard not found is not a gone error",
			err:      skiller.ErrKeyboardNotFound,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, skiller.IsKeyboardGoneError(tt.err))
		})
	}
}

package skiller_test

import (
	"testing"

	"github.com/PotatoMaaan/libskiller/pkg/skiller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorCodes(t *testing.T) {
	// The constant values are the wire codes the firmware expects.
	require.Equal(t, skiller.Color(0), skiller.Red)
	require.Equal(t, skiller.Color(1), skiller.Green)
	require.Equal(t, skiller.Color(2), skiller.Blue)
	require.Equal(t, skiller.Color(3), skiller.Purple)
	require.Equal(t, skiller.Color(4), skiller.Cyan)
	require.Equal(t, skiller.Color(5), skiller.Yellow)
	require.Equal(t, skiller.Color(6), skiller.White)
}

func TestProfileCodes(t *testing.T) {
	require.Equal(t, skiller.Profile(1), skiller.P1)
	require.Equal(t, skiller.Profile(2), skiller.P2)
	require.Equal(t, skiller.Profile(3), skiller.P3)
}

func TestPollingRateCodes(t *testing.T) {
	// Higher rates have lower wire codes.
	require.Equal(t, skiller.PollingRate(8), skiller.PollingRate125Hz)
	require.Equal(t, skiller.PollingRate(4), skiller.PollingRate250Hz)
	require.Equal(t, skiller.PollingRate(2), skiller.PollingRate500Hz)
	require.Equal(t, skiller.PollingRate(1), skiller.PollingRate1000Hz)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected skiller.Color
		wantErr  bool
	}{
		{name: "red", input: "red", expected: skiller.Red},
		{name: "uppercase is accepted", input: "CYAN", expected: skiller.Cyan},
		{name: "mixed case is accepted", input: "Yellow", expected: skiller.Yellow},
		{name: "unknown color fails", input: "orange", wantErr: true},
		{name: "empty string fails", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			color, err := skiller.ParseColor(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, color)
		})
	}
}

func TestParseColor_RoundTrip(t *testing.T) {
	colors := []skiller.Color{
		skiller.Red, skiller.Green, skiller.Blue, skiller.Purple,
		skiller.Cyan, skiller.Yellow, skiller.White,
	}
	for _, color := range colors {
		parsed, err := skiller.ParseColor(color.String())
		require.NoError(t, err, "round-trip failed for %s", color)
		assert.Equal(t, color, parsed)
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected skiller.Profile
		wantErr  bool
	}{
		{name: "p1", input: "p1", expected: skiller.P1},
		{name: "uppercase is accepted", input: "P3", expected: skiller.P3},
		{name: "bare number fails", input: "2", wantErr: true},
		{name: "out of range slot fails", input: "p4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := skiller.ParseProfile(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, profile)
		})
	}
}

func TestParseBrightnessMode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected skiller.BrightnessMode
		wantErr  bool
	}{
		{name: "static", input: "static", expected: skiller.ModeStatic},
		{name: "pulsating", input: "pulsating", expected: skiller.ModePulsating},
		{name: "cycle", input: "Cycle", expected: skiller.ModeCycle},
		{name: "unknown mode fails", input: "rainbow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := skiller.ParseBrightnessMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestPollingRateFromHz(t *testing.T) {
	tests := []struct {
		name     string
		hz       uint32
		expected skiller.PollingRate
		wantErr  bool
	}{
		{name: "125 Hz", hz: 125, expected: skiller.PollingRate125Hz},
		{name: "250 Hz", hz: 250, expected: skiller.PollingRate250Hz},
		{name: "500 Hz", hz: 500, expected: skiller.PollingRate500Hz},
		{name: "1000 Hz", hz: 1000, expected: skiller.PollingRate1000Hz},
		{name: "unsupported rate fails", hz: 144, wantErr: true},
		{name: "zero fails", hz: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := skiller.PollingRateFromHz(tt.hz)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rate)
		})
	}
}

func TestPollingRate_Hz_RoundTrip(t *testing.T) {
	rates := []skiller.PollingRate{
		skiller.PollingRate125Hz, skiller.PollingRate250Hz,
		skiller.PollingRate500Hz, skiller.PollingRate1000Hz,
	}
	for _, rate := range rates {
		fromHz, err := skiller.PollingRateFromHz(rate.Hz())
		require.NoError(t, err, "round-trip failed for %s", rate)
		assert.Equal(t, rate, fromHz)
	}
}

func TestBrightnessConstructors(t *testing.T) {
	static := skiller.Static(7, skiller.Purple)
	assert.Equal(t, skiller.ModeStatic, static.Mode)
	assert.Equal(t, uint8(7), static.Level)
	assert.Equal(t, skiller.Purple, static.Color)

	pulsating := skiller.Pulsating(skiller.White)
	assert.Equal(t, skiller.ModePulsating, pulsating.Mode)
	assert.Equal(t, skiller.White, pulsating.Color)

	cycle := skiller.Cycle()
	assert.Equal(t, skiller.ModeCycle, cycle.Mode)
}

func TestBrightnessString(t *testing.T) {
	assert.Equal(t, "static(level=3, color=blue)", skiller.Static(3, skiller.Blue).String())
	assert.Equal(t, "pulsating(color=red)", skiller.Pulsating(skiller.Red).String())
	assert.Equal(t, "cycle", skiller.Cycle().String())
}

package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueewinq/shooter/internal/device"
)

func TestLookup(t *testing.T) {
	desktop, err := device.Lookup("DESKTOP")
	require.NoError(t, err)
	assert.Equal(t, 1920, desktop.Width)
	assert.Equal(t, 1080, desktop.Height)
	assert.Equal(t, 1.0, desktop.PixelRatio)
	assert.False(t, desktop.IsMobileView)
	assert.Empty(t, desktop.UserAgent, "desktop keeps the browser's own user agent")

	phone, err := device.Lookup("IPHONE_X")
	require.NoError(t, err)
	assert.Equal(t, 414, phone.Width)
	assert.Equal(t, 2.0, phone.PixelRatio)
	assert.True(t, phone.IsMobileView)
	assert.NotEmpty(t, phone.UserAgent)
}

func TestLookup_CaseInsensitive(t *testing.T) {
	a, err := device.Lookup("iphone_x")
	require.NoError(t, err)
	b, err := device.Lookup("IPHONE_X")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := device.Lookup("PALM_PILOT")
	assert.Error(t, err)
}

func TestNames_CoverAllPresets(t *testing.T) {
	names := device.Names()
	assert.Len(t, names, 4)
	for _, name := range names {
		_, err := device.Lookup(name)
		assert.NoError(t, err)
	}
}

func TestWindowSize(t *testing.T) {
	desktop, err := device.Lookup("DESKTOP")
	require.NoError(t, err)
	assert.Equal(t, "1920x1080", desktop.WindowSize())
}

func TestParseWindowSize(t *testing.T) {
	w, h, err := device.ParseWindowSize("1280x800")
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 800, h)

	for _, bad := range []string{"", "1280", "1280by800", "0x800", "-1x800", "axb"} {
		_, _, err := device.ParseWindowSize(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

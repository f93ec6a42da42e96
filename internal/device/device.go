// Package device defines the emulated device profiles a capture can run as.
package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Name identifies one of the built-in device profiles.
type Name string

const (
	Desktop          Name = "DESKTOP"
	IPhoneX          Name = "IPHONE_X"
	IPhone15         Name = "IPHONE_15"
	SamsungGalaxyS20 Name = "SAMSUNG_GALAXY_S20"
)

// Profile bundles the viewport geometry and identity of an emulated device.
// A Profile is looked up by name and then copied per session, so overrides
// (window size, user agent) never touch the preset table.
type Profile struct {
	Name         Name
	Width        int
	Height       int
	PixelRatio   float64
	IsMobileView bool
	UserAgent    string
}

var profiles = map[Name]Profile{
	Desktop: {
		Name:       Desktop,
		Width:      1920,
		Height:     1080,
		PixelRatio: 1.0,
	},
	IPhoneX: {
		Name:         IPhoneX,
		Width:        414,
		Height:       896,
		PixelRatio:   2.0,
		IsMobileView: true,
		UserAgent:    "Mozilla/5.0 (iPhone; CPU iPhone OS 12_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/12.0 Mobile/15E148 Safari/604.1",
	},
	IPhone15: {
		Name:         IPhone15,
		Width:        428,
		Height:       926,
		PixelRatio:   3.0,
		IsMobileView: true,
		UserAgent:    "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
	},
	SamsungGalaxyS20: {
		Name:         SamsungGalaxyS20,
		Width:        320,
		Height:       720,
		PixelRatio:   3.5,
		IsMobileView: true,
		UserAgent:    "Mozilla/5.0 (Linux; Android 10; Samsung Galaxy S20) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.93 Mobile Safari/537.36",
	},
}

// Lookup resolves a profile by name, case-insensitively.
func Lookup(name string) (Profile, error) {
	p, ok := profiles[Name(strings.ToUpper(strings.TrimSpace(name)))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown device profile %q", name)
	}
	return p, nil
}

// Names returns the set of known profile names.
func Names() []string {
	return []string{string(Desktop), string(IPhoneX), string(IPhone15), string(SamsungGalaxyS20)}
}

// WindowSize renders the profile dimensions as "widthxheight".
func (p Profile) WindowSize() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// Validate rejects profiles with non-positive geometry.
func (p Profile) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("device profile %s: width and height must be positive, got %dx%d", p.Name, p.Width, p.Height)
	}
	if p.PixelRatio <= 0 {
		return fmt.Errorf("device profile %s: pixel ratio must be positive, got %v", p.Name, p.PixelRatio)
	}
	return nil
}

// ParseWindowSize parses a "widthxheight" override string (e.g. "1280x720").
func ParseWindowSize(s string) (width, height int, err error) {
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("window size must be in the format 'widthxheight', e.g. '1920x1080': %q", s)
	}
	width, err = strconv.Atoi(parts[0])
	if err == nil {
		height, err = strconv.Atoi(parts[1])
	}
	if err != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("window size must be two positive integers separated by 'x': %q", s)
	}
	return width, height, nil
}

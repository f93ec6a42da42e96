package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marqueewinq/shooter/api/schemas"
)

// Artifact file names inside a unit's output directory.
const (
	ConfigFile             = "config.json"
	ScreenshotFile         = "screenshot.png"
	ElementsFile           = "elements.json"
	LabelledScreenshotFile = "screenshot.labelled.png"
	LogFile                = "log.txt"
)

// safeHostname flattens a hostname into a path-safe directory component.
func safeHostname(host string) string {
	replacer := strings.NewReplacer("..", "", "/", "", "\\", "", ":", "_")
	return replacer.Replace(host)
}

// BuildOutputDir derives and creates the unit's output directory under root:
// <root>/<host>/<host>__<backend>__<mode>__<confighash>/ where the hash
// covers the masked config, so re-running an identical request lands in the
// same place. The masked config is written as config.json.
func BuildOutputDir(root string, cfg *schemas.CaptureConfig) (string, error) {
	parsed, err := cfg.ParsedURL()
	if err != nil {
		return "", err
	}
	host := safeHostname(parsed.Hostname())

	mode := "viewport"
	if cfg.FullPageScreenshot {
		mode = "fullpage"
	}
	hash, err := cfg.Hash()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(root, host, fmt.Sprintf("%s__%s__%s__%s", host, cfg.Browser, mode, hash))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	masked, err := cfg.MaskedMap()
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding config artifact: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), raw, 0o644); err != nil {
		return "", fmt.Errorf("writing config artifact: %w", err)
	}
	return dir, nil
}

// VerifyWritable proves the output root is usable before any browser work
// starts, retrying briefly to ride out slow volume mounts.
func VerifyWritable(root string) error {
	const attempts = 5

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(time.Duration(i) * 200 * time.Millisecond)
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			lastErr = err
			continue
		}
		probe := filepath.Join(root, ".write_check")
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			lastErr = err
			continue
		}
		os.Remove(probe)
		return nil
	}
	return fmt.Errorf("output directory %q is not writable: %w", root, lastErr)
}

// Package schemas holds the shared request/response types exchanged between
// the HTTP layer, the capture engine, and the result store.
package schemas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/marqueewinq/shooter/internal/action"
	"github.com/marqueewinq/shooter/internal/device"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Backend selects the browser binary flavor driven over CDP.
type Backend string

const (
	BackendChrome   Backend = "chrome"
	BackendChromium Backend = "chromium"
)

// ValidateURL applies the stricter constraints capture targets must satisfy:
// an explicit http/https scheme, a host, a sane port, and no consecutive
// dots in the host part.
func ValidateURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("missing URL scheme (protocol) in %q", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q (only 'http' and 'https' are allowed)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("missing network location in URL %q", raw)
	}
	if strings.Contains(parsed.Host, "..") {
		return nil, fmt.Errorf("URL %q contains consecutive dots in the host", raw)
	}
	if port := parsed.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid port number in URL %q", raw)
		}
	}
	return parsed, nil
}

// ProxyConfig holds the connection details for one upstream proxy endpoint.
type ProxyConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Protocol string `json:"protocol,omitempty"`
}

// ConnectionString renders the proxy as a connection URL. With masked set,
// the password is replaced so the result is safe for logs and artifacts.
func (p ProxyConfig) ConnectionString(masked bool) string {
	protocol := p.Protocol
	if protocol == "" {
		protocol = "https"
	}
	password := "***"
	if !masked {
		password = url.QueryEscape(p.Password)
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d", protocol, url.QueryEscape(p.Username), password, p.Host, p.Port)
}

// ProxyList accepts either a single proxy object or an ordered list of them;
// the order is the rotation order on retryable load failures.
type ProxyList []ProxyConfig

// UnmarshalJSON implements the single-or-list decoding.
func (pl *ProxyList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*pl = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []ProxyConfig
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*pl = list
		return nil
	}
	var single ProxyConfig
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*pl = ProxyList{single}
	return nil
}

// ConnectionStrings renders the rotation list, optionally masked.
func (pl ProxyList) ConnectionStrings(masked bool) []string {
	if len(pl) == 0 {
		return nil
	}
	out := make([]string, 0, len(pl))
	for _, p := range pl {
		out = append(out, p.ConnectionString(masked))
	}
	return out
}

// CaptureConfig is the full configuration of one capture unit.
// Durations are expressed in seconds, matching the wire format.
type CaptureConfig struct {
	URL                      string          `json:"url"`
	FullPageScreenshot       bool            `json:"full_page_screenshot"`
	Browser                  Backend         `json:"browser"`
	CaptureVisibleElements   bool            `json:"capture_visible_elements"`
	CaptureInvisibleElements bool            `json:"capture_invisible_elements"`
	WindowSize               string          `json:"window_size,omitempty"`
	UserAgent                string          `json:"user_agent,omitempty"`
	Proxy                    ProxyList       `json:"proxy,omitempty"`
	WaitAfterLoad            float64         `json:"wait_after_load"`
	WaitBeforeLoad           *float64        `json:"wait_before_load,omitempty"`
	WaitForSelector          string          `json:"wait_for_selector,omitempty"`
	WaitForSelectorTimeout   float64         `json:"wait_for_selector_timeout"`
	ScrollPauseTime          float64         `json:"scroll_pause_time"`
	Actions                  []action.Action `json:"actions,omitempty"`
	Device                   string          `json:"device"`
	DisableJavascript        bool            `json:"disable_javascript"`
	Headless                 bool            `json:"headless"`
}

// DefaultCaptureConfig returns a config with every optional knob at its
// documented default.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		FullPageScreenshot:     true,
		Browser:                BackendChrome,
		CaptureVisibleElements: true,
		WaitAfterLoad:          5,
		WaitForSelectorTimeout: 10,
		ScrollPauseTime:        0.1,
		Device:                 string(device.Desktop),
		Headless:               true,
	}
}

// Validate fails fast on configuration problems, before any browser session
// is created.
func (c *CaptureConfig) Validate() error {
	if _, err := ValidateURL(c.URL); err != nil {
		return err
	}
	switch c.Browser {
	case BackendChrome, BackendChromium:
	default:
		return fmt.Errorf("unsupported browser backend %q", c.Browser)
	}
	if _, err := device.Lookup(c.Device); err != nil {
		return err
	}
	if c.WindowSize != "" {
		if _, _, err := device.ParseWindowSize(c.WindowSize); err != nil {
			return err
		}
	}
	if c.WaitAfterLoad < 0 || c.WaitForSelectorTimeout < 0 || c.ScrollPauseTime < 0 {
		return fmt.Errorf("wait durations must not be negative")
	}
	if c.WaitBeforeLoad != nil && *c.WaitBeforeLoad < 0 {
		return fmt.Errorf("wait_before_load must not be negative")
	}
	for i, a := range c.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
	}
	return nil
}

// ParsedURL returns the validated target URL.
func (c *CaptureConfig) ParsedURL() (*url.URL, error) {
	return ValidateURL(c.URL)
}

// WaitAfter converts the wait-after-load seconds to a duration.
func (c *CaptureConfig) WaitAfter() time.Duration {
	return time.Duration(c.WaitAfterLoad * float64(time.Second))
}

// WaitBefore returns the wait-before-load duration, or nil when the engine
// should pick its default jitter.
func (c *CaptureConfig) WaitBefore() *time.Duration {
	if c.WaitBeforeLoad == nil {
		return nil
	}
	d := time.Duration(*c.WaitBeforeLoad * float64(time.Second))
	return &d
}

// SelectorTimeout converts the selector wait bound to a duration.
func (c *CaptureConfig) SelectorTimeout() time.Duration {
	return time.Duration(c.WaitForSelectorTimeout * float64(time.Second))
}

// ScrollPause converts the inter-action pause to a duration.
func (c *CaptureConfig) ScrollPause() time.Duration {
	return time.Duration(c.ScrollPauseTime * float64(time.Second))
}

// MaskedMap renders the config as a key/value record with proxy credentials
// masked; this is the form written to config.json and hashed for the output
// directory name.
func (c *CaptureConfig) MaskedMap() (map[string]any, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding capture config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding capture config: %w", err)
	}
	if len(c.Proxy) > 0 {
		m["proxy"] = c.Proxy.ConnectionStrings(true)
	}
	return m, nil
}

// Hash returns a stable digest of the masked config, used to derive the
// per-unit output directory name.
func (c *CaptureConfig) Hash() (string, error) {
	m, err := c.MaskedMap()
	if err != nil {
		return "", err
	}
	// jsoniter sorts map keys like encoding/json, so the digest is stable.
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// CaptureRequest is the inbound payload of the scheduling endpoint. Sites may
// be bare URL strings or per-site config objects; values resolve with the
// precedence per-site > default_config > built-in defaults.
type CaptureRequest struct {
	Sites         []jsoniter.RawMessage `json:"sites"`
	DefaultConfig jsoniter.RawMessage   `json:"default_config,omitempty"`
}

// Normalize resolves every site entry into a validated CaptureConfig.
func (r *CaptureRequest) Normalize() ([]CaptureConfig, error) {
	if len(r.Sites) == 0 {
		return nil, fmt.Errorf("sites must not be empty")
	}

	defaults := map[string]any{}
	if len(r.DefaultConfig) > 0 {
		if err := json.Unmarshal(r.DefaultConfig, &defaults); err != nil {
			return nil, fmt.Errorf("invalid default_config: %w", err)
		}
	}
	// A default URL would silently apply to every site; drop it.
	delete(defaults, "url")

	configs := make([]CaptureConfig, 0, len(r.Sites))
	for i, raw := range r.Sites {
		merged := make(map[string]any, len(defaults)+1)
		for k, v := range defaults {
			merged[k] = v
		}

		trimmed := strings.TrimSpace(string(raw))
		if strings.HasPrefix(trimmed, "\"") {
			var target string
			if err := json.Unmarshal(raw, &target); err != nil {
				return nil, fmt.Errorf("sites[%d]: %w", i, err)
			}
			merged["url"] = target
		} else {
			var site map[string]any
			if err := json.Unmarshal(raw, &site); err != nil {
				return nil, fmt.Errorf("sites[%d]: %w", i, err)
			}
			if site["url"] == nil {
				return nil, fmt.Errorf("sites[%d]: url is required", i)
			}
			for k, v := range site {
				merged[k] = v
			}
		}

		cfg := DefaultCaptureConfig()
		mergedRaw, err := json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("sites[%d]: %w", i, err)
		}
		if err := json.Unmarshal(mergedRaw, &cfg); err != nil {
			return nil, fmt.Errorf("sites[%d]: %w", i, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("sites[%d]: %w", i, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// CaptureResponse acknowledges a scheduled capture group.
type CaptureResponse struct {
	Message       string `json:"message"`
	GroupResultID string `json:"group_result_id"`
}

// TaskProgress summarizes the state of a capture group.
type TaskProgress struct {
	Completed     int    `json:"completed"`
	Failed        int    `json:"failed"`
	Total         int    `json:"total"`
	State         string `json:"state"`
	AllSuccessful bool   `json:"all_successful"`
	Ready         bool   `json:"ready"`
}

// NewTaskProgress derives the aggregate view from per-task counts.
func NewTaskProgress(completed, failed, pending int) TaskProgress {
	total := completed + failed + pending

	state := "UNKNOWN"
	switch {
	case total > 0 && completed == total:
		state = "SUCCESS"
	case pending > 0:
		state = "PENDING"
	case failed > 0:
		state = "FAILURE"
	}

	return TaskProgress{
		Completed:     completed,
		Failed:        failed,
		Total:         total,
		State:         state,
		AllSuccessful: completed > 0 && completed == total && failed == 0,
		Ready:         completed+failed == total,
	}
}

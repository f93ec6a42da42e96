// Package browser owns the live browser connection: session lifecycle with
// endpoint rotation, the page readiness gate, and the CDP-backed element
// handles consumed by the DOM traversal engine.
package browser

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/marqueewinq/shooter/internal/device"
	"github.com/marqueewinq/shooter/internal/dom"
)

// ErrEndpointsExhausted is returned once the rotation cursor has advanced
// past the last configured endpoint. It is terminal for the session.
var ErrEndpointsExhausted = errors.New("no browser endpoints remaining")

// Options carries the per-session browser setup derived from the capture
// config: the binary flavor, the (already override-merged) device profile,
// and the runtime toggles.
type Options struct {
	Backend           string
	Profile           device.Profile
	Headless          bool
	DisableJavascript bool
}

// Conn is one live browser connection. A session holds at most one Conn at a
// time, and a capture unit uses it serially.
type Conn interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// Eval runs a page-side script; out may be nil to discard the result.
	Eval(ctx context.Context, script string, out any) error
	FullScreenshot(ctx context.Context) ([]byte, error)
	ViewportScreenshot(ctx context.Context) ([]byte, error)
	// Root returns a handle onto the document root element.
	Root(ctx context.Context) (dom.Element, error)
	Close() error
}

// DialFunc constructs a live connection against one endpoint. endpoint is a
// proxy connection string, or "" for a direct connection.
type DialFunc func(ctx context.Context, opts Options, endpoint string, logger *zap.Logger) (Conn, error)

// Session owns an ordered list of connection endpoints and at most one live
// connection. Connections are dialed lazily on first access; Rotate is
// destructive, a skipped endpoint cannot be revisited.
type Session struct {
	logger    *zap.Logger
	opts      Options
	endpoints []string
	dial      DialFunc

	cursor int
	conn   Conn
}

// NewSession creates a session over the given proxy rotation list. An empty
// list means a single direct (unproxied) endpoint.
func NewSession(logger *zap.Logger, opts Options, proxies []string) *Session {
	return newSession(logger, opts, proxies, Dial)
}

func newSession(logger *zap.Logger, opts Options, proxies []string, dial DialFunc) *Session {
	endpoints := proxies
	if len(endpoints) == 0 {
		endpoints = []string{""}
	}
	return &Session{
		logger:    logger.Named("session"),
		opts:      opts,
		endpoints: endpoints,
		dial:      dial,
	}
}

// Conn returns the active connection, lazily dialing the endpoint under the
// rotation cursor. Once the cursor has moved past the last endpoint every
// call fails with ErrEndpointsExhausted.
func (s *Session) Conn(ctx context.Context) (Conn, error) {
	if s.cursor >= len(s.endpoints) {
		return nil, ErrEndpointsExhausted
	}
	if s.conn == nil {
		endpoint := s.endpoints[s.cursor]
		s.logger.Info("dialing browser endpoint",
			zap.Int("endpoint_index", s.cursor),
			zap.Int("endpoint_count", len(s.endpoints)),
			zap.Bool("proxied", endpoint != ""))
		conn, err := s.dial(ctx, s.opts, endpoint, s.logger)
		if err != nil {
			return nil, err
		}
		s.conn = conn
	}
	return s.conn, nil
}

// Rotate tears down the live connection and advances the cursor so the next
// access dials the next endpoint.
func (s *Session) Rotate() {
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("error closing connection during rotation", zap.Error(err))
		}
		s.conn = nil
	}
	s.cursor++
}

// Close shuts the live connection down. Closing an exhausted or never-dialed
// session is a no-op.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

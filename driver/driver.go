// Package driver defines the capability contract a workflow uses to talk to
// "whoever is watching" a run, plus the two implementations: a headless
// driver that fails fast on anything needing a human, and an interactive
// websocket-backed driver with liveness detection and disconnect-aware
// cancellation.
package driver

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrConnectionClosed indicates the driver's connection dropped while
	// (or before) an operation was waiting on it.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrHeadless indicates a human interaction was requested from a
	// driver that has no human attached.
	ErrHeadless = errors.New("headless")
	// ErrSuperseded indicates a suspended operation was replaced by a
	// newer one before an answer arrived.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// Meta carries the network-presentation metadata of the originating
// request; regulatory APIs forward it as PSU headers.
type Meta struct {
	IPAddress string
	IPPort    string
	UserAgent string
}

// MetaFromRequest extracts Meta, honoring reverse-proxy headers.
func MetaFromRequest(r *http.Request) Meta {
	m := Meta{
		IPAddress: r.Header.Get("X-Forwarded-For"),
		IPPort:    r.Header.Get("X-Forwarded-Port"),
		UserAgent: r.UserAgent(),
	}
	if m.IPAddress == "" {
		if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			m.IPAddress = host
			if m.IPPort == "" {
				m.IPPort = port
			}
		} else {
			m.IPAddress = r.RemoteAddr
		}
	}
	return m
}

// Option is one choice offered by PromptOption, rendered as a submit
// button.
type Option struct {
	Value string
	Text  string
}

// Form holds submitted form field values keyed by field name. Checkbox
// fields report "true" when checked and are absent or empty otherwise.
type Form map[string]string

// Driver is the capability set a running workflow may use. All blocking
// operations fail with ErrConnectionClosed when the underlying connection
// drops while waiting, and fail immediately when already disconnected.
type Driver interface {
	// Connected reports whether the watching side is still reachable.
	Connected() bool
	// Meta returns the originating request's network metadata.
	Meta() Meta
	// Spinner shows a fire-and-forget progress notice.
	Spinner(text string)
	// Callback suspends until the human visits url and the resulting
	// redirect is reported back; it returns the reported URL.
	Callback(url, text string) (*url.URL, error)
	// Prompt suspends until the form described by build is submitted.
	Prompt(title, submit string, build func(*Content)) (Form, error)
	// PromptOption suspends until one of the offered options is chosen.
	PromptOption(title string, options []Option) (string, error)
	// Wait suspends for the given duration, waking early with
	// ErrConnectionClosed if the connection dies.
	Wait(d time.Duration) error
}

package driver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultPingInterval is the heartbeat period. A tick without an
	// intervening pong forcibly terminates the connection, bounding how
	// long a dead peer can hold a suspended task.
	DefaultPingInterval = 10 * time.Second

	controlWriteWait = 5 * time.Second
	closeReasonLimit = 120
)

type contentMessage struct {
	Content []Line `json:"content"`
}

type redirectMessage struct {
	Redirect string `json:"redirect"`
}

type getMessage struct {
	Get struct {
		Key string `json:"key"`
	} `json:"get"`
}

type setMessage struct {
	Set struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"set"`
}

type formPayload struct {
	Data      map[string]any `json:"data"`
	Submitter string         `json:"submitter"`
}

// waiter is the single-slot registration for one expected inbound message
// key. Arming a new waiter supersedes the previous one.
type waiter struct {
	name       string
	ch         chan json.RawMessage
	superseded chan struct{}
}

// Session is the interactive Driver over a websocket connection. At most
// one suspending call is armed at a time; the whole engine run is
// sequential, so a second armed call only occurs when an earlier one was
// abandoned, and that earlier call then fails with ErrSuperseded.
type Session struct {
	conn         *websocket.Conn
	meta         Meta
	log          *slog.Logger
	pingInterval time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	waiter  *waiter
	closed  bool
	alive   bool
	closeCh chan struct{}
}

var _ Driver = (*Session)(nil)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPingInterval overrides the heartbeat period.
func WithPingInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		s.pingInterval = d
	}
}

// WithSessionLogger sets the structured logger.
func WithSessionLogger(log *slog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// NewSession wraps an upgraded websocket connection. It starts the read
// loop and the heartbeat; the session owns the connection from here on.
func NewSession(r *http.Request, conn *websocket.Conn, opts ...SessionOption) *Session {
	s := &Session{
		conn:         conn,
		meta:         MetaFromRequest(r),
		log:          slog.Default(),
		pingInterval: DefaultPingInterval,
		alive:        true,
		closeCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	conn.SetPongHandler(func(string) error {
		s.mu.Lock()
		s.alive = true
		s.mu.Unlock()
		return nil
	})

	go s.readLoop()
	go s.heartbeat()
	return s
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Session) Meta() Meta { return s.meta }

// Close tears down the connection. Any outstanding suspension fails with
// ErrConnectionClosed.
func (s *Session) Close() error {
	return s.conn.Close()
}

// CloseWithError sends a close frame carrying the error message, then
// tears down the connection.
func (s *Session) CloseWithError(err error) {
	reason := err.Error()
	if len(reason) > closeReasonLimit {
		reason = reason[:closeReasonLimit]
	}
	msg := websocket.FormatCloseMessage(websocket.CloseProtocolError, reason)
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
	s.conn.Close()
}

func (s *Session) readLoop() {
	defer s.markClosed()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]json.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("discarding malformed client message", "error", err)
			continue
		}
		s.dispatch(msg)
	}
}

// heartbeat pings the peer every pingInterval and terminates the
// connection when a full interval passes without a pong.
func (s *Session) heartbeat() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closeCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			alive := s.alive
			s.alive = false
			s.mu.Unlock()
			if !alive {
				s.log.Info("terminating unresponsive connection")
				s.conn.Close()
				return
			}
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteWait)); err != nil {
				s.conn.Close()
				return
			}
		}
	}
}

func (s *Session) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.waiter = nil
	close(s.closeCh)
}

// dispatch routes a single-key inbound object to the armed waiter, if its
// key matches, and clears the registration.
func (s *Session) dispatch(msg map[string]json.RawMessage) {
	s.mu.Lock()
	w := s.waiter
	if w == nil {
		s.mu.Unlock()
		return
	}
	value, ok := msg[w.name]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.waiter = nil
	s.mu.Unlock()
	w.ch <- value
}

// arm registers interest in the next inbound message carrying key name.
// Any previously armed waiter is superseded.
func (s *Session) arm(name string) (*waiter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrConnectionClosed
	}
	if s.waiter != nil {
		close(s.waiter.superseded)
	}
	w := &waiter{
		name:       name,
		ch:         make(chan json.RawMessage, 1),
		superseded: make(chan struct{}),
	}
	s.waiter = w
	return w, nil
}

func (s *Session) await(w *waiter) (json.RawMessage, error) {
	// A value that arrived before a concurrent close still wins.
	select {
	case v := <-w.ch:
		return v, nil
	default:
	}
	select {
	case v := <-w.ch:
		return v, nil
	case <-w.superseded:
		return nil, ErrSuperseded
	case <-s.closeCh:
		return nil, ErrConnectionClosed
	}
}

func (s *Session) send(v any) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrConnectionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		s.conn.Close()
		return ErrConnectionClosed
	}
	return nil
}

func (s *Session) sendContent(build func(*Content)) error {
	c := &Content{}
	build(c)
	return s.send(contentMessage{Content: c.Lines()})
}

func (s *Session) Spinner(text string) {
	s.sendContent(func(c *Content) {
		c.Spinner()
		if text != "" {
			c.Text(text)
		}
	})
}

func (s *Session) Callback(link, text string) (*url.URL, error) {
	w, err := s.arm("callback")
	if err != nil {
		return nil, err
	}
	if err := s.sendContent(func(c *Content) {
		c.Link(link, text)
	}); err != nil {
		return nil, err
	}

	raw, err := s.await(w)
	if err != nil {
		return nil, err
	}
	var reported string
	if err := json.Unmarshal(raw, &reported); err != nil {
		return nil, fmt.Errorf("malformed callback message: %w", err)
	}
	u, err := url.Parse(reported)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("invalid callback url %q", reported)
	}
	return u, nil
}

func (s *Session) Prompt(title, submit string, build func(*Content)) (Form, error) {
	w, err := s.arm("form")
	if err != nil {
		return nil, err
	}
	if err := s.sendContent(func(c *Content) {
		c.Text(title)
		build(c)
		c.Submit(submit, "")
	}); err != nil {
		return nil, err
	}

	payload, err := s.awaitForm(w)
	if err != nil {
		return nil, err
	}
	return formFromData(payload.Data), nil
}

func (s *Session) PromptOption(title string, options []Option) (string, error) {
	w, err := s.arm("form")
	if err != nil {
		return "", err
	}
	if err := s.sendContent(func(c *Content) {
		c.Text(title)
		for _, opt := range options {
			c.Submit(opt.Text, opt.Value)
		}
	}); err != nil {
		return "", err
	}

	payload, err := s.awaitForm(w)
	if err != nil {
		return "", err
	}
	return payload.Submitter, nil
}

func (s *Session) awaitForm(w *waiter) (*formPayload, error) {
	raw, err := s.await(w)
	if err != nil {
		return nil, err
	}
	var payload formPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed form message: %w", err)
	}
	return &payload, nil
}

func (s *Session) Wait(d time.Duration) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrConnectionClosed
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-s.closeCh:
		return ErrConnectionClosed
	}
}

// Redirect instructs the client to navigate away; used to hand the
// one-time result reference back to the caller's callback URI.
func (s *Session) Redirect(url string) error {
	return s.send(redirectMessage{Redirect: url})
}

// ClientValue round-trips an opaque value held only on the client side.
// The driver never retains it.
func (s *Session) ClientValue(key string) (string, error) {
	w, err := s.arm("get")
	if err != nil {
		return "", err
	}
	var msg getMessage
	msg.Get.Key = key
	if err := s.send(msg); err != nil {
		return "", err
	}

	raw, err := s.await(w)
	if err != nil {
		return "", err
	}
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return "", fmt.Errorf("malformed get message: %w", err)
	}
	return values[key], nil
}

// SetClientValue pushes an opaque value to be stored on the client side.
func (s *Session) SetClientValue(key, value string) error {
	var msg setMessage
	msg.Set.Key = key
	msg.Set.Value = value
	return s.send(msg)
}

func formFromData(data map[string]any) Form {
	form := make(Form, len(data))
	for k, v := range data {
		switch value := v.(type) {
		case string:
			form[k] = value
		case bool:
			if value {
				form[k] = "true"
			} else {
				form[k] = ""
			}
		case float64:
			form[k] = fmt.Sprintf("%v", value)
		case nil:
			form[k] = ""
		default:
			form[k] = fmt.Sprintf("%v", value)
		}
	}
	return form
}

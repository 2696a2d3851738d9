package task

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/finbridge/finbridge/driver"
)

// waitUntilInterval is the fixed polling interval of WaitUntil.
const waitUntilInterval = 3 * time.Second

// Runtime is the per-run state handed to every workflow step: request
// body, connector configuration, the in-memory user configuration, and
// passthroughs to the driver's interaction capabilities.
type Runtime struct {
	conn        Connection
	drv         driver.Driver
	req         *Request
	callbackURI string
	store       UserConfigStore
	log         *slog.Logger

	ibans        []string
	userConfig   map[string]string
	auth         []string
	remember     bool
	waitInterval time.Duration
}

func newRuntime(p Params) *Runtime {
	log := p.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	store := p.UserConfig
	if store == nil {
		store = NewConnectionStore(p.Connection)
	}
	return &Runtime{
		conn:         p.Connection,
		drv:          p.Driver,
		req:          p.Request,
		callbackURI:  p.CallbackURI,
		store:        store,
		log:          log,
		userConfig:   map[string]string{},
		remember:     true,
		waitInterval: waitUntilInterval,
	}
}

func (rt *Runtime) User() string         { return rt.req.User }
func (rt *Runtime) Reconfigure() bool    { return rt.req.Reconfigure }
func (rt *Runtime) CallbackURI() string  { return rt.callbackURI }
func (rt *Runtime) Logger() *slog.Logger { return rt.log }

// IBANs lists the accounts the connector is configured to serve.
func (rt *Runtime) IBANs() []string { return rt.ibans }

// RawAccounts returns the requested accounts as posted.
func (rt *Runtime) RawAccounts() []Account { return rt.req.Accounts }

// Accounts returns the requested accounts the connector may serve.
func (rt *Runtime) Accounts() []Account {
	var ret []Account
	for _, acc := range rt.req.Accounts {
		for _, iban := range rt.ibans {
			if acc.IBAN == iban {
				ret = append(ret, acc)
				break
			}
		}
	}
	return ret
}

// SepaCreditTransferPayments returns the requested payment orders.
func (rt *Runtime) SepaCreditTransferPayments() []SepaCreditTransferPayment {
	if rt.req.Payments == nil {
		return nil
	}
	return rt.req.Payments.SepaCreditTransferPayments
}

// Auth returns the collected credential values, positionally aligned with
// the workflow's AuthFields.
func (rt *Runtime) Auth() []string { return rt.auth }

// Meta returns the originating client's network metadata.
func (rt *Runtime) Meta() driver.Meta { return rt.drv.Meta() }

// Connected reports whether the watching client is still reachable.
func (rt *Runtime) Connected() bool { return rt.drv.Connected() }

// Config reads a connector configuration value.
func (rt *Runtime) Config(name string) (string, error) {
	return rt.conn.Config(name)
}

// SetConfig writes a connector configuration value, skipping the write
// when the value is unchanged.
func (rt *Runtime) SetConfig(name, value string) error {
	old, err := rt.conn.Config(name)
	if err == nil && old == value {
		return nil
	}
	return rt.conn.SetConfig(name, value)
}

// UserConfig reads a value from the per-user configuration.
func (rt *Runtime) UserConfig(key string) (string, bool) {
	v, ok := rt.userConfig[key]
	return v, ok
}

// SetUserConfig writes a value into the per-user configuration. The value
// is persisted at the end of a successful, remembered run.
func (rt *Runtime) SetUserConfig(key, value string) {
	rt.userConfig[key] = value
}

// ClearUserConfig removes a value from the per-user configuration.
func (rt *Runtime) ClearUserConfig(key string) {
	delete(rt.userConfig, key)
}

func (rt *Runtime) loadConfig() error {
	value, err := rt.Config(ConfigIBAN)
	if err != nil {
		return err
	}
	rt.ibans = nil
	if value != "" {
		rt.ibans = strings.Split(value, ",")
	}
	return nil
}

// loadUserConfig restores the persisted user configuration; unreadable or
// corrupt state degrades to an empty configuration.
func (rt *Runtime) loadUserConfig() {
	rt.userConfig = map[string]string{}
	value, err := rt.store.Get()
	if err != nil || value == "" {
		return
	}
	var pairs [][2]string
	if err := json.Unmarshal([]byte(value), &pairs); err != nil {
		return
	}
	for _, pair := range pairs {
		rt.userConfig[pair[0]] = pair[1]
	}
}

// storeUserConfig persists the user configuration as a sorted pair list.
func (rt *Runtime) storeUserConfig() error {
	pairs := make([][2]string, 0, len(rt.userConfig))
	for k, v := range rt.userConfig {
		pairs = append(pairs, [2]string{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	value, err := json.Marshal(pairs)
	if err != nil {
		return err
	}
	return rt.store.Set(string(value))
}

// Spinner shows a progress notice.
func (rt *Runtime) Spinner(text string) {
	rt.log.Debug("spinner", "text", text)
	rt.drv.Spinner(text)
}

// Prompt suspends until the described form is submitted.
func (rt *Runtime) Prompt(title, submit string, build func(*driver.Content)) (driver.Form, error) {
	return rt.drv.Prompt(title, submit, build)
}

// PromptOption suspends until one of the options is chosen.
func (rt *Runtime) PromptOption(title string, options []driver.Option) (string, error) {
	return rt.drv.PromptOption(title, options)
}

// Callback suspends until the human visits url and the redirect target is
// reported back.
func (rt *Runtime) Callback(url string, text string) (*url.URL, error) {
	return rt.drv.Callback(url, text)
}

// Wait suspends for d, waking early when the client disconnects.
func (rt *Runtime) Wait(d time.Duration) error {
	return rt.drv.Wait(d)
}

// WaitUntil polls fn every few seconds until it reports done, the client
// disconnects, or fn fails.
func (rt *Runtime) WaitUntil(fn func() (bool, error)) error {
	for rt.Connected() {
		if err := rt.Wait(rt.waitInterval); err != nil {
			return err
		}
		done, err := fn()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return driver.ErrConnectionClosed
}

// WaitToAcceptCode shows the code the human must accept out of band, then
// polls fn until acceptance.
func (rt *Runtime) WaitToAcceptCode(code string, fn func() (bool, error)) error {
	rt.Spinner("Please accept code " + code)
	return rt.WaitUntil(fn)
}

package demo

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/finbridge/driver"
	"github.com/finbridge/finbridge/task"
)

const testIBAN = "AT616904300235698930"

type mapConnection struct {
	configs map[string]string
}

func (c *mapConnection) Config(name string) (string, error) {
	return c.configs[strings.ToLower(name)], nil
}

func (c *mapConnection) SetConfig(name, value string) error {
	c.configs[strings.ToLower(name)] = value
	return nil
}

type memStore struct {
	value string
}

func (m *memStore) Get() (string, error)   { return m.value, nil }
func (m *memStore) Set(value string) error { m.value = value; return nil }

// interactiveDriver plays the human: submits credentials, visits both
// callbacks, and records the spinners it saw.
type interactiveDriver struct {
	spinners  []string
	callbacks []string
}

func (d *interactiveDriver) Connected() bool   { return true }
func (d *interactiveDriver) Meta() driver.Meta { return driver.Meta{} }
func (d *interactiveDriver) Spinner(text string) {
	d.spinners = append(d.spinners, text)
}

func (d *interactiveDriver) Callback(target, text string) (*url.URL, error) {
	d.callbacks = append(d.callbacks, text)
	return url.Parse(target)
}

func (d *interactiveDriver) Prompt(_, _ string, _ func(*driver.Content)) (driver.Form, error) {
	return driver.Form{"username": "jane", "password": "hunter2", "_remember": "true"}, nil
}

func (d *interactiveDriver) PromptOption(string, []driver.Option) (string, error) {
	return "", driver.ErrHeadless
}

func (d *interactiveDriver) Wait(time.Duration) error { return nil }

func params(conn task.Connection, drv driver.Driver) task.Params {
	return task.Params{
		Connection:  conn,
		Driver:      drv,
		Request:     &task.Request{Accounts: []task.Account{{IBAN: testIBAN}}},
		CallbackURI: "https://svc.example/callback",
		UserConfig:  &memStore{},
	}
}

func TestWorkflowHeadless(t *testing.T) {
	conn := &mapConnection{configs: map[string]string{
		"iban":     testIBAN,
		"headless": "true",
	}}
	drv := driver.NewHeadless(httptest.NewRequest("POST", "/", nil))

	res, err := task.Run(New(), params(conn, drv))
	require.NoError(t, err)
	require.Len(t, res.Result, 1)

	txns := res.Result[0]
	assert.Equal(t, testIBAN, txns.Account.IBAN)
	require.Len(t, txns.Transactions.Booked, 1)
	booked := txns.Transactions.Booked[0]
	assert.Equal(t, "136.47", booked.TransactionAmount.Amount)
	assert.Equal(t, "EUR", booked.TransactionAmount.Currency)
	assert.Equal(t, "4856465768967584736", booked.EntryReference)
	assert.Equal(t, "Maria Reithuber", booked.DebtorName)
}

func TestWorkflowInteractive(t *testing.T) {
	conn := &mapConnection{configs: map[string]string{"iban": testIBAN}}
	drv := &interactiveDriver{}

	res, err := task.Run(New(), params(conn, drv))
	require.NoError(t, err)
	require.Len(t, res.Result, 1)
	require.Len(t, res.Result[0].Transactions.Booked, 1)

	// The first callback label proves the prompted credentials reached
	// the workflow; the spinner echoes the reported query parameter.
	assert.Equal(t, []string{"auth=jane:hunter2", "DONE"}, drv.callbacks)
	assert.Contains(t, drv.spinners, "urlparam=1234")
}

func TestWorkflowListing(t *testing.T) {
	r := task.NewRegistry()
	Register(r)

	w, err := r.New(ID)
	require.NoError(t, err)
	assert.Equal(t, ID, w.ID())

	// The test connector can run but is not advertised.
	assert.Empty(t, r.List())
}

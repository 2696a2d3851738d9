// Package demo provides the built-in end-to-end test connector. It talks
// to no bank: it exercises the full task sequence, including the callback
// round trips of an interactive run, and returns a fixed transaction.
package demo

import (
	"fmt"
	"time"

	"github.com/finbridge/finbridge/task"
)

// ID is the workflow identifier callers create test connectors with.
const ID = "com.example.test"

// ConfigHeadless, when set to any non-empty value, makes the connector run
// without credentials or callbacks so it can serve synchronous requests.
const ConfigHeadless = "Headless"

// Workflow is the test connector.
type Workflow struct {
	task.Base
	headless bool
}

// New builds a fresh instance for one run.
func New() task.Workflow {
	return &Workflow{}
}

// Register adds the workflow to a registry, unlisted.
func Register(r *task.Registry) {
	r.RegisterHidden(New)
}

func (w *Workflow) ID() string { return ID }

func (w *Workflow) ConfigNames() []string {
	return []string{task.ConfigIBAN, ConfigHeadless}
}

func (w *Workflow) LoadConfig(rt *task.Runtime) error {
	value, err := rt.Config(ConfigHeadless)
	if err != nil {
		return err
	}
	w.headless = value != ""
	return nil
}

func (w *Workflow) AuthFields(*task.Runtime) []string {
	if w.headless {
		return nil
	}
	return []string{"username", "password"}
}

func (w *Workflow) Balances(*task.Runtime, task.AccountDetails) ([]any, error) {
	return []any{}, nil
}

func (w *Workflow) BookedTransactions(rt *task.Runtime, _ task.AccountDetails) ([]task.Transaction, error) {
	if !w.headless {
		auth := rt.Auth()
		reported, err := rt.Callback(
			rt.CallbackURI()+"?param=1234",
			fmt.Sprintf("auth=%s:%s", auth[0], auth[1]),
		)
		if err != nil {
			return nil, err
		}

		rt.Spinner("urlparam=" + reported.Query().Get("param"))
		if err := rt.Wait(time.Second); err != nil {
			return nil, err
		}

		if _, err := rt.Callback(rt.CallbackURI(), "DONE"); err != nil {
			return nil, err
		}
	}

	return []task.Transaction{{
		TransactionAmount:                 task.Amount{Currency: "EUR", Amount: "136.47"},
		DebtorAccount:                     &task.AccountRef{IBAN: "AT251657674147449499"},
		DebtorName:                        "Maria Reithuber",
		RemittanceInformationUnstructured: "Danke für's Auslegen",
		EndToEndID:                        "Auslage von Martin S.",
		BookingDate:                       "2019-02-14",
		ValueDate:                         "2019-02-14",
		EntryReference:                    "4856465768967584736",
		TransactionID:                     "4856465768967584736",
		BankTransactionCode:               "PMNT-RCDT-ESCT",
		AdditionalInformation:             "Gutschrift",
	}}, nil
}

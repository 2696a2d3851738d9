package task

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/finbridge/finbridge/driver"
)

// Params carries everything a run needs. UserConfig may be nil, in which
// case the user configuration lives in the connector's encrypted config.
type Params struct {
	Connection  Connection
	Driver      driver.Driver
	Request     *Request
	CallbackURI string
	UserConfig  UserConfigStore
	Logger      *slog.Logger
}

// Run executes one workflow against one request. The sequence is fixed:
// configuration, user configuration, credential collection, setup, the
// retrieval steps, then persistence; Cleanup runs regardless of how far
// the run got once credential collection was reached.
func Run(w Workflow, p Params) (*Result, error) {
	rt := newRuntime(p)

	if err := rt.loadConfig(); err != nil {
		return nil, err
	}
	if loader, ok := w.(ConfigLoader); ok {
		if err := loader.LoadConfig(rt); err != nil {
			return nil, err
		}
	}

	if rt.Reconfigure() {
		// Persist the empty configuration, dropping cached credentials
		// and tokens before they can be reused.
		if err := rt.storeUserConfig(); err != nil {
			return nil, err
		}
	} else {
		rt.loadUserConfig()
	}

	if err := promptAuth(rt, w); err != nil {
		return nil, err
	}

	result, err := runSteps(rt, w)
	if cerr := w.Cleanup(rt); cerr != nil {
		if err == nil {
			err = cerr
		} else {
			rt.log.Warn("cleanup failed after run error", "error", cerr)
		}
	}
	if err != nil {
		return nil, err
	}
	return &Result{Result: result}, nil
}

func runSteps(rt *Runtime, w Workflow) ([]Transactions, error) {
	if err := w.Setup(rt); err != nil {
		return nil, err
	}
	result, err := execute(rt, w)
	if err != nil {
		return nil, err
	}
	if rt.remember {
		if err := rt.storeUserConfig(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// promptAuth collects the workflow's credential fields, preferring cached
// values and prompting only when at least one is missing. The "_remember"
// checkbox decides whether this run persists its user configuration.
func promptAuth(rt *Runtime, w Workflow) error {
	fields := w.AuthFields(rt)
	if len(fields) == 0 {
		rt.auth = nil
		return nil
	}

	cached := make([]string, len(fields))
	missing := false
	for i, name := range fields {
		value, ok := rt.UserConfig(name)
		if !ok {
			missing = true
			break
		}
		cached[i] = value
	}
	if !missing {
		rt.auth = cached
		return nil
	}

	label := func(name string) string {
		if l, ok := w.(FieldLabeler); ok {
			return l.FieldLabel(name)
		}
		return FieldLabel(name)
	}

	form, err := rt.Prompt("Credentials", "Login", func(c *driver.Content) {
		for _, name := range fields {
			if IsPasswordField(name) {
				c.Password(name, label(name))
			} else {
				c.Input(name, label(name))
			}
		}
		c.Checkbox("_remember", "Remember")
	})
	if err != nil {
		return err
	}

	rt.remember = form["_remember"] == "true"
	rt.auth = make([]string, len(fields))
	for i, name := range fields {
		rt.auth[i] = form[name]
		if rt.remember {
			rt.SetUserConfig(name, form[name])
		}
	}
	return nil
}

func execute(rt *Runtime, w Workflow) ([]Transactions, error) {
	accounts := rt.Accounts()
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no valid account", ErrBadRequest)
	}

	rt.Spinner("Logging in")
	if err := w.Login(rt); err != nil {
		return nil, err
	}
	rt.Spinner("Logged in")

	if payments := rt.SepaCreditTransferPayments(); len(payments) > 0 {
		executor, ok := w.(PaymentExecutor)
		if !ok {
			return nil, fmt.Errorf("%w: payments", ErrNotImplemented)
		}
		if err := executor.ExecutePayments(rt, payments); err != nil {
			return nil, err
		}
	}

	rt.Spinner("Getting information about accounts...")
	details, err := accountDetails(rt, w, accounts)
	if err != nil {
		return nil, err
	}

	rt.Spinner("Getting transactions for all accounts")
	result := make([]Transactions, 0, len(details))
	for _, acc := range details {
		txns, err := transactionsForAccount(rt, w, acc)
		if err != nil {
			return nil, err
		}
		result = append(result, txns)
	}

	rt.Spinner("Logging out")
	if err := w.Logout(rt); err != nil {
		return nil, err
	}
	rt.Spinner("Logged out")

	return result, nil
}

func accountDetails(rt *Runtime, w Workflow, accounts []Account) ([]AccountDetails, error) {
	ibans := make([]string, len(accounts))
	for i, acc := range accounts {
		ibans[i] = acc.IBAN
	}

	infos, err := accountInfos(rt, w, ibans)
	if err != nil {
		return nil, err
	}

	details := make([]AccountDetails, len(accounts))
	for i, acc := range accounts {
		if infos[i] == nil {
			return nil, fmt.Errorf("%w: could not get information for account %s", ErrNotFound, acc.IBAN)
		}
		details[i] = AccountDetails{Account: acc, Info: infos[i]}
	}
	return details, nil
}

func accountInfos(rt *Runtime, w Workflow, ibans []string) ([]any, error) {
	if batch, ok := w.(BatchAccountInfos); ok {
		infos, err := batch.AccountInfos(rt, ibans)
		if err != nil {
			return nil, err
		}
		if len(infos) != len(ibans) {
			return nil, fmt.Errorf("%w: account info count", ErrInvalidState)
		}
		return infos, nil
	}

	infos := make([]any, len(ibans))
	for i, iban := range ibans {
		if provider, ok := w.(AccountInfoProvider); ok {
			info, err := provider.AccountInfo(rt, iban)
			if err != nil {
				return nil, err
			}
			infos[i] = info
		} else {
			// An IBAN is its own minimal account info.
			infos[i] = iban
		}
	}
	return infos, nil
}

func transactionsForAccount(rt *Runtime, w Workflow, acc AccountDetails) (Transactions, error) {
	balances := []any{}
	if provider, ok := w.(BalanceProvider); ok {
		b, err := provider.Balances(rt, acc)
		if err != nil {
			return Transactions{}, err
		}
		if b != nil {
			balances = b
		}
	}

	booked, err := bookedTransactions(rt, w, acc)
	if err != nil {
		return Transactions{}, err
	}

	return Transactions{
		Account:      AccountRef{IBAN: acc.IBAN},
		Balances:     balances,
		Transactions: TransactionList{Booked: booked},
	}, nil
}

// errStopPaging aborts a raw transaction stream once the caller's known
// entry reference is reached; it never escapes bookedTransactions.
var errStopPaging = errors.New("stop paging")

func bookedTransactions(rt *Runtime, w Workflow, acc AccountDetails) ([]Transaction, error) {
	if source, ok := w.(BookedSource); ok {
		return source.BookedTransactions(rt, acc)
	}

	source, ok := w.(RawSource)
	if !ok {
		return nil, fmt.Errorf("%w: transactions", ErrNotImplemented)
	}

	booked := []Transaction{}
	err := source.RawTransactions(rt, acc, func(raw any) error {
		mapped := source.MapTransaction(raw)
		if acc.EntryReferenceFrom != "" && mapped.EntryReference == acc.EntryReferenceFrom {
			return errStopPaging
		}
		booked = append(booked, mapped)
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return nil, err
	}
	return booked, nil
}

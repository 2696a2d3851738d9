package task

// Connection is what a run needs from its connector: access to the
// encrypted per-connector configuration.
type Connection interface {
	Config(name string) (string, error)
	SetConfig(name, value string) error
}

// ConfigIBAN names the connector configuration entry listing the IBANs the
// connector may serve, comma separated.
const ConfigIBAN = "IBAN"

// Workflow is one bank connector implementation. The engine calls the
// steps in a fixed order; optional capabilities are expressed as the
// additional interfaces below.
type Workflow interface {
	// ID is the stable workflow identifier ("com.example.bank").
	ID() string
	// ConfigNames lists the connector configuration entries the workflow
	// reads, for the admin listing.
	ConfigNames() []string
	// AuthFields names the credential fields to collect before Login.
	// Empty means the workflow can run without prompting.
	AuthFields(rt *Runtime) []string

	Setup(rt *Runtime) error
	Login(rt *Runtime) error
	Logout(rt *Runtime) error
	Cleanup(rt *Runtime) error
}

// ConfigLoader lets a workflow read its configuration entries once, before
// any other step.
type ConfigLoader interface {
	LoadConfig(rt *Runtime) error
}

// AccountInfoProvider resolves one IBAN to the workflow's account info
// value. Returning nil aborts the run with a not-found error naming the
// account.
type AccountInfoProvider interface {
	AccountInfo(rt *Runtime, iban string) (any, error)
}

// BatchAccountInfos resolves all requested IBANs in one go; the result
// must be positionally aligned with ibans, nil for unresolvable entries.
// Takes precedence over AccountInfoProvider.
type BatchAccountInfos interface {
	AccountInfos(rt *Runtime, ibans []string) ([]any, error)
}

// BalanceProvider reports the balances of one account. Workflows without
// it report an empty balance list.
type BalanceProvider interface {
	Balances(rt *Runtime, acc AccountDetails) ([]any, error)
}

// BookedSource produces the full booked-transaction list for one account,
// including any paging and entry-reference cutoff handling.
type BookedSource interface {
	BookedTransactions(rt *Runtime, acc AccountDetails) ([]Transaction, error)
}

// RawSource streams raw transactions newest-first through emit; the engine
// maps each with MapTransaction and stops silently once the mapped entry
// reference equals the account's EntryReferenceFrom. Used when the
// workflow has no BookedSource.
type RawSource interface {
	RawTransactions(rt *Runtime, acc AccountDetails, emit func(raw any) error) error
	MapTransaction(raw any) Transaction
}

// PaymentExecutor executes SEPA credit transfer orders. Workflows without
// it reject requests carrying payments with ErrNotImplemented.
type PaymentExecutor interface {
	ExecutePayments(rt *Runtime, payments []SepaCreditTransferPayment) error
}

// FieldLabeler overrides the default credential field labels.
type FieldLabeler interface {
	FieldLabel(name string) string
}

// Base provides no-op defaults for the mandatory workflow steps; embed it
// and override what the connector actually needs.
type Base struct{}

func (Base) ConfigNames() []string        { return []string{ConfigIBAN} }
func (Base) AuthFields(*Runtime) []string { return nil }
func (Base) Setup(*Runtime) error         { return nil }
func (Base) Login(*Runtime) error         { return nil }
func (Base) Logout(*Runtime) error        { return nil }
func (Base) Cleanup(*Runtime) error       { return nil }

// IsPasswordField reports whether a credential field is masked on prompt.
func IsPasswordField(name string) bool {
	switch name {
	case "pass", "password", "pin":
		return true
	}
	return false
}

// FieldLabel returns the human label for a well-known credential field
// name, falling back to the name itself.
func FieldLabel(name string) string {
	switch name {
	case "disposer":
		return "Disposer"
	case "disposernr":
		return "Disposer-Nr."
	case "email":
		return "E-Mail"
	case "pass", "password":
		return "Password"
	case "pin":
		return "PIN"
	case "user":
		return "User"
	case "username":
		return "Username"
	}
	return name
}

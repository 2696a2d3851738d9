package task

// The wire shapes below follow the Berlin-group account information API,
// which callers of this service already speak.

// AccountRef references an account by IBAN.
type AccountRef struct {
	IBAN string `json:"iban"`
}

// Amount is a currency-qualified decimal amount, serialized as a string
// ("136.47", never minor units).
type Amount struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// Account is one requested account of a task: which IBAN, the date window,
// and optionally the newest entry reference the caller already holds.
type Account struct {
	IBAN               string `json:"iban"`
	DateFrom           string `json:"dateFrom"`
	DateTo             string `json:"dateTo"`
	EntryReferenceFrom string `json:"entryReferenceFrom"`
}

// AccountDetails is an Account enriched with the workflow's own account
// information (shape is workflow-specific).
type AccountDetails struct {
	Account
	Info any `json:"info"`
}

// Transaction is one booked transaction in normalized form.
type Transaction struct {
	TransactionID                     string      `json:"transactionId"`
	EntryReference                    string      `json:"entryReference,omitempty"`
	EndToEndID                        string      `json:"endToEndId,omitempty"`
	MandateID                         string      `json:"mandateId,omitempty"`
	CheckID                           string      `json:"checkId,omitempty"`
	CreditorID                        string      `json:"creditorId,omitempty"`
	BookingDate                       string      `json:"bookingDate,omitempty"`
	ValueDate                         string      `json:"valueDate,omitempty"`
	TransactionAmount                 Amount      `json:"transactionAmount"`
	CurrencyExchange                  []any       `json:"currencyExchange,omitempty"`
	CreditorName                      string      `json:"creditorName,omitempty"`
	CreditorAgent                     string      `json:"creditorAgent,omitempty"`
	CreditorAccount                   *AccountRef `json:"creditorAccount,omitempty"`
	UltimateCreditor                  string      `json:"ultimateCreditor,omitempty"`
	DebtorName                        string      `json:"debtorName,omitempty"`
	DebtorAgent                       string      `json:"debtorAgent,omitempty"`
	DebtorAccount                     *AccountRef `json:"debtorAccount,omitempty"`
	UltimateDebtor                    string      `json:"ultimateDebtor,omitempty"`
	RemittanceInformationUnstructured string      `json:"remittanceInformationUnstructured,omitempty"`
	RemittanceInformationStructured   any         `json:"remittanceInformationStructured,omitempty"`
	AdditionalInformation             string      `json:"additionalInformation,omitempty"`
	PurposeCode                       string      `json:"purposeCode,omitempty"`
	BankTransactionCode               string      `json:"bankTransactionCode,omitempty"`
	ProprietaryBankTransactionCode    string      `json:"proprietaryBankTransactionCode,omitempty"`
}

// TransactionList currently carries booked transactions only.
type TransactionList struct {
	Booked []Transaction `json:"booked"`
}

// Transactions is the per-account result: account reference, balances as
// reported by the workflow, and the transaction list.
type Transactions struct {
	Account      AccountRef      `json:"account"`
	Balances     []any           `json:"balances"`
	Transactions TransactionList `json:"transactions"`
}

// SepaCreditTransferPayment is one payment initiation order.
type SepaCreditTransferPayment struct {
	EndToEndIdentification            string     `json:"endToEndIdentification,omitempty"`
	DebtorAccount                     AccountRef `json:"debtorAccount"`
	InstructedAmount                  Amount     `json:"instructedAmount"`
	CreditorAccount                   AccountRef `json:"creditorAccount"`
	CreditorAgent                     string     `json:"creditorAgent,omitempty"`
	CreditorAgentName                 string     `json:"creditorAgentName,omitempty"`
	CreditorName                      string     `json:"creditorName"`
	RemittanceInformationUnstructured string     `json:"remittanceInformationUnstructured,omitempty"`
}

// Payments groups the payment orders of a request by scheme.
type Payments struct {
	SepaCreditTransferPayments []SepaCreditTransferPayment `json:"sepaCreditTransferPayments,omitempty"`
}

// Request is the task request body posted by a caller.
type Request struct {
	User        string    `json:"user,omitempty"`
	Reconfigure bool      `json:"reconfigure,omitempty"`
	Accounts    []Account `json:"accounts,omitempty"`
	Payments    *Payments `json:"payments,omitempty"`
	CallbackURI string    `json:"callbackUri,omitempty"`
}

// Result is the task outcome handed back to the caller.
type Result struct {
	Result []Transactions `json:"result"`
}

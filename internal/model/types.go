package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

// ErrorBody is the failure payload. Input and Details are redacted before
// they are placed here.
type ErrorBody struct {
	Error    bool           `json:"error"`
	Tool     string         `json:"tool"`
	Input    map[string]any `json:"input,omitempty"`
	Code     string         `json:"code"`
	ExitCode int            `json:"exitCode"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

type EnvelopeMeta struct {
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Command   string      `json:"command"`
	Network   string      `json:"network,omitempty"`
	ChainID   string      `json:"chain_id,omitempty"`
	Cache     CacheStatus `json:"cache"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
	Stale  bool   `json:"stale"`
}

// QueryResult is the success shape of a query dispatch.
type QueryResult struct {
	Module     string `json:"module"`
	Subcommand string `json:"subcommand"`
	Result     any    `json:"result"`
}

// TxResult is the success shape of a transaction dispatch. Confirmation
// fields are set only when the caller waited for inclusion.
type TxResult struct {
	Module             string `json:"module"`
	Subcommand         string `json:"subcommand"`
	TransactionHash    string `json:"transactionHash"`
	Code               uint32 `json:"code"`
	Height             string `json:"height"`
	RawLog             string `json:"rawLog,omitempty"`
	GasUsed            string `json:"gasUsed,omitempty"`
	GasWanted          string `json:"gasWanted,omitempty"`
	Confirmed          *bool  `json:"confirmed,omitempty"`
	ConfirmationHeight string `json:"confirmationHeight,omitempty"`
	// Pending is set when the transaction was broadcast but the wait for
	// its inclusion ended without an answer. It must not be re-sent.
	Pending   bool   `json:"pending,omitempty"`
	WaitError string `json:"waitError,omitempty"`
}

type ModuleSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ModuleListing struct {
	QueryModules []ModuleSummary `json:"queryModules"`
	TxModules    []ModuleSummary `json:"txModules"`
}

type SubcommandSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage,omitempty"`
}

type SubcommandListing struct {
	Type        string              `json:"type"`
	Module      string              `json:"module"`
	Subcommands []SubcommandSummary `json:"subcommands"`
}

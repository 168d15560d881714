package provision

import (
	"time"
)

const (
	// MaxAttempts is how many times account creation is tried per request.
	MaxAttempts = 3

	// InterRequestDelay is the pause inserted before every request after the
	// first, to stay under the identity provider's rate limit.
	InterRequestDelay = 300 * time.Millisecond

	// RetryBackoffUnit is multiplied by the attempt number to get the wait
	// before each retry.
	RetryBackoffUnit = 500 * time.Millisecond

	// LookupPageSize is the page size used when searching the identity
	// provider's user list for an existing account.
	LookupPageSize = 50

	// ProfileTable is the data store table holding user profile rows.
	ProfileTable = "usuarios"
)

// Status values for a per-request result.
const (
	StatusCreated  = "created"
	StatusExisting = "existing"
	StatusFailed   = "failed"
)

// CreateUserRequest is one user in a batch provisioning call. Field names are
// the wire format shared with the web application.
type CreateUserRequest struct {
	Nome           string `json:"nome"`
	Email          string `json:"email"`
	Senha          string `json:"senha"`
	Role           string `json:"role"`
	DepartamentoID string `json:"departamentoId"`
	Ativo          bool   `json:"ativo"`
}

// CreateUserResult is the per-request outcome
type CreateUserResult struct {
	Nome   string `json:"nome"`
	Email  string `json:"email"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
	Status string `json:"status"`
}

// Summary tallies a completed batch
type Summary struct {
	Total    int `json:"total"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Failed   int `json:"failed"`
}

// BatchResult is the full provisioning response: every per-request result in
// input order plus the tally.
type BatchResult struct {
	Results []CreateUserResult `json:"results"`
	Summary Summary            `json:"summary"`
}

// attemptOutcome is what a single creation attempt resolved to
type attemptOutcome int

const (
	outcomeSucceeded attemptOutcome = iota
	outcomeResolvedViaLookup
	outcomeTerminalFailure
	outcomeRetry
)

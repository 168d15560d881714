package identity

import (
	"context"
	"fmt"
)

// Account is an identity-provider user account
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AdminClient is the identity provider's user-administration surface. It is
// independent of the data store; a created account has no profile row until
// the provisioner upserts one.
type AdminClient interface {
	// CreateUser creates an account with the email pre-confirmed.
	CreateUser(ctx context.Context, email, password string) (*Account, error)

	// ListUsers returns one page of accounts. Pages are 1-based.
	ListUsers(ctx context.Context, page, perPage int) ([]Account, error)

	// DeleteUser removes an account by ID.
	DeleteUser(ctx context.Context, id string) error
}

// APIError is an error reported by the identity provider's admin API. The
// message text is load-bearing: the provisioner classifies duplicate and
// retryable failures by substring.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("identity API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("identity API error: %s", e.Message)
}

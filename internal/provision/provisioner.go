package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "empresa-sync/internal/errors"
	"empresa-sync/internal/identity"
	"empresa-sync/internal/logging"
	"empresa-sync/internal/store"
)

// SleepFunc waits for a duration or until the context is canceled. Injected
// so tests can record delays instead of serving them.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Provisioner creates identity-provider accounts in bulk and upserts a
// matching profile row per account. Requests are processed strictly
// sequentially with a fixed inter-request delay; a request's failure never
// aborts the batch.
type Provisioner struct {
	admin      identity.AdminClient
	tableStore store.TableStore
	logger     *logging.Logger
	sleep      SleepFunc
}

// NewProvisioner creates a batch user provisioner
func NewProvisioner(admin identity.AdminClient, tableStore store.TableStore, logger *logging.Logger) *Provisioner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Provisioner{
		admin:      admin,
		tableStore: tableStore,
		logger:     logger,
		sleep:      defaultSleep,
	}
}

// SetSleep replaces the delay implementation
func (p *Provisioner) SetSleep(sleep SleepFunc) {
	p.sleep = sleep
}

// ProvisionUsers processes every request in order and returns per-request
// results plus the created/existing/failed tally. The optional progress
// callback receives each result as it is finalized.
func (p *Provisioner) ProvisionUsers(ctx context.Context, requests []CreateUserRequest, progress func(CreateUserResult)) (*BatchResult, error) {
	if len(requests) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "at least one user request is required", nil)
	}

	batch := &BatchResult{
		Results: make([]CreateUserResult, 0, len(requests)),
		Summary: Summary{Total: len(requests)},
	}

	for i, req := range requests {
		if i > 0 {
			if err := p.sleep(ctx, InterRequestDelay); err != nil {
				return batch, err
			}
		}

		result := p.provisionOne(ctx, req)

		switch result.Status {
		case StatusCreated:
			batch.Summary.Created++
		case StatusExisting:
			batch.Summary.Existing++
		default:
			batch.Summary.Failed++
		}

		batch.Results = append(batch.Results, result)
		if progress != nil {
			progress(result)
		}
	}

	return batch, nil
}

// provisionOne runs the full per-request algorithm: validation, the creation
// attempt loop, and the profile upsert.
func (p *Provisioner) provisionOne(ctx context.Context, req CreateUserRequest) CreateUserResult {
	start := time.Now()
	result := CreateUserResult{
		Nome:   req.Nome,
		Email:  req.Email,
		Status: StatusFailed,
	}

	if err := validateRequest(req); err != nil {
		result.Error = err.Error()
		p.logger.LogUserProvision(req.Email, result.Status, 0, time.Since(start), err)
		return result
	}

	accountID, status, attempts, attemptErr := p.resolveAccount(ctx, req)
	if accountID == "" {
		if attemptErr != "" {
			result.Error = attemptErr
		} else {
			result.Error = fmt.Sprintf("failed after %d attempts", MaxAttempts)
		}
		p.logger.LogUserProvision(req.Email, result.Status, attempts, time.Since(start), fmt.Errorf("%s", result.Error))
		return result
	}

	if err := p.upsertProfile(ctx, accountID, req); err != nil {
		// The identity account stays behind; there is no rollback on this
		// path.
		result.Error = fmt.Sprintf("profile upsert failed: %v", err)
		p.logger.Warnf("account %s for %s is orphaned: profile upsert failed", accountID, logging.MaskEmail(req.Email))
		p.logger.LogUserProvision(req.Email, result.Status, attempts, time.Since(start), err)
		return result
	}

	result.ID = accountID
	result.Status = status
	p.logger.LogUserProvision(req.Email, result.Status, attempts, time.Since(start), nil)
	return result
}

// resolveAccount runs the attempt loop and returns the account ID (empty if
// none was obtained), the status it resolved with, the number of attempts
// made, and the terminal error message if one was recorded.
func (p *Provisioner) resolveAccount(ctx context.Context, req CreateUserRequest) (string, string, int, string) {
	var lastErr string

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, time.Duration(attempt-1)*RetryBackoffUnit); err != nil {
				return "", StatusFailed, attempt, err.Error()
			}
		}

		account, err := p.admin.CreateUser(ctx, req.Email, req.Senha)
		if err == nil {
			return account.ID, StatusCreated, attempt, ""
		}

		outcome, message := p.classifyAttempt(ctx, req, attempt, err)
		switch outcome {
		case outcomeResolvedViaLookup:
			return message, StatusExisting, attempt, ""
		case outcomeTerminalFailure:
			return "", StatusFailed, attempt, message
		case outcomeRetry:
			if message != "" {
				lastErr = message
			}
		}
	}

	return "", StatusFailed, MaxAttempts, lastErr
}

// classifyAttempt decides what a failed creation attempt means. For the
// resolved-via-lookup outcome the returned string is the adopted account ID;
// otherwise it is the error message.
func (p *Provisioner) classifyAttempt(ctx context.Context, req CreateUserRequest, attempt int, err error) (attemptOutcome, string) {
	message := err.Error()

	switch {
	case isDuplicateMessage(message):
		id, lookupErr := p.findAccountByEmail(ctx, req.Email)
		if lookupErr != nil {
			return outcomeTerminalFailure, fmt.Sprintf("account already exists but lookup failed: %v", lookupErr)
		}
		if id == "" {
			return outcomeTerminalFailure, "account already exists but could not be found in the user list"
		}
		return outcomeResolvedViaLookup, id

	case isRetryableMessage(message):
		// Retryable attempts record no error; exhausting them yields the
		// generic failed-after-N message.
		return outcomeRetry, ""

	default:
		// Every non-retryable error gets exactly one free retry.
		if attempt > 1 {
			return outcomeTerminalFailure, message
		}
		return outcomeRetry, message
	}
}

// findAccountByEmail walks the identity provider's paginated user list until
// the email is found or the list is exhausted.
func (p *Provisioner) findAccountByEmail(ctx context.Context, email string) (string, error) {
	target := normalizeEmail(email)

	for page := 1; ; page++ {
		accounts, err := p.admin.ListUsers(ctx, page, LookupPageSize)
		if err != nil {
			return "", err
		}

		for _, account := range accounts {
			if normalizeEmail(account.Email) == target {
				return account.ID, nil
			}
		}

		if len(accounts) < LookupPageSize {
			return "", nil
		}
	}
}

// upsertProfile writes the profile row keyed by the account identifier
func (p *Provisioner) upsertProfile(ctx context.Context, accountID string, req CreateUserRequest) error {
	row := store.Row{
		"id":             accountID,
		"nome":           req.Nome,
		"email":          req.Email,
		"role":           req.Role,
		"departamentoId": req.DepartamentoID,
		"ativo":          req.Ativo,
	}
	return p.tableStore.Upsert(ctx, ProfileTable, []store.Row{row}, "id")
}

func validateRequest(req CreateUserRequest) error {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(req.Nome) == "" {
		missing = append(missing, "nome")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(req.Senha) == "" {
		missing = append(missing, "senha")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// The provider reports duplicates and throttling only through message text.
// Both predicates delegate to the shared classifier so the phrase lists live
// in one place.

func isDuplicateMessage(message string) bool {
	return apperrors.IsDuplicateMessage(message)
}

func isRetryableMessage(message string) bool {
	return apperrors.IsRetryableMessage(message)
}

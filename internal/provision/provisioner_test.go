package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"empresa-sync/internal/identity"
	"empresa-sync/internal/logging"
	"empresa-sync/internal/store"
)

// fakeAdmin scripts per-email CreateUser outcomes and serves a fixed user
// directory for lookups.
type fakeAdmin struct {
	mu          sync.Mutex
	createErrs  map[string][]error // consumed front to back; nil entry = success
	directory   []identity.Account
	createCalls []string
	listCalls   []int
	listErr     error
	nextID      int
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{createErrs: make(map[string][]error)}
}

func (f *fakeAdmin) scriptCreate(email string, errs ...error) {
	f.createErrs[email] = errs
}

func (f *fakeAdmin) CreateUser(ctx context.Context, email, password string) (*identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, email)

	if errs := f.createErrs[email]; len(errs) > 0 {
		err := errs[0]
		f.createErrs[email] = errs[1:]
		if err != nil {
			return nil, err
		}
	}

	f.nextID++
	return &identity.Account{ID: fmt.Sprintf("acct-%d", f.nextID), Email: email}, nil
}

func (f *fakeAdmin) ListUsers(ctx context.Context, page, perPage int) ([]identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, page)
	if f.listErr != nil {
		return nil, f.listErr
	}

	from := (page - 1) * perPage
	if from >= len(f.directory) {
		return nil, nil
	}
	to := from + perPage
	if to > len(f.directory) {
		to = len(f.directory)
	}
	return f.directory[from:to], nil
}

func (f *fakeAdmin) DeleteUser(ctx context.Context, userID string) error {
	return nil
}

// fakeProfileStore records upserts to the profile table
type fakeProfileStore struct {
	mu        sync.Mutex
	upserts   []store.Row
	upsertErr error
}

func (f *fakeProfileStore) Select(ctx context.Context, table string, from, to int) ([]store.Row, error) {
	return nil, nil
}

func (f *fakeProfileStore) Upsert(ctx context.Context, table string, rows []store.Row, conflictKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, rows...)
	return nil
}

func (f *fakeProfileStore) Insert(ctx context.Context, table string, rows []store.Row) error {
	return nil
}

func (f *fakeProfileStore) Delete(ctx context.Context, table string, filter store.Filter) error {
	return nil
}

// sleepRecorder captures requested delays without actually waiting
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func newTestProvisioner(admin *fakeAdmin, profiles *fakeProfileStore) (*Provisioner, *sleepRecorder) {
	p := NewProvisioner(admin, profiles, logging.NewDefaultLogger())
	recorder := &sleepRecorder{}
	p.SetSleep(recorder.sleep)
	return p, recorder
}

func request(nome, email string) CreateUserRequest {
	return CreateUserRequest{Nome: nome, Email: email, Senha: "s3nha123", Role: "user", Ativo: true}
}

func TestProvisioner_EmptyBatchRejected(t *testing.T) {
	p, _ := newTestProvisioner(newFakeAdmin(), &fakeProfileStore{})

	_, err := p.ProvisionUsers(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestProvisioner_CreatesUsersSequentially(t *testing.T) {
	admin := newFakeAdmin()
	profiles := &fakeProfileStore{}
	p, recorder := newTestProvisioner(admin, profiles)

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
		request("Bruno", "bruno@example.com"),
		request("Carla", "carla@example.com"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 3, Created: 3}, batch.Summary)
	assert.Equal(t, []string{"ana@example.com", "bruno@example.com", "carla@example.com"}, admin.createCalls)

	// The inter-request delay runs before every request after the first.
	assert.Equal(t, []time.Duration{InterRequestDelay, InterRequestDelay}, recorder.delays)

	// Every account got a profile row keyed by its account ID.
	require.Len(t, profiles.upserts, 3)
	assert.Equal(t, batch.Results[0].ID, profiles.upserts[0]["id"])
	assert.Equal(t, "Ana", profiles.upserts[0]["nome"])
	assert.Equal(t, true, profiles.upserts[0]["ativo"])
}

func TestProvisioner_ValidationFailureSkipsProvider(t *testing.T) {
	admin := newFakeAdmin()
	p, _ := newTestProvisioner(admin, &fakeProfileStore{})

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		{Nome: "Sem Email", Senha: "s3nha"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, batch.Results, 1)
	assert.Equal(t, StatusFailed, batch.Results[0].Status)
	assert.Contains(t, batch.Results[0].Error, "email")
	assert.Empty(t, admin.createCalls)
}

func TestProvisioner_ValidationNamesAllMissingFields(t *testing.T) {
	p, _ := newTestProvisioner(newFakeAdmin(), &fakeProfileStore{})

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		{Nome: " ", Email: "", Senha: ""},
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, batch.Results[0].Error, "nome")
	assert.Contains(t, batch.Results[0].Error, "email")
	assert.Contains(t, batch.Results[0].Error, "senha")
}

func TestProvisioner_RetryableErrorBacksOff(t *testing.T) {
	admin := newFakeAdmin()
	admin.scriptCreate("ana@example.com",
		errors.New("429 too many requests"),
		errors.New("rate limit exceeded"),
		nil)
	p, recorder := newTestProvisioner(admin, &fakeProfileStore{})

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, batch.Results[0].Status)
	assert.Len(t, admin.createCalls, 3)

	// Backoff grows with the attempt number: one unit before the second
	// attempt, two before the third.
	assert.Equal(t, []time.Duration{RetryBackoffUnit, 2 * RetryBackoffUnit}, recorder.delays)
}

func TestProvisioner_ExhaustedRetriesFail(t *testing.T) {
	admin := newFakeAdmin()
	admin.scriptCreate("ana@example.com",
		errors.New("timeout"),
		errors.New("timeout"),
		errors.New("timeout"))
	p, _ := newTestProvisioner(admin, &fakeProfileStore{})

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, batch.Results[0].Status)
	assert.Len(t, admin.createCalls, MaxAttempts)
	assert.Equal(t, Summary{Total: 1, Failed: 1}, batch.Summary)

	// Retryable attempts record no error of their own, so exhausting them
	// reports the generic message rather than the last provider error.
	assert.Equal(t, fmt.Sprintf("failed after %d attempts", MaxAttempts), batch.Results[0].Error)
}

func TestProvisioner_UnknownErrorGetsOneRetry(t *testing.T) {
	admin := newFakeAdmin()
	admin.scriptCreate("ana@example.com",
		errors.New("something odd"),
		errors.New("something odd"),
		errors.New("something odd"))
	p, _ := newTestProvisioner(admin, &fakeProfileStore{})

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, batch.Results[0].Status)
	assert.Contains(t, batch.Results[0].Error, "something odd")

	// One retry, then terminal: never the full attempt budget.
	assert.Len(t, admin.createCalls, 2)
}

func TestProvisioner_DuplicateResolvedViaLookup(t *testing.T) {
	admin := newFakeAdmin()
	admin.scriptCreate("ana@example.com", errors.New("user already registered"))
	admin.directory = []identity.Account{
		{ID: "existing-1", Email: "other@example.com"},
		{ID: "existing-2", Email: "Ana@Example.com"},
	}
	profiles := &fakeProfileStore{}
	p, _ := newTestProvisioner(admin, profiles)

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
	}, nil)
	require.NoError(t, err)

	require.Len(t, batch.Results, 1)
	assert.Equal(t, StatusExisting, batch.Results[0].Status)
	assert.Equal(t, "existing-2", batch.Results[0].ID)
	assert.Equal(t, Summary{Total: 1, Existing: 1}, batch.Summary)

	// The profile row was refreshed for the existing account too.
	require.Len(t, profiles.upserts, 1)
	assert.Equal(t, "existing-2", profiles.upserts[0]["id"])
}

func TestProvisioner_DuplicateLookupStopsOncePageIsShort(t *testing.T) {
	admin := newFakeAdmin()
	admin.scriptCreate("ana@example.com", errors.New("email already exists"))

	// A full first page without the target, then a short second page that
	// contains it. The lookup must request exactly two pages.
	for i := 0; i < LookupPageSize; i++ {
		admin.directory = append(admin.directory, identity.Account{
			ID: fmt.Sprintf("filler-%d", i), Email: fmt.Sprintf("filler%d@example.com", i),
		})
	}
	admin.directory = append(admin.directory, identity.Account{ID: "target", Email: "ana@example.com"})

	p, _ := newTestProvisioner(admin, &fakeProfileStore{})

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "target", batch.Results[0].ID)
	assert.Equal(t, []int{1, 2}, admin.listCalls)
}

func TestProvisioner_DuplicateNotFoundInDirectory(t *testing.T) {
	admin := newFakeAdmin()
	admin.scriptCreate("ana@example.com", errors.New("user already registered"))
	p, _ := newTestProvisioner(admin, &fakeProfileStore{})

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, batch.Results[0].Status)
	assert.Contains(t, batch.Results[0].Error, "could not be found")
	// A duplicate with no directory match is terminal, not retried.
	assert.Len(t, admin.createCalls, 1)
}

func TestProvisioner_DuplicateLookupErrorIsTerminal(t *testing.T) {
	admin := newFakeAdmin()
	admin.scriptCreate("ana@example.com", errors.New("user already registered"))
	admin.listErr = errors.New("503 unavailable")
	p, _ := newTestProvisioner(admin, &fakeProfileStore{})

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, batch.Results[0].Status)
	assert.Contains(t, batch.Results[0].Error, "lookup failed")
}

func TestProvisioner_ProfileUpsertFailureDowngradesToFailed(t *testing.T) {
	admin := newFakeAdmin()
	profiles := &fakeProfileStore{upsertErr: errors.New("row level security")}
	p, _ := newTestProvisioner(admin, profiles)

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
	}, nil)
	require.NoError(t, err)

	// The account was created but the result is failed: the caller must
	// know the profile row is missing.
	assert.Equal(t, StatusFailed, batch.Results[0].Status)
	assert.Contains(t, batch.Results[0].Error, "profile upsert failed")
	assert.Equal(t, Summary{Total: 1, Failed: 1}, batch.Summary)
	assert.Len(t, admin.createCalls, 1)
}

func TestProvisioner_OneFailureDoesNotAbortBatch(t *testing.T) {
	admin := newFakeAdmin()
	admin.scriptCreate("bad@example.com",
		errors.New("invalid password"),
		errors.New("invalid password"))
	p, _ := newTestProvisioner(admin, &fakeProfileStore{})

	var seen []string
	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
		request("Bad", "bad@example.com"),
		request("Carla", "carla@example.com"),
	}, func(result CreateUserResult) {
		seen = append(seen, result.Email+":"+result.Status)
	})
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 3, Created: 2, Failed: 1}, batch.Summary)
	assert.Equal(t, []string{
		"ana@example.com:created",
		"bad@example.com:failed",
		"carla@example.com:created",
	}, seen)
}

func TestProvisioner_ContextCancellationStopsBatch(t *testing.T) {
	admin := newFakeAdmin()
	p := NewProvisioner(admin, &fakeProfileStore{}, logging.NewDefaultLogger())
	p.SetSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	})

	batch, err := p.ProvisionUsers(context.Background(), []CreateUserRequest{
		request("Ana", "ana@example.com"),
		request("Bruno", "bruno@example.com"),
	}, nil)

	require.Error(t, err)
	// The first request completed before the cancellation surfaced.
	require.NotNil(t, batch)
	assert.Len(t, batch.Results, 1)
}

func TestIsDuplicateMessage(t *testing.T) {
	assert.True(t, isDuplicateMessage("A user with this email address has already been registered"))
	assert.True(t, isDuplicateMessage("User already registered"))
	assert.True(t, isDuplicateMessage("account ALREADY EXISTS"))
	assert.True(t, isDuplicateMessage("duplicate key value violates unique constraint"))
	assert.False(t, isDuplicateMessage("invalid password"))
}

func TestIsRetryableMessage(t *testing.T) {
	assert.True(t, isRetryableMessage("429 Too Many Requests"))
	assert.True(t, isRetryableMessage("rate limit exceeded"))
	assert.True(t, isRetryableMessage("request timeout"))
	assert.True(t, isRetryableMessage("503 Service Unavailable"))
	assert.False(t, isRetryableMessage("invalid password"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", normalizeEmail("  Ana@Example.COM "))
}

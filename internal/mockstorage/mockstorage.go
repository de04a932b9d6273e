// Package mockstorage provides a testify-based mock implementation
// of the storage interface used by the router and flow packages.
// It is used for unit testing HTTP handlers by simulating storage behavior.
package mockstorage

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/apetrenko/hublink/internal/session"
	"github.com/apetrenko/hublink/internal/user"
)

// StorageMock is a testify mock that implements the storage interface.
//
// Use it in handler tests to simulate database behavior, typically the
// failure paths that the real in-memory backend cannot produce.
type StorageMock struct {
	mock.Mock

	// OnGetNumberOfUsers is an optional function field that can be assigned
	// to define custom mock behavior for GetNumberOfUsers in tests.
	//
	// If set, GetNumberOfUsers will delegate to this function instead of
	// using testify's generic mock handler.
	OnGetNumberOfUsers func(ctx context.Context) (int64, error)

	// OnGetNumberOfURLEntries is an optional function field that can be used
	// to customize the return values of GetNumberOfURLEntries in tests.
	//
	// If non-nil, the mock implementation will call this function directly.
	OnGetNumberOfURLEntries func(ctx context.Context) (int64, error)
}

// FindUserByName mocks the exact (name, surname) lookup.
func (m *StorageMock) FindUserByName(ctx context.Context, name, surname string) (*user.User, bool, error) {
	args := m.Called(ctx, name, surname)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// CreateUser mocks user creation and returns a generated ID.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User, tx *sql.Tx) (string, error) {
	args := m.Called(ctx, usr, tx)
	return args.String(0), args.Error(1)
}

// GetUserByID mocks fetching a user by their ID.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string, tx *sql.Tx) (*user.User, bool, error) {
	args := m.Called(ctx, userID, tx)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// IncrementUserVisits mocks the visit counter increment.
func (m *StorageMock) IncrementUserVisits(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// SetUserVisits mocks the visit counter override.
func (m *StorageMock) SetUserVisits(ctx context.Context, userID string, visits int) error {
	args := m.Called(ctx, userID, visits)
	return args.Error(0)
}

// FindURLByIndex mocks the URL directory lookup.
func (m *StorageMock) FindURLByIndex(ctx context.Context, index int) (string, bool, error) {
	args := m.Called(ctx, index)
	return args.String(0), args.Bool(1), args.Error(2)
}

// SaveURLEntries mocks batch seeding of the URL directory.
func (m *StorageMock) SaveURLEntries(ctx context.Context, entries map[int]string, tx *sql.Tx) error {
	args := m.Called(ctx, entries, tx)
	return args.Error(0)
}

// CreateSession mocks persisting a session record.
func (m *StorageMock) CreateSession(ctx context.Context, sess *session.Session, tx *sql.Tx) error {
	args := m.Called(ctx, sess, tx)
	return args.Error(0)
}

// FindSessionByID mocks fetching a session record by ID.
func (m *StorageMock) FindSessionByID(ctx context.Context, sessionID string) (*session.Session, bool, error) {
	args := m.Called(ctx, sessionID)
	sess, _ := args.Get(0).(*session.Session)
	return sess, args.Bool(1), args.Error(2)
}

// DeleteExpiredSessions mocks the expired session sweep.
func (m *StorageMock) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// BeginTransaction mocks the beginning of a transaction.
func (m *StorageMock) BeginTransaction() (*sql.Tx, error) {
	args := m.Called()
	tx, _ := args.Get(0).(*sql.Tx)
	return tx, args.Error(1)
}

// CommitTransaction mocks committing a transaction.
func (m *StorageMock) CommitTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// RollbackTransaction mocks rolling back a transaction.
func (m *StorageMock) RollbackTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// Ping mocks the pinger interface to simulate a health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks closing the storage and releasing resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// GetNumberOfUsers returns the number of users as defined by the mock.
//
// If OnGetNumberOfUsers is non-nil, it will be called to produce the result.
// Otherwise, the method returns 0 and no error by default.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfUsers != nil {
		return m.OnGetNumberOfUsers(ctx)
	}
	return 0, nil
}

// GetNumberOfURLEntries returns the URL directory size as defined by the mock.
//
// If OnGetNumberOfURLEntries is defined, the method will call it and return
// its result. Otherwise, it defaults to returning 0 and no error.
func (m *StorageMock) GetNumberOfURLEntries(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfURLEntries != nil {
		return m.OnGetNumberOfURLEntries(ctx)
	}
	return 0, nil
}

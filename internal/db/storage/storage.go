// Package storage declares the persistence contract shared by the
// PostgreSQL, JSON-file, and in-memory backends.
package storage

import (
	"context"
	"database/sql"

	"github.com/apetrenko/hublink/internal/session"
	"github.com/apetrenko/hublink/internal/user"
)

// Storage is the full persistence surface used by the application.
type Storage interface {
	FindUserByName(ctx context.Context, name, surname string) (*user.User, bool, error)

	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error)

	GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, bool, error)

	IncrementUserVisits(ctx context.Context, userID string) (int, error)

	SetUserVisits(ctx context.Context, userID string, visits int) error

	GetNumberOfUsers(ctx context.Context) (int64, error)

	FindURLByIndex(ctx context.Context, index int) (string, bool, error)

	SaveURLEntries(ctx context.Context, entries map[int]string, transaction *sql.Tx) error

	GetNumberOfURLEntries(ctx context.Context) (int64, error)

	CreateSession(ctx context.Context, sess *session.Session, transaction *sql.Tx) error

	FindSessionByID(ctx context.Context, sessionID string) (*session.Session, bool, error)

	DeleteExpiredSessions(ctx context.Context) (int64, error)

	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error

	Ping(ctx context.Context) error

	Close() error
}

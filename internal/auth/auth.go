// Package auth implements the login flow: looking up a user by the
// (name, surname) pair, lazily creating the record on first sight, and
// checking the submitted password against the single global fixed hash.
//
// Security property preserved from the original system, NOT a placeholder:
// every auto-created account shares the one fixed password, so anyone who
// knows it can register and log in under an arbitrary unseen identity. The
// per-user PasswordHash column always holds that same fixed hash and is
// never consulted during the check.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/apetrenko/hublink/internal/user"
)

type userKeeper interface {
	FindUserByName(ctx context.Context, name, surname string) (*user.User, bool, error)
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error)
}

// ErrPasswordMismatch reports a wrong password. It is a normal login
// outcome, not a failure: the handler turns it into a flash notice and a
// redirect back to the login form.
var ErrPasswordMismatch = errors.New("incorrect password")

// Auth orchestrates the credential check and user auto-registration.
type Auth struct {
	// db is the interface to the user data storage.
	db userKeeper

	// fixedPasswordHash is the single bcrypt hash every submitted password
	// is compared against.
	fixedPasswordHash string
}

// New creates an Auth flow over the given user storage and fixed hash.
func New(db userKeeper, fixedPasswordHash string) *Auth {
	return &Auth{
		db:                db,
		fixedPasswordHash: fixedPasswordHash,
	}
}

// FindUser looks up a user by exact (name, surname) match.
func (a *Auth) FindUser(ctx context.Context, name, surname string) (*user.User, bool, error) {
	return a.db.FindUserByName(ctx, name, surname)
}

// EnsureUser returns the user with the given identity, creating the record
// if it does not exist yet. Creation is idempotent with respect to login:
// a later lookup by the same pair finds the record created here. The new
// record stores the global fixed hash and a zero visit count.
func (a *Auth) EnsureUser(ctx context.Context, name, surname string) (*user.User, error) {
	usr, found, err := a.FindUser(ctx, name, surname)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if found {
		return usr, nil
	}

	usr = &user.User{
		Name:         name,
		Surname:      surname,
		PasswordHash: a.fixedPasswordHash,
	}
	usr.ID, err = a.db.CreateUser(ctx, usr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return usr, nil
}

// VerifyPassword compares the submitted password against the global fixed
// hash. Returns ErrPasswordMismatch when they do not match.
func (a *Auth) VerifyPassword(password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(a.fixedPasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("comparing password hash: %w", err)
	}

	return nil
}

// Login runs the full flow: ensure the user record exists, then check the
// password. The user record survives a mismatch; only the session (created
// by the caller on success) is withheld.
func (a *Auth) Login(ctx context.Context, name, surname, password string) (*user.User, error) {
	usr, err := a.EnsureUser(ctx, name, surname)
	if err != nil {
		return nil, err
	}

	if err := a.VerifyPassword(password); err != nil {
		return nil, err
	}

	return usr, nil
}

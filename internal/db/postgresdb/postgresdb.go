// Package postgresdb provides the PostgreSQL-based implementation of the
// storage interface for persisting users, URL directory entries, and
// sessions. Schema management is handled with goose migrations.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/thoas/go-funk"

	"github.com/apetrenko/hublink/internal/session"
	"github.com/apetrenko/hublink/internal/user"
)

// PostgresDB is a PostgreSQL-backed implementation of the storage interface.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables resetting the database schema before
// migration. It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database, runs schema
// migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

// FindUserByName returns the first user matching the exact (name, surname)
// pair. The pair is a natural key by convention only; duplicates are
// possible and the oldest row wins.
func (db *PostgresDB) FindUserByName(ctx context.Context, name, surname string) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, name, surname, password_hash, visit_count
				FROM users
				WHERE name = $1 AND surname = $2
				ORDER BY id
				LIMIT 1
		`,
		name,
		surname,
	)

	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Name, &usr.Surname, &usr.PasswordHash, &usr.VisitCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// CreateUser inserts a new user record and returns the generated ID.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	row := database.QueryRowContext(
		ctx,
		`
			INSERT INTO users (name, surname, password_hash, visit_count)
				VALUES ($1, $2, $3, $4)
				RETURNING id
		`,
		usr.Name,
		usr.Surname,
		usr.PasswordHash,
		usr.VisitCount,
	)
	var userIDFromDB string
	err := row.Scan(&userIDFromDB)
	if err != nil {
		return "", err
	}

	return userIDFromDB, nil
}

// GetUserByID fetches a user by their UUID.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, bool, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	if userID == "" {
		return nil, false, nil
	}

	row := database.QueryRowContext(
		ctx,
		`
			SELECT id, name, surname, password_hash, visit_count
				FROM users
				WHERE id = $1
		`,
		userID,
	)

	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Name, &usr.Surname, &usr.PasswordHash, &usr.VisitCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// IncrementUserVisits bumps the user's visit count by one and returns the
// new value. The increment happens in a single UPDATE, so concurrent tabs
// cannot lose a visit.
func (db *PostgresDB) IncrementUserVisits(ctx context.Context, userID string) (int, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			UPDATE users
				SET visit_count = visit_count + 1
				WHERE id = $1
				RETURNING visit_count
		`,
		userID,
	)
	var visits int
	err := row.Scan(&visits)
	if err != nil {
		return 0, err
	}

	return visits, nil
}

// SetUserVisits overwrites the user's visit count with an arbitrary value.
// This is the debug/reset path behind POST /android; it deliberately
// bypasses the increment semantics.
func (db *PostgresDB) SetUserVisits(ctx context.Context, userID string, visits int) error {
	_, err := db.database.ExecContext(
		ctx,
		`UPDATE users SET visit_count = $2 WHERE id = $1`,
		userID,
		visits,
	)

	return err
}

// GetNumberOfUsers returns the total number of user records.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`)
	var count int64
	err := row.Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// FindURLByIndex returns the destination URL registered under the given
// button index.
func (db *PostgresDB) FindURLByIndex(ctx context.Context, index int) (string, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT url FROM url_entries WHERE "index" = $1`,
		index,
	)
	var destination string
	err := row.Scan(&destination)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	return destination, true, nil
}

// SaveURLEntries stores a batch of index-to-URL mappings in a single
// multi-VALUES insert. Existing indices are overwritten, which makes
// re-running the seed harmless.
func (db *PostgresDB) SaveURLEntries(
	ctx context.Context,
	entries map[int]string,
	transaction *sql.Tx,
) error {
	urlEntriesTableValues := prepareURLEntries(entries)
	urlEntriesTableValuesLen := len(urlEntriesTableValues)
	if urlEntriesTableValuesLen == 0 {
		return nil
	}
	urlEntriesTableValuesPlaceholders := make([]string, urlEntriesTableValuesLen)
	for i := range urlEntriesTableValuesPlaceholders {
		urlEntriesTableValuesPlaceholders[i] = fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2)
	}
	urlEntriesTableValuesPlaceholdersAsString := strings.Join(urlEntriesTableValuesPlaceholders, ",")
	queryParams := funk.Flatten(urlEntriesTableValues).([]interface{})

	var database executor
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	_, err := database.ExecContext(
		ctx,
		fmt.Sprintf(
			`
				INSERT INTO url_entries ("index", url) VALUES %s
					ON CONFLICT ("index") DO UPDATE
					SET url = EXCLUDED.url
			`,
			urlEntriesTableValuesPlaceholdersAsString,
		),
		queryParams...,
	)
	if err != nil {
		return err
	}

	return nil
}

// GetNumberOfURLEntries returns the size of the URL directory.
func (db *PostgresDB) GetNumberOfURLEntries(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM url_entries`)
	var count int64
	err := row.Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CreateSession persists a new session record.
func (db *PostgresDB) CreateSession(ctx context.Context, sess *session.Session, transaction *sql.Tx) error {
	var database executor
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	_, err := database.ExecContext(
		ctx,
		`
			INSERT INTO sessions (id, user_id, created_at, expires_at)
				VALUES ($1, $2, $3, $4)
		`,
		sess.ID,
		sess.UserID,
		sess.CreatedAt,
		sess.ExpiresAt,
	)

	return err
}

// FindSessionByID fetches a session record by its UUID.
func (db *PostgresDB) FindSessionByID(ctx context.Context, sessionID string) (*session.Session, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, user_id, created_at, expires_at
				FROM sessions
				WHERE id = $1
		`,
		sessionID,
	)

	sess := &session.Session{}
	err := row.Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return sess, true, nil
}

// DeleteExpiredSessions removes session rows past their expiry and returns
// how many were deleted.
func (db *PostgresDB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM sessions WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// CommitTransaction commits the given SQL transaction.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// BeginTransaction starts a new SQL transaction and returns it.
// The caller is responsible for committing or rolling it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// Ping verifies connectivity with the PostgreSQL database within the
// configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	err := db.database.Close()
	if err != nil {
		return err
	}

	return nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}

func prepareURLEntries(entries map[int]string) [][]interface{} {
	result := [][]interface{}{}
	for index, destination := range entries {
		result = append(result, []interface{}{index, destination})
	}

	return result
}

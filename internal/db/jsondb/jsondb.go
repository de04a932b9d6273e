// Package jsondb implements the storage interface on top of a single JSON
// file with an in-memory cache. All reads and writes hit the cache; the
// file is rewritten on Close. It backs small single-node deployments and
// tests where PostgreSQL is not available.
package jsondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apetrenko/hublink/internal/session"
	"github.com/apetrenko/hublink/internal/user"
)

// JSONDB is a file-backed implementation of the storage interface.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the serialized shape of the database file.
type CacheStruct struct {
	Users    map[string]*user.User
	URLs     map[int]string
	Sessions map[string]*session.Session
}

// NewCache returns an empty cache with all maps allocated.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:    map[string]*user.User{},
		URLs:     map[int]string{},
		Sessions: map[string]*session.Session{},
	}
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Users": {},
	"URLs": {},
	"Sessions": {}
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cache)
	if err != nil {
		return err
	}

	return nil
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening file: %s", err)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

// NewWithCache wraps an existing cache without any file backing. Callers
// that use it (the in-memory backend) override Close.
func NewWithCache(cache CacheStruct) *JSONDB {
	return &JSONDB{Cache: cache}
}

// New loads the database file, creating it when missing, and returns the
// ready storage.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(db.fileName, &db.Cache)
		if err != nil {
			return nil, err
		}
	}

	if db.Cache.Users == nil {
		db.Cache.Users = map[string]*user.User{}
	}
	if db.Cache.URLs == nil {
		db.Cache.URLs = map[int]string{}
	}
	if db.Cache.Sessions == nil {
		db.Cache.Sessions = map[string]*session.Session{}
	}

	return db, nil
}

// FindUserByName returns the first user matching the exact (name, surname)
// pair. Iteration order over the map is unspecified, matching the
// "any first match wins" contract.
func (db *JSONDB) FindUserByName(ctx context.Context, name, surname string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.Name == name && usr.Surname == surname {
			copied := *usr
			return &copied, true, nil
		}
	}

	return nil, false, nil
}

// CreateUser stores a new user record and returns the generated ID.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored := *usr
	stored.ID = uuid.New().String()
	db.Cache.Users[stored.ID] = &stored

	return stored.ID, nil
}

// GetUserByID fetches a user by ID.
func (db *JSONDB) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}
	copied := *usr

	return &copied, true, nil
}

// IncrementUserVisits reads the current count and writes it back plus one.
func (db *JSONDB) IncrementUserVisits(ctx context.Context, userID string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return 0, fmt.Errorf("no user with id %q", userID)
	}
	usr.VisitCount++

	return usr.VisitCount, nil
}

// SetUserVisits overwrites the user's visit count.
func (db *JSONDB) SetUserVisits(ctx context.Context, userID string, visits int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return fmt.Errorf("no user with id %q", userID)
	}
	usr.VisitCount = visits

	return nil
}

// GetNumberOfUsers returns the total number of user records.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

// FindURLByIndex returns the destination registered under the given index.
func (db *JSONDB) FindURLByIndex(ctx context.Context, index int) (string, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	destination, found := db.Cache.URLs[index]

	return destination, found, nil
}

// SaveURLEntries stores a batch of index-to-URL mappings, overwriting
// existing indices.
func (db *JSONDB) SaveURLEntries(ctx context.Context, entries map[int]string, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for index, destination := range entries {
		db.Cache.URLs[index] = destination
	}

	return nil
}

// GetNumberOfURLEntries returns the size of the URL directory.
func (db *JSONDB) GetNumberOfURLEntries(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.URLs)), nil
}

// CreateSession stores a new session record.
func (db *JSONDB) CreateSession(ctx context.Context, sess *session.Session, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	copied := *sess
	db.Cache.Sessions[copied.ID] = &copied

	return nil
}

// FindSessionByID fetches a session record by ID.
func (db *JSONDB) FindSessionByID(ctx context.Context, sessionID string) (*session.Session, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	sess, found := db.Cache.Sessions[sessionID]
	if !found {
		return nil, false, nil
	}
	copied := *sess

	return &copied, true, nil
}

// DeleteExpiredSessions drops session records past their expiry.
func (db *JSONDB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	var deleted int64
	for id, sess := range db.Cache.Sessions {
		if now.After(sess.ExpiresAt) {
			delete(db.Cache.Sessions, id)
			deleted++
		}
	}

	return deleted, nil
}

// BeginTransaction is a no-op for the file backend.
func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

// CommitTransaction is a no-op for the file backend.
func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

// RollbackTransaction is a no-op for the file backend.
func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

// Ping reports the storage as always reachable.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the cache back to the database file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, &db.Cache)
}

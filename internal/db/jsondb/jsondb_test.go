package jsondb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrenko/hublink/internal/session"
	"github.com/apetrenko/hublink/internal/user"
)

func newTestDB(t *testing.T) (*JSONDB, string) {
	t.Helper()

	fileName := filepath.Join(t.TempDir(), "db.json")
	db, err := New(fileName)
	require.NoError(t, err)

	return db, fileName
}

func TestNewCreatesMissingFile(t *testing.T) {
	db, fileName := newTestDB(t)

	_, err := os.Stat(fileName)
	require.NoError(t, err)

	numberOfUsers, err := db.GetNumberOfUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), numberOfUsers)
}

func TestNewRejectsMalformedFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(fileName, []byte("not json at all"), 0644))

	_, err := New(fileName)
	assert.Error(t, err)
}

func TestPersistenceRoundtrip(t *testing.T) {
	db, fileName := newTestDB(t)
	ctx := context.Background()

	userID, err := db.CreateUser(ctx, &user.User{
		Name:         "Ann",
		Surname:      "Lee",
		PasswordHash: "hash",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, db.SetUserVisits(ctx, userID, 7))

	require.NoError(t, db.SaveURLEntries(ctx, map[int]string{
		1: "https://example.com/one",
		2: "https://example.org",
	}, nil))

	require.NoError(t, db.CreateSession(ctx, &session.Session{
		ID:        "session-1",
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil))

	require.NoError(t, db.Close())

	reopened, err := New(fileName)
	require.NoError(t, err)

	usr, found, err := reopened.FindUserByName(ctx, "Ann", "Lee")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, userID, usr.ID)
	assert.Equal(t, 7, usr.VisitCount)

	destination, found, err := reopened.FindURLByIndex(ctx, 2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://example.org", destination)

	sess, found, err := reopened.FindSessionByID(ctx, "session-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, userID, sess.UserID)
}

func TestIncrementUserVisits(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	_, err := db.IncrementUserVisits(ctx, "no-such-user")
	assert.Error(t, err)

	userID, err := db.CreateUser(ctx, &user.User{Name: "Ann", Surname: "Lee"}, nil)
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		visits, err := db.IncrementUserVisits(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, want, visits)
	}
}

func TestSaveURLEntriesOverwritesIndex(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveURLEntries(ctx, map[int]string{1: "https://old.example.com"}, nil))
	require.NoError(t, db.SaveURLEntries(ctx, map[int]string{1: "https://new.example.com"}, nil))

	destination, found, err := db.FindURLByIndex(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://new.example.com", destination)

	numberOfEntries, err := db.GetNumberOfURLEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), numberOfEntries)
}

func TestDeleteExpiredSessions(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateSession(ctx, &session.Session{
		ID:        "expired",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}, nil))
	require.NoError(t, db.CreateSession(ctx, &session.Session{
		ID:        "live",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil))

	deleted, err := db.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, found, err := db.FindSessionByID(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = db.FindSessionByID(ctx, "live")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestLookupsReturnCopies(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	userID, err := db.CreateUser(ctx, &user.User{Name: "Ann", Surname: "Lee"}, nil)
	require.NoError(t, err)

	usr, found, err := db.GetUserByID(ctx, userID, nil)
	require.NoError(t, err)
	require.True(t, found)
	usr.VisitCount = 100

	stored, _, err := db.GetUserByID(ctx, userID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.VisitCount)
}

package memorystorage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrenko/hublink/internal/user"
)

func TestStartsEmpty(t *testing.T) {
	db, err := New()
	require.NoError(t, err)

	numberOfUsers, err := db.GetNumberOfUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), numberOfUsers)

	numberOfEntries, err := db.GetNumberOfURLEntries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), numberOfEntries)
}

func TestCloseDiscardsNothing(t *testing.T) {
	db, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	userID, err := db.CreateUser(ctx, &user.User{Name: "Ann", Surname: "Lee"}, nil)
	require.NoError(t, err)

	// Close is a no-op: the cache stays usable afterwards.
	require.NoError(t, db.Close())

	_, found, err := db.GetUserByID(ctx, userID, nil)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestPing(t *testing.T) {
	db, err := New()
	require.NoError(t, err)

	assert.NoError(t, db.Ping(context.Background()))
}

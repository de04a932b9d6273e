package sessionsweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apetrenko/hublink/internal/db/memorystorage"
	"github.com/apetrenko/hublink/internal/logger"
	"github.com/apetrenko/hublink/internal/mockstorage"
	"github.com/apetrenko/hublink/internal/session"
)

func TestRunRemovesExpiredSessions(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	sweeper := New(db, 10*time.Millisecond)
	sweeper.Run(ctx)

	require.Eventually(t, func() bool {
		_, found, err := db.FindSessionByID(ctx, "expired")
		return err == nil && !found
	}, time.Second, 10*time.Millisecond)

	_, found, err := db.FindSessionByID(ctx, "live")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRunForwardsSweepErrors(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db := new(mockstorage.StorageMock)
	db.On("DeleteExpiredSessions", mock.Anything).
		Return(int64(0), errors.New("db error"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := New(db, 10*time.Millisecond)

	received := make(chan error, 1)
	sweeper.ListenErrors(func(err error) {
		select {
		case received <- err:
		default:
		}
	})
	sweeper.Run(ctx)

	select {
	case err := <-received:
		assert.ErrorContains(t, err, "db error")
	case <-time.After(time.Second):
		t.Fatal("no sweep error was forwarded")
	}
}

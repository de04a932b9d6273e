package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apetrenko/hublink/internal/db/memorystorage"
	"github.com/apetrenko/hublink/internal/mockstorage"
	"github.com/apetrenko/hublink/internal/session"
)

const testCookieName = "hublink_session_test"

var testSigningKey = []byte("0123456789abcdef")

func newTestManager(t *testing.T, ttl time.Duration) (*session.Manager, *memorystorage.MemoryStorage) {
	t.Helper()

	db, err := memorystorage.New()
	require.NoError(t, err)

	return session.New(db, testCookieName, testSigningKey, ttl, false), db
}

func createAndExtractCookie(t *testing.T, manager *session.Manager, userID string) (*session.Session, *http.Cookie) {
	t.Helper()

	recorder := httptest.NewRecorder()
	sess, err := manager.Create(context.Background(), recorder, userID)
	require.NoError(t, err)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, testCookieName, cookies[0].Name)

	return sess, cookies[0]
}

func TestCreateAndResolveRoundtrip(t *testing.T) {
	manager, db := newTestManager(t, time.Hour)

	sess, cookie := createAndExtractCookie(t, manager, "user-1")
	assert.True(t, cookie.HttpOnly)

	stored, found, err := db.FindSessionByID(context.Background(), sess.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "user-1", stored.UserID)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(cookie)

	resolved, found, err := manager.Resolve(request)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sess.ID, resolved.ID)
	assert.Equal(t, "user-1", resolved.UserID)
}

func TestResolveWithoutCookie(t *testing.T) {
	manager, _ := newTestManager(t, time.Hour)

	request := httptest.NewRequest(http.MethodGet, "/", nil)

	_, found, err := manager.Resolve(request)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveTamperedCookie(t *testing.T) {
	manager, _ := newTestManager(t, time.Hour)

	_, cookie := createAndExtractCookie(t, manager, "user-1")
	cookie.Value += "garbage"

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(cookie)

	_, found, err := manager.Resolve(request)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveForeignSignature(t *testing.T) {
	manager, db := newTestManager(t, time.Hour)

	foreignManager := session.New(db, testCookieName, []byte("another-signing-key"), time.Hour, false)
	_, cookie := createAndExtractCookie(t, foreignManager, "user-1")

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(cookie)

	_, found, err := manager.Resolve(request)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveExpiredSession(t *testing.T) {
	manager, db := newTestManager(t, time.Hour)

	// A manager with a negative TTL produces records that are already
	// past their expiry, while the cookie itself is still readable.
	expiredManager := session.New(db, testCookieName, testSigningKey, -time.Minute, false)
	_, cookie := createAndExtractCookie(t, expiredManager, "user-1")

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(cookie)

	_, found, err := manager.Resolve(request)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateStorageFailureWritesNoCookie(t *testing.T) {
	db := new(mockstorage.StorageMock)
	db.On("CreateSession", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("db error"))

	manager := session.New(db, testCookieName, testSigningKey, time.Hour, false)

	recorder := httptest.NewRecorder()
	_, err := manager.Create(context.Background(), recorder, "user-1")
	require.Error(t, err)
	assert.Empty(t, recorder.Result().Cookies())
}

func TestResolveStorageFailure(t *testing.T) {
	manager, _ := newTestManager(t, time.Hour)
	_, cookie := createAndExtractCookie(t, manager, "user-1")

	db := new(mockstorage.StorageMock)
	db.On("FindSessionByID", mock.Anything, mock.Anything).
		Return((*session.Session)(nil), false, errors.New("db error"))

	failingManager := session.New(db, testCookieName, testSigningKey, time.Hour, false)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(cookie)

	_, _, err := failingManager.Resolve(request)
	assert.Error(t, err)
}

func TestAuthenticateMiddleware(t *testing.T) {
	manager, _ := newTestManager(t, time.Hour)
	sess, cookie := createAndExtractCookie(t, manager, "user-1")

	var seen *session.Session
	handler := manager.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(cookie)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	require.NotNil(t, seen)
	assert.Equal(t, sess.ID, seen.ID)

	seen = nil
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, seen)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

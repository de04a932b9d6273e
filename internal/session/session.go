// Package session implements the server-side session manager. A session is
// a persisted record keyed by an opaque UUID; the client holds a signed JWT
// cookie whose only claim of interest is that session ID. Resolving a
// request verifies the cookie signature and then loads the record from the
// backing store, so stolen or forged cookies without a matching record are
// treated as anonymous traffic.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Session is the persisted record of an authenticated identity.
type Session struct {
	// ID is the opaque session identifier, meaning a UUID.
	ID string

	// UserID references the authenticated user.
	UserID string

	// CreatedAt is when the session was established.
	CreatedAt time.Time

	// ExpiresAt is when the session stops resolving. There is no logout
	// route; time-based expiry is the only way a session ends.
	ExpiresAt time.Time
}

type sessionKeeper interface {
	CreateSession(ctx context.Context, sess *Session, transaction *sql.Tx) error
	FindSessionByID(ctx context.Context, sessionID string) (*Session, bool, error)
}

// Manager resolves incoming requests to session records and establishes new
// sessions on successful login.
type Manager struct {
	// db is the interface to the session data storage.
	db sessionKeeper

	// cookieName is the name of the cookie used to store the JWT.
	cookieName string

	// cookieSigningSecretKey is the key used to sign JWTs.
	cookieSigningSecretKey []byte

	// ttl is the session lifetime, one year in the original deployment.
	ttl time.Duration

	// crossSiteCookies switches the cookie to Secure + SameSite=None for
	// production deployments served cross-site (the installed PWA case).
	crossSiteCookies bool
}

// Claims represents the JWT claims carried by the session cookie.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// SessionKey is the context key under which Authenticate stores the resolved
// session.
const SessionKey ContextKey = "session"

// New creates a session Manager on top of the given session storage.
func New(
	db sessionKeeper,
	cookieName string,
	cookieSigningSecretKey []byte,
	ttl time.Duration,
	crossSiteCookies bool,
) *Manager {
	return &Manager{
		db:                     db,
		cookieName:             cookieName,
		cookieSigningSecretKey: cookieSigningSecretKey,
		ttl:                    ttl,
		crossSiteCookies:       crossSiteCookies,
	}
}

// Create persists a new session for the given user and writes the session
// cookie. The record is saved before the cookie is written: if persistence
// fails the caller gets an error and the client is left unauthenticated
// rather than holding a cookie that references nothing.
func (m *Manager) Create(
	ctx context.Context,
	response http.ResponseWriter,
	userID string,
) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.db.CreateSession(ctx, sess, nil); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	JWTString, err := m.buildJWTString(&Claims{SessionID: sess.ID})
	if err != nil {
		return nil, fmt.Errorf("signing session cookie: %w", err)
	}

	http.SetCookie(response, m.buildCookie(JWTString))

	return sess, nil
}

// Resolve maps an incoming request to its session record, or reports that
// the request is anonymous. A missing cookie, an unverifiable JWT, an
// unknown session ID, or an expired record all resolve to "no session"
// without an error; only storage failures surface as errors.
func (m *Manager) Resolve(request *http.Request) (*Session, bool, error) {
	cookie, err := request.Cookie(m.cookieName)
	if err != nil {
		return nil, false, nil
	}

	sessionID := m.getSessionIDFromToken(cookie.Value)
	if sessionID == "" {
		return nil, false, nil
	}

	sess, found, err := m.db.FindSessionByID(request.Context(), sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("loading session: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	if time.Now().After(sess.ExpiresAt) {
		return nil, false, nil
	}

	return sess, true, nil
}

// Authenticate is an HTTP middleware that resolves the request's session and,
// if one exists, stores it in the request context. Anonymous requests pass
// through unchanged; handlers decide for themselves whether to render the
// login view or redirect.
func (m *Manager) Authenticate(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		sess, found, err := m.Resolve(request)
		if err != nil {
			http.Error(response, "an error occurred", http.StatusInternalServerError)
			return
		}
		if !found {
			h.ServeHTTP(response, request)
			return
		}

		ctx := context.WithValue(request.Context(), SessionKey, sess)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// FromContext returns the session stored by Authenticate, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(SessionKey).(*Session)
	return sess, ok && sess != nil
}

func (m *Manager) buildCookie(value string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if m.crossSiteCookies {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}

	return cookie
}

func (m *Manager) getSessionIDFromToken(tokenString string) string {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.cookieSigningSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		return ""
	}

	return claims.SessionID
}

func (m *Manager) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(m.cookieSigningSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

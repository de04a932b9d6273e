// Package router wires the HTTP surface: login, home with the visit
// counter, the button-index redirect, device install pages, static PWA
// assets, and the trusted-subnet stats endpoint.
//
// Preserved inconsistency from the original system: POST /redirect performs
// no session check, while / and POST /android require one. Whether that is
// an intentional public short-link redirect or an oversight is unknown, so
// the observed behavior stands.
package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/apetrenko/hublink/internal/auth"
	"github.com/apetrenko/hublink/internal/gzippedhttp"
	"github.com/apetrenko/hublink/internal/ipchecker"
	"github.com/apetrenko/hublink/internal/logger"
	"github.com/apetrenko/hublink/internal/models"
	"github.com/apetrenko/hublink/internal/session"
	"github.com/apetrenko/hublink/internal/user"
	"github.com/apetrenko/hublink/internal/web"
)

const flashCookieName = "hublink_flash"

type userKeeper interface {
	GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, bool, error)
	IncrementUserVisits(ctx context.Context, userID string) (int, error)
	SetUserVisits(ctx context.Context, userID string, visits int) error
	GetNumberOfUsers(ctx context.Context) (int64, error)
}

type urlKeeper interface {
	FindURLByIndex(ctx context.Context, index int) (string, bool, error)
	GetNumberOfURLEntries(ctx context.Context) (int64, error)
}

type storage interface {
	userKeeper
	urlKeeper
}

type loginFlow interface {
	Login(ctx context.Context, name, surname, password string) (*user.User, error)
}

type sessionManager interface {
	Create(ctx context.Context, response http.ResponseWriter, userID string) (*session.Session, error)
	Authenticate(h http.Handler) http.Handler
}

// Router bundles the handler dependencies.
type Router struct {
	db       storage
	login    loginFlow
	sessions sessionManager
	views    *web.Views
	ipCheck  *ipchecker.IPChecker
	validate *validator.Validate
}

// New builds the chi mux with all routes and middleware attached.
func New(
	db storage,
	login loginFlow,
	sessions sessionManager,
	views *web.Views,
	ipCheck *ipchecker.IPChecker,
	staticHandler http.Handler,
) *chi.Mux {
	myRouter := &Router{
		db:       db,
		login:    login,
		sessions: sessions,
		views:    views,
		ipCheck:  ipCheck,
		validate: validator.New(),
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.GzipResponse,
	)

	router.Get(`/checkOnline`, myRouter.GetCheckonline)
	router.Get(`/login`, myRouter.GetLogin)
	router.Post(`/login`, myRouter.PostLogin)
	router.With(sessions.Authenticate).Get(`/`, myRouter.GetRoot)
	router.Get(`/android`, myRouter.GetAndroid)
	router.Get(`/iphone`, myRouter.GetIphone)
	router.With(sessions.Authenticate).Post(`/android`, myRouter.PostAndroid)
	router.Post(`/redirect`, myRouter.PostRedirect)
	router.Get(`/api/internal/stats`, myRouter.GetApiinternalstats)

	for _, path := range []string{
		`/manifest.json`,
		`/service-worker.js`,
		`/placeholder2.html`,
		`/iconLarge_1.png`,
		`/iconLarge_2.png`,
		`/iconLarge_3.png`,
	} {
		router.Get(path, staticHandler.ServeHTTP)
	}

	return router
}

// GetCheckonline is the connectivity probe used by the client-side cache
// worker.
func (r *Router) GetCheckonline(res http.ResponseWriter, req *http.Request) {
	res.WriteHeader(http.StatusOK)
	_, err := res.Write([]byte("Online"))
	if err != nil {
		logger.Log.Debugln("Error writing the `/checkOnline` response: ", zap.Error(err))
	}
}

// GetLogin renders the login form, carrying the one-shot flash notice from
// a previous failed attempt if there is one.
func (r *Router) GetLogin(res http.ResponseWriter, req *http.Request) {
	notice := popFlashNotice(res, req)
	if err := r.views.Render(res, "login", web.LoginView{Error: notice}); err != nil {
		logger.Log.Debugln("Error rendering the login view: ", zap.Error(err))
		http.Error(res, "an error occurred", http.StatusInternalServerError)
	}
}

// PostLogin runs the login flow: ensure the user record, check the password
// against the global fixed hash, establish a session. A wrong password is a
// normal branch and redirects back to the form with a flash notice; every
// storage failure is a generic 500.
func (r *Router) PostLogin(res http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(res, "an error occurred", http.StatusInternalServerError)
		return
	}

	form := models.LoginForm{
		Name:     strings.TrimSpace(req.FormValue("name")),
		Surname:  strings.TrimSpace(req.FormValue("surname")),
		Password: req.FormValue("password"),
	}
	if err := r.validate.Struct(form); err != nil {
		http.Error(res, "an error occurred", http.StatusInternalServerError)
		return
	}

	usr, err := r.login.Login(req.Context(), form.Name, form.Surname, form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			setFlashNotice(res, "Incorrect password.")
			http.Redirect(res, req, "/login", http.StatusFound)
			return
		}
		logger.Log.Debugln("Error calling the `r.login.Login()`: ", zap.Error(err))
		http.Error(res, "an error occurred during the login process", http.StatusInternalServerError)
		return
	}

	if _, err := r.sessions.Create(req.Context(), res, usr.ID); err != nil {
		logger.Log.Debugln("Error calling the `r.sessions.Create()`: ", zap.Error(err))
		http.Error(res, "an error occurred saving the session", http.StatusInternalServerError)
		return
	}

	http.Redirect(res, req, "/", http.StatusFound)
}

// GetRoot renders the home view for authenticated users, incrementing their
// visit counter, and the login view for everyone else. A session whose user
// was deleted out-of-band acts as an implicit logout.
func (r *Router) GetRoot(res http.ResponseWriter, req *http.Request) {
	sess, ok := session.FromContext(req.Context())
	if !ok {
		if err := r.views.Render(res, "login", web.LoginView{}); err != nil {
			logger.Log.Debugln("Error rendering the login view: ", zap.Error(err))
			http.Error(res, "an error occurred", http.StatusInternalServerError)
		}
		return
	}

	usr, found, err := r.db.GetUserByID(req.Context(), sess.UserID, nil)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.db.GetUserByID()`: ", zap.Error(err))
		http.Error(res, "an error occurred", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Redirect(res, req, "/login", http.StatusFound)
		return
	}

	visits, err := r.db.IncrementUserVisits(req.Context(), sess.UserID)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.db.IncrementUserVisits()`: ", zap.Error(err))
		http.Error(res, "an error occurred", http.StatusInternalServerError)
		return
	}

	view := web.HomeView{
		Name:            usr.Name,
		VisitCount:      visits,
		ShouldShowModal: visits <= models.OnboardingVisitThreshold,
	}
	if err := r.views.Render(res, "home", view); err != nil {
		logger.Log.Debugln("Error rendering the home view: ", zap.Error(err))
		http.Error(res, "an error occurred", http.StatusInternalServerError)
	}
}

// GetAndroid renders the Android install page.
func (r *Router) GetAndroid(res http.ResponseWriter, req *http.Request) {
	if err := r.views.Render(res, "android", nil); err != nil {
		logger.Log.Debugln("Error rendering the android view: ", zap.Error(err))
		http.Error(res, "an error occurred", http.StatusInternalServerError)
	}
}

// GetIphone renders the iPhone install page.
func (r *Router) GetIphone(res http.ResponseWriter, req *http.Request) {
	if err := r.views.Render(res, "iphone", nil); err != nil {
		logger.Log.Debugln("Error rendering the iphone view: ", zap.Error(err))
		http.Error(res, "an error occurred", http.StatusInternalServerError)
	}
}

// PostAndroid overwrites the session user's visit count with the submitted
// value. This is the debug/reset escape hatch: it bypasses the increment
// semantics and may move the onboarding state in either direction. The only
// guard is an active session.
func (r *Router) PostAndroid(res http.ResponseWriter, req *http.Request) {
	sess, ok := session.FromContext(req.Context())
	if !ok {
		http.Redirect(res, req, "/login", http.StatusFound)
		return
	}

	if err := req.ParseForm(); err != nil {
		http.Error(res, "an error occurred", http.StatusInternalServerError)
		return
	}

	visits, err := strconv.Atoi(req.FormValue("buttonValue"))
	if err != nil {
		http.Error(res, "invalid buttonValue", http.StatusBadRequest)
		return
	}

	if err := r.db.SetUserVisits(req.Context(), sess.UserID, visits); err != nil {
		logger.Log.Debugln("Error calling the `r.db.SetUserVisits()`: ", zap.Error(err))
		http.Error(res, "an error occurred", http.StatusInternalServerError)
		return
	}

	http.Redirect(res, req, "/", http.StatusFound)
}

// PostRedirect resolves the submitted button index through the URL
// directory and answers with a redirect to the stored destination.
// Deliberately unauthenticated; see the package comment.
func (r *Router) PostRedirect(res http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(res, "Server error", http.StatusInternalServerError)
		return
	}

	// A non-numeric index can never match a directory entry.
	index, err := strconv.Atoi(req.FormValue("buttonIndex"))
	if err != nil {
		http.Error(res, "URL not found", http.StatusNotFound)
		return
	}

	destination, found, err := r.db.FindURLByIndex(req.Context(), index)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.db.FindURLByIndex()`: ", zap.Error(err))
		http.Error(res, "Server error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(res, "URL not found", http.StatusNotFound)
		return
	}

	http.Redirect(res, req, destination, http.StatusFound)
}

// GetApiinternalstats reports user and URL directory counts to callers
// inside the trusted subnet.
func (r *Router) GetApiinternalstats(res http.ResponseWriter, req *http.Request) {
	if r.ipCheck.IsTrustedSubnetEmpty() {
		res.WriteHeader(http.StatusForbidden)
		return
	}

	clientIP, err := r.ipCheck.GetClientIP(req)
	if err != nil || !r.ipCheck.Check(clientIP) {
		res.WriteHeader(http.StatusForbidden)
		return
	}

	users, err := r.db.GetNumberOfUsers(req.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `r.db.GetNumberOfUsers()`: ", zap.Error(err))
		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	urlEntries, err := r.db.GetNumberOfURLEntries(req.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `r.db.GetNumberOfURLEntries()`: ", zap.Error(err))
		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(res).Encode(models.StatsResponse{
		Users:      users,
		URLEntries: urlEntries,
	}); err != nil {
		logger.Log.Debugln("Error encoding the stats response: ", zap.Error(err))
	}
}

// setFlashNotice stores a one-shot notice in a short-lived cookie. The next
// rendered login view consumes and clears it.
func setFlashNotice(res http.ResponseWriter, notice string) {
	http.SetCookie(res, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(notice),
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
	})
}

// popFlashNotice reads the flash cookie and expires it in the same
// response, so the notice renders exactly once.
func popFlashNotice(res http.ResponseWriter, req *http.Request) string {
	cookie, err := req.Cookie(flashCookieName)
	if err != nil {
		return ""
	}

	http.SetCookie(res, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	notice, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}

	return notice
}

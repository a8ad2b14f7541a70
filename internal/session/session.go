package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

// SessionCookieName is the cookie holding the signed session
const SessionCookieName = "pdftext_session"

const tokenKey = "access_token"

// Errors
var (
	ErrNoSession    = errors.New("no session found")
	ErrNoTokenFound = errors.New("no token found in session")
)

// Options configures the session cookie
type Options struct {
	MaxAge int // seconds
	Secure bool
}

// SessionManager handles session operations
type SessionManager struct {
	logger *slog.Logger
	store  *sessions.CookieStore
	opts   Options
}

// NewStore creates the signed cookie store backing the sessions
func NewStore(secret string, opts Options) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = cookieOptions(opts, opts.MaxAge)
	return store
}

// NewSessionManager creates a new session manager
func NewSessionManager(logger *slog.Logger, store *sessions.CookieStore, opts Options) *SessionManager {
	return &SessionManager{
		logger: logger,
		store:  store,
		opts:   opts,
	}
}

func cookieOptions(opts Options, maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// StoreToken stores the identity token in the session
func (sm *SessionManager) StoreToken(c *gin.Context, token string) error {
	session, err := sm.store.Get(c.Request, SessionCookieName)
	if err != nil {
		// a cookie signed with a rotated secret is replaced rather than rejected
		sm.logger.Debug("discarding unreadable session", "error", err)
		session = sessions.NewSession(sm.store, SessionCookieName)
		session.IsNew = true
	}

	session.Options = cookieOptions(sm.opts, sm.opts.MaxAge)
	session.Values[tokenKey] = token
	if err := sm.store.Save(c.Request, c.Writer, session); err != nil {
		sm.logger.Error("failed to save session", "error", err)
		return err
	}
	return nil
}

// GetToken retrieves the identity token from the session
func (sm *SessionManager) GetToken(c *gin.Context) (string, error) {
	if _, err := c.Request.Cookie(SessionCookieName); err != nil {
		return "", ErrNoSession
	}

	session, err := sm.store.Get(c.Request, SessionCookieName)
	if err != nil {
		sm.logger.Debug("unreadable session cookie", "error", err)
		return "", ErrNoSession
	}

	token, ok := session.Values[tokenKey].(string)
	if !ok || token == "" {
		return "", ErrNoTokenFound
	}
	return token, nil
}

// SignOut expires the session cookie
func (sm *SessionManager) SignOut(c *gin.Context) error {
	session := sessions.NewSession(sm.store, SessionCookieName)
	session.Options = cookieOptions(sm.opts, -1)
	return sm.store.Save(c.Request, c.Writer, session)
}

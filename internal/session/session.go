// Package session ties an authenticated admin to the services that act on
// the appliance with that admin's credentials.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/connectbox/console/internal/repositories/lms/remote"
	"github.com/connectbox/console/internal/settings"
	"github.com/connectbox/console/pkg/common/keys"
	"github.com/connectbox/console/pkg/common/logger"
	"github.com/connectbox/console/pkg/repositories/lms"
	srepo "github.com/connectbox/console/pkg/repositories/session"
)

// CookieName is the cookie carrying the signed session id.
const CookieName = "connectbox_console"

var (
	// ErrNoSession means the request carries no usable session.
	ErrNoSession = errors.New("no admin session")
	// ErrNoLMS means the appliance does not run Moodle.
	ErrNoLMS = errors.New("the LMS is not available on this device")
)

// LMS bundles the repositories of one session. They share caches, so a user
// added through Users shows up in course rosters.
type LMS struct {
	Users            lms.UsersRepository
	Courses          lms.CoursesRepository
	Cohorts          lms.CohortsRepository
	CourseEnrollment lms.CourseEnrollmentRepository
	CohortEnrollment lms.CohortEnrollmentRepository
}

// NewLMS wires the five repositories against api with token.
func NewLMS(api remote.API, token string) *LMS {
	users := remote.NewUsersRepo(api, token)
	cohorts := remote.NewCohortsRepo(api, token)
	courses := remote.NewCoursesRepo(api, token)
	enrollment := remote.NewCourseEnrollmentRepo(api, token, users, cohorts)
	courses.OnDelete(enrollment.ForgetCourse)
	return &LMS{
		Users:            users,
		Courses:          courses,
		Cohorts:          cohorts,
		CourseEnrollment: enrollment,
		CohortEnrollment: remote.NewCohortEnrollmentRepo(api, token, users, cohorts),
	}
}

type Session struct {
	ID        string
	Token     string
	ExpiresAt time.Time
	Settings  *settings.Service
	lms       *LMS
}

// LMS returns the session's repositories, or ErrNoLMS.
func (s *Session) LMS() (*LMS, error) {
	if s.lms == nil {
		return nil, ErrNoLMS
	}
	return s.lms, nil
}

// Manager creates, resolves and destroys admin sessions.
type Manager struct {
	api    remote.API
	store  srepo.Repository
	signer *keys.Signer
	ttl    time.Duration
	secure bool
	now    func() time.Time

	mu   sync.Mutex
	live map[string]*Session
}

type Option func(*Manager)

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

func NewManager(api remote.API, store srepo.Repository, signer *keys.Signer, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		api:    api,
		store:  store,
		signer: signer,
		ttl:    ttl,
		now:    time.Now,
		live:   map[string]*Session{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login checks password against the appliance and opens a session. The
// returned string is the signed cookie value.
func (m *Manager) Login(ctx context.Context, password string) (*Session, string, error) {
	svc := settings.New(m.api)
	token, err := svc.Login(ctx, password)
	if err != nil {
		return nil, "", err
	}
	hasLMS, err := svc.LMSAvailable(ctx, token)
	if err != nil {
		logger.Warn("session: ismoodle check failed, LMS disabled: %v", err)
		hasLMS = false
	}
	sealed, err := m.signer.Seal([]byte(token))
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, "seal credential")
	}
	now := m.now()
	rec := &srepo.Record{
		ID:        uuid.NewString(),
		Token:     sealed,
		LMS:       hasLMS,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return nil, "", pkgerrors.Wrap(err, "store session")
	}
	signed, err := m.signer.Sign(rec.ID, m.ttl)
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, "sign session")
	}
	s := m.build(rec, token)
	logger.Info("session: admin logged in (lms=%t)", hasLMS)
	return s, signed, nil
}

// Resolve returns the session named by r's cookie. Sessions stored by an
// earlier process are rebuilt with empty caches.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	id, err := m.signer.Verify(c.Value)
	if err != nil {
		logger.Debug("session: rejected cookie: %v", err)
		return nil, ErrNoSession
	}

	m.mu.Lock()
	s, ok := m.live[id]
	m.mu.Unlock()
	if ok {
		if m.now().Before(s.ExpiresAt) {
			return s, nil
		}
		m.forget(id)
	}

	rec, err := m.store.Get(ctx, id)
	if errors.Is(err, srepo.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load session")
	}
	token, err := m.signer.Open(rec.Token)
	if err != nil {
		logger.Warn("session: stored credential for %s does not open: %v", id, err)
		return nil, ErrNoSession
	}
	return m.build(rec, string(token)), nil
}

// Destroy ends session id. Unknown ids are not an error.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	m.forget(id)
	if err := m.store.Delete(ctx, id); err != nil {
		return pkgerrors.Wrapf(err, "delete session %s", id)
	}
	return nil
}

// Purge drops expired sessions from memory and from the store.
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	now := m.now()
	m.mu.Lock()
	for id, s := range m.live {
		if !now.Before(s.ExpiresAt) {
			delete(m.live, id)
		}
	}
	m.mu.Unlock()
	return m.store.PurgeExpired(ctx, now)
}

type healthChecker interface {
	Health() error
}

// Health reports whether the session store is reachable. Stores without a
// health check are assumed healthy.
func (m *Manager) Health() error {
	if hc, ok := m.store.(healthChecker); ok {
		return hc.Health()
	}
	return nil
}

// SetCookie writes the session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/admin/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie in the browser.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/admin/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// build returns the live session for rec, creating it with the clear
// appliance token.
func (m *Manager) build(rec *srepo.Record, token string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.live[rec.ID]; ok {
		return s
	}
	s := &Session{
		ID:        rec.ID,
		Token:     token,
		ExpiresAt: rec.ExpiresAt,
		Settings:  settings.New(m.api),
	}
	if rec.LMS {
		s.lms = NewLMS(m.api, token)
	}
	m.live[rec.ID] = s
	return s
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()
}

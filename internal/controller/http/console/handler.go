// Package console serves the JSON API behind the admin console pages.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	"github.com/connectbox/console/internal/session"
	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/common/apperror"
	"github.com/connectbox/console/pkg/common/logger"
	"github.com/connectbox/console/pkg/repositories/lms"
)

// LoginPage is where the browser goes once the session is gone.
const LoginPage = "/admin/login.html"

type Handler struct {
	sessions *session.Manager
}

func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

type ctxKey struct{}

// Router returns the console routes, to be mounted at /admin/console.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.health)
	r.Get("/csrf", h.csrfToken)
	r.Post("/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Post("/logout", h.logout)

		r.Get("/settings", h.getSettings)
		r.Put("/settings/{key}", h.putSetting)
		r.Put("/brand/{key}", h.putBrand)
		r.Put("/password", h.putPassword)
		r.Put("/groups/{group}", h.putGroup)
		r.Post("/scripts/{name}", h.runScript)
		r.Get("/reports/topten", h.topTen)
		r.Get("/reports/stats", h.stats)
		r.Get("/logs/{name}", h.getLog)

		r.Route("/lms", func(r chi.Router) {
			r.Get("/users", h.listUsers)
			r.Post("/users", h.addUser)
			r.Get("/users/{id}", h.getUser)
			r.Put("/users/{id}", h.updateUser)
			r.Delete("/users/{id}", h.deleteUser)

			r.Get("/courses", h.listCourses)
			r.Put("/courses/{id}", h.updateCourse)
			r.Delete("/courses/{id}", h.deleteCourse)
			r.Get("/courses/{id}/roster", h.courseRoster)
			r.Put("/courses/{id}/{type}/{memberId}", h.enrollInCourse)
			r.Delete("/courses/{id}/{type}/{memberId}", h.unenrollFromCourse)

			r.Get("/classes", h.listClasses)
			r.Post("/classes", h.addClass)
			r.Put("/classes/{id}", h.updateClass)
			r.Delete("/classes/{id}", h.deleteClass)
			r.Get("/classes/{id}/roster", h.classRoster)
			r.Put("/classes/{id}/users/{userId}", h.enrollInClass)
			r.Delete("/classes/{id}/users/{userId}", h.unenrollFromClass)
		})
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Health(); err != nil {
		logger.Error("health: session store: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// csrfToken hands out the token unsafe requests echo in X-CSRF-Token.
func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": csrf.Token(r)})
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	logger.Debug("login: start")
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, 0, "password is a required field")
		return
	}
	s, cookie, err := h.sessions.Login(r.Context(), req.Password)
	if err != nil {
		// A 401 here is a wrong password, not an expired session.
		var ae *apperror.Error
		if errors.As(err, &ae) && ae.Code == http.StatusUnauthorized {
			writeError(w, http.StatusUnauthorized, ae.Code, ae.Errors...)
			return
		}
		h.fail(w, r, err)
		return
	}
	h.sessions.SetCookie(w, cookie)
	_, lmsErr := s.LMS()
	logger.Debug("login: session started")
	writeJSON(w, http.StatusOK, map[string]any{"lms": lmsErr == nil})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	s := current(r)
	if err := h.sessions.Destroy(r.Context(), s.ID); err != nil {
		logger.Error("logout: %v", err)
	}
	h.sessions.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"redirect": LoginPage})
}

// requireSession resolves the admin session or answers 401.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.sessions.Resolve(r.Context(), r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
	})
}

func current(r *http.Request) *session.Session {
	s, _ := r.Context().Value(ctxKey{}).(*session.Session)
	return s
}

// lmsRepos returns the LMS repositories of the session, answering 404 when
// the appliance has no LMS.
func (h *Handler) lmsRepos(w http.ResponseWriter, r *http.Request) (*session.LMS, bool) {
	l, err := current(r).LMS()
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return l, true
}

// fail writes err as the console error body. Every appliance 401 ends here:
// the session is dropped and the browser is sent back to the login page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apiclient.IsUnauthorized(err) || errors.Is(err, session.ErrNoSession) {
		if s := current(r); s != nil {
			if derr := h.sessions.Destroy(r.Context(), s.ID); derr != nil {
				logger.Error("session: destroy after 401: %v", derr)
			}
		}
		h.sessions.ClearCookie(w)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"redirect": LoginPage})
		return
	}
	if errors.Is(err, session.ErrNoLMS) {
		writeError(w, http.StatusNotFound, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Debug("request canceled: %s %s", r.Method, r.URL.Path)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, http.StatusGatewayTimeout, "The device did not answer in time.")
		return
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		switch ae.Code {
		case 0:
			writeError(w, http.StatusBadRequest, 0, ae.Errors...)
		case http.StatusNotFound:
			writeError(w, http.StatusNotFound, ae.Code, ae.Errors...)
		default:
			writeError(w, http.StatusBadGateway, ae.Code, ae.Errors...)
		}
		return
	}
	logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, http.StatusInternalServerError, "Something went wrong.")
}

type errorBody struct {
	Code   int      `json:"code"`
	Errors []string `json:"errors"`
}

func writeError(w http.ResponseWriter, status, code int, msgs ...string) {
	if msgs == nil {
		msgs = []string{}
	}
	writeJSON(w, status, errorBody{Code: code, Errors: msgs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Debug("%s %s: invalid JSON: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusBadRequest, 0, "invalid JSON body")
		return false
	}
	return true
}

// decodeOptional is decode for bodies that may be empty, chunked or not.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	logger.Debug("%s %s: invalid JSON: %v", r.Method, r.URL.Path, err)
	writeError(w, http.StatusBadRequest, 0, "invalid JSON body")
	return false
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (lms.ID, bool) {
	raw := chi.URLParam(r, name)
	id, err := lms.ParseID(raw)
	if err != nil || id == 0 {
		logger.Debug("%s %s: invalid %s=%q", r.Method, r.URL.Path, name, raw)
		writeError(w, http.StatusBadRequest, 0, "invalid "+name)
		return 0, false
	}
	return id, true
}

func intQuery(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/connectbox/console/pkg/common/apiclient"
)

// recorder counts the calls the fake appliance receives, as "METHOD path".
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (rc *recorder) add(call string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.calls = append(rc.calls, call)
}

func (rc *recorder) count(call string) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	n := 0
	for _, c := range rc.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (rc *recorder) total() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.calls)
}

// newAppliance starts a fake appliance API mounted under /admin/api.
func newAppliance(t *testing.T, routes func(r chi.Router)) (*apiclient.Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	r := chi.NewRouter()
	r.Route("/admin/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				rec.add(req.Method + " " + strings.TrimPrefix(req.URL.Path, "/admin/api/"))
				next.ServeHTTP(w, req)
			})
		})
		routes(r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL + "/admin/api/"), rec
}

func reply(result any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "result": result})
	}
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"code":1,"result":"failure"}`))
	}
}

var sampleUsers = map[string]any{
	"users": []map[string]any{
		{"id": 3, "username": "zoe", "firstname": "Zoe", "lastname": "Adams", "fullname": "Zoe Adams", "email": "zoe@example.org"},
		{"id": "2", "username": "amy", "firstname": "Amy", "lastname": "Baker", "fullname": "Amy Baker", "email": "amy@example.org"},
		{"id": 7, "username": "max", "firstname": "Max", "lastname": "Cole", "fullname": "Max Cole", "email": "max@example.org"},
	},
}

var sampleCohorts = []map[string]any{
	{"id": 11, "name": "Seniors"},
	{"id": "10", "name": "Juniors"},
}

var sampleCourses = []map[string]any{
	{"id": 21, "fullname": "Zoology", "shortname": "zoo", "summary": "", "displayname": "Zoology"},
	{"id": 20, "fullname": "Algebra", "shortname": "alg", "summary": "numbers", "displayname": "Algebra"},
}

package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnalyse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr int
	}{
		{name: "envelope result", status: 200, body: `{"code":0,"result":["on"]}`, want: `["on"]`},
		{name: "created", status: 201, body: `{"code":0,"result":"ok"}`, want: `"ok"`},
		{name: "no result field returns body", status: 200, body: `{"users":[]}`, want: `{"users":[]}`},
		{name: "bare array", status: 200, body: `[{"id":1}]`, want: `[{"id":1}]`},
		{name: "non zero code", status: 200, body: `{"code":1,"result":"nope"}`, wantErr: 200},
		{name: "bad json", status: 200, body: `<html>`, wantErr: 200},
		{name: "server error", status: 500, body: `boom`, wantErr: 500},
		{name: "unauthorized", status: 401, body: ``, wantErr: 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := analyse(tt.status, []byte(tt.body))
			if tt.wantErr != 0 {
				he, ok := err.(*HTTPError)
				if !ok {
					t.Fatalf("err = %v, want *HTTPError", err)
				}
				if he.Status != tt.wantErr || he.Body != tt.body {
					t.Fatalf("err = %+v", he)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDoSendsHeadersAndPayload(t *testing.T) {
	var gotAuth, gotCT, gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		gotMethod = r.Method
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"code":0,"result":"hostname updated"}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/admin/api")
	res, err := c.Put(context.Background(), "hostname", "Basic abc", map[string]string{"value": "box"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	var s string
	_ = json.Unmarshal(res, &s)
	if s != "hostname updated" {
		t.Errorf("result = %q", s)
	}
	if gotAuth != "Basic abc" || gotMethod != http.MethodPut || gotPath != "/admin/api/hostname" {
		t.Errorf("auth=%q method=%q path=%q", gotAuth, gotMethod, gotPath)
	}
	if !strings.HasPrefix(gotCT, "application/json") {
		t.Errorf("content-type = %q", gotCT)
	}
	if gotBody != `{"value":"box"}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestDoOmitsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Get(context.Background(), "ui-config", "")
	if !IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if StatusOf(err) != 401 {
		t.Fatalf("StatusOf = %d", StatusOf(err))
	}
}

func TestBasicToken(t *testing.T) {
	if got := BasicToken("admin", "connectbox"); got != "Basic YWRtaW46Y29ubmVjdGJveA==" {
		t.Fatalf("BasicToken = %q", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		body   string
		marker string
		want   Outcome
	}{
		{`"User enrolled"`, "enrolled", OutcomeOK},
		{`"User already enrolled"`, "enrolled", OutcomeOK},
		{`"Class deleted"`, "deleted", OutcomeOK},
		{`"User unenrolled"`, "unenrolled", OutcomeOK},
		{`"User unenrolled"`, "enrolled", OutcomeOK},
		{`"User not enrolled"`, "enrolled", OutcomeOK},
		{`"User not enrolled"`, "unenrolled", OutcomeNotFound},
		{`"Role already assigned"`, "enrolled", OutcomeConflict},
		{`"User does not exist"`, "deleted", OutcomeNotFound},
		{`{"debuginfo":"Invalid parameter"}`, "updated", OutcomeServerError},
		{`[]`, "enrolled", OutcomeServerError},
	}
	for _, tt := range tests {
		if got := Confirm(json.RawMessage(tt.body), tt.marker); got.Outcome != tt.want {
			t.Errorf("Confirm(%s, %q) = %v, want %v", tt.body, tt.marker, got.Outcome, tt.want)
		}
	}
	if c := Confirm(json.RawMessage(`{"debuginfo":"Invalid parameter"}`), "updated"); c.Message != "Invalid parameter" {
		t.Errorf("debuginfo message = %q", c.Message)
	}
}

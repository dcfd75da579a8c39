package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

type discoveryDoc struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/.well-known/openid-configuration" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(discoveryDoc{Issuer: "https://id.example.com", JWKSURI: "https://id.example.com/jwks"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := Get[discoveryDoc](c, context.Background(), "/.well-known/openid-configuration")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data.Issuer != "https://id.example.com" {
		t.Errorf("issuer = %q", resp.Data.Issuer)
	}
}

func TestPostForm_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "expires_in": 3600})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"rt"}}
	resp, err := PostForm[map[string]any](c, context.Background(), "/oauth/token", form)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data["access_token"] != "at" {
		t.Errorf("access_token = %v", resp.Data["access_token"])
	}
}

func TestPost_WithAuthOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-System-API-Key"); got != "sys-key" {
			t.Errorf("X-System-API-Key = %q", got)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "billing" {
			t.Errorf("name = %q", body["name"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "sys-1"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := Post[map[string]string](c, context.Background(), "/api/systems/register",
		map[string]string{"name": "billing"},
		WithRequestAuth(APIKeyAuthHeader("sys-key", "X-System-API-Key")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data["id"] != "sys-1" {
		t.Errorf("id = %q", resp.Data["id"])
	}
}

func TestGet_WithOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") != "req-1" {
			t.Errorf("missing X-Request-ID")
		}
		if r.URL.Query().Get("scope") != "openid" {
			t.Errorf("scope = %q", r.URL.Query().Get("scope"))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Get[map[string]string](c, context.Background(), "/",
		WithHeader("X-Request-ID", "req-1"),
		WithQueryParam("scope", "openid"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := Get[map[string]string](c, context.Background(), "/api/systems/missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !Is(err, KindNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
	if resp == nil || resp.Data["error"] != "not found" {
		t.Errorf("expected decoded error body")
	}
}

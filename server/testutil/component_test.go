package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/nupidentity/auth/oidc"
	oidctest "github.com/kbukum/nupidentity/auth/oidc/testutil"
	"github.com/kbukum/nupidentity/component"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/server/authroutes"
	"github.com/kbukum/nupidentity/server/middleware"
)

func get(t *testing.T, hc *http.Client, url string) (*http.Response, []byte) {
	t.Helper()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	resp, err := hc.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestComponent_Lifecycle(t *testing.T) {
	comp := NewComponent(nil)
	ctx := context.Background()

	if comp.BaseURL() != "" {
		t.Error("BaseURL() should be empty before Start")
	}
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("Health before Start = %q, want %q", h.Status, component.StatusUnhealthy)
	}

	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := comp.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
	if comp.BaseURL() == "" {
		t.Error("BaseURL() should not be empty after Start")
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("Health = %q, want %q", h.Status, component.StatusHealthy)
	}

	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
}

func TestComponent_ServeRoutes(t *testing.T) {
	comp := NewComponent(nil)
	ctx := context.Background()

	comp.GinEngine().GET("/hello", func(c *gin.Context) {
		c.String(http.StatusOK, "world")
	})

	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer comp.Stop(ctx)

	resp, body := get(t, http.DefaultClient, comp.BaseURL()+"/hello")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if string(body) != "world" {
		t.Errorf("body = %q, want %q", string(body), "world")
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("expected the request ID middleware to run")
	}
}

func TestComponent_DefaultEndpoints(t *testing.T) {
	checker := func(context.Context) []component.Health {
		return []component.Health{
			{Name: "oidc-client-cache", Status: component.StatusDegraded, Message: "0 client(s) initialized"},
		}
	}
	comp := NewComponent(checker)
	ctx := context.Background()
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer comp.Stop(ctx)

	resp, body := get(t, http.DefaultClient, comp.BaseURL()+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health status = %d", resp.StatusCode)
	}
	var health struct {
		Status     string `json:"status"`
		Components []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"components"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode /health: %v", err)
	}
	if health.Status != "degraded" || len(health.Components) != 1 || health.Components[0].Status != "degraded" {
		t.Errorf("unexpected health report: %s", body)
	}

	for _, path := range []string{"/alive", "/ready", "/metrics"} {
		if resp, _ := get(t, http.DefaultClient, comp.BaseURL()+path); resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestComponent_Reset(t *testing.T) {
	comp := NewComponent(nil)
	ctx := context.Background()

	comp.GinEngine().GET("/before", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer comp.Stop(ctx)

	if resp, _ := get(t, http.DefaultClient, comp.BaseURL()+"/before"); resp.StatusCode != http.StatusOK {
		t.Errorf("before Reset: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if err := comp.Reset(ctx); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}

	if resp, _ := get(t, http.DefaultClient, comp.BaseURL()+"/before"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("after Reset: status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// TestComponent_BrowserLogin drives the cookie login flow over real HTTP
// with a cookie jar following every redirect.
func TestComponent_BrowserLogin(t *testing.T) {
	p := oidctest.NewProvider(t)
	comp := NewComponent(nil)
	ctx := context.Background()
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer comp.Stop(ctx)

	cache := middleware.NewClientCache(logger.Nop(), oidc.WithLogger(logger.Nop()))
	a := middleware.NewCachedAuthenticator(cache, oidc.Config{
		Issuer:      p.Issuer(),
		ClientID:    p.ClientID,
		RedirectURI: comp.BaseURL() + "/auth/callback",
	}, middleware.WithAuthLogger(logger.Nop()))

	engine := comp.GinEngine()
	authroutes.Mount(engine.Group("/auth"), a, authroutes.Options{
		SuccessRedirect: "/home",
		Logger:          logger.Nop(),
	})
	engine.GET("/home", append(a.EnsurePermission(middleware.AuthOptions{}, "impact:read"), func(c *gin.Context) {
		c.String(http.StatusOK, "welcome "+c.GetString(middleware.ContextKeyUserID))
	})...)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	browser := &http.Client{Jar: jar}

	resp, body := get(t, browser, comp.BaseURL()+"/auth/login")
	if resp.StatusCode != http.StatusOK || string(body) != "welcome user-1" {
		t.Fatalf("login flow ended with %d %q", resp.StatusCode, body)
	}

	resp, body = get(t, browser, comp.BaseURL()+"/auth/me")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/auth/me status = %d: %s", resp.StatusCode, body)
	}
	var info oidc.UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("decode userinfo: %v", err)
	}
	if info.Subject != "user-1" {
		t.Errorf("unexpected subject %q", info.Subject)
	}
	if cache.Len() != 1 {
		t.Errorf("expected one cached identity client, got %d", cache.Len())
	}
}

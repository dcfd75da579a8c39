package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

type identitySection struct {
	Issuer      string        `mapstructure:"issuer"`
	ClientID    string        `mapstructure:"client_id"`
	Scopes      []string      `mapstructure:"scopes"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Identity      identitySection `mapstructure:"identity"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != EnvDevelopment {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected logging defaults applied, got level %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: EnvProduction}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if !cfg.IsProduction() {
			t.Error("expected IsProduction")
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: EnvStaging}, ""},
		{"missing name", ServiceConfig{Environment: EnvProduction}, "name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "qa"}, "environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: impact-api
environment: staging
identity:
  issuer: https://id.example.com
  client_id: impact
  scopes: [openid, email]
  http_timeout: 5s
`)

	var cfg testConfig
	if err := LoadConfig("impact-api", &cfg, WithConfigFile(path), WithEnvPrefix("NUPTEST")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "impact-api" || cfg.Environment != EnvStaging {
		t.Errorf("unexpected service config: %+v", cfg.ServiceConfig)
	}
	if cfg.Identity.Issuer != "https://id.example.com" || cfg.Identity.ClientID != "impact" {
		t.Errorf("unexpected identity config: %+v", cfg.Identity)
	}
	if !slices.Equal(cfg.Identity.Scopes, []string{"openid", "email"}) {
		t.Errorf("unexpected scopes: %v", cfg.Identity.Scopes)
	}
	if cfg.Identity.HTTPTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Identity.HTTPTimeout)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: impact-api
identity:
  issuer: https://file.example.com
`)
	t.Setenv("NUPTEST_IDENTITY_ISSUER", "https://env.example.com")
	t.Setenv("NUPTEST_IDENTITY_CLIENT_ID", "from-env")

	var cfg testConfig
	if err := LoadConfig("impact-api", &cfg, WithConfigFile(path), WithEnvPrefix("NUPTEST")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Identity.Issuer != "https://env.example.com" {
		t.Errorf("expected env to override file, got %q", cfg.Identity.Issuer)
	}
	if cfg.Identity.ClientID != "from-env" {
		t.Errorf("expected client_id from env, got %q", cfg.Identity.ClientID)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"), WithEnvPrefix("NUPTEST_NONE"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/my-svc/config.yml": true,
		".env":                    true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("my-svc", LoaderConfig{})
	if files.ConfigFile != "./cmd/my-svc/config.yml" {
		t.Errorf("expected config file at ./cmd/my-svc/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != ".env" {
		t.Errorf("expected .env, got %q", files.EnvFile)
	}
}

func TestLoadConfigWithFileSystem(t *testing.T) {
	fs := &mockFS{files: map[string]bool{".env.my-svc": true}}
	var cfg testConfig
	if err := LoadConfig("my-svc", &cfg, WithFileSystem(fs), WithEnvPrefix("NUPTEST_FS")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(fs.loaded) != 1 || fs.loaded[0] != ".env.my-svc" {
		t.Errorf("expected the injected filesystem to load .env.my-svc, got %v", fs.loaded)
	}
}

func TestResolverExplicitPaths(t *testing.T) {
	resolver := &Resolver{FileSystem: &mockFS{}}
	files := resolver.ResolveFiles("svc", LoaderConfig{ConfigFile: "a.yml", EnvFile: "b.env"})
	if files.ConfigFile != "a.yml" || files.EnvFile != "b.env" {
		t.Errorf("expected explicit paths to win, got %+v", files)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("IDENTITY_CLIENT_ID")
	for _, want := range []string{"identity_client_id", "identity.client.id", "identity.client_id", "identity_client.id"} {
		if !slices.Contains(got, want) {
			t.Errorf("expected variant %q in %v", want, got)
		}
	}
	if single := envKeyVariants("PORT"); len(single) != 1 || single[0] != "port" {
		t.Errorf("unexpected single-part variants: %v", single)
	}
}

func TestWithEnvPrefixOption(t *testing.T) {
	var lc LoaderConfig
	WithEnvPrefix("app_")(&lc)
	if lc.EnvPrefix != "APP" {
		t.Errorf("expected normalized prefix APP, got %q", lc.EnvPrefix)
	}
}

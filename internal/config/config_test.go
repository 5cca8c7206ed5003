package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wuzhiguocarter/Aletheia/internal/config"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/persona"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader(t.TempDir(), config.Development).WithDotenv().Load()
	require.NoError(t, err)

	assert.Equal(t, config.Development, cfg.Environment)
	assert.Equal(t, config.BackendMemory, cfg.Gateway.Backend)
	assert.Equal(t, persona.BackendStatic, cfg.Persona.Backend)
	assert.Equal(t, "general", cfg.Workspace.DefaultAudience)
	assert.Equal(t, 30*time.Minute, cfg.Workspace.SessionIdle)
	assert.True(t, cfg.Security.AllowUserHeader)
	assert.Equal(t, []string{"defaults", "environment"}, cfg.LoadedFrom)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: 9000
  request_timeout: 5s
workspace:
  default_audience: students
persona:
  backend: remote
  model: base-model
`)
	writeFile(t, dir, "development.yaml", `
persona:
  model: dev-model
`)
	writeFile(t, dir, "local.yml", `
workspace:
  update_attempts: 7
`)

	t.Run("files in priority order", func(t *testing.T) {
		cfg, err := config.NewLoader(dir, config.Development).WithDotenv().Load()
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
		assert.Equal(t, "students", cfg.Workspace.DefaultAudience)
		assert.Equal(t, "dev-model", cfg.Persona.Model)
		assert.Equal(t, 7, cfg.Workspace.UpdateAttempts)
		assert.Equal(t, []string{
			"defaults",
			filepath.Join(dir, "base.yaml"),
			filepath.Join(dir, "development.yaml"),
			filepath.Join(dir, "local.yml"),
			"environment",
		}, cfg.LoadedFrom)
	})

	t.Run("local file ignored outside development", func(t *testing.T) {
		cfg, err := config.NewLoader(dir, config.Staging).WithDotenv().Load()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Workspace.UpdateAttempts)
		assert.Equal(t, "base-model", cfg.Persona.Model)
	})

	t.Run("environment wins over files", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9100")
		t.Setenv("PERSONA_MODEL", "env-model")
		t.Setenv("DEFAULT_AUDIENCE", "reviewers")

		cfg, err := config.NewLoader(dir, config.Development).WithDotenv().Load()
		require.NoError(t, err)
		assert.Equal(t, 9100, cfg.Server.Port)
		assert.Equal(t, "env-model", cfg.Persona.Model)
		assert.Equal(t, "reviewers", cfg.Workspace.DefaultAudience)
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := t.TempDir()
		writeFile(t, bad, "base.yaml", "server: [")
		_, err := config.NewLoader(bad, config.Development).WithDotenv().Load()
		assert.ErrorContains(t, err, "failed to parse")
	})
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	writeFile(t, dir, "test.env", "PERSONA_BACKEND=local\nPERSONA_MODEL=llama3\n")
	// godotenv sets process variables; register them for cleanup.
	t.Setenv("PERSONA_BACKEND", "")
	t.Setenv("PERSONA_MODEL", "")
	os.Unsetenv("PERSONA_BACKEND")
	os.Unsetenv("PERSONA_MODEL")

	cfg, err := config.NewLoader(dir, config.Development).WithDotenv(envFile).Load()
	require.NoError(t, err)
	assert.Equal(t, persona.BackendLocal, cfg.Persona.Backend)
	assert.Equal(t, "llama3", cfg.Persona.Model)
	assert.Contains(t, cfg.LoadedFrom, envFile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{name: "defaults are valid", mutate: func(*config.Config) {}},
		{
			name:   "unknown environment",
			mutate: func(c *config.Config) { c.Environment = "qa" },
			errMsg: `environment "qa"`,
		},
		{
			name:   "port out of range",
			mutate: func(c *config.Config) { c.Server.Port = 70000 },
			errMsg: "server.port 70000",
		},
		{
			name:   "unknown backend",
			mutate: func(c *config.Config) { c.Gateway.Backend = "mongo" },
			errMsg: `gateway.backend "mongo"`,
		},
		{
			name:   "supabase without credentials",
			mutate: func(c *config.Config) { c.Gateway.Backend = config.BackendSupabase },
			errMsg: "SUPABASE_URL",
		},
		{
			name: "sql with bad driver",
			mutate: func(c *config.Config) {
				c.Gateway.Backend = config.BackendSQL
				c.Gateway.SQL.Driver = "mysql"
			},
			errMsg: `driver "mysql"`,
		},
		{
			name:   "remote persona without model",
			mutate: func(c *config.Config) { c.Persona.Backend = persona.BackendRemote },
			errMsg: "persona.model",
		},
		{
			name: "auth with short secret",
			mutate: func(c *config.Config) {
				c.Security.EnableAuth = true
				c.Security.JWTSecret = "short"
			},
			errMsg: "jwt_secret",
		},
		{
			name: "memory backend in production",
			mutate: func(c *config.Config) {
				c.Environment = config.Production
				c.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
				c.Security.AllowUserHeader = false
			},
			errMsg: "memory is not allowed in production",
		},
		{
			name:   "sample rate above one",
			mutate: func(c *config.Config) { c.Tracing.SampleRate = 1.5 },
			errMsg: "sample_rate",
		},
		{
			name:   "negative session idle",
			mutate: func(c *config.Config) { c.Workspace.SessionIdle = -time.Second },
			errMsg: "workspace.session_idle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default(config.Development)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := config.Default(config.Development)
		cfg.Server.Port = 0
		cfg.Workspace.UpdateAttempts = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")
		assert.Contains(t, err.Error(), "update_attempts")
	})
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "workspace:\n  default_audience: students\n")
	loader := config.NewLoader(dir, config.Development).WithDotenv()
	initial, err := loader.Load()
	require.NoError(t, err)

	w := config.NewWatcher(loader, initial, zaptest.NewLogger(t))
	var seen []string
	w.OnChange(func(old, next *config.Config) {
		seen = append(seen, old.Workspace.DefaultAudience+"->"+next.Workspace.DefaultAudience)
	})

	t.Run("unchanged files notify nobody", func(t *testing.T) {
		assert.False(t, w.Reload())
		assert.Empty(t, seen)
	})

	t.Run("changed file notifies", func(t *testing.T) {
		writeFile(t, dir, "base.yaml", "workspace:\n  default_audience: reviewers\n")
		assert.True(t, w.Reload())
		assert.Equal(t, []string{"students->reviewers"}, seen)
		assert.Equal(t, "reviewers", w.Current().Workspace.DefaultAudience)
	})

	t.Run("invalid file keeps the current config", func(t *testing.T) {
		writeFile(t, dir, "base.yaml", "persona:\n  backend: telepathy\n")
		assert.False(t, w.Reload())
		assert.Equal(t, "reviewers", w.Current().Workspace.DefaultAudience)
		assert.Len(t, seen, 1)
	})

	t.Run("panicking subscriber does not stop the others", func(t *testing.T) {
		calls := 0
		w2 := config.NewWatcher(loader, initial, zaptest.NewLogger(t))
		w2.OnChange(func(_, _ *config.Config) { panic("boom") })
		w2.OnChange(func(_, _ *config.Config) { calls++ })
		writeFile(t, dir, "base.yaml", "workspace:\n  default_audience: editors\n")
		assert.True(t, w2.Reload())
		assert.Equal(t, 1, calls)
	})
}

func TestWatcherRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "workspace:\n  default_audience: students\n")
	loader := config.NewLoader(dir, config.Development).WithDotenv()
	initial, err := loader.Load()
	require.NoError(t, err)

	w := config.NewWatcher(loader, initial, zaptest.NewLogger(t)).WithDebounce(20 * time.Millisecond)
	changed := make(chan string, 1)
	w.OnChange(func(_, next *config.Config) { changed <- next.Workspace.DefaultAudience })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "base.yaml", "workspace:\n  default_audience: reviewers\n")

	select {
	case got := <-changed:
		assert.Equal(t, "reviewers", got)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not pick up the change")
	}

	cancel()
	require.NoError(t, <-done)
}

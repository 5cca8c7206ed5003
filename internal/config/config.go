// Package config loads the service configuration from defaults, layered YAML
// files and environment variables, and can watch the files for changes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/persona"
)

// Environment names a deployment stage.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// IsValid reports whether e is a known environment.
func (e Environment) IsValid() bool {
	switch e {
	case Development, Staging, Production:
		return true
	}
	return false
}

// Gateway backends.
const (
	BackendMemory   = "memory"
	BackendSupabase = "supabase"
	BackendDynamo   = "dynamo"
	BackendSQL      = "sql"
)

// Config is the full service configuration.
type Config struct {
	Environment Environment    `yaml:"environment"`
	Server      Server         `yaml:"server"`
	Gateway     Gateway        `yaml:"gateway"`
	Cache       Cache          `yaml:"cache"`
	Persona     persona.Config `yaml:"persona"`
	Workspace   Workspace      `yaml:"workspace"`
	Security    Security       `yaml:"security"`
	CORS        CORS           `yaml:"cors"`
	Tracing     Tracing        `yaml:"tracing"`
	Events      Events         `yaml:"events"`
	Metrics     Metrics        `yaml:"metrics"`
	Logging     Logging        `yaml:"logging"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

// Server configures the HTTP listener.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// Addr is the listen address.
func (s Server) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// Gateway selects and configures the persistence backend.
type Gateway struct {
	Backend  string   `yaml:"backend"`
	Supabase Supabase `yaml:"supabase"`
	Dynamo   Dynamo   `yaml:"dynamo"`
	SQL      SQL      `yaml:"sql"`
	// Resilient wraps the backend in the circuit breaker and read retries.
	Resilient bool `yaml:"resilient"`
}

type Supabase struct {
	URL string `yaml:"url"`
	Key string `yaml:"-"`
}

type Dynamo struct {
	TableName  string `yaml:"table_name"`
	OwnerIndex string `yaml:"owner_index"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
}

type SQL struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"-"`
}

// Cache configures the Redis listing cache.
type Cache struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Workspace tunes the workspace service.
type Workspace struct {
	DefaultAudience string        `yaml:"default_audience"`
	UpdateAttempts  int           `yaml:"update_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	SessionIdle     time.Duration `yaml:"session_idle"`
}

// Security configures request authentication.
type Security struct {
	EnableAuth bool   `yaml:"enable_auth"`
	JWTSecret  string `yaml:"-"`
	JWTIssuer  string `yaml:"jwt_issuer"`
	// AllowUserHeader accepts X-User-ID when no bearer token is sent.
	AllowUserHeader bool `yaml:"allow_user_header"`
	// TrustAuthorizer takes the user from the API Gateway Lambda authorizer.
	// It is switched on automatically inside Lambda.
	TrustAuthorizer bool `yaml:"trust_authorizer"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Events configures the domain event publisher. An empty bus disables it.
type Events struct {
	BusName string `yaml:"bus_name"`
	Region  string `yaml:"region"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Default returns a configuration that runs locally with no external services.
func Default(env Environment) *Config {
	return &Config{
		Environment: env,
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Gateway: Gateway{
			Backend: BackendMemory,
			Dynamo: Dynamo{
				TableName:  "aletheia-" + strings.ToLower(string(env)),
				OwnerIndex: "GSI1",
				Region:     "us-east-1",
			},
			SQL:       SQL{Driver: "sqlite", DSN: "file:aletheia.db"},
			Resilient: true,
		},
		Cache: Cache{
			Addr: "localhost:6379",
			TTL:  5 * time.Minute,
		},
		Persona: persona.Config{
			Backend:       persona.BackendStatic,
			Temperature:   0.7,
			MaxRetries:    2,
			MaxConcurrent: 4,
		},
		Workspace: Workspace{
			DefaultAudience: project.DefaultAudience,
			UpdateAttempts:  3,
			RetryBackoff:    100 * time.Millisecond,
			SessionIdle:     30 * time.Minute,
		},
		Security: Security{
			EnableAuth:      env == Production,
			JWTIssuer:       "aletheia",
			AllowUserHeader: env != Production,
		},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
			MaxAge:         300,
		},
		Tracing: Tracing{
			ServiceName: "aletheia",
			Endpoint:    "localhost:4317",
		},
		Metrics: Metrics{Enabled: true, Namespace: "aletheia"},
		Logging: Logging{Level: "info"},
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !c.Environment.IsValid() {
		add("environment %q is not one of development, staging, production", c.Environment)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		add("server.request_timeout must be positive")
	}

	switch c.Gateway.Backend {
	case BackendMemory:
		if c.Environment == Production {
			add("gateway.backend memory is not allowed in production")
		}
	case BackendSupabase:
		if c.Gateway.Supabase.URL == "" || c.Gateway.Supabase.Key == "" {
			add("gateway.supabase requires SUPABASE_URL and SUPABASE_KEY")
		}
	case BackendDynamo:
		if c.Gateway.Dynamo.TableName == "" {
			add("gateway.dynamo.table_name is required")
		}
	case BackendSQL:
		if c.Gateway.SQL.Driver != "postgres" && c.Gateway.SQL.Driver != "sqlite" {
			add("gateway.sql.driver %q must be postgres or sqlite", c.Gateway.SQL.Driver)
		}
		if c.Gateway.SQL.DSN == "" {
			add("gateway.sql requires DATABASE_URL")
		}
	default:
		add("gateway.backend %q is unknown", c.Gateway.Backend)
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		add("cache.addr is required when the cache is enabled")
	}

	switch c.Persona.Backend {
	case "", persona.BackendStatic:
	case persona.BackendRemote, persona.BackendLocal:
		if c.Persona.Model == "" {
			add("persona.model is required for the %s backend", c.Persona.Backend)
		}
	default:
		add("persona.backend %q is unknown", c.Persona.Backend)
	}

	if c.Workspace.UpdateAttempts < 1 {
		add("workspace.update_attempts must be at least 1")
	}
	if c.Workspace.SessionIdle < 0 {
		add("workspace.session_idle must not be negative")
	}

	if c.Security.EnableAuth && !c.Security.TrustAuthorizer && len(c.Security.JWTSecret) < 32 {
		add("security.jwt_secret must be at least 32 characters when auth is enabled")
	}
	if c.Environment == Production && c.Security.AllowUserHeader {
		add("security.allow_user_header is not allowed in production")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		add("tracing.sample_rate must be within [0, 1]")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.Validation(errors.CodeValidationFailed.String(), "invalid configuration").
		WithDetails(strings.Join(problems, "; ")).
		WithOperation("config.Validate").
		Build()
}

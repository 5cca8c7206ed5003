package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wuzhiguocarter/Aletheia/internal/persona"
)

// Loader builds a Config from a hierarchy of sources. From lowest to
// highest priority:
//  1. defaults in code
//  2. {dir}/base.yaml
//  3. {dir}/{environment}.yaml
//  4. {dir}/local.yaml (development only)
//  5. .env file, for variables not already set
//  6. environment variables
type Loader struct {
	dir     string
	env     Environment
	dotenv  []string
	sources []string
}

// NewLoader reads YAML files from dir. Empty dir means "config".
func NewLoader(dir string, env Environment) *Loader {
	if dir == "" {
		dir = "config"
	}
	return &Loader{dir: dir, env: env, dotenv: []string{".env"}}
}

// WithDotenv replaces the .env files tried before reading the environment.
func (l *Loader) WithDotenv(files ...string) *Loader {
	l.dotenv = files
	return l
}

// Dir is the directory YAML files are read from.
func (l *Loader) Dir() string { return l.dir }

// Load applies every source and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.sources = l.sources[:0]
	cfg := Default(l.env)
	l.sources = append(l.sources, "defaults")

	if err := l.loadFile("base", cfg); err != nil {
		return nil, err
	}
	if err := l.loadFile(strings.ToLower(string(l.env)), cfg); err != nil {
		return nil, err
	}
	if l.env == Development {
		if err := l.loadFile("local", cfg); err != nil {
			return nil, err
		}
	}

	for _, f := range l.dotenv {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(f); err == nil {
			l.sources = append(l.sources, f)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	applyEnv(cfg)
	l.sources = append(l.sources, "environment")

	cfg.LoadedFrom = append([]string(nil), l.sources...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays {dir}/{name}.yaml (or .yml) on cfg. A missing file is
// not an error.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(l.dir, name+ext)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		l.sources = append(l.sources, path)
		return nil
	}
	return nil
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
			*dst = v
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
			*dst = v
		}
	}

	str("SERVER_HOST", &cfg.Server.Host)
	integer("SERVER_PORT", &cfg.Server.Port)
	duration("REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)

	str("GATEWAY_BACKEND", &cfg.Gateway.Backend)
	boolean("GATEWAY_RESILIENT", &cfg.Gateway.Resilient)
	str("SUPABASE_URL", &cfg.Gateway.Supabase.URL)
	str("SUPABASE_KEY", &cfg.Gateway.Supabase.Key)
	str("TABLE_NAME", &cfg.Gateway.Dynamo.TableName)
	str("DYNAMO_OWNER_INDEX", &cfg.Gateway.Dynamo.OwnerIndex)
	str("DYNAMO_ENDPOINT", &cfg.Gateway.Dynamo.Endpoint)
	str("AWS_REGION", &cfg.Gateway.Dynamo.Region)
	str("AWS_REGION", &cfg.Events.Region)
	str("SQL_DRIVER", &cfg.Gateway.SQL.Driver)
	str("DATABASE_URL", &cfg.Gateway.SQL.DSN)

	boolean("CACHE_ENABLED", &cfg.Cache.Enabled)
	str("REDIS_ADDR", &cfg.Cache.Addr)
	str("REDIS_PASSWORD", &cfg.Cache.Password)
	integer("REDIS_DB", &cfg.Cache.DB)

	var backend string
	str("PERSONA_BACKEND", &backend)
	if backend != "" {
		cfg.Persona.Backend = persona.Backend(strings.ToLower(backend))
	}
	str("PERSONA_BASE_URL", &cfg.Persona.BaseURL)
	str("OPENAI_API_KEY", &cfg.Persona.APIKey)
	str("PERSONA_API_KEY", &cfg.Persona.APIKey)
	str("PERSONA_MODEL", &cfg.Persona.Model)

	str("DEFAULT_AUDIENCE", &cfg.Workspace.DefaultAudience)

	boolean("ENABLE_AUTH", &cfg.Security.EnableAuth)
	str("JWT_SECRET", &cfg.Security.JWTSecret)
	boolean("ALLOW_USER_HEADER", &cfg.Security.AllowUserHeader)
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		cfg.Security.TrustAuthorizer = true
	}

	boolean("TRACING_ENABLED", &cfg.Tracing.Enabled)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	str("EVENT_BUS_NAME", &cfg.Events.BusName)
	boolean("ENABLE_METRICS", &cfg.Metrics.Enabled)
	str("LOG_LEVEL", &cfg.Logging.Level)
}

// EnvironmentFromEnv reads ENVIRONMENT, defaulting to development.
func EnvironmentFromEnv() Environment {
	switch env := Environment(strings.ToLower(os.Getenv("ENVIRONMENT"))); env {
	case "prod":
		return Production
	case "stage":
		return Staging
	case "":
		return Development
	default:
		return env
	}
}

// Load reads the configuration for the current environment from CONFIG_DIR
// (default "config").
func Load() (*Config, error) {
	return NewLoader(os.Getenv("CONFIG_DIR"), EnvironmentFromEnv()).Load()
}

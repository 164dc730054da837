// Package config provides common configuration loading and management utilities for
// ontoforge services. This package includes standard environment variable loading,
// validation, and configuration patterns used across the ontoforge ecosystem. The
// types here back the defaults consulted by the viper-backed CLI configuration in
// cli/root.go; components that only ever run as part of the service (not the CLI)
// load straight from these env-driven structs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or panics
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

// GetInt retrieves an integer value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// MustGetInt retrieves a required integer value from environment or panics
func (ec *EnvConfig) MustGetInt(key string) int {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		panic(fmt.Sprintf("environment variable %s is not a valid integer: %v", fullKey, err))
	}
	return intValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// buildKey builds the full environment variable key with optional prefix
func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// ServerConfig contains common server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Debug           bool
}

// LoadServerConfig loads server configuration from environment
func LoadServerConfig(prefix string) ServerConfig {
	env := NewEnvConfig(prefix)
	return ServerConfig{
		Port:            env.GetInt("PORT", 8080),
		Host:            env.GetString("HOST", "0.0.0.0"),
		ReadTimeout:     env.GetDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    env.GetDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Debug:           env.GetBool("DEBUG", false),
	}
}

// DocumentStoreConfig contains CouchDB document store configuration, used to persist
// raw ODL payloads and compiled semantic_model.yaml text keyed by content hash.
type DocumentStoreConfig struct {
	URL             string
	Database        string
	Username        string
	Password        string
	Timeout         time.Duration
	CreateIfMissing bool
}

// LoadDocumentStoreConfig loads CouchDB configuration from environment
func LoadDocumentStoreConfig(prefix string) DocumentStoreConfig {
	env := NewEnvConfig(prefix)
	return DocumentStoreConfig{
		URL:             env.GetString("URL", "http://localhost:5984"),
		Database:        env.GetString("DATABASE", "ontoforge"),
		Username:        env.GetString("USERNAME", ""),
		Password:        env.GetString("PASSWORD", ""),
		Timeout:         env.GetDuration("TIMEOUT", 30*time.Second),
		CreateIfMissing: env.GetBool("CREATE_IF_MISSING", true),
	}
}

// RelationalStoreConfig contains the Postgres connection settings shared by both the
// pgx pool (hot transactional paths) and GORM (administrative tables).
type RelationalStoreConfig struct {
	DSN            string
	MaxConnections int
	Timeout        time.Duration
}

// LoadRelationalStoreConfig loads Postgres configuration from environment
func LoadRelationalStoreConfig(prefix string) RelationalStoreConfig {
	env := NewEnvConfig(prefix)
	return RelationalStoreConfig{
		DSN:            env.GetString("DSN", "postgres://localhost:5432/ontoforge?sslmode=disable"),
		MaxConnections: env.GetInt("MAX_CONNECTIONS", 10),
		Timeout:        env.GetDuration("TIMEOUT", 10*time.Second),
	}
}

// GraphStoreConfig contains Neo4j connection settings for the optional
// relationship topology store. An empty URI leaves the graph store unopened.
type GraphStoreConfig struct {
	URI      string
	Username string
	Password string
	Timeout  time.Duration
}

// LoadGraphStoreConfig loads Neo4j configuration from environment
func LoadGraphStoreConfig(prefix string) GraphStoreConfig {
	env := NewEnvConfig(prefix)
	return GraphStoreConfig{
		URI:      env.GetString("URI", ""),
		Username: env.GetString("USERNAME", "neo4j"),
		Password: env.GetString("PASSWORD", ""),
		Timeout:  env.GetDuration("TIMEOUT", 10*time.Second),
	}
}

// CacheStoreConfig contains Redis configuration backing the async task queue,
// per-workspace locks, and the drift-event dedup index.
type CacheStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// LoadCacheStoreConfig loads Redis configuration from environment
func LoadCacheStoreConfig(prefix string) CacheStoreConfig {
	env := NewEnvConfig(prefix)
	return CacheStoreConfig{
		Addr:     env.GetString("ADDR", "localhost:6379"),
		Password: env.GetString("PASSWORD", ""),
		DB:       env.GetInt("DB", 0),
		Timeout:  env.GetDuration("TIMEOUT", 5*time.Second),
	}
}

// WarehouseConfig contains the connection settings for the HTTP(S) warehouse
// adapter used by the verifier/deployer, drift detector, and regression runner.
type WarehouseConfig struct {
	BaseURL    string
	Timeout    time.Duration
	VerifyOnly bool
}

// LoadWarehouseConfig loads warehouse adapter configuration from environment
func LoadWarehouseConfig(prefix string) WarehouseConfig {
	env := NewEnvConfig(prefix)
	return WarehouseConfig{
		BaseURL:    env.GetString("BASE_URL", ""),
		Timeout:    env.GetDuration("TIMEOUT", 30*time.Second),
		VerifyOnly: env.GetBool("VERIFY_ONLY", false),
	}
}

// BundleStoreConfig contains S3 configuration for durable artifact bundle storage.
type BundleStoreConfig struct {
	Bucket string
	Prefix string
	Region string
}

// LoadBundleStoreConfig loads bundle storage configuration from environment
func LoadBundleStoreConfig(prefix string) BundleStoreConfig {
	env := NewEnvConfig(prefix)
	return BundleStoreConfig{
		Bucket: env.GetString("BUCKET", ""),
		Prefix: env.GetString("PREFIX", "bundles"),
		Region: env.GetString("REGION", "us-east-1"),
	}
}

// AsyncConfig controls the worker pool that drains the async task queue (C10).
type AsyncConfig struct {
	QueueWorkers map[string]int
	TaskTimeout  time.Duration
}

// LoadAsyncConfig loads async runner configuration from environment. The per-queue
// worker counts mirror the teacher's per-queue worker pool sizing; each is read
// from <prefix>_WORKERS_<QUEUE> (COMPILE, DEPLOY, DRIFT, REGRESSION). There is
// no eval entry and no CLI flag for these counts.
func LoadAsyncConfig(prefix string) AsyncConfig {
	env := NewEnvConfig(prefix)
	return AsyncConfig{
		QueueWorkers: map[string]int{
			"compile":    env.GetInt("WORKERS_COMPILE", 4),
			"deploy":     env.GetInt("WORKERS_DEPLOY", 1),
			"drift":      env.GetInt("WORKERS_DRIFT", 2),
			"regression": env.GetInt("WORKERS_REGRESSION", 2),
		},
		TaskTimeout: env.GetDuration("TASK_TIMEOUT", 10*time.Minute),
	}
}

// ServiceConfig contains common service configuration
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
	LogFormat   string
}

// LoadServiceConfig loads service configuration from environment
func LoadServiceConfig(prefix string) ServiceConfig {
	env := NewEnvConfig(prefix)
	return ServiceConfig{
		Name:        env.GetString("NAME", "ontoforge"),
		Version:     env.GetString("VERSION", "0.1.0"),
		Environment: env.GetString("ENVIRONMENT", "development"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
	}
}

// Validator provides configuration validation utilities
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]string, 0),
	}
}

// RequireString validates that a string field is not empty
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireInt validates that an integer field is within range
func (v *Validator) RequireInt(field string, value, min, max int) {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
}

// RequirePositiveInt validates that an integer field is positive
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireURL validates that a string is a valid URL
func (v *Validator) RequireURL(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		v.errors = append(v.errors, fmt.Sprintf("%s must be a valid URL (http:// or https://)", field))
	}
}

// RequireOneOf validates that a value is one of the allowed options
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// IsValid returns true if there are no validation errors
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []string {
	return v.errors
}

// ErrorString returns all validation errors as a single string
func (v *Validator) ErrorString() string {
	if len(v.errors) == 0 {
		return ""
	}
	return strings.Join(v.errors, "; ")
}

// Validate runs validation and returns error if invalid
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", v.ErrorString())
	}
	return nil
}

// ConfigLoader provides a fluent interface for loading configuration
type ConfigLoader struct {
	prefix string
	env    *EnvConfig
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader(prefix string) *ConfigLoader {
	return &ConfigLoader{
		prefix: prefix,
		env:    NewEnvConfig(prefix),
	}
}

// LoadAll loads all common configurations
func (cl *ConfigLoader) LoadAll() (*AllConfig, error) {
	config := &AllConfig{
		Server:     LoadServerConfig(cl.prefix),
		Documents:  LoadDocumentStoreConfig(cl.prefix + "_COUCHDB"),
		Relational: LoadRelationalStoreConfig(cl.prefix + "_POSTGRES"),
		Graph:      LoadGraphStoreConfig(cl.prefix + "_NEO4J"),
		Cache:      LoadCacheStoreConfig(cl.prefix + "_REDIS"),
		Warehouse:  LoadWarehouseConfig(cl.prefix + "_WAREHOUSE"),
		Bundles:    LoadBundleStoreConfig(cl.prefix + "_BUNDLES"),
		Async:      LoadAsyncConfig(cl.prefix + "_ASYNC"),
		Service:    LoadServiceConfig(cl.prefix),
	}

	// Validate configuration
	if err := cl.validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validate validates the loaded configuration
func (cl *ConfigLoader) validate(config *AllConfig) error {
	validator := NewValidator()

	// Validate service config
	validator.RequireString("Service.Name", config.Service.Name)
	validator.RequireOneOf("Service.Environment", config.Service.Environment,
		[]string{"development", "staging", "production"})
	validator.RequireOneOf("Service.LogLevel", config.Service.LogLevel,
		[]string{"debug", "info", "warn", "error"})

	// Validate server config
	validator.RequirePositiveInt("Server.Port", config.Server.Port)

	return validator.Validate()
}

// AllConfig contains all common configurations
type AllConfig struct {
	Server     ServerConfig
	Documents  DocumentStoreConfig
	Relational RelationalStoreConfig
	Graph      GraphStoreConfig
	Cache      CacheStoreConfig
	Warehouse  WarehouseConfig
	Bundles    BundleStoreConfig
	Async      AsyncConfig
	Service    ServiceConfig
}

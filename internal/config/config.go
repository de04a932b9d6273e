// Package config assembles the application configuration from defaults,
// command-line flags, a .env file, and environment variables, in that
// order of increasing priority, and validates the result.
package config

import (
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	RunAddr                    string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel                   string        `env:"LOG_LEVEL" validate:"loglevel"`
	DatabaseDSN                string        `env:"DATABASE_DSN"`
	DBFileName                 string        `env:"FILE_STORAGE_PATH" validate:"filepath"`
	DBConnectionTimeout        time.Duration `env:"DB_CONNECTION_TIMEOUT"`
	MigrationsDir              string        `env:"MIGRATIONS_DIR"`
	AuthCookieName             string        `env:"AUTH_COOKIE_NAME" validate:"required"`
	AuthCookieSigningSecretKey string        `env:"AUTH_COOKIE_SIGNING_SECRET_KEY" validate:"required,base64url"`
	FixedPasswordHash          string        `env:"FIXED_PASSWORD_HASH" validate:"required"`
	SessionTTL                 time.Duration `env:"SESSION_TTL"`
	SessionSweepInterval       time.Duration `env:"SESSION_SWEEP_INTERVAL"`
	Environment                string        `env:"APP_ENV" validate:"oneof=development production"`
	TrustedSubnet              string        `env:"TRUSTED_SUBNET"`
	URLSeedFile                string        `env:"URL_SEED_FILE" validate:"filepath"`
}

var defaultConfig = Config{
	RunAddr:             ":8080",
	LogLevel:            "info",
	DatabaseDSN:         "",
	DBFileName:          "",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "cmd/hublink/migrations",
	AuthCookieName:      "hublink_session",
	// Development-only signing key; real deployments set the env var.
	AuthCookieSigningSecretKey: "c3VwZXJzZWNyZXRrZXk=",
	// bcrypt hash of the development password; real deployments set the env var.
	FixedPasswordHash:    "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
	SessionTTL:           365 * 24 * time.Hour,
	SessionSweepInterval: time.Hour,
	Environment:          "development",
	TrustedSubnet:        "",
	URLSeedFile:          "",
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption defines a functional option for configuring the New call.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips command-line flag parsing; tests use it to
// keep os.Args out of the picture.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func applyEnvOverrides(values, fromEnv *Config) {
	if fromEnv.RunAddr != "" {
		values.RunAddr = fromEnv.RunAddr
	}
	if fromEnv.LogLevel != "" {
		values.LogLevel = fromEnv.LogLevel
	}
	if fromEnv.DatabaseDSN != "" {
		values.DatabaseDSN = fromEnv.DatabaseDSN
	}
	if fromEnv.DBFileName != "" {
		values.DBFileName = fromEnv.DBFileName
	}
	if fromEnv.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = fromEnv.DBConnectionTimeout
	}
	if fromEnv.MigrationsDir != "" {
		values.MigrationsDir = fromEnv.MigrationsDir
	}
	if fromEnv.AuthCookieName != "" {
		values.AuthCookieName = fromEnv.AuthCookieName
	}
	if fromEnv.AuthCookieSigningSecretKey != "" {
		values.AuthCookieSigningSecretKey = fromEnv.AuthCookieSigningSecretKey
	}
	if fromEnv.FixedPasswordHash != "" {
		values.FixedPasswordHash = fromEnv.FixedPasswordHash
	}
	if fromEnv.SessionTTL != 0 {
		values.SessionTTL = fromEnv.SessionTTL
	}
	if fromEnv.SessionSweepInterval != 0 {
		values.SessionSweepInterval = fromEnv.SessionSweepInterval
	}
	if fromEnv.Environment != "" {
		values.Environment = fromEnv.Environment
	}
	if fromEnv.TrustedSubnet != "" {
		values.TrustedSubnet = fromEnv.TrustedSubnet
	}
	if fromEnv.URLSeedFile != "" {
		values.URLSeedFile = fromEnv.URLSeedFile
	}
}

// IsProduction reports whether the service runs in production mode, which
// switches the session cookie to Secure + SameSite=None.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// New builds the configuration: defaults, then flags, then .env, then
// environment variables, validated at the end.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	if !options.disableFlagsParsing {
		flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
		flags.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
		flags.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
		flags.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "a string with the database connection details")
		flags.StringVar(&values.DBFileName, "f", values.DBFileName, "JSON file name with database")
		flags.StringVar(&values.TrustedSubnet, "t", values.TrustedSubnet, "trusted subnet in CIDR notation for the internal stats endpoint")
		flags.StringVar(&values.URLSeedFile, "s", values.URLSeedFile, "JSON file with URL directory seed entries")
		if err := flags.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
	}

	valuesFromEnv := &Config{}
	err = env.Parse(valuesFromEnv)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(values, valuesFromEnv)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the immutable configuration for the gateway, resolved once at
// startup and passed into each component's constructor.
type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	AppName  string `mapstructure:"APP_NAME"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	FHIR      FHIR
	Identity  Identity
	Bootstrap Bootstrap
}

// FHIR holds the backend resource server settings. The gateway authenticates
// to the backend with its own client certificate; user-facing credentials
// never travel upstream on resource reads.
type FHIR struct {
	// BaseURL is the resource router URL, e.g. "https://fhir.example/v1/".
	BaseURL  string `mapstructure:"FHIR_URL"`
	CertFile string `mapstructure:"FHIR_CERT_FILE"`
	KeyFile  string `mapstructure:"FHIR_KEY_FILE"`
	Timeout  time.Duration
}

// Identity holds the upstream identity-provider settings for the
// authorization-code exchange.
type Identity struct {
	TokenEndpoint string `mapstructure:"SLS_TOKEN_ENDPOINT"`
	RedirectURI   string `mapstructure:"MEDICARE_REDIRECT_URI"`
	ClientID      string `mapstructure:"SLS_CLIENT_ID"`
	ClientSecret  string `mapstructure:"SLS_CLIENT_SECRET"`

	// VerifySSL controls TLS verification on the token-endpoint call.
	// Disabling it is an explicit, auditable choice for sandbox
	// environments; the default is on.
	VerifySSL bool `mapstructure:"SLS_VERIFY_SSL"`
	Timeout   time.Duration
}

// Bootstrap holds the superuser bootstrap credentials. All three must be set
// together for the bootstrap step to run.
type Bootstrap struct {
	Username string `mapstructure:"SUPERUSER_USERNAME"`
	Password string `mapstructure:"SUPERUSER_PASSWORD"`
	Email    string `mapstructure:"SUPERUSER_EMAIL"`
}

// Load reads configuration from environment variables (and an optional .env
// file) into an immutable Config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "DEV")
	v.SetDefault("APP_NAME", "FHIR Gateway")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SLS_VERIFY_SSL", true)
	v.SetDefault("FHIR_TIMEOUT_SECONDS", 30)
	v.SetDefault("SLS_TIMEOUT_SECONDS", 15)

	// Bind env vars explicitly so Unmarshal picks them up without a file.
	for _, key := range []string{
		"PORT", "ENV", "APP_NAME", "LOG_LEVEL",
		"FHIR_URL", "FHIR_CERT_FILE", "FHIR_KEY_FILE", "FHIR_TIMEOUT_SECONDS",
		"SLS_TOKEN_ENDPOINT", "MEDICARE_REDIRECT_URI",
		"SLS_CLIENT_ID", "SLS_CLIENT_SECRET", "SLS_VERIFY_SSL",
		"SLS_TIMEOUT_SECONDS",
		"SUPERUSER_USERNAME", "SUPERUSER_PASSWORD", "SUPERUSER_EMAIL",
	} {
		_ = v.BindEnv(key)
	}

	// A missing .env file is fine; env vars alone are enough.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] unmarshal")
	}
	if err := v.Unmarshal(&cfg.FHIR); err != nil {
		return nil, errors.Wrap(err, "[config.Load] unmarshal FHIR")
	}
	if err := v.Unmarshal(&cfg.Identity); err != nil {
		return nil, errors.Wrap(err, "[config.Load] unmarshal Identity")
	}
	if err := v.Unmarshal(&cfg.Bootstrap); err != nil {
		return nil, errors.Wrap(err, "[config.Load] unmarshal Bootstrap")
	}

	cfg.Port = normalisePort(cfg.Port)
	cfg.FHIR.Timeout = time.Duration(v.GetInt("FHIR_TIMEOUT_SECONDS")) * time.Second
	cfg.Identity.Timeout = time.Duration(v.GetInt("SLS_TIMEOUT_SECONDS")) * time.Second

	return cfg, nil
}

func normalisePort(port string) string {
	if port == "" {
		return ":8000"
	}
	if !strings.HasPrefix(port, ":") {
		return ":" + port
	}
	return port
}

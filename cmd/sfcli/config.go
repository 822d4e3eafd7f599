package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kelseyhightower/envconfig"

	force "github.com/jamesprial/go-salesforce-api-wrapper"
)

// envConfig is read from SFDC_* environment variables, after an optional .env file.
type envConfig struct {
	ClientID       string        `envconfig:"SFDC_CLIENT_ID"`
	ClientSecret   string        `envconfig:"SFDC_CLIENT_SECRET"`
	Username       string        `envconfig:"SFDC_USERNAME"`
	Password       string        `envconfig:"SFDC_PASSWORD"`
	SecurityToken  string        `envconfig:"SFDC_SECURITY_TOKEN"`
	LoginURL       string        `envconfig:"SFDC_LOGIN_URL" default:"https://login.salesforce.com"`
	APIVersion     string        `envconfig:"SFDC_API_VERSION" default:"v44.0"`
	InstanceURL    string        `envconfig:"SFDC_INSTANCE_URL"`
	AccessToken    string        `envconfig:"SFDC_ACCESS_TOKEN"`
	RefreshToken   string        `envconfig:"SFDC_REFRESH_TOKEN"`
	PrivateKeyFile string        `envconfig:"SFDC_PRIVATE_KEY_FILE"`
	Timeout        time.Duration `envconfig:"SFDC_TIMEOUT" default:"30s"`
	RequestsPerSec float64       `envconfig:"SFDC_REQUESTS_PER_SECOND" default:"0"`
	LogLevel       string        `envconfig:"SFDC_LOG_LEVEL" default:"warn"`
}

// loadEnvConfig reads SFDC_* variables. Flags set on the root command override them.
func loadEnvConfig() (*envConfig, error) {
	var cfg envConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}

	if flagLoginURL != "" {
		cfg.LoginURL = flagLoginURL
	}
	if flagAPIVersion != "" {
		cfg.APIVersion = flagAPIVersion
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	return &cfg, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// clientConfig turns the environment into a force.Config.
func (e *envConfig) clientConfig() (*force.Config, error) {
	level, err := parseLogLevel(e.LogLevel)
	if err != nil {
		return nil, err
	}

	cfg := &force.Config{
		ClientID:      e.ClientID,
		ClientSecret:  e.ClientSecret,
		Username:      e.Username,
		Password:      e.Password,
		SecurityToken: e.SecurityToken,
		LoginURL:      e.LoginURL,
		APIVersion:    e.APIVersion,
		InstanceURL:   e.InstanceURL,
		AccessToken:   e.AccessToken,
		RefreshToken:  e.RefreshToken,
		UserAgent:     "sfcli/0.1",
		Logger:        slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
	if e.Timeout > 0 {
		cfg.HTTPClient = newHTTPClient(e.Timeout)
	}
	if e.RequestsPerSec > 0 {
		cfg.RateLimit = &force.RateLimitConfig{RequestsPerSecond: e.RequestsPerSec, Burst: 1}
	}

	if e.PrivateKeyFile != "" {
		pemBytes, err := os.ReadFile(e.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		cfg.PrivateKey = key
	}
	return cfg, nil
}

// connect builds a client from the environment and establishes a session.
func connect(ctx context.Context) (*force.Client, error) {
	env, err := loadEnvConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := env.clientConfig()
	if err != nil {
		return nil, err
	}

	client, err := force.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// Package config loads service settings from SWEETSHOP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const Prefix = "SWEETSHOP"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	GatewaySandbox  = "sandbox"
	GatewayRazorpay = "razorpay"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"sweetshop"`
	Env         string `envconfig:"ENV" default:"dev"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	StoreDriver   string `envconfig:"STORE_DRIVER" default:"memory"`
	PostgresURL   string `envconfig:"POSTGRES_URL"`
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"sweetshop"`

	JWTSecret string `envconfig:"JWT_SECRET"`

	Gateway           string        `envconfig:"GATEWAY" default:"sandbox"`
	RazorpayKeyID     string        `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string        `envconfig:"RAZORPAY_KEY_SECRET"`
	RazorpayBaseURL   string        `envconfig:"RAZORPAY_BASE_URL"`
	GatewayTimeout    time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
	Currency          string        `envconfig:"CURRENCY" default:"INR"`

	SeedFile string `envconfig:"SEED_FILE"`

	EventQueueSize      int           `envconfig:"EVENT_QUEUE_SIZE" default:"256"`
	EventWorkers        int           `envconfig:"EVENT_WORKERS" default:"4"`
	EventHandlerTimeout time.Duration `envconfig:"EVENT_HANDLER_TIMEOUT" default:"5s"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) normalize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.Gateway = strings.ToLower(strings.TrimSpace(c.Gateway))
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
}

// Validate checks that the selected store and gateway have what they need.
// The JWT secret is checked only by the commands that serve HTTP.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("config: SWEETSHOP_POSTGRES_URL is required for the postgres store"))
		}
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("config: SWEETSHOP_MONGO_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store driver %q", c.StoreDriver))
	}

	switch c.Gateway {
	case GatewaySandbox:
	case GatewayRazorpay:
		if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
			errs = append(errs, errors.New("config: razorpay gateway needs SWEETSHOP_RAZORPAY_KEY_ID and SWEETSHOP_RAZORPAY_KEY_SECRET"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown gateway %q", c.Gateway))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("config: shutdown timeout must be positive"))
	}
	return errors.Join(errs...)
}

// RequireJWTSecret fails when the HTTP surface would run without a token key.
func (c *Config) RequireJWTSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: SWEETSHOP_JWT_SECRET is required")
	}
	return nil
}

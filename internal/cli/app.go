// Package cli wires configuration, storage and transports into the sweetshop commands.
package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/Zhima-Mochi/sweetshop/internal/config"
)

const (
	flagStore       = "store"
	flagPostgresURL = "postgres-url"
	flagMongoURI    = "mongo-uri"
	flagLogLevel    = "log-level"
	flagAddr        = "addr"
	flagGateway     = "gateway"
	flagFile        = "file"
)

// NewApp builds the command tree. Settings come from SWEETSHOP_* variables;
// flags given on the command line take precedence.
func NewApp() *cli.App {
	var cfg config.Config
	return &cli.App{
		Name:  "sweetshop",
		Usage: "sweet shop inventory and checkout service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagStore, Usage: "storage backend: memory, postgres or mongo"},
			&cli.StringFlag{Name: flagPostgresURL, Usage: "PostgreSQL connection URL"},
			&cli.StringFlag{Name: flagMongoURI, Usage: "MongoDB connection URI"},
			&cli.StringFlag{Name: flagLogLevel, Usage: "log level (debug, info, warn, error)"},
		},
		Before: func(c *cli.Context) error {
			loaded, err := loadConfig(c)
			if err != nil {
				return err
			}
			cfg = *loaded
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(&cfg),
			migrateCommand(&cfg),
			seedCommand(&cfg),
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet(flagStore) {
		cfg.StoreDriver = c.String(flagStore)
	}
	if c.IsSet(flagPostgresURL) {
		cfg.PostgresURL = c.String(flagPostgresURL)
	}
	if c.IsSet(flagMongoURI) {
		cfg.MongoURI = c.String(flagMongoURI)
	}
	if c.IsSet(flagLogLevel) {
		cfg.LogLevel = c.String(flagLogLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/Zhima-Mochi/sweetshop/internal/config"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
)

func migrateCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create tables and indexes for the configured store",
		Action: func(c *cli.Context) error {
			t, err := newTelemetry(cfg)
			if err != nil {
				return err
			}
			defer t.sync()

			st, err := openStores(c.Context, cfg)
			if err != nil {
				return err
			}
			defer st.close(c.Context)

			if err := st.migrate(c.Context); err != nil {
				t.system.Error("store_migrate_failed", observability.F("driver", cfg.StoreDriver), observability.F("error", err.Error()))
				return err
			}
			t.system.Info("store_migrated", observability.F("driver", cfg.StoreDriver))
			return nil
		},
	}
}

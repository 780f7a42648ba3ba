package cli

import (
	"errors"

	"github.com/urfave/cli/v2"

	appsweet "github.com/Zhima-Mochi/sweetshop/internal/application/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/config"
)

func seedCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "load a YAML catalog of sweets into the store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagFile, Usage: "path to the catalog file"},
		},
		Action: func(c *cli.Context) error {
			path := cfg.SeedFile
			if c.IsSet(flagFile) {
				path = c.String(flagFile)
			}
			if path == "" {
				return errors.New("seed: catalog file required (--file or SWEETSHOP_SEED_FILE)")
			}

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
				return err
			}
			if cfg.StoreDriver == config.StoreMemory {
				t.system.Warn("seed_memory_store_discarded_on_exit")
			}

			// seeding publishes no events
			ledger := appsweet.NewLedger(st.sweets, nil, t.tel)
			return runSeed(c.Context, path, ledger, t.system)
		},
	}
}

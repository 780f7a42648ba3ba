package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Zhima-Mochi/sweetshop/internal/application/checkout"
	"github.com/Zhima-Mochi/sweetshop/internal/application/seed"
	appalert "github.com/Zhima-Mochi/sweetshop/internal/application/stockalert"
	appsweet "github.com/Zhima-Mochi/sweetshop/internal/application/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/config"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/id"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/outbox"
	alertworker "github.com/Zhima-Mochi/sweetshop/internal/infrastructure/stockalert/worker"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	httppresentation "github.com/Zhima-Mochi/sweetshop/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/sweetshop/internal/presentation/worker"
)

const readHeaderTimeout = 5 * time.Second

func serveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagAddr, Usage: "listen address"},
			&cli.StringFlag{Name: flagGateway, Usage: "payment gateway: sandbox or razorpay"},
			&cli.StringFlag{Name: flagFile, Usage: "seed catalog loaded before serving"},
		},
		Action: func(c *cli.Context) error {
			if c.IsSet(flagAddr) {
				cfg.HTTPAddr = c.String(flagAddr)
			}
			if c.IsSet(flagGateway) {
				cfg.Gateway = c.String(flagGateway)
			}
			if c.IsSet(flagFile) {
				cfg.SeedFile = c.String(flagFile)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}
			return serve(c.Context, cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	t, err := newTelemetry(cfg)
	if err != nil {
		return err
	}
	defer t.sync()
	log := t.system

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Error("store_open_failed", observability.F("driver", cfg.StoreDriver), observability.F("error", err.Error()))
		return err
	}
	defer st.close(context.Background())
	if err := st.migrate(ctx); err != nil {
		log.Error("store_migrate_failed", observability.F("driver", cfg.StoreDriver), observability.F("error", err.Error()))
		return err
	}

	gateway, keyID, err := newGateway(cfg)
	if err != nil {
		return err
	}

	bus := outbox.NewBus(t.tel,
		outbox.WithQueueSize(cfg.EventQueueSize),
		outbox.WithConcurrency(cfg.EventWorkers),
		outbox.WithHandlerTimeout(cfg.EventHandlerTimeout),
		outbox.WithMiddleware(workerpresentation.EventMiddleware(t.tel)),
	)
	ledger := appsweet.NewLedger(st.sweets, bus, t.tel)
	alertworker.New(bus, appalert.NewService(t.tel)).Start()
	bus.Start(ctx)

	if cfg.SeedFile != "" {
		if err := runSeed(ctx, cfg.SeedFile, ledger, log); err != nil {
			return err
		}
	}

	checkoutSvc := checkout.NewService(ledger, st.orders, gateway, id.NewUUIDGenerator(), t.tel,
		checkout.WithCurrency(cfg.Currency))
	auth, err := httppresentation.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		return err
	}
	handler := httppresentation.NewHandler(ledger, checkoutSvc, auth, t.tel.Logger(), t.tel,
		httppresentation.WithMetricsHandler(promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})),
		httppresentation.WithGatewayKeyID(keyID),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("store", cfg.StoreDriver),
			observability.F("gateway", gateway.Name()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_error", observability.F("error", err.Error()))
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http_server_shutdown_error", observability.F("error", err.Error()))
			return err
		}
		log.Info("http_server_stopped")
		return nil
	})
	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	bus.Stop(drainCtx)
	return err
}

func runSeed(ctx context.Context, path string, ledger seed.Ledger, log observability.Logger) error {
	catalog, err := seed.LoadCatalog(path)
	if err != nil {
		return err
	}
	report, err := seed.NewSeeder(ledger, log).Run(ctx, catalog)
	if err != nil {
		return err
	}
	log.Info("seed_complete",
		observability.F("file", path),
		observability.F("created", report.Created),
		observability.F("skipped", report.Skipped),
		observability.F("images_updated", report.ImagesUpdated),
	)
	return nil
}

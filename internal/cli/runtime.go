package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Zhima-Mochi/sweetshop/internal/config"
	domorder "github.com/Zhima-Mochi/sweetshop/internal/domain/order"
	dompay "github.com/Zhima-Mochi/sweetshop/internal/domain/payment"
	domsweet "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/mongostore"
	infraobs "github.com/Zhima-Mochi/sweetshop/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/payment/razorpay"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/payment/sandbox"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/pkg/logging"
)

const (
	metricsNamespace = "sweetshop"
	sandboxKeyID     = "sandbox"
	sandboxSecret    = "sandbox-secret"
)

type telemetry struct {
	system   observability.Logger
	registry *prometheus.Registry
	tel      observability.Observability
}

func newTelemetry(cfg *config.Config) (*telemetry, error) {
	base, err := logging.NewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(base)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger := zaplogger.New(base)
	return &telemetry{
		system:   zaplogger.New(logging.WithTrace(base, logging.SystemTraceID, logging.SystemSpanID)),
		registry: reg,
		tel:      infraobs.New(oteltrace.New(cfg.ServiceName), logger, prometrics.New(reg, metricsNamespace, "")),
	}, nil
}

func (t *telemetry) sync() { _ = zaplogger.Sync(t.tel.Logger()) }

type stores struct {
	sweets  domsweet.Repository
	orders  domorder.Repository
	migrate func(context.Context) error
	close   func(context.Context)
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, postgres.Options{URL: cfg.PostgresURL})
		if err != nil {
			return nil, err
		}
		return &stores{
			sweets:  postgres.NewSweetRepository(pool),
			orders:  postgres.NewOrderRepository(pool),
			migrate: func(ctx context.Context) error { return postgres.Migrate(ctx, pool) },
			close:   func(context.Context) { pool.Close() },
		}, nil
	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		return &stores{
			sweets:  mongostore.NewSweetRepository(db),
			orders:  mongostore.NewOrderRepository(db),
			migrate: func(ctx context.Context) error { return mongostore.EnsureIndexes(ctx, db) },
			close:   func(ctx context.Context) { _ = client.Disconnect(ctx) },
		}, nil
	case config.StoreMemory:
		return &stores{
			sweets:  memory.NewSweetRepository(),
			orders:  memory.NewOrderRepository(),
			migrate: func(context.Context) error { return nil },
			close:   func(context.Context) {},
		}, nil
	default:
		return nil, fmt.Errorf("cli: unknown store driver %q", cfg.StoreDriver)
	}
}

// newGateway returns the payment gateway and the public key id handed to the browser checkout.
func newGateway(cfg *config.Config) (dompay.Gateway, string, error) {
	switch cfg.Gateway {
	case config.GatewayRazorpay:
		client, err := razorpay.New(razorpay.Config{
			KeyID:     cfg.RazorpayKeyID,
			KeySecret: cfg.RazorpayKeySecret,
			BaseURL:   cfg.RazorpayBaseURL,
			Timeout:   cfg.GatewayTimeout,
		}, nil)
		if err != nil {
			return nil, "", err
		}
		return client, cfg.RazorpayKeyID, nil
	case config.GatewaySandbox:
		secret, keyID := cfg.RazorpayKeySecret, cfg.RazorpayKeyID
		if secret == "" {
			secret = sandboxSecret
		}
		if keyID == "" {
			keyID = sandboxKeyID
		}
		return sandbox.New(secret), keyID, nil
	default:
		return nil, "", fmt.Errorf("cli: unknown gateway %q", cfg.Gateway)
	}
}

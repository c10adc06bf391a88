package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/supserrr/vevurn-sub002/api/controllers"
	"github.com/supserrr/vevurn-sub002/api/routes"
	"github.com/supserrr/vevurn-sub002/internal/auth"
	"github.com/supserrr/vevurn-sub002/internal/bootstrap"
	"github.com/supserrr/vevurn-sub002/internal/customers"
	"github.com/supserrr/vevurn-sub002/internal/pos"
	product "github.com/supserrr/vevurn-sub002/internal/products"
	"github.com/supserrr/vevurn-sub002/internal/receipts"
	"github.com/supserrr/vevurn-sub002/internal/register"
	"github.com/supserrr/vevurn-sub002/internal/reports"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/internal/users"
	"github.com/supserrr/vevurn-sub002/pkg/auth/session"
	"github.com/supserrr/vevurn-sub002/pkg/metrics"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
	"github.com/supserrr/vevurn-sub002/pkg/security"
	"github.com/supserrr/vevurn-sub002/pkg/square"
)

// wire opens the backing stores and assembles the handler dependencies.
// Services are built leaves first: staff and catalog, then sales, then the
// register and read models that sit on top of sales.
func wire(ctx context.Context, rt *bootstrap.Runtime) (routes.Deps, error) {
	cfg, logg := rt.Config, rt.Logger
	dbClient := rt.Database(ctx)
	redisClient := rt.Redis(ctx)

	vatRate, err := cfg.POS.VAT()
	if err != nil {
		return routes.Deps{}, fmt.Errorf("pos config: %w", err)
	}
	pricing := pos.Pricing{VATRate: vatRate, Places: cfg.POS.CurrencyPlaces}
	shopLoc := cfg.POS.Location()

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("sessions: %w", err)
	}

	hasher := security.NewHasher(cfg.Password)
	userRepo := users.NewRepository(dbClient.DB())
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		Hasher:         hasher,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return routes.Deps{}, fmt.Errorf("auth: %w", err)
	}
	usersSvc, err := users.NewService(userRepo, hasher)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("users: %w", err)
	}

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	productRepo := product.NewRepository(dbClient.DB())
	productSvc, err := product.NewService(productRepo, dbClient, events)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("products: %w", err)
	}
	customerRepo := customers.NewRepository(dbClient.DB())
	customerSvc, err := customers.NewService(customerRepo)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("customers: %w", err)
	}

	salesParams := sales.ServiceParams{
		Tx:        dbClient,
		Repo:      sales.NewRepository(dbClient.DB()),
		Products:  productRepo,
		Customers: customerRepo,
		Outbox:    events,
		Pricing:   pricing,
		Currency:  cfg.POS.Currency,
		Metrics:   metrics.NewSalesMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
	}
	if cfg.FeatureFlags.CardPayment {
		cards, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return routes.Deps{}, fmt.Errorf("square: %w", err)
		}
		salesParams.Cards = cards
	}
	salesSvc, err := sales.NewService(salesParams)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("sales: %w", err)
	}

	carts, err := register.NewStore(redisClient, cfg.POS.TransactionTTL)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("register store: %w", err)
	}
	registerSvc, err := register.NewService(register.ServiceParams{
		Store:     carts,
		Products:  productSvc,
		Customers: customerSvc,
		Sales:     salesSvc,
		Pricing:   pricing,
		Logger:    logg,
	})
	if err != nil {
		return routes.Deps{}, fmt.Errorf("register: %w", err)
	}

	renderer := receipts.NewRenderer(receipts.Shop{
		Name:    cfg.POS.ShopName,
		Address: cfg.POS.ShopAddress,
		TIN:     cfg.POS.ShopTIN,
	}, vatRate, cfg.POS.Currency, cfg.POS.CurrencyPlaces).In(shopLoc)
	receiptSvc, err := receipts.NewService(salesSvc, usersSvc, customerSvc, renderer)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("receipts: %w", err)
	}
	reportsSvc, err := reports.NewService(reports.ServiceParams{
		Repo:     reports.NewRepository(dbClient.DB()),
		Location: shopLoc,
		Logger:   logg,
	})
	if err != nil {
		return routes.Deps{}, fmt.Errorf("reports: %w", err)
	}

	return routes.Deps{
		Config: cfg,
		Logger: logg,
		Pingers: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
		},
		Redis:     redisClient,
		Sessions:  sessions,
		Metrics:   metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Gatherer:  prometheus.DefaultGatherer,
		Auth:      authSvc,
		Users:     usersSvc,
		Products:  productSvc,
		Customers: customerSvc,
		Register:  registerSvc,
		Sales:     salesSvc,
		Receipts:  receiptSvc,
		Reports:   reportsSvc,
	}, nil
}

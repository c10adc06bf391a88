package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/supserrr/vevurn-sub002/api/controllers"
	"github.com/supserrr/vevurn-sub002/api/middleware"
	"github.com/supserrr/vevurn-sub002/internal/auth"
	"github.com/supserrr/vevurn-sub002/internal/customers"
	productsvc "github.com/supserrr/vevurn-sub002/internal/products"
	"github.com/supserrr/vevurn-sub002/internal/register"
	"github.com/supserrr/vevurn-sub002/internal/reports"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/internal/users"
	"github.com/supserrr/vevurn-sub002/pkg/auth/session"
	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/metrics"
	"github.com/supserrr/vevurn-sub002/pkg/redis"
)

// Deps collects everything the HTTP surface is wired to. A nil service makes
// its endpoints answer 500 instead of panicking.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pingers  map[string]controllers.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer

	Auth      auth.Service
	Users     users.Service
	Products  productsvc.Service
	Customers customers.Service
	Register  register.Service
	Sales     sales.Service
	Receipts  controllers.ReceiptRenderer
	Reports   reports.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// A nil *redis.Client must not reach the interface-typed params as a
	// non-nil interface.
	var (
		counter middleware.WindowCounter
		store   middleware.ReplayStore
	)
	if d.Redis != nil {
		counter, store = d.Redis, d.Redis
	}
	replay := middleware.NewReplay(store, logg)
	throttleLogin := middleware.LoginThrottle(cfg.AuthRateLimit).Middleware(counter, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Pingers))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	requireAuth := middleware.Auth(cfg.JWT, d.Sessions, logg)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(throttleLogin).Post("/login", controllers.AuthLogin(d.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.With(requireAuth).Post("/logout", controllers.AuthLogout(d.Auth, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAuth)

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.StaffRoleAdmin, logg))
			r.Get("/", controllers.UsersList(d.Users, logg))
			r.With(replay.For(middleware.DefaultReplayTTL)).Post("/", controllers.UsersCreate(d.Users, logg))
			r.Get("/{userId}", controllers.UserGet(d.Users, logg))
			r.Patch("/{userId}", controllers.UserSetActive(d.Users, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(d.Products, logg))
			r.Get("/{productId}", controllers.ProductGet(d.Products, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.StaffRoleManager, logg))
				r.Post("/", controllers.ProductCreate(d.Products, logg))
				r.Patch("/{productId}", controllers.ProductUpdate(d.Products, logg))
				r.Post("/{productId}/stock", controllers.ProductAdjustStock(d.Products, logg))
			})
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.CustomersSearch(d.Customers, logg))
			r.Post("/", controllers.CustomerCreate(d.Customers, logg))
			r.Get("/{customerId}", controllers.CustomerGet(d.Customers, logg))
			r.Patch("/{customerId}", controllers.CustomerUpdate(d.Customers, logg))
		})

		r.Route("/register", func(r chi.Router) {
			r.Get("/", controllers.RegisterGet(d.Register, logg))
			r.Post("/items", controllers.RegisterAddItem(d.Register, logg))
			r.Delete("/items", controllers.RegisterClear(d.Register, logg))
			r.Patch("/items/{productId}", controllers.RegisterUpdateItem(d.Register, logg))
			r.Delete("/items/{productId}", controllers.RegisterRemoveItem(d.Register, logg))
			r.Put("/customer", controllers.RegisterSetCustomer(d.Register, logg))
			r.Put("/payment", controllers.RegisterSetPayment(d.Register, logg))
			r.Put("/cash", controllers.RegisterSetCashReceived(d.Register, logg))
			r.Put("/discount", controllers.RegisterSetDiscount(d.Register, logg))
			r.Post("/payment/begin", controllers.RegisterBeginPayment(d.Register, logg))
			r.Post("/payment/cancel", controllers.RegisterCancelPayment(d.Register, logg))
			r.With(replay.For(middleware.CheckoutReplayTTL)).Post("/checkout", controllers.RegisterCheckout(d.Register, logg))
			r.Post("/reset", controllers.RegisterReset(d.Register, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.SalesList(d.Sales, cfg.POS.Location(), logg))
			r.With(replay.For(middleware.CheckoutReplayTTL)).Post("/", controllers.SalesSubmit(d.Sales, logg))
			r.Get("/{saleId}", controllers.SaleGet(d.Sales, logg))
			r.Get("/{saleId}/receipt", controllers.SaleReceipt(d.Receipts, logg))
			r.With(middleware.RequireRole(enums.StaffRoleManager, logg), replay.For(middleware.DefaultReplayTTL)).
				Post("/{saleId}/void", controllers.SaleVoid(d.Sales, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.StaffRoleManager, logg))
			r.Get("/daily", controllers.ReportsDaily(d.Reports, logg))
		})
	})

	return r
}

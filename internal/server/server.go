package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidewater/subledger/internal/handler"
	"github.com/tidewater/subledger/internal/middleware"
	"github.com/tidewater/subledger/internal/provider"
	"github.com/tidewater/subledger/internal/reconcile"
	"github.com/tidewater/subledger/internal/store"
	substripe "github.com/tidewater/subledger/internal/stripe"
)

type Config struct {
	Stripe         substripe.Config
	IdentitySecret string // identity provider webhook signing secret
	JWTSecret      string // identity provider session token secret
	AdminToken     string // shared token for the admin sync endpoints
}

// Server owns every store, handler and the reconciliation engine. Everything
// is constructed once here and passed by reference; no package-level clients.
type Server struct {
	db            *sql.DB
	users         *store.UserStore
	products      *store.ProductStore
	subscriptions *store.SubscriptionStore
	engine        *reconcile.Engine
	stripeClient  *substripe.Client
	webhookH      *handler.WebhookHandler
	identityH     *handler.IdentityHandler
	billingH      *handler.BillingHandler
	plansH        *handler.PlansHandler
	profileH      *handler.ProfileHandler
	syncH         *handler.SyncHandler
	cfg           Config
	logger        *slog.Logger
	rateLimiter   *middleware.RateLimiter
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	users := store.NewUserStore(db)
	products := store.NewProductStore(db)
	subscriptions := store.NewSubscriptionStore(db)

	var stripeClient *substripe.Client
	if cfg.Stripe.SecretKey != "" {
		stripeClient = substripe.NewClient(cfg.Stripe)
	}

	var pc provider.Client
	if stripeClient != nil {
		pc = stripeClient
	}
	engine := reconcile.NewEngine(pc, users, products, subscriptions, logger.With("component", "reconcile"))

	s := &Server{
		db:            db,
		users:         users,
		products:      products,
		subscriptions: subscriptions,
		engine:        engine,
		stripeClient:  stripeClient,
		identityH:     handler.NewIdentityHandler(users, cfg.IdentitySecret, logger.With("component", "identity")),
		profileH:      handler.NewProfileHandler(users, logger.With("component", "profile")),
		syncH:         handler.NewSyncHandler(engine, logger.With("component", "sync")),
		cfg:           cfg,
		logger:        logger,
		rateLimiter:   middleware.NewRateLimiter(),
	}
	if stripeClient != nil {
		s.webhookH = handler.NewWebhookHandler(stripeClient, engine, logger.With("component", "webhook"))
		s.billingH = handler.NewBillingHandler(stripeClient, users, subscriptions, engine, logger.With("component", "billing"))
		s.plansH = handler.NewPlansHandler(products, stripeClient, logger.With("component", "plans"))
	}
	return s
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	// Provider-pushed webhooks (public, signature-verified)
	mux.HandleFunc("POST /api/webhooks/identity", s.identityH.HandleIdentityWebhook)
	if s.webhookH != nil {
		mux.HandleFunc("POST /api/webhooks/stripe", s.webhookH.HandleStripeWebhook)
	}

	// Public plan catalog, used by the pricing page
	if s.plansH != nil {
		mux.HandleFunc("GET /api/products", s.plansH.List)
	}

	// Authenticated user API
	authMw := middleware.RequireUser(s.users, s.cfg.JWTSecret)
	mux.Handle("GET /api/profile", authMw(http.HandlerFunc(s.profileH.Get)))
	mux.Handle("PUT /api/profile", authMw(s.rateLimited(s.profileH.Update)))

	if s.billingH != nil {
		mux.Handle("GET /api/subscription", authMw(http.HandlerFunc(s.billingH.GetSubscription)))
		mux.Handle("POST /api/subscription/cancel", authMw(http.HandlerFunc(s.billingH.CancelSubscription)))
		mux.Handle("POST /api/checkout", authMw(http.HandlerFunc(s.billingH.CreateCheckoutSession)))
		mux.Handle("POST /api/billing-portal", authMw(http.HandlerFunc(s.billingH.BillingPortal)))
	}

	// Admin sync surface; needs a configured provider to compare against
	if s.stripeClient != nil {
		adminMw := middleware.RequireAdmin(s.cfg.AdminToken)
		mux.Handle("GET /api/admin/sync-stripe", adminMw(http.HandlerFunc(s.syncH.Status)))
		mux.Handle("POST /api/admin/sync-stripe", adminMw(s.rateLimited(s.syncH.Run)))
	}

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return rl(h)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

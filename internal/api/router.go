package api

import (
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
)

// NewRouter wires all storefront routes. Webhook routes are mounted without
// any auth middleware; their authentication is the provider signature.
func NewRouter(
	handlers *Handlers,
	authHandlers *AuthHandlers,
	checkoutHandlers *CheckoutHandlers,
	webhookHandlers *WebhookHandlers,
	jwtService *auth.JWTService,
) http.Handler {
	mux := http.NewServeMux()

	requireAuth := middleware.AuthMiddleware(jwtService)
	optionalAuth := middleware.OptionalAuthMiddleware(jwtService)
	requireAdmin := func(h http.Handler) http.Handler {
		return requireAuth(middleware.RequireAdmin(h))
	}

	// Products
	mux.Handle("/products", optionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetProducts(w, r)
		case http.MethodPost:
			requireAdmin(http.HandlerFunc(handlers.CreateProduct)).ServeHTTP(w, r)
		default:
			respondJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/products/", optionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetProduct(w, r)
		case http.MethodPut:
			requireAdmin(http.HandlerFunc(handlers.UpdateProduct)).ServeHTTP(w, r)
		case http.MethodDelete:
			requireAdmin(http.HandlerFunc(handlers.DeleteProduct)).ServeHTTP(w, r)
		default:
			respondJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Auth
	mux.HandleFunc("/auth/register", postOnly(authHandlers.Register))
	mux.HandleFunc("/auth/login", postOnly(authHandlers.Login))
	mux.HandleFunc("/auth/logout", postOnly(authHandlers.Logout))
	mux.HandleFunc("/auth/refresh", postOnly(authHandlers.Refresh))
	mux.HandleFunc("/auth/forgot-password", postOnly(authHandlers.ForgotPassword))
	mux.HandleFunc("/auth/reset-password", postOnly(authHandlers.ResetPassword))
	mux.Handle("/auth/me", requireAuth(http.HandlerFunc(authHandlers.Me)))
	mux.Handle("/auth/change-password", requireAuth(http.HandlerFunc(postOnly(authHandlers.ChangePassword))))

	// Checkout
	mux.Handle("/checkout/stripe", requireAuth(http.HandlerFunc(postOnly(checkoutHandlers.StripeCheckout))))
	mux.Handle("/checkout/square", requireAuth(http.HandlerFunc(postOnly(checkoutHandlers.SquareCheckout))))

	// Webhooks
	mux.HandleFunc("/webhooks/stripe", postOnly(webhookHandlers.StripeWebhook))
	mux.HandleFunc("/webhooks/square", postOnly(webhookHandlers.SquareWebhook))

	// Orders
	mux.Handle("/orders", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handlers.GetOrders(w, r)
	})))

	mux.Handle("/orders/", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/inventory") && r.Method == http.MethodPost:
			middleware.RequireAdmin(http.HandlerFunc(handlers.ApplyInventory)).ServeHTTP(w, r)
		case r.Method == http.MethodPut:
			middleware.RequireAdmin(http.HandlerFunc(handlers.UpdateOrder)).ServeHTTP(w, r)
		case r.Method == http.MethodGet:
			handlers.GetOrder(w, r)
		default:
			respondJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Shipping
	mux.Handle("/shipping/rates", requireAdmin(http.HandlerFunc(postOnly(handlers.GetShippingRates))))
	mux.Handle("/shipping/label", requireAdmin(http.HandlerFunc(postOnly(handlers.BuyShippingLabel))))

	return withLogging(mux)
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

package api

import (
	"net"
	"net/http"

	"github.com/Waesta/Wapos-sub011/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func (app *Application) routes() http.Handler {
	mux := chi.NewRouter()

	// --- Global middlewares ---
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Sync-Request", "If-None-Match"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	mux.Use(app.Logger)
	mux.Use(app.RateLimit(nil))

	// --- Authentication ---
	mux.Post("/api/v1/signin", app.Handlers.Auth.Signin)

	// --- Health check ---
	// Connectivity monitors on deployed clients probe this route.
	mux.Get("/api/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ip := "unknown"
		if conn, err := net.Dial("udp", "1.1.1.1:80"); err == nil {
			defer conn.Close()
			ip = conn.LocalAddr().(*net.UDPAddr).IP.String()
		}
		resp := map[string]interface{}{
			"status":    "live",
			"server_ip": ip,
		}
		utils.WriteJSON(w, http.StatusOK, resp)
	})

	// --- Protected Routes ---
	protected := chi.NewRouter()
	if app.config.JWT.SecretKey != "" {
		protected.Use(app.AuthUser)
		protected.Use(app.RequireCSRF)
	}

	protected.Route("/api/v1", func(r chi.Router) {
		// -------------------- Sync Ingestion Routes --------------------
		// Queued mutations land here. 201 created, 200 duplicate replay,
		// 422 rejected for manual resolution.
		r.Post("/sales", app.Handlers.Sale.AddSale)
		r.Post("/orders", app.Handlers.Order.AddOrder)
		r.Post("/customers", app.Handlers.Customer.AddCustomer)

		// -------------------- Delta Feed Routes --------------------
		// Example: GET /api/v1/sales?since=2026-08-31T10:00:00Z&limit=50
		r.Get("/sales", app.Handlers.Feed.GetSales)
		r.Get("/sales/{id}", app.Handlers.Sale.GetSaleByID)
		r.Get("/orders/{id}", app.Handlers.Order.GetOrderByID)

		// -------------------- Reference Data Routes --------------------
		// Clients cache these wholesale for offline operation.
		r.Get("/products", app.Handlers.Product.GetProductsHandler)
		r.Get("/categories", app.Handlers.Product.GetCategoriesHandler)
		r.Get("/customers", app.Handlers.Customer.GetCustomers)

		// -------------------- Journal Routes --------------------
		// Example: GET /api/v1/journal?source=sale&source_id=42
		r.Get("/journal", app.Handlers.Journal.ListJournal)
	})

	// Mount protected routes
	mux.Mount("/", protected)

	return mux
}

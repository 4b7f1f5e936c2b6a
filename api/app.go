package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Waesta/Wapos-sub011/api/handlers"
	"github.com/Waesta/Wapos-sub011/internal/dbrepo"
	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers behind the router.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Sale     *handlers.SaleHandler
	Feed     *handlers.FeedHandler
	Order    *handlers.OrderHandler
	Customer *handlers.CustomerHandler
	Product  *handlers.ProductHandler
	Journal  *handlers.JournalHandler
}

type Application struct {
	config   models.Config
	logger   *zap.Logger
	Handlers Handlers
}

// NewApplication wires repositories and handlers onto the shared pool.
func NewApplication(cfg models.Config, db *pgxpool.Pool, logger *zap.Logger) *Application {
	saleRepo := dbrepo.NewSaleRepo(db)

	return &Application{
		config: cfg,
		logger: logger,
		Handlers: Handlers{
			Auth:     handlers.NewAuthHandler(dbrepo.NewUserRepo(db), cfg.JWT, logger),
			Sale:     handlers.NewSaleHandler(saleRepo, logger),
			Feed:     handlers.NewFeedHandler(saleRepo, logger),
			Order:    handlers.NewOrderHandler(dbrepo.NewOrderRepo(db), logger),
			Customer: handlers.NewCustomerHandler(dbrepo.NewCustomerRepo(db), logger),
			Product:  handlers.NewProductHandler(dbrepo.NewProductRepo(db), logger),
			Journal:  handlers.NewJournalHandler(dbrepo.NewJournalRepo(db), logger),
		},
	}
}

// Serve runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (app *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         app.config.Addr,
		Handler:      app.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", zap.String("addr", app.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"github.com/mcosolutions20/historical-stocks/src/auth"
	"github.com/mcosolutions20/historical-stocks/src/handler"
	"github.com/mcosolutions20/historical-stocks/src/portfolio"
	"github.com/mcosolutions20/historical-stocks/src/repository"
)

type Deps struct {
	AuthConfig auth.Config
	Users      *repository.UserRepository
	Engine     *portfolio.Service
}

// NewRouter builds the full route tree. Split out from StartServer so
// tests can drive it with httptest.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})

	// Public routes
	r.Post("/auth/register", handler.RegisterHandler(deps.Users))
	r.Post("/auth/login", handler.LoginHandler(deps.AuthConfig, deps.Users))

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.AuthConfig, deps.Users))

		r.Get("/auth/me", handler.MeHandler())
		r.Post("/auth/change-password", handler.ChangePasswordHandler(deps.Users))

		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", handler.ListPortfoliosHandler(deps.Engine))
			r.Post("/", handler.CreatePortfolioHandler(deps.Engine))

			r.Route("/{portfolioID}", func(r chi.Router) {
				r.Get("/", handler.PortfolioDetailHandler(deps.Engine))
				r.Put("/", handler.UpdatePortfolioHandler(deps.Engine))
				r.Delete("/", handler.DeletePortfolioHandler(deps.Engine))

				r.Get("/valuation", handler.ValuationHandler(deps.Engine))
				r.Post("/rebalance", handler.RebalanceHandler(deps.Engine))
				r.Get("/performance", handler.PerformanceHandler(deps.Engine))
				r.Get("/performance/export", handler.PerformanceExportHandler(deps.Engine))

				r.Get("/transactions", handler.ListTransactionsHandler(deps.Engine))
				r.Post("/transactions", handler.CreateTransactionHandler(deps.Engine))
				r.Get("/transactions/export", handler.TransactionsExportHandler(deps.Engine))
				r.Post("/transactions/import", handler.TransactionsImportHandler(deps.Engine))
			})
		})

		r.Route("/transactions/{transactionID}", func(r chi.Router) {
			r.Put("/", handler.UpdateTransactionHandler(deps.Engine))
			r.Delete("/", handler.DeleteTransactionHandler(deps.Engine))
		})
	})

	return r
}

func StartServer(port string, deps Deps) {
	r := NewRouter(deps)

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	cataloghandler "github.com/medikart/medikart-backend/internal/catalog/handler"
	catalogrepo "github.com/medikart/medikart-backend/internal/catalog/repository"
	invhandler "github.com/medikart/medikart-backend/internal/inventory/handler"
	invrepo "github.com/medikart/medikart-backend/internal/inventory/repository"
	invservice "github.com/medikart/medikart-backend/internal/inventory/service"
	purchasingevents "github.com/medikart/medikart-backend/internal/purchasing/events"
	purchasinghandler "github.com/medikart/medikart-backend/internal/purchasing/handler"
	purchasingrepo "github.com/medikart/medikart-backend/internal/purchasing/repository"
	purchasingservice "github.com/medikart/medikart-backend/internal/purchasing/service"
	reportinghandler "github.com/medikart/medikart-backend/internal/reporting/handler"
	reportingrepo "github.com/medikart/medikart-backend/internal/reporting/repository"
	reportingservice "github.com/medikart/medikart-backend/internal/reporting/service"
	salesevents "github.com/medikart/medikart-backend/internal/sales/events"
	saleshandler "github.com/medikart/medikart-backend/internal/sales/handler"
	salesrepo "github.com/medikart/medikart-backend/internal/sales/repository"
	salesservice "github.com/medikart/medikart-backend/internal/sales/service"
	storefronthandler "github.com/medikart/medikart-backend/internal/storefront/handler"
	storefrontservice "github.com/medikart/medikart-backend/internal/storefront/service"
	"github.com/medikart/medikart-backend/pkg/config"
	"github.com/medikart/medikart-backend/pkg/database"
	"github.com/medikart/medikart-backend/pkg/httputil"
	"github.com/medikart/medikart-backend/pkg/logger"
	"github.com/medikart/medikart-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("retail-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("retail-service", cfg.Server.Environment)
	log.Info().Msg("starting Retail Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// RabbitMQ is optional for a single-store deployment: without a broker
	// the publishers stay nil and every event is dropped
	var rmq *messaging.RabbitMQ
	var salesPublisher *salesevents.SalesEventPublisher
	var purchasingPublisher *purchasingevents.PurchasingEventPublisher
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		salesPublisher, err = salesevents.NewSalesEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create sales event publisher")
		}

		purchasingPublisher, err = purchasingevents.NewPurchasingEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create purchasing event publisher")
		}
	} else {
		log.Info().Msg("RabbitMQ disabled, events will not be published")
	}

	// Repositories
	medicineRepo := catalogrepo.NewMedicineRepository(db)
	supplierRepo := catalogrepo.NewSupplierRepository(db)
	customerRepo := catalogrepo.NewCustomerRepository(db)
	batchRepo := invrepo.NewBatchRepository(db)
	billRepo := purchasingrepo.NewBillRepository(db)
	purchaseReturnRepo := purchasingrepo.NewPurchaseReturnRepository(db)
	saleRepo := salesrepo.NewSaleRepository(db)
	saleReturnRepo := salesrepo.NewSaleReturnRepository(db)
	reportRepo := reportingrepo.NewReportRepository(db)

	// Services
	allocator := invservice.NewAllocator(batchRepo, medicineRepo, log)
	purchasingService := purchasingservice.NewPurchasingService(
		db, billRepo, purchaseReturnRepo, batchRepo, medicineRepo, allocator, purchasingPublisher, log)
	salesService := salesservice.NewSalesService(
		db, saleRepo, saleReturnRepo, medicineRepo, allocator, &cfg.Store, salesPublisher, log)
	checkoutService := storefrontservice.NewCheckoutService(medicineRepo, salesService, &cfg.Store, log)
	reportService := reportingservice.NewReportService(reportRepo, batchRepo, saleRepo, &cfg.Store, log)

	// Handlers
	medicineHandler := cataloghandler.NewMedicineHandler(medicineRepo, log)
	supplierHandler := cataloghandler.NewSupplierHandler(supplierRepo, log)
	customerHandler := cataloghandler.NewCustomerHandler(customerRepo, log)
	stockHandler := invhandler.NewStockHandler(batchRepo, log)
	purchasingHandler := purchasinghandler.NewPurchasingHandler(purchasingService, log)
	salesHandler := saleshandler.NewSalesHandler(salesService, log)
	storefrontHandler := storefronthandler.NewStorefrontHandler(checkoutService, log)
	dashboardHandler := reportinghandler.NewDashboardHandler(reportService, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			return strings.HasSuffix(origin, ".medikart.in") || origin == "https://medikart.in"
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  "retail-service",
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", medicineHandler.List)
			r.Post("/", medicineHandler.Create)
			r.Get("/{id}", medicineHandler.Get)
			r.Put("/{id}", medicineHandler.Update)
			r.Delete("/{id}", medicineHandler.Delete)
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", supplierHandler.List)
			r.Post("/", supplierHandler.Create)
			r.Get("/{id}", supplierHandler.Get)
			r.Put("/{id}", supplierHandler.Update)
			r.Delete("/{id}", supplierHandler.Delete)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", customerHandler.List)
			r.Post("/", customerHandler.Create)
			r.Get("/{id}", customerHandler.Get)
			r.Put("/{id}", customerHandler.Update)
			r.Delete("/{id}", customerHandler.Delete)
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", purchasingHandler.ListBills)
			r.Post("/", purchasingHandler.CreateBill)
			r.Get("/{id}", purchasingHandler.GetBill)
			r.Delete("/{id}", purchasingHandler.DeleteBill)
		})

		r.Route("/purchase-returns", func(r chi.Router) {
			r.Get("/", purchasingHandler.ListReturns)
			r.Post("/", purchasingHandler.CreateReturn)
			r.Delete("/{id}", purchasingHandler.DeleteReturn)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", salesHandler.List)
			r.Post("/", salesHandler.Create)
			r.Get("/{id}", salesHandler.Get)
			r.Delete("/{id}", salesHandler.Delete)
		})

		r.Route("/sale-returns", func(r chi.Router) {
			r.Get("/", salesHandler.ListReturns)
			r.Post("/", salesHandler.CreateReturn)
			r.Delete("/{id}", salesHandler.DeleteReturn)
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/batches/{medicineID}", stockHandler.ListBatches)
			r.Get("/check/{medicineID}/{batchNo}", stockHandler.CheckBatch)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/dashboard", dashboardHandler.Dashboard)
			r.Get("/stock", dashboardHandler.StockReport)
			r.Get("/low-stock", dashboardHandler.LowStock)
			r.Get("/expiring", dashboardHandler.Expiring)
			r.Get("/expired", dashboardHandler.Expired)
		})

		r.Route("/storefront", func(r chi.Router) {
			r.Get("/products", storefrontHandler.ListProducts)
			r.Get("/promo/{code}", storefrontHandler.ValidatePromo)
			r.Post("/checkout", storefrontHandler.Checkout)
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

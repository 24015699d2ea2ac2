package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-marketplace-api/config"
	"food-marketplace-api/handlers"
	"food-marketplace-api/queue"
	"food-marketplace-api/routes"
	"food-marketplace-api/store"
	"food-marketplace-api/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type application struct {
	config       config.Config
	logger       *zap.SugaredLogger
	storage      *store.Storage
	broker       queue.Broker
	ledgerWorker *worker.LedgerRetryWorker
	handler      *handlers.Handler
}

func (app *application) mount() http.Handler {
	if app.config.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router with default middleware (logger + recovery)
	r := gin.Default()

	// CORS middleware for frontend integration
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(app.config.CORSOrigins) == 0 || app.config.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = app.config.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	// Uploaded restaurant and menu images
	r.Static("/uploads", app.config.UploadDir)

	r.GET("/health", app.healthCheckHandler)

	// Welcome
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to the Food Marketplace API",
			"docs":    "/api/state-machine",
			"health":  "/health",
			"roles":   []string{"customer", "admin"},
		})
	})

	routes.SetupRoutes(r, app.handler)
	return r
}

func (app *application) healthCheckHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := app.storage.Ping(ctx); err != nil {
		app.logger.Warnw("health check: database unreachable", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": "Food Marketplace API",
		"env":     app.config.Env,
		"version": version,
	})
}

func (app *application) run(mux http.Handler) error {
	// workers
	if app.ledgerWorker != nil {
		if err := app.ledgerWorker.Start(); err != nil {
			return fmt.Errorf("failed to start ledger retry worker: %w", err)
		}
	}

	srv := &http.Server{
		Addr:         ":" + app.config.Port,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		if app.ledgerWorker != nil {
			app.ledgerWorker.Stop()
		}

		err := srv.Shutdown(ctx)

		if app.broker != nil {
			if err := app.broker.Close(); err != nil {
				app.logger.Errorw("error closing broker", "error", err)
			} else {
				app.logger.Info("broker closed gracefully")
			}
		}

		if app.storage != nil {
			if err := app.storage.Close(); err != nil {
				app.logger.Errorw("error closing database", "error", err)
			} else {
				app.logger.Info("database connection closed gracefully")
			}
		}

		shutdown <- err
	}()

	app.logger.Infow("server has started", "addr", srv.Addr, "env", app.config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", srv.Addr, "env", app.config.Env)

	return nil
}

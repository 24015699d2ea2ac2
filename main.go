package main

import (
	"log"

	"food-marketplace-api/blob"
	"food-marketplace-api/config"
	"food-marketplace-api/handlers"
	"food-marketplace-api/middleware"
	"food-marketplace-api/queue"
	"food-marketplace-api/services"
	"food-marketplace-api/store"
	"food-marketplace-api/worker"

	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// logger
	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// storage
	db, err := config.OpenDB(cfg)
	if err != nil {
		logger.Fatalw("failed to open database", "error", err)
	}
	storage := store.New(db)
	logger.Info("database connected and migrated")

	// restaurant type catalogue
	types := config.DefaultRestaurantTypes()
	if cfg.RestaurantTypesFile != "" {
		types, err = config.LoadRestaurantTypes(cfg.RestaurantTypesFile)
		if err != nil {
			logger.Fatalw("failed to load restaurant types", "file", cfg.RestaurantTypesFile, "error", err)
		}
	}

	// image storage
	blobs, err := blob.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
	if err != nil {
		logger.Fatalw("failed to prepare upload directory", "dir", cfg.UploadDir, "error", err)
	}

	// broker
	broker := newBroker(cfg, logger)

	// services
	accounts := services.NewAccountService(storage, cfg.AdminEmails, logger)
	catalog := services.NewCatalogService(storage, blobs, types, logger)
	nutrition := services.NewNutritionService(storage, types.GoGreen, cfg.CalorieLocation, logger)
	orders := services.NewOrderService(storage, nutrition, broker, cfg.CalorieLocation, logger)
	favorites := services.NewFavoritesService(storage, logger)
	reviews := services.NewReviewService(storage, catalog.NotifyRestaurantsChanged, logger)

	ledgerWorker := worker.NewLedgerRetryWorker(nutrition, broker, logger)

	app := &application{
		config:       cfg,
		logger:       logger,
		storage:      storage,
		broker:       broker,
		ledgerWorker: ledgerWorker,
		handler: &handlers.Handler{
			Accounts:  accounts,
			Catalog:   catalog,
			Orders:    orders,
			Favorites: favorites,
			Reviews:   reviews,
			Nutrition: nutrition,
			Auth:      middleware.NewAuth(cfg.JWTSecret, cfg.JWTTTL, accounts),
			Logger:    logger,
		},
	}

	if err := app.run(app.mount()); err != nil {
		logger.Fatalw("server failed", "error", err)
	}
}

// newBroker connects to RabbitMQ when configured and falls back to the in-memory broker.
func newBroker(cfg config.Config, logger *zap.SugaredLogger) queue.Broker {
	qcfg := queue.Config{
		URL:           cfg.RabbitMQURL,
		MaxRetries:    cfg.QueueRetries,
		RetryDelay:    cfg.QueueDelay,
		PrefetchCount: cfg.QueuePrefetch,
	}
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set, using in-memory broker")
		return queue.NewMemoryBroker(qcfg)
	}
	broker, err := queue.NewRabbitMQBroker(qcfg, logger)
	if err != nil {
		logger.Fatalw("failed to connect to RabbitMQ", "error", err)
	}
	logger.Info("connected to RabbitMQ")
	return broker
}

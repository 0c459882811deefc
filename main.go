// File: pawboard/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pawboard/config"
	"pawboard/cron"
	"pawboard/database"
	"pawboard/database/repository"
	"pawboard/database/repository/daycache"
	gardenRepo "pawboard/database/repository/garden"
	groomingRepo "pawboard/database/repository/grooming"
	"pawboard/handlers"
	"pawboard/middleware"
	"pawboard/routes"
	"pawboard/services/board"
	"pawboard/services/notification"
	"pawboard/services/reminder"
	"pawboard/services/timeline"
	"pawboard/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	loc := config.FacilityLocation()
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// stores.
	if err := database.InitDB(logger); err != nil {
		logger.Fatal("main: grooming store unavailable", zap.Error(err))
	}
	groomRepo := groomingRepo.NewMongoGroomingRepo(config.AppConfig.MongoDBName)
	if err := groomRepo.EnsureIndexes(); err != nil {
		logger.Warn("main: failed to ensure grooming indexes", zap.Error(err))
	}

	gardenDB, err := gardenRepo.NewDB(rootCtx, config.AppConfig.GardenDatabaseDSN)
	if err != nil {
		logger.Fatal("main: garden store unavailable", zap.Error(err))
	}
	defer gardenDB.Close()
	if err := gardenDB.EnsureSchema(rootCtx); err != nil {
		logger.Fatal("main: failed to ensure garden schema", zap.Error(err))
	}
	gardRepo := gardenRepo.NewGardenRepository(gardenDB)

	cacheClient := utils.GetCacheClient()
	utils.StartHealthMonitor([]*redis.Client{cacheClient, utils.GetQueueClient()}, database.MongoClient, gardenDB.DB)

	gateway := repository.NewBookingGateway(groomRepo, gardRepo, loc, logger)
	dayCache := daycache.NewDayCache(cacheClient, gateway, config.DayCacheTTL(), logger)

	// post-commit reminders.
	queue := asynq.NewClient(cron.QueueRedisOpt())
	defer queue.Close()
	inspector := asynq.NewInspector(cron.QueueRedisOpt())
	defer inspector.Close()
	hook := reminder.NewHook(queue, inspector, config.ReminderLead(), loc, logger)

	notifSvc, err := notification.NewDefaultNotificationService(cacheClient, logger)
	if err != nil {
		logger.Fatal("main: failed to initialize notification service", zap.Error(err))
	}
	worker := cron.InitReminderWorker(notifSvc, logger)
	defer worker.Shutdown()

	// board.
	zoom, err := timeline.ParseZoom(config.AppConfig.DefaultZoom)
	if err != nil {
		logger.Warn("main: invalid DEFAULT_ZOOM, using comfortable", zap.Error(err))
		zoom = timeline.ZoomComfortable
	}
	tagBus := board.NewRedisTagBus(cacheClient, logger)
	b := board.NewBoard(board.Dependencies{
		Fetcher:   dayCache,
		Mutator:   gateway,
		Hook:      hook,
		Publisher: board.Publishers{dayCache, tagBus},
	}, board.Config{
		Location:        loc,
		DayStartHour:    config.AppConfig.DayStartHour,
		DayEndHour:      config.AppConfig.DayEndHour,
		IntervalMinutes: config.AppConfig.IntervalMinutes,
		MinRowHeightPx:  float64(config.AppConfig.MinRowHeightPx),
		Zoom:            zoom,
		RefreshOnCommit: config.AppConfig.RefreshOnCommit,
	}, logger)
	defer b.Drain()

	today := time.Now().In(loc).Format("2006-01-02")
	loadCtx, cancelLoad := context.WithTimeout(rootCtx, 10*time.Second)
	if err := b.Load(loadCtx, today); err != nil {
		logger.Error("main: failed to load today's board", zap.String("date", today), zap.Error(err))
	}
	cancelLoad()

	go logBoardEvents(rootCtx, b, logger)
	go func() {
		err := tagBus.Subscribe(rootCtx, func(tags []string) {
			b.Invalidate(tags...)
		})
		if err != nil && rootCtx.Err() == nil {
			logger.Error("main: tag subscription ended", zap.Error(err))
		}
	}()

	refreshCron, err := cron.StartRefreshCron(config.AppConfig.RefreshCron, b, loc, logger)
	if err != nil {
		logger.Fatal("main: invalid REFRESH_CRON", zap.Error(err))
	}
	defer refreshCron.Stop()

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(config.AppConfig.TrustedProxies); err != nil {
		logger.Fatal("main: invalid TRUSTED_PROXIES", zap.Error(err))
	}
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin, logger))

	routes.RegisterRoutes(router, handlers.NewBoardHandler(b, loc))

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	if err := database.CloseDB(ctx); err != nil {
		logger.Warn("main: failed to disconnect mongo", zap.Error(err))
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

// logBoardEvents keeps the board's event channel drained and surfaces
// failures in the service log.
func logBoardEvents(ctx context.Context, b *board.Board, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.Events():
			switch ev.Type {
			case board.EventMutationFailed, board.EventRefreshFailed:
				logger.Warn("Board event", zap.String("type", string(ev.Type)), zap.String("entryId", ev.EntryID), zap.String("message", ev.Message), zap.Error(ev.Err))
			case board.EventBulkSettled:
				if ev.Bulk == nil {
					continue
				}
				logger.Info("Board event", zap.String("type", string(ev.Type)), zap.String("entryId", ev.EntryID), zap.String("message", ev.Bulk.Message()))
			default:
				logger.Debug("Board event", zap.String("type", string(ev.Type)), zap.String("date", ev.Date), zap.String("entryId", ev.EntryID))
			}
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"physiotrack-backend/config"
	"physiotrack-backend/internal/api"
	"physiotrack-backend/internal/bridge"
	"physiotrack-backend/internal/catalog"
	"physiotrack-backend/internal/countdown"
	"physiotrack-backend/internal/db"
	"physiotrack-backend/internal/logging"
	"physiotrack-backend/internal/manager"
	"physiotrack-backend/internal/notification"
	"physiotrack-backend/internal/session"
	"physiotrack-backend/internal/store"
	"physiotrack-backend/internal/syncer"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "physiotrackd")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath), zap.Int("beds", cfg.Beds.Count))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gormDB *gorm.DB
	if cfg.Database.Enabled {
		gormDB, err = db.Init(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
	}

	var cat catalog.Catalog = catalog.NewStatic(catalog.DefaultPresets()...)
	if gormDB != nil {
		cat = catalog.NewGormCatalog(gormDB, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second, logger)
	}

	local := store.NewDiskvLocal(cfg.Sync.LocalPath, cfg.Sync.StorageKey)
	remote, closeRemote := newRemote(ctx, cfg, gormDB, logger)
	defer closeRemote()

	beds := syncer.New(local, remote, syncer.Options{
		BedCount:          cfg.Beds.Count,
		SuppressionWindow: cfg.Sync.SuppressionWindow,
		ZombieMaxAge:      cfg.Sync.ZombieMaxAge,
		WriteQueueSize:    cfg.Sync.WriteQueueSize,
	}, logger)
	if err := beds.Load(); err != nil {
		logger.Error("starting with fresh beds", zap.Error(err))
	}
	go beds.Run(ctx)

	policy, err := session.SchedulerFor(cfg.Session.Scheduling)
	if err != nil {
		logger.Fatal("invalid session config", zap.Error(err))
	}
	mgr := manager.New(beds, session.NewCommands(cat, policy), cat, logger)

	sinks := countdown.Sinks{countdown.NewLogSink(logger)}

	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	switch {
	case cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "":
		logger.Warn("VAPID keys are not configured, push notifications disabled")
		webpushOptions = nil
	case gormDB == nil:
		logger.Warn("push notifications need a database, disabled")
	default:
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.Beds.TractionBed, gormDB, webpushOptions, logger)
		pool.Start(ctx)
		sinks = append(sinks, pool)
	}

	if cfg.MQTT.Enabled {
		client, err := bridge.Dial(&cfg.MQTT, logger)
		if err != nil {
			logger.Error("mqtt bridge disabled", zap.Error(err))
		} else {
			defer client.Disconnect()
			b := bridge.New(client, mgr, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger)
			go func() {
				if err := b.Start(ctx); err != nil {
					logger.Error("mqtt bridge stopped", zap.Error(err))
				}
			}()
			sinks = append(sinks, b)
		}
	}

	prefs := countdown.NewPreferences(cfg.Alarm.SoundEnabled)
	driver := countdown.NewDriver(beds, cat, sinks, prefs, cfg.Session.Tick, logger)
	go driver.Run(ctx)

	listener := syncer.NewListener(beds, remote, logger)
	go listener.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Beds:    mgr,
		Catalog: cat,
		Prefs:   prefs,
		Sync:    listener,
		DB:      gormDB,
		Webpush: webpushOptions,
		Logger:  logger,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, cfg.Server, logger),
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}

// newRemote picks the remote store: the database with a Redis or polling
// change feed, or Offline when no database is configured.
func newRemote(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, logger *zap.Logger) (store.RemoteStore, func()) {
	if gormDB == nil {
		logger.Info("no database configured, running local-only")
		return store.Offline{}, func() {}
	}

	if !cfg.Redis.Enabled {
		logger.Info("redis disabled, polling the database for remote changes", zap.Duration("interval", cfg.Sync.PollInterval))
		return store.NewGormRemote(gormDB, store.NewPollFeed(gormDB, cfg.Sync.PollInterval, logger), logger), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, the listener will keep retrying", zap.Error(err))
	}
	feed := store.NewRedisFeed(client, cfg.Redis.Channel, logger)
	return store.NewGormRemote(gormDB, feed, logger), func() { client.Close() }
}

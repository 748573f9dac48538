package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vitalwatch-data/internal/config"
	"vitalwatch-data/internal/database"
	httpapi "vitalwatch-data/internal/http"
	"vitalwatch-data/internal/logger"
	"vitalwatch-data/internal/metrics"
	"vitalwatch-data/internal/mqtt"
	"vitalwatch-data/internal/repository"
	"vitalwatch-data/internal/service"
	"vitalwatch-data/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "vitalwatch-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	metrics.Init()

	// Redis 不可用时回退到进程内 KV（联调友好）
	var kv store.KV
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err == nil {
		kv = store.NewRedisKV(redisClient)
		log.Info("Redis enabled for vitalwatch-data")
	} else {
		log.Warn("Redis unavailable, falling back to in-memory KV", zap.Error(err))
		kv = store.NewMemoryKV()
	}

	var db *sql.DB
	var devicesRepo repository.DevicesRepository
	var readingsRepo repository.ReadingsRepository
	var recordsRepo repository.HealthRecordsRepository
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for vitalwatch-data")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}
	if db != nil {
		devicesRepo = repository.NewPostgresDevicesRepo(db)
		readingsRepo = repository.NewPostgresReadingsRepo(db, log)
		recordsRepo = repository.NewPostgresHealthRecordsRepo(db)
	} else {
		memReadings := repository.NewMemoryReadingsRepo()
		devicesRepo = repository.NewMemoryDevicesRepo()
		readingsRepo = memReadings
		recordsRepo = memReadings
	}

	ingestSvc := service.NewIngestService(
		devicesRepo, readingsRepo, kv,
		time.Duration(cfg.Monitor.SnapshotTTLSec)*time.Second,
		log,
	)
	monitorSvc := service.NewMonitorService(
		devicesRepo, readingsRepo, recordsRepo, kv,
		time.Duration(cfg.Monitor.ConnThresholdSec)*time.Second,
		cfg.Monitor.RecordsDefaultLimit,
		cfg.Monitor.RecordsMaxLimit,
		log,
	)

	router := httpapi.NewRouter(log)
	router.RegisterIngestRoutes(httpapi.NewIngestHandler(ingestSvc, log))
	router.RegisterMonitorRoutes(httpapi.NewMonitorHandler(monitorSvc, log))
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(monitorSvc, log))
	router.RegisterOpsRoutes(metrics.Handler())

	// 可选 MQTT 遥测通道（与 HTTP ingest 同一消息体）
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		c, err := mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Warn("MQTT enabled but connection failed, telemetry is HTTP-only", zap.Error(err))
		} else {
			mqttClient = c
			broker := mqtt.NewTelemetryBroker(ingestSvc, log)
			if err := c.Subscribe(cfg.MQTT.Topic, cfg.MQTT.QoS, broker.HandleMessage); err != nil {
				log.Error("MQTT subscribe failed", zap.Error(err))
			} else {
				log.Info("MQTT telemetry channel enabled", zap.String("topic", cfg.MQTT.Topic))
			}
		}
	}

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server exited", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}

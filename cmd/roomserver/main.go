package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"meandu-go/internal/auth"
	"meandu-go/internal/config"
	"meandu-go/internal/handlers/roomserver"
	appKafka "meandu-go/internal/kafka"
	kafkahandlers "meandu-go/internal/kafka/handlers"
	"meandu-go/internal/logging"
	appRedis "meandu-go/internal/redis"
	"meandu-go/internal/services"
	"meandu-go/internal/storage"
	"meandu-go/internal/websocket"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig(os.Getenv("MEANDU_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	log.Info().Str("app", cfg.AppName).Str("version", cfg.AppVersion).Msg("[main] relay config loaded")

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("[main] init database")
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatal().Err(err).Msg("[main] migrate tables")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Redis 是可选的: 历史缓存与 token 黑名单
	var (
		cache     services.HistoryCache
		blacklist auth.TokenBlacklist
	)
	if cfg.Redis.Enabled {
		redisClient, err := appRedis.NewClient(rootCtx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("[main] connect redis")
		}
		defer redisClient.Close()
		cache = appRedis.NewHistoryCache(redisClient, cfg.Redis.HistoryTTL)
		blacklist = appRedis.NewRedisTokenBlacklist(redisClient)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("[main] redis enabled")
	}

	// 4. 启动 Hub
	hub := websocket.NewHub()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(rootCtx)
	}()

	// 5. 帧转发: 单实例直接投递, 多实例经 Kafka
	relay := services.NewDirectRelay(hub)
	if cfg.Kafka.Enabled {
		producer, err := appKafka.NewRoomFrameProducer(cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("[main] create kafka producer")
		}
		defer producer.Close()

		consumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("[main] create kafka consumer")
		}
		defer consumer.Close()

		// every instance needs every frame, so each gets its own group
		groupID := cfg.Kafka.ConsumerGroup + "-" + uuid.NewString()
		frames := kafkahandlers.NewRoomFrameConsumerLogic(hub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(rootCtx, []string{cfg.Kafka.RoomTopic}, groupID, frames.HandleRoomFrame); err != nil {
				log.Error().Err(err).Msg("[main] room frame consumer stopped")
			}
		}()

		relay = services.NewKafkaRelay(producer)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.RoomTopic).Str("group", groupID).Msg("[main] kafka relay enabled")
	}

	// 6. Services 与 Handlers
	roomService := services.NewRoomService(
		storage.NewGormRoomRepository(db),
		storage.NewGormMessageRepository(db),
		cache,
		relay,
	)
	router := roomserver.NewRouter(
		roomserver.NewRoomHandler(roomService),
		roomserver.NewWebSocketHandler(rootCtx, hub, roomService, cfg.WebSocket),
		cfg,
		blacklist,
	)

	// 7. 启动 HTTP 服务器
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("ws", cfg.Server.WebSocketPath).Bool("auth", cfg.Auth.Required).Msg("[main] relay listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("[main] relay server failed")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("[main] relay shutting down")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("[main] http shutdown")
	}

	cancel()
	wg.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("[main] relay stopped")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	commoncfg "github.com/ericalderman-safeloop/safeloop-care/internal/common/config"
	"github.com/ericalderman-safeloop/safeloop-care/internal/common/database"
	"github.com/ericalderman-safeloop/safeloop-care/internal/common/logger"
	commonmqtt "github.com/ericalderman-safeloop/safeloop-care/internal/common/mqtt"
	commonredis "github.com/ericalderman-safeloop/safeloop-care/internal/common/redis"
	"github.com/ericalderman-safeloop/safeloop-care/internal/config"
	httpapi "github.com/ericalderman-safeloop/safeloop-care/internal/http"
	"github.com/ericalderman-safeloop/safeloop-care/internal/ingest"
	"github.com/ericalderman-safeloop/safeloop-care/internal/realtime"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"
	"github.com/ericalderman-safeloop/safeloop-care/internal/service"
	"github.com/ericalderman-safeloop/safeloop-care/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "safeloop-care")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()
	kv := store.NewRedisKV(redisClient)

	// 变更流（Repository 写入后发布，SSE 与推送分发消费）
	feed := realtime.NewFeed(redisClient, log)

	// Repository
	accountsRepo := repository.NewPostgresAccountsRepo(db)
	usersRepo := repository.NewPostgresUsersRepo(db)
	invitationsRepo := repository.NewPostgresInvitationsRepo(db)
	wearersRepo := repository.NewPostgresWearersRepo(db, feed, log)
	devicesRepo := repository.NewPostgresDevicesRepo(db, feed, log)
	assignmentsRepo := repository.NewPostgresAssignmentsRepo(db)
	helpRequestsRepo := repository.NewPostgresHelpRequestsRepo(db, feed, log)

	// Store
	sessions := store.NewSessionStore(kv, time.Duration(cfg.Auth.SessionTTLHours)*time.Hour)
	pushTokens := store.NewPushTokenStore(kv)

	// Service
	verifier := service.NewIdentityClient(cfg.Auth, log)
	authService := service.NewAuthService(verifier, sessions, log)
	directoryService := service.NewDirectoryService(usersRepo, invitationsRepo, accountsRepo, log)
	invitationService := service.NewInvitationService(invitationsRepo, usersRepo, log)
	wearerService := service.NewWearerService(wearersRepo, usersRepo, log)
	assignmentService := service.NewAssignmentService(assignmentsRepo, usersRepo, log)
	helpRequestService := service.NewHelpRequestService(helpRequestsRepo, log)

	// Handler
	resolver := httpapi.NewSessionResolver(authService, usersRepo, log)
	authHandler := httpapi.NewAuthHandler(authService, directoryService, log)
	profileHandler := httpapi.NewProfileHandler(directoryService, resolver, log)
	assignmentHandler := httpapi.NewAssignmentHandler(assignmentService, resolver, log)
	wearerHandler := httpapi.NewWearerHandler(wearerService, assignmentHandler, resolver, log)
	helpRequestHandler := httpapi.NewHelpRequestHandler(helpRequestService, resolver, log)
	invitationHandler := httpapi.NewInvitationHandler(invitationService, resolver, log)
	pushTokenHandler := httpapi.NewPushTokenHandler(pushTokens, resolver, log)
	streamHandler := httpapi.NewStreamHandler(feed, authService, usersRepo, log)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoute()
	router.RegisterAuthRoutes(authHandler)
	router.RegisterAppRoutes(profileHandler, wearerHandler, assignmentHandler,
		helpRequestHandler, invitationHandler, pushTokenHandler, streamHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 推送分发（可选）
	var sender service.PushSender = service.NopPushSender{}
	if cfg.Push.Enabled {
		sender = service.NewGatewayPushSender(cfg.Push)
	}
	dispatcher := service.NewPushDispatcher(feed, helpRequestsRepo, usersRepo, pushTokens, sender, log)
	go dispatcher.Run(ctx)

	// 设备上报消费（可选）
	var deviceIngest *ingest.DeviceIngest
	var mqttClient *commonmqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = commonmqtt.NewClient(&commoncfg.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, log)
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		deviceIngest = ingest.NewDeviceIngest(mqttClient, cfg.MQTT, devicesRepo, helpRequestsRepo, log)
		if err := deviceIngest.Start(); err != nil {
			log.Fatal("Failed to start device ingest", zap.Error(err))
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
		cancel()
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)

	if deviceIngest != nil {
		deviceIngest.Stop()
	}
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"relaychat/internal/config"
	"relaychat/internal/domain"
	"relaychat/internal/httpserver"
	"relaychat/internal/logging"
	"relaychat/internal/messaging"
	"relaychat/internal/moderation"
	"relaychat/internal/security"
	"relaychat/internal/service"
	"relaychat/internal/store/blob"
	"relaychat/internal/store/cache"
	"relaychat/internal/store/postgres"
	"relaychat/internal/store/sqlite"
	"relaychat/internal/ws"
)

// @title           relaychat API
// @version         1.0.0
// @description     Anonymous friend-to-friend chat with a free daily quota, moderation and ephemeral files.

// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type stores struct {
	db       *sql.DB
	friends  domain.FriendshipRepository
	messages domain.MessageRepository
	words    domain.CriticalWordRepository
	flags    domain.FlaggedConversationRepository
	files    domain.TempFileRepository
	subs     domain.SubscriptionRepository
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.DBDriver == "sqlite" {
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &stores{
			db:       db,
			friends:  sqlite.NewFriendshipRepo(db),
			messages: sqlite.NewMessageRepo(db),
			words:    sqlite.NewCriticalWordRepo(db),
			flags:    sqlite.NewFlaggedConversationRepo(db),
			files:    sqlite.NewTempFileRepo(db),
			subs:     sqlite.NewSubscriptionRepo(db),
		}, nil
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{
		db:       db,
		friends:  postgres.NewFriendshipRepo(db),
		messages: postgres.NewMessageRepo(db),
		words:    postgres.NewCriticalWordRepo(db),
		flags:    postgres.NewFlaggedConversationRepo(db),
		files:    postgres.NewTempFileRepo(db),
		subs:     postgres.NewSubscriptionRepo(db),
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.Debug)
	defer func() { _ = log.Sync() }()

	st, err := openStores(cfg)
	if err != nil {
		log.Fatal("failed to open database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer st.db.Close()

	blobs, err := blob.NewFSStore(cfg.UploadDir)
	if err != nil {
		log.Fatal("failed to prepare upload dir", zap.String("dir", cfg.UploadDir), zap.Error(err))
	}

	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	var subs service.SubscriptionChecker = service.NewSubscriptionService(st.subs)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, subscription cache will fall back to the database", zap.Error(err))
		}
		cancel()
		subs = cache.NewSubscriptionCache(rdb, subs, cfg.PaidCacheTTL, log)
	}

	hub := ws.NewHub(log)
	var deliver service.Deliverer = hub
	var natsHealth httpserver.ConnectivityChecker
	if cfg.NATSURL != "" {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Name = cfg.AppName
		nc, err := messaging.NewNATSClient(natsCfg, log)
		if err != nil {
			log.Fatal("failed to connect to nats", zap.String("url", cfg.NATSURL), zap.Error(err))
		}
		defer nc.Close()
		fanout := ws.NewFanout(hub, nc, log)
		if err := fanout.Start(); err != nil {
			log.Fatal("failed to subscribe to deliveries", zap.Error(err))
		}
		deliver = fanout
		natsHealth = nc
	}

	scanner := moderation.NewScanner(st.words, st.messages)
	quota := service.NewQuotaTracker(st.messages, nil)
	dispatcher := service.NewDispatcher(st.friends, st.messages, st.flags, subs, quota, scanner, deliver, log)
	msgSvc := service.NewMessageService(st.friends, st.messages, log)
	friendSvc := service.NewFriendService(st.friends, subs, log)
	fileSvc := service.NewFileService(st.files, blobs, st.friends, subs, dispatcher, deliver, service.FileConfig{
		TTL:      cfg.FileTTL,
		Grace:    cfg.DownloadGrace,
		MaxBytes: cfg.MaxUploadBytes,
	}, log)

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go fileSvc.RunSweeper(ctx, cfg.SweepInterval)

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:           tokenSvc,
		Dispatcher:     dispatcher,
		Messages:       msgSvc,
		Friends:        friendSvc,
		Files:          fileSvc,
		Hub:            hub,
		NATS:           natsHealth,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            log,
	})

	// WriteTimeout is left unset: downloads stream for as long as the body
	// takes and the duplex channel manages its own deadlines.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("addr", cfg.HTTPAddr()), zap.String("env", cfg.Env), zap.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down server")
	stopBackground()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

package main

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/carecircle/config"
	"github.com/cppla/carecircle/repository"
	"github.com/cppla/carecircle/routes"
	"github.com/cppla/carecircle/services"
	"github.com/cppla/carecircle/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.InitDatabase(cfg, repository.Models()...)
	if err != nil {
		utils.Logger.Fatal("database init failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		utils.Logger.Fatal("database handle unavailable", zap.Error(err))
	}
	defer sqlDB.Close()

	// Redis only backs the response cache; serve uncached when it is unreachable
	if err := utils.InitRedis(cfg); err != nil {
		utils.Logger.Warn("redis unavailable, response cache disabled", zap.Error(err))
	}

	store := repository.NewCachedStore(
		repository.New(db),
		cfg.DirectoryCacheSize,
		time.Duration(cfg.DirectoryCacheTTLSeconds)*time.Second,
	)
	log := utils.Logger.Named("services")
	ledger := services.NewVoteLedger(store)
	counters := services.NewCounterPropagator(store, log)
	posts := services.NewPostService(store, ledger, counters, log)
	replies := services.NewReplyService(store, ledger, counters, log)

	accessLog, err := utils.NewRollingFileLogger(utils.RollingFile{
		Path:       filepath.Join(filepath.Dir(cfg.LogPath), "access.log"),
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}, cfg.LogLevel, false)
	if err != nil {
		utils.Logger.Warn("access log unavailable, logging requests to the main log", zap.Error(err))
		accessLog = utils.Logger.Named("access")
	}

	r := routes.SetupRouter(cfg, routes.Deps{
		Posts:     posts,
		Replies:   replies,
		AccessLog: accessLog,
		Log:       utils.Logger.Named("http"),
		Health:    sqlDB.Ping,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avighnad/HamaraPrayas/internal/config"
	"github.com/avighnad/HamaraPrayas/internal/handler"
	"github.com/avighnad/HamaraPrayas/internal/models"
	"github.com/avighnad/HamaraPrayas/internal/repository"
	"github.com/avighnad/HamaraPrayas/internal/scheduler"
	"github.com/avighnad/HamaraPrayas/internal/service"
	"github.com/avighnad/HamaraPrayas/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	profileRepo := repository.NewProfileRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	donationRepo := repository.NewDonationRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	rewardsSvc := service.NewRewardsService(profileRepo, ledgerRepo, badgeRepo)
	profileSvc := service.NewProfileService(profileRepo, ledgerRepo, donationRepo, badgeRepo)
	leaderboardSvc := service.NewLeaderboardService(profileRepo, snapshotRepo, cfg.Leaderboard.SnapshotSize)
	auditSvc := service.NewAuditService(profileRepo, ledgerRepo)

	jobs := scheduler.NewJobScheduler(leaderboardSvc, auditSvc, cfg.Leaderboard, cfg.Jobs)
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}
	defer jobs.Stop()

	router := setupHTTPRouter(rewardsSvc, profileSvc, leaderboardSvc, jobs, cfg,
		profileRepo, ledgerRepo, donationRepo, badgeRepo, snapshotRepo)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

// initDatabase opens the MySQL connection, applies pool limits and keeps the
// schema current. TranslateError maps driver duplicate-key errors onto
// gorm.ErrDuplicatedKey, which the repository layer relies on.
func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.AutoMigrate(
		&models.DonorProfile{},
		&models.CreditTransaction{},
		&models.DonationRecord{},
		&models.BadgeAward{},
		&models.LeaderboardSnapshot{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

func setupHTTPRouter(
	rewardsSvc *service.RewardsService,
	profileSvc *service.ProfileService,
	leaderboardSvc *service.LeaderboardService,
	jobs *scheduler.JobScheduler,
	cfg *config.Config,
	profileRepo *repository.ProfileRepository,
	ledgerRepo *repository.LedgerRepository,
	donationRepo *repository.DonationRepository,
	badgeRepo *repository.BadgeRepository,
	snapshotRepo *repository.SnapshotRepository,
) http.Handler {
	rewardsHandler := handler.NewRewardsHandler(rewardsSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardSvc, cfg.Leaderboard.DefaultPageSize)
	statsHandler := handler.NewStatsHandler(profileRepo, ledgerRepo, donationRepo, badgeRepo, snapshotRepo)
	jobsHandler := handler.NewJobsHandler(jobs)

	return handler.NewRouter(profileHandler, rewardsHandler, leaderboardHandler, statsHandler, jobsHandler)
}

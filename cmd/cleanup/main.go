package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/database"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/pkg/email"
	"github.com/pkadima1/sharewizard-server/internal/repository"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

var (
	expireTrials  = flag.Bool("expire-trials", true, "Downgrade expired trials to free plan")
	rejectStale   = flag.Bool("reject-stale", true, "Reject checkout sessions stuck in created state")
	staleHours    = flag.Int("stale-hours", 24, "Hours before an unresolved checkout is rejected")
	pruneJobs     = flag.Bool("prune-jobs", false, "Delete finished generation jobs older than retention")
	jobRetainDays = flag.Int("job-retain-days", 30, "Days to keep finished generation jobs")
)

func main() {
	flag.Parse()

	log.Println("Starting maintenance task...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	checkoutRepo := repository.NewCheckoutRepository(db)
	emailSvc := email.NewService(&cfg.Email)
	trialSvc := service.NewTrialService(userRepo, emailSvc, cfg)

	// 1. 试用到期降级
	if *expireTrials {
		expired, err := trialSvc.ExpireTrials()
		if err != nil {
			log.Printf("Failed to expire trials: %v", err)
		} else {
			log.Printf("Expired trials downgraded: %d", expired)
		}
	}

	// 2. 拒绝长期未解析的结账会话
	if *rejectStale {
		cutoff := time.Now().Add(-time.Duration(*staleHours) * time.Hour)
		rejected, err := checkoutRepo.RejectStale(cutoff)
		if err != nil {
			log.Printf("Failed to reject stale checkouts: %v", err)
		} else {
			log.Printf("Stale checkouts rejected: %d", rejected)
		}
	}

	// 3. 清理已完结的历史任务记录
	if *pruneJobs {
		cutoff := time.Now().AddDate(0, 0, -*jobRetainDays)
		result := db.Where("status IN ? AND created_at < ?",
			[]string{"completed", "failed"}, cutoff).
			Delete(&model.GenerationJob{})
		if result.Error != nil {
			log.Printf("Failed to prune generation jobs: %v", result.Error)
		} else {
			log.Printf("Generation jobs pruned: %d", result.RowsAffected)
		}
	}

	log.Println("Maintenance task completed")
}

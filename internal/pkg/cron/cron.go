package cron

import (
	"log"
	"time"

	"github.com/pkadima1/sharewizard-server/internal/repository"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

type Service struct {
	trialSvc         *service.TrialService
	checkoutRepo     *repository.CheckoutRepository
	staleCheckoutTTL time.Duration
	stopChan         chan struct{}
}

func NewService(trialSvc *service.TrialService, checkoutRepo *repository.CheckoutRepository, staleCheckoutTTL time.Duration) *Service {
	if staleCheckoutTTL <= 0 {
		staleCheckoutTTL = 24 * time.Hour
	}
	return &Service{
		trialSvc:         trialSvc,
		checkoutRepo:     checkoutRepo,
		staleCheckoutTTL: staleCheckoutTTL,
		stopChan:         make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runTrialExpiry()
	go s.runCheckoutCleanup()
	log.Println("Cron service started (trial expiry + checkout cleanup)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runTrialExpiry 每日 UTC 零点检查试用到期
func (s *Service) runTrialExpiry() {
	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	timer := time.NewTimer(nextMidnight.Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.expireTrials()
			timer.Reset(24 * time.Hour)
		}
	}
}

func (s *Service) expireTrials() {
	log.Println("Starting trial expiry check...")
	expired, err := s.trialSvc.ExpireTrials()
	if err != nil {
		log.Printf("Failed to expire trials: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("Trial expiry completed, downgraded: %d", expired)
	}
}

// runCheckoutCleanup 每小时将长期未解析的结账会话置为终态
func (s *Service) runCheckoutCleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.rejectStaleCheckouts()
		}
	}
}

func (s *Service) rejectStaleCheckouts() {
	cutoff := time.Now().Add(-s.staleCheckoutTTL)
	rejected, err := s.checkoutRepo.RejectStale(cutoff)
	if err != nil {
		log.Printf("Failed to reject stale checkouts: %v", err)
		return
	}
	if rejected > 0 {
		log.Printf("Checkout cleanup completed, rejected: %d", rejected)
	}
}

// RunNow 立即执行试用到期检查（用于测试或手动触发）
func (s *Service) RunNow() error {
	log.Println("Manual trial expiry triggered...")
	_, err := s.trialSvc.ExpireTrials()
	return err
}

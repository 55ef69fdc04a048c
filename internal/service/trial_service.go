package service

import (
	"errors"
	"log"
	"time"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/pkg/email"
	"github.com/pkadima1/sharewizard-server/internal/repository"
)

var (
	ErrTrialAlreadyUsed = errors.New("试用资格已使用，每个账号仅可试用一次")
	ErrTrialNotEligible = errors.New("当前套餐不可开通试用")
	ErrUnknownPlan      = errors.New("未知的套餐类型")
)

type TrialService struct {
	userRepo *repository.UserRepository
	emailSvc *email.Service
	cfg      *config.Config
}

func NewTrialService(userRepo *repository.UserRepository, emailSvc *email.Service, cfg *config.Config) *TrialService {
	return &TrialService{
		userRepo: userRepo,
		emailSvc: emailSvc,
		cfg:      cfg,
	}
}

// MarkForTrial 标记试用待支付：free -> trialPending。
// 条件化更新保证非 free 套餐下不产生任何状态变更。
func (s *TrialService) MarkForTrial(userID int64, plan, period string) error {
	if _, ok := s.cfg.Plans.Levels[plan]; !ok || plan == model.PlanFree {
		return ErrUnknownPlan
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if user.HasUsedTrial {
		return ErrTrialAlreadyUsed
	}

	marked, err := s.userRepo.MarkTrialPending(userID, plan, period)
	if err != nil {
		return err
	}
	if !marked {
		return ErrTrialNotEligible
	}
	return nil
}

// Activate 支付确认后激活试用：trialPending -> trial。
// 仅在 trial_pending 时命中，重复投递的确认事件不会二次激活。
func (s *TrialService) Activate(userID int64) (bool, error) {
	activated, err := s.activateWith(s.userRepo, userID)
	if err != nil || !activated {
		return activated, err
	}
	s.notifyActivated(userID)
	return true, nil
}

// activateWith 执行激活本身的状态变更，repo 可为事务作用域
func (s *TrialService) activateWith(userRepo *repository.UserRepository, userID int64) (bool, error) {
	endDate := time.Now().AddDate(0, 0, s.cfg.Trial.Days)
	return userRepo.ActivateTrial(userID, s.cfg.Trial.Requests, endDate)
}

// notifyActivated 激活通知邮件，失败只记录
func (s *TrialService) notifyActivated(userID int64) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil || user.Email == nil {
		return
	}
	if err := s.emailSvc.SendTrialActivated(*user.Email, user.Username, user.SelectedPlan,
		s.cfg.Trial.Days, s.cfg.Trial.Requests); err != nil {
		log.Printf("Failed to send trial activated email to user %d: %v", userID, err)
	}
}

// CancelPending 结账取消或失败时回退待支付标记。
// 只清 trial_pending 与套餐选择，has_used_trial 不回退。
func (s *TrialService) CancelPending(userID int64) error {
	return s.userRepo.ClearTrialPending(userID)
}

// ExpireTrials 将试用期已过且未转化的账号降回 free 套餐，返回处理数
func (s *TrialService) ExpireTrials() (int, error) {
	users, err := s.userRepo.ListExpiredTrials(time.Now())
	if err != nil {
		return 0, err
	}

	freeLimit := s.cfg.PlanLevelOrFree(model.PlanFree).RequestLimit
	expired := 0
	for _, user := range users {
		if err := s.userRepo.ApplyPlan(user.ID, model.PlanFree, "", freeLimit); err != nil {
			log.Printf("Failed to expire trial for user %d: %v", user.ID, err)
			continue
		}
		expired++

		if user.Email != nil {
			if err := s.emailSvc.SendTrialExpired(*user.Email, user.Username); err != nil {
				log.Printf("Failed to send trial expired email to user %d: %v", user.ID, err)
			}
		}
	}
	return expired, nil
}

// Eligible 当前账号是否还能开通试用
func (s *TrialService) Eligible(user *model.User) bool {
	return user.PlanType == model.PlanFree && !user.HasUsedTrial
}

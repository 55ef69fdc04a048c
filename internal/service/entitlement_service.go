package service

import (
	"errors"
	"log"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/model/dto"
	"github.com/pkadima1/sharewizard-server/internal/repository"
)

var (
	ErrUpgradeRequired = errors.New("额度已用完，请升级套餐")
	ErrLimitReached    = errors.New("本期额度已用完，可购买弹性加量包")
	ErrModelDenied     = errors.New("当前套餐无法使用该模型")
)

// 套餐状态常量
const (
	StatusOK           = "ok"
	StatusUpgrade      = "upgrade"
	StatusLimitReached = "limit_reached"
)

type EntitlementService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewEntitlementService(userRepo *repository.UserRepository, cfg *config.Config) *EntitlementService {
	return &EntitlementService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// CheckAvailability 计费操作前的可用性检查。
// 账户读取失败时视为不可用，错误只记录不上抛。
func (s *EntitlementService) CheckAvailability(userID int64) *dto.AvailabilityInfo {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		log.Printf("CheckAvailability: failed to load user %d: %v", userID, err)
		// 降级为 free 套餐语义，消费方据此给出升级提示而非加量包提示
		return &dto.AvailabilityInfo{CanProceed: false, Plan: model.PlanFree}
	}

	return &dto.AvailabilityInfo{
		CanProceed: user.RequestsUsed < user.RequestsLimit,
		Used:       user.RequestsUsed,
		Limit:      user.RequestsLimit,
		Plan:       user.PlanType,
	}
}

// CheckPlanStatus 套餐状态查询。
// 账户读取失败时按需要升级处理，错误只记录不上抛。
func (s *EntitlementService) CheckPlanStatus(userID int64) *dto.PlanStatusInfo {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		log.Printf("CheckPlanStatus: failed to load user %d: %v", userID, err)
		return &dto.PlanStatusInfo{
			Status:          StatusUpgrade,
			Message:         "无法读取账户状态，请稍后重试或升级套餐",
			UsagePercentage: 100,
		}
	}

	info := &dto.PlanStatusInfo{
		Used:            user.RequestsUsed,
		Limit:           user.RequestsLimit,
		Plan:            user.PlanType,
		UsagePercentage: usagePercentage(user.RequestsUsed, user.RequestsLimit),
	}

	if user.RequestsUsed >= user.RequestsLimit {
		if model.IsPaidPlan(user.PlanType) {
			info.Status = StatusLimitReached
			info.Message = "本期额度已用完，可购买弹性加量包或等待账期续费"
		} else {
			info.Status = StatusUpgrade
			info.Message = "额度已用完，升级套餐解锁更多生成次数"
		}
		return info
	}

	info.Status = StatusOK
	remaining := user.RequestsLimit - user.RequestsUsed
	if user.RequestsLimit > 0 && remaining*5 <= user.RequestsLimit {
		info.Message = "剩余额度不足 20%，请留意用量"
	}
	return info
}

// Debit 按调用成本扣减额度，只在计费操作成功后调用
func (s *EntitlementService) Debit(userID int64, cost int) error {
	if cost <= 0 {
		cost = 1
	}
	return s.userRepo.IncrementRequestsUsed(userID, cost)
}

// CheckModel 校验模型是否存在并返回其配置
func (s *EntitlementService) CheckModel(modelName string) (*config.GenerationModelConfig, error) {
	mc := s.cfg.ModelByName(modelName)
	if mc == nil {
		return nil, ErrModelDenied
	}
	return mc, nil
}

// usagePercentage 用量百分比，恒在 [0,100] 区间内；零额度视为用满
func usagePercentage(used, limit int) int {
	if limit <= 0 {
		return 100
	}
	pct := used * 100 / limit
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

package service

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/repository"
)

// WebhookService 消费支付网关回调事件，负责所有套餐变更。
// 事件可能重复投递，每条路径都以条件化更新保证幂等。
type WebhookService struct {
	db           *gorm.DB
	checkoutRepo *repository.CheckoutRepository
	userRepo     *repository.UserRepository
	partnerRepo  *repository.PartnerRepository
	trialSvc     *TrialService
	cfg          *config.Config
}

func NewWebhookService(db *gorm.DB, trialSvc *TrialService, cfg *config.Config) *WebhookService {
	return &WebhookService{
		db:           db,
		checkoutRepo: repository.NewCheckoutRepository(db),
		userRepo:     repository.NewUserRepository(db),
		partnerRepo:  repository.NewPartnerRepository(db),
		trialSvc:     trialSvc,
		cfg:          cfg,
	}
}

// HandleCheckoutCompleted 结账完成：按会话类型应用套餐变更。
// 未知会话只记录不报错，避免网关无限重试。
// 确认标记与套餐变更同一事务提交：变更失败时确认回滚，重投可再次命中。
func (s *WebhookService) HandleCheckoutCompleted(gatewaySessionID string) error {
	session, err := s.checkoutRepo.GetByGatewaySessionID(gatewaySessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Webhook: unknown gateway session %s, skipping", gatewaySessionID)
			return nil
		}
		return err
	}

	var confirmed, trialActivated bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		confirmed, txErr = repository.NewCheckoutRepository(tx).ConfirmPayment(session.ID)
		if txErr != nil {
			return txErr
		}
		if !confirmed {
			return nil
		}

		userRepo := repository.NewUserRepository(tx)
		switch session.CheckoutType {
		case model.CheckoutTypeTrial:
			trialActivated, txErr = s.trialSvc.activateWith(userRepo, session.UserID)
			if txErr != nil {
				return fmt.Errorf("failed to activate trial for user %d: %w", session.UserID, txErr)
			}
			if !trialActivated {
				log.Printf("Webhook: trial for user %d not pending, no activation", session.UserID)
			}
			return nil

		case model.CheckoutTypeSubscription:
			level, ok := s.cfg.Plans.Levels[session.PlanID]
			if !ok {
				return fmt.Errorf("unknown plan %q in checkout %d", session.PlanID, session.ID)
			}
			if txErr := userRepo.ApplyPlan(session.UserID, session.PlanID, session.BillingPeriod, level.RequestLimit); txErr != nil {
				return fmt.Errorf("failed to apply plan for user %d: %w", session.UserID, txErr)
			}
			return nil

		case model.CheckoutTypePayment:
			if txErr := userRepo.AddFlexRequests(session.UserID, s.cfg.Plans.Flex.Requests); txErr != nil {
				return fmt.Errorf("failed to add flex requests for user %d: %w", session.UserID, txErr)
			}
			return nil

		default:
			return fmt.Errorf("unknown checkout type %q in checkout %d", session.CheckoutType, session.ID)
		}
	})
	if err != nil {
		return err
	}
	if !confirmed {
		log.Printf("Webhook: checkout %d already confirmed, skipping", session.ID)
		return nil
	}

	if trialActivated {
		s.trialSvc.notifyActivated(session.UserID)
	}
	s.creditPartner(session)

	log.Printf("Webhook: checkout %d completed, type=%s, user=%d", session.ID, session.CheckoutType, session.UserID)
	return nil
}

// HandleInvoicePaid 账期续费：清零已用量。
// subscription_create 由 checkout.session.completed 处理，这里跳过。
func (s *WebhookService) HandleInvoicePaid(customerID, billingReason string) error {
	if billingReason == "subscription_create" {
		return nil
	}

	user, err := s.userRepo.GetByStripeCustomerID(customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Webhook: unknown customer %s for invoice, skipping", customerID)
			return nil
		}
		return err
	}

	// 试用转正式：首个续费账单落地时切到所选套餐
	if user.PlanType == model.PlanTrial && user.SelectedPlan != "" {
		level, ok := s.cfg.Plans.Levels[user.SelectedPlan]
		if !ok {
			return fmt.Errorf("unknown selected plan %q for user %d", user.SelectedPlan, user.ID)
		}
		if err := s.userRepo.ApplyPlan(user.ID, user.SelectedPlan, user.SelectedPeriod, level.RequestLimit); err != nil {
			return fmt.Errorf("failed to convert trial for user %d: %w", user.ID, err)
		}
		log.Printf("Webhook: trial converted for user %d, plan=%s", user.ID, user.SelectedPlan)
		return nil
	}

	if err := s.userRepo.ResetUsage(user.ID); err != nil {
		return fmt.Errorf("failed to reset usage for user %d: %w", user.ID, err)
	}
	log.Printf("Webhook: billing cycle reset for user %d", user.ID)
	return nil
}

// HandleSubscriptionDeleted 订阅终止：降回 free 套餐
func (s *WebhookService) HandleSubscriptionDeleted(customerID string) error {
	user, err := s.userRepo.GetByStripeCustomerID(customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Webhook: unknown customer %s for subscription deletion, skipping", customerID)
			return nil
		}
		return err
	}

	freeLimit := s.cfg.PlanLevelOrFree(model.PlanFree).RequestLimit
	if err := s.userRepo.ApplyPlan(user.ID, model.PlanFree, "", freeLimit); err != nil {
		return fmt.Errorf("failed to downgrade user %d: %w", user.ID, err)
	}
	log.Printf("Webhook: subscription deleted, user %d downgraded to free", user.ID)
	return nil
}

// HandleCheckoutExpired 结账会话过期：未解析的行置为 rejected，
// 未完成支付的试用结账撤销待激活状态。未知会话只记录不报错。
func (s *WebhookService) HandleCheckoutExpired(gatewaySessionID string) error {
	session, err := s.checkoutRepo.GetByGatewaySessionID(gatewaySessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Webhook: unknown session %s for checkout expiry, skipping", gatewaySessionID)
			return nil
		}
		return err
	}

	rejected, err := s.checkoutRepo.Resolve(session.ID, model.CheckoutStatusRejected, "", "结账会话已过期")
	if err != nil {
		return err
	}
	if rejected {
		log.Printf("Webhook: checkout %d expired, rejected", session.ID)
	}

	if session.CheckoutType == model.CheckoutTypeTrial && !session.PaymentConfirmed {
		if err := s.trialSvc.CancelPending(session.UserID); err != nil {
			log.Printf("Failed to cancel pending trial for user %d: %v", session.UserID, err)
		}
	}
	return nil
}

// creditPartner 结账成功后递增推广码使用次数，失败只记录
func (s *WebhookService) creditPartner(session *model.CheckoutSession) {
	if session.ReferralCode == "" {
		return
	}
	if err := s.partnerRepo.IncrementUses(session.ReferralCode); err != nil {
		log.Printf("Failed to credit partner code %s for checkout %d: %v", session.ReferralCode, session.ID, err)
	}
}

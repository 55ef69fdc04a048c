package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/model/dto"
	"github.com/pkadima1/sharewizard-server/internal/pkg/payment"
	"github.com/pkadima1/sharewizard-server/internal/pkg/pubsub"
	"github.com/pkadima1/sharewizard-server/internal/repository"
)

var (
	ErrFlexRequiresPaid = errors.New("弹性加量包仅限付费套餐购买")
	ErrUnknownPeriod    = errors.New("未知的计费周期")
	ErrMissingEmail     = errors.New("账号未绑定邮箱，无法发起结账")
)

type CheckoutService struct {
	checkoutRepo *repository.CheckoutRepository
	userRepo     *repository.UserRepository
	partnerRepo  *repository.PartnerRepository
	trialSvc     *TrialService
	gateway      payment.Gateway
	publisher    *pubsub.Publisher
	cfg          *config.Config
}

func NewCheckoutService(
	checkoutRepo *repository.CheckoutRepository,
	userRepo *repository.UserRepository,
	partnerRepo *repository.PartnerRepository,
	trialSvc *TrialService,
	gateway payment.Gateway,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *CheckoutService {
	return &CheckoutService{
		checkoutRepo: checkoutRepo,
		userRepo:     userRepo,
		partnerRepo:  partnerRepo,
		trialSvc:     trialSvc,
		gateway:      gateway,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// CreateCheckout 发起结账会话。
// 会话行先以 created 状态落库，网关调用结束后解析为终态，
// fulfilled/rejected 均只会写入一次。
func (s *CheckoutService) CreateCheckout(ctx context.Context, userID int64, req *dto.CreateCheckoutRequest, referral *model.ReferralCapture) (*dto.CreateCheckoutResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	priceID, trialDays, err := s.resolvePrice(user, req)
	if err != nil {
		return nil, err
	}

	// 试用结账前先过试用状态机，不合格直接拒绝
	if req.CheckoutType == model.CheckoutTypeTrial {
		if err := s.trialSvc.MarkForTrial(userID, req.PlanID, req.BillingPeriod); err != nil {
			return nil, err
		}
	}

	session := &model.CheckoutSession{
		UserID:        userID,
		CheckoutType:  req.CheckoutType,
		PlanID:        req.PlanID,
		BillingPeriod: req.BillingPeriod,
		PriceID:       priceID,
		Status:        model.CheckoutStatusCreated,
	}
	if referral != nil {
		session.ReferralCode = referral.Code
		session.PartnerID = &referral.PartnerID
	}
	session.ClientReference = s.clientReference(userID, referral)

	if err := s.checkoutRepo.Create(session); err != nil {
		s.rollbackTrialPending(userID, req.CheckoutType)
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		s.reject(ctx, session, err.Error())
		s.rollbackTrialPending(userID, req.CheckoutType)
		return nil, err
	}

	mode := payment.ModeSubscription
	if req.CheckoutType == model.CheckoutTypePayment {
		mode = payment.ModePayment
	}

	input := &payment.SessionInput{
		CustomerID:        customerID,
		Mode:              mode,
		PriceID:           priceID,
		TrialDays:         trialDays,
		ClientReferenceID: session.ClientReference,
		SuccessURL:        s.cfg.Stripe.SuccessURL,
		CancelURL:         s.cfg.Stripe.CancelURL,
		Metadata:          s.buildMetadata(userID, req, referral),
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout())
	defer cancel()

	gwSession, err := s.gateway.CreateSession(gwCtx, input)
	if err != nil {
		// 网关错误原样记录并透传
		s.reject(ctx, session, err.Error())
		s.rollbackTrialPending(userID, req.CheckoutType)
		return nil, err
	}

	if err := s.checkoutRepo.SetGatewaySessionID(session.ID, gwSession.ID); err != nil {
		log.Printf("Failed to record gateway session id for checkout %d: %v", session.ID, err)
	}

	resolved, err := s.checkoutRepo.Resolve(session.ID, model.CheckoutStatusFulfilled, gwSession.URL, "")
	if err != nil {
		return nil, err
	}
	if resolved {
		s.publishResolution(ctx, session.ID, userID, model.CheckoutStatusFulfilled, gwSession.URL, "")
	}

	return &dto.CreateCheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: gwSession.URL,
	}, nil
}

// GetSession 查询结账会话，仅限本人
func (s *CheckoutService) GetSession(userID, sessionID int64) (*model.CheckoutSession, error) {
	session, err := s.checkoutRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, errors.New("无权访问该结账会话")
	}
	return session, nil
}

// CancelCheckout 用户放弃结账：撤销待激活的试用选择。
// 会话行本身不动，长期未解析的行由定时清理置为终态。
func (s *CheckoutService) CancelCheckout(userID int64) error {
	return s.trialSvc.CancelPending(userID)
}

// ListPlans 套餐目录
func (s *CheckoutService) ListPlans() []dto.PlanItem {
	items := make([]dto.PlanItem, 0, len(s.cfg.Plans.Levels))
	for id, level := range s.cfg.Plans.Levels {
		if id == model.PlanFree || id == model.PlanTrial {
			continue
		}
		items = append(items, dto.PlanItem{
			ID:           id,
			RequestLimit: level.RequestLimit,
			Price:        level.Price,
			Features:     level.Features,
		})
	}
	return items
}

// resolvePrice 按结账类型确定价格 ID 与试用天数
func (s *CheckoutService) resolvePrice(user *model.User, req *dto.CreateCheckoutRequest) (string, int64, error) {
	if req.CheckoutType == model.CheckoutTypePayment {
		if !model.IsPaidPlan(user.PlanType) {
			return "", 0, ErrFlexRequiresPaid
		}
		return s.cfg.Plans.Flex.PriceID, 0, nil
	}

	level, ok := s.cfg.Plans.Levels[req.PlanID]
	if !ok || req.PlanID == model.PlanFree {
		return "", 0, ErrUnknownPlan
	}

	var priceID string
	switch req.BillingPeriod {
	case model.PeriodMonthly, "":
		priceID = level.MonthlyPriceID
	case model.PeriodYearly:
		priceID = level.YearlyPriceID
	default:
		return "", 0, ErrUnknownPeriod
	}
	if priceID == "" {
		return "", 0, ErrUnknownPeriod
	}

	var trialDays int64
	if req.CheckoutType == model.CheckoutTypeTrial {
		trialDays = int64(s.cfg.Trial.Days)
	}
	return priceID, trialDays, nil
}

// buildMetadata 会话元数据。归因字段只在存在时写入，不写空值。
func (s *CheckoutService) buildMetadata(userID int64, req *dto.CreateCheckoutRequest, referral *model.ReferralCapture) map[string]string {
	metadata := map[string]string{
		"user_id":       strconv.FormatInt(userID, 10),
		"checkout_type": req.CheckoutType,
	}
	if req.PlanID != "" {
		metadata["plan_id"] = req.PlanID
	}
	if req.BillingPeriod != "" {
		metadata["billing_period"] = req.BillingPeriod
	}
	if referral != nil {
		metadata["referral_code"] = referral.Code
		metadata["partner_id"] = strconv.FormatInt(referral.PartnerID, 10)
		if referral.PartnerName != "" {
			metadata["partner_name"] = referral.PartnerName
		}
	}
	return metadata
}

// clientReference 归因码优先，无归因时回落为账号 ID
func (s *CheckoutService) clientReference(userID int64, referral *model.ReferralCapture) string {
	if referral != nil && referral.Code != "" {
		return referral.Code
	}
	return strconv.FormatInt(userID, 10)
}

// ensureCustomer 确保账号已绑定网关客户，首次结账时创建
func (s *CheckoutService) ensureCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	if user.Email == nil || *user.Email == "" {
		return "", ErrMissingEmail
	}

	customerID, err := s.gateway.CreateCustomer(ctx, *user.Email, map[string]string{
		"user_id": strconv.FormatInt(user.ID, 10),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create gateway customer: %w", err)
	}

	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"stripe_customer_id": customerID,
	}); err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *CheckoutService) gatewayTimeout() time.Duration {
	seconds := s.cfg.Stripe.TimeoutSeconds
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

func (s *CheckoutService) reject(ctx context.Context, session *model.CheckoutSession, errMsg string) {
	resolved, err := s.checkoutRepo.Resolve(session.ID, model.CheckoutStatusRejected, "", errMsg)
	if err != nil {
		log.Printf("Failed to reject checkout %d: %v", session.ID, err)
		return
	}
	if resolved {
		s.publishResolution(ctx, session.ID, session.UserID, model.CheckoutStatusRejected, "", errMsg)
	}
}

func (s *CheckoutService) rollbackTrialPending(userID int64, checkoutType string) {
	if checkoutType != model.CheckoutTypeTrial {
		return
	}
	if err := s.trialSvc.CancelPending(userID); err != nil {
		log.Printf("Failed to clear trial pending for user %d: %v", userID, err)
	}
}

func (s *CheckoutService) publishResolution(ctx context.Context, checkoutID, userID int64, status, url, errMsg string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCheckout(ctx, &pubsub.CheckoutMessage{
		UserID:     userID,
		CheckoutID: checkoutID,
		Status:     status,
		URL:        url,
		Error:      errMsg,
	}); err != nil {
		log.Printf("Failed to publish checkout resolution for %d: %v", checkoutID, err)
	}
}

package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	email := fmt.Sprintf("test_%d@example.com", time.Now().UnixNano())
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:      fmt.Sprintf("testuser_%d", time.Now().UnixNano()%1000000),
		Email:         &email,
		PasswordHash:  &passwordHash,
		PlanType:      model.PlanFree,
		RequestsUsed:  0,
		RequestsLimit: 3,
		EmailVerified: true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithPlan 设置套餐与额度
func WithPlan(plan string, limit int) func(*model.User) {
	return func(u *model.User) {
		u.PlanType = plan
		u.RequestsLimit = limit
	}
}

// WithUsage 设置已使用额度
func WithUsage(used int) func(*model.User) {
	return func(u *model.User) {
		u.RequestsUsed = used
	}
}

// WithUsedTrial 标记已使用过试用
func WithUsedTrial() func(*model.User) {
	return func(u *model.User) {
		u.HasUsedTrial = true
	}
}

// WithTrialPending 标记试用待激活
func WithTrialPending(plan, period string) func(*model.User) {
	return func(u *model.User) {
		u.TrialPending = true
		u.HasUsedTrial = true
		u.SelectedPlan = plan
		u.SelectedPeriod = period
	}
}

// WithActiveTrial 设置试用中状态
func WithActiveTrial(plan string, endDate time.Time) func(*model.User) {
	return func(u *model.User) {
		u.PlanType = model.PlanTrial
		u.HasUsedTrial = true
		u.SelectedPlan = plan
		u.TrialEndDate = &endDate
	}
}

// WithStripeCustomer 设置网关客户 ID
func WithStripeCustomer(customerID string) func(*model.User) {
	return func(u *model.User) {
		u.StripeCustomerID = &customerID
	}
}

// TestPartner 创建测试伙伴
func TestPartner(t *testing.T, db *gorm.DB, opts ...func(*model.Partner)) *model.Partner {
	t.Helper()

	partner := &model.Partner{
		DisplayName:    fmt.Sprintf("Partner %d", time.Now().UnixNano()%1000000),
		Email:          fmt.Sprintf("partner_%d@example.com", time.Now().UnixNano()),
		Active:         true,
		CommissionRate: 0.2,
	}

	for _, opt := range opts {
		opt(partner)
	}

	if err := db.Create(partner).Error; err != nil {
		t.Fatalf("Failed to create test partner: %v", err)
	}

	return partner
}

// WithPartnerInactive 设置伙伴为停用
func WithPartnerInactive() func(*model.Partner) {
	return func(p *model.Partner) {
		p.Active = false
	}
}

// TestPartnerCode 创建测试推广码
func TestPartnerCode(t *testing.T, db *gorm.DB, partnerID int64, code string, opts ...func(*model.PartnerCode)) *model.PartnerCode {
	t.Helper()

	pc := &model.PartnerCode{
		Code:      code,
		PartnerID: partnerID,
		Active:    true,
	}

	for _, opt := range opts {
		opt(pc)
	}

	if err := db.Create(pc).Error; err != nil {
		t.Fatalf("Failed to create test partner code: %v", err)
	}

	return pc
}

// WithCodeInactive 设置推广码为停用
func WithCodeInactive() func(*model.PartnerCode) {
	return func(pc *model.PartnerCode) {
		pc.Active = false
	}
}

// WithCodeExpiry 设置推广码过期时间
func WithCodeExpiry(expiresAt time.Time) func(*model.PartnerCode) {
	return func(pc *model.PartnerCode) {
		pc.ExpiresAt = &expiresAt
	}
}

// WithCodeMaxUses 设置推广码使用上限
func WithCodeMaxUses(maxUses, uses int) func(*model.PartnerCode) {
	return func(pc *model.PartnerCode) {
		pc.MaxUses = &maxUses
		pc.Uses = uses
	}
}

// TestCheckoutSession 创建测试结账会话
func TestCheckoutSession(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.CheckoutSession)) *model.CheckoutSession {
	t.Helper()

	session := &model.CheckoutSession{
		UserID:       userID,
		CheckoutType: model.CheckoutTypeSubscription,
		PlanID:       model.PlanPro,
		PriceID:      "price_test_123",
		Status:       model.CheckoutStatusCreated,
	}

	for _, opt := range opts {
		opt(session)
	}

	if err := db.Create(session).Error; err != nil {
		t.Fatalf("Failed to create test checkout session: %v", err)
	}

	return session
}

// WithCheckoutType 设置结账类型
func WithCheckoutType(checkoutType string) func(*model.CheckoutSession) {
	return func(s *model.CheckoutSession) {
		s.CheckoutType = checkoutType
	}
}

// WithCheckoutStatus 设置结账状态
func WithCheckoutStatus(status string) func(*model.CheckoutSession) {
	return func(s *model.CheckoutSession) {
		s.Status = status
	}
}

// WithGatewaySession 设置网关会话 ID
func WithGatewaySession(sessionID string) func(*model.CheckoutSession) {
	return func(s *model.CheckoutSession) {
		s.GatewaySessionID = sessionID
	}
}

// WithReferral 设置归因信息
func WithReferral(code string, partnerID int64) func(*model.CheckoutSession) {
	return func(s *model.CheckoutSession) {
		s.ReferralCode = code
		s.PartnerID = &partnerID
	}
}

// TestGeneration 创建测试生成记录
func TestGeneration(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Generation)) *model.Generation {
	t.Helper()

	generation := &model.Generation{
		UserID:    userID,
		Title:     fmt.Sprintf("Test Generation %d", time.Now().UnixNano()%1000000),
		Prompt:    "Write a short post about Go",
		ModelName: "gemini-1.5-flash",
		CostUnits: 1,
		Status:    "pending",
	}

	for _, opt := range opts {
		opt(generation)
	}

	if err := db.Create(generation).Error; err != nil {
		t.Fatalf("Failed to create test generation: %v", err)
	}

	return generation
}

// WithGenerationStatus 设置生成状态
func WithGenerationStatus(status string) func(*model.Generation) {
	return func(g *model.Generation) {
		g.Status = status
	}
}

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, userID, generationID int64, status string) *model.GenerationJob {
	t.Helper()

	job := &model.GenerationJob{
		GenerationID: generationID,
		UserID:       userID,
		ModelName:    "gemini-1.5-flash",
		CostUnits:    1,
		Status:       status,
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

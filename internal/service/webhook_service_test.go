package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/pkg/email"
	"github.com/pkadima1/sharewizard-server/internal/repository"
	"github.com/pkadima1/sharewizard-server/internal/testutil"
)

func setupWebhookService(t *testing.T) (*WebhookService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := testPlansConfig()

	trialSvc := NewTrialService(repository.NewUserRepository(db), email.NewService(&config.EmailConfig{}), cfg)
	service := NewWebhookService(db, trialSvc, cfg)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return service, db, cleanup
}

func TestWebhookService_HandleCheckoutCompleted_Subscription(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	session := testutil.TestCheckoutSession(t, db, user.ID,
		testutil.WithCheckoutStatus(model.CheckoutStatusFulfilled),
		testutil.WithGatewaySession("cs_sub_1"))
	require.NoError(t, db.Model(session).Update("billing_period", model.PeriodMonthly).Error)

	err := service.HandleCheckoutCompleted("cs_sub_1")
	require.NoError(t, err)

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, model.PlanPro, updated.PlanType)
	assert.Equal(t, model.PeriodMonthly, updated.BillingPeriod)
	assert.Equal(t, 500, updated.RequestsLimit)
	assert.Equal(t, 0, updated.RequestsUsed)
}

func TestWebhookService_HandleCheckoutCompleted_Idempotent(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanPro, 500))
	testutil.TestCheckoutSession(t, db, user.ID,
		testutil.WithCheckoutType(model.CheckoutTypePayment),
		testutil.WithCheckoutStatus(model.CheckoutStatusFulfilled),
		testutil.WithGatewaySession("cs_flex_1"))

	require.NoError(t, service.HandleCheckoutCompleted("cs_flex_1"))
	// 重复投递不二次加量
	require.NoError(t, service.HandleCheckoutCompleted("cs_flex_1"))

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, 550, updated.RequestsLimit, "加量只应用一次")
}

func TestWebhookService_HandleCheckoutCompleted_RetryAfterFailure(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	session := testutil.TestCheckoutSession(t, db, user.ID,
		testutil.WithCheckoutStatus(model.CheckoutStatusFulfilled),
		testutil.WithGatewaySession("cs_retry_1"))
	require.NoError(t, db.Model(session).Updates(map[string]interface{}{
		"plan_id":        "legacy",
		"billing_period": model.PeriodMonthly,
	}).Error)

	// 套餐变更失败时确认标记必须随事务回滚，网关重投才能再次命中
	err := service.HandleCheckoutCompleted("cs_retry_1")
	require.Error(t, err)

	var row model.CheckoutSession
	require.NoError(t, db.First(&row, session.ID).Error)
	assert.False(t, row.PaymentConfirmed, "失败的投递不得消耗确认标记")

	require.NoError(t, db.Model(session).Update("plan_id", model.PlanPro).Error)
	require.NoError(t, service.HandleCheckoutCompleted("cs_retry_1"))

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, model.PlanPro, updated.PlanType)
	assert.Equal(t, 500, updated.RequestsLimit)

	require.NoError(t, db.First(&row, session.ID).Error)
	assert.True(t, row.PaymentConfirmed)
}

func TestWebhookService_HandleCheckoutCompleted_Trial(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithTrialPending(model.PlanPro, model.PeriodMonthly))
	testutil.TestCheckoutSession(t, db, user.ID,
		testutil.WithCheckoutType(model.CheckoutTypeTrial),
		testutil.WithCheckoutStatus(model.CheckoutStatusFulfilled),
		testutil.WithGatewaySession("cs_trial_1"))

	err := service.HandleCheckoutCompleted("cs_trial_1")
	require.NoError(t, err)

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, model.PlanTrial, updated.PlanType)
	assert.Equal(t, 30, updated.RequestsLimit)
	assert.False(t, updated.TrialPending)
	require.NotNil(t, updated.TrialEndDate)
}

func TestWebhookService_HandleCheckoutCompleted_FlexTopUp(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanLite, 100), testutil.WithUsage(90))
	testutil.TestCheckoutSession(t, db, user.ID,
		testutil.WithCheckoutType(model.CheckoutTypePayment),
		testutil.WithCheckoutStatus(model.CheckoutStatusFulfilled),
		testutil.WithGatewaySession("cs_flex_2"))

	err := service.HandleCheckoutCompleted("cs_flex_2")
	require.NoError(t, err)

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, 150, updated.RequestsLimit)
	assert.Equal(t, 90, updated.RequestsUsed, "加量不触碰已用量")
	assert.Equal(t, model.PlanLite, updated.PlanType)
}

func TestWebhookService_HandleCheckoutCompleted_UnknownSession(t *testing.T) {
	service, _, cleanup := setupWebhookService(t)
	defer cleanup()

	// 未知会话静默跳过，避免网关无限重试
	err := service.HandleCheckoutCompleted("cs_unknown")
	assert.NoError(t, err)
}

func TestWebhookService_HandleCheckoutCompleted_CreditsPartner(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	partner := testutil.TestPartner(t, db)
	testutil.TestPartnerCode(t, db, partner.ID, "SUMMER20")

	user := testutil.TestUser(t, db)
	session := testutil.TestCheckoutSession(t, db, user.ID,
		testutil.WithCheckoutStatus(model.CheckoutStatusFulfilled),
		testutil.WithGatewaySession("cs_ref_1"),
		testutil.WithReferral("SUMMER20", partner.ID))
	require.NoError(t, db.Model(session).Update("billing_period", model.PeriodMonthly).Error)

	require.NoError(t, service.HandleCheckoutCompleted("cs_ref_1"))

	var code model.PartnerCode
	require.NoError(t, db.Where("code = ?", "SUMMER20").First(&code).Error)
	assert.Equal(t, 1, code.Uses)
}

func TestWebhookService_HandleInvoicePaid_ResetsUsage(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db,
		testutil.WithPlan(model.PlanPro, 500),
		testutil.WithUsage(480),
		testutil.WithStripeCustomer("cus_cycle"))

	err := service.HandleInvoicePaid("cus_cycle", "subscription_cycle")
	require.NoError(t, err)

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, 0, updated.RequestsUsed)
	assert.Equal(t, 500, updated.RequestsLimit)
}

func TestWebhookService_HandleInvoicePaid_SkipsSubscriptionCreate(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db,
		testutil.WithPlan(model.PlanPro, 500),
		testutil.WithUsage(42),
		testutil.WithStripeCustomer("cus_create"))

	err := service.HandleInvoicePaid("cus_create", "subscription_create")
	require.NoError(t, err)

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, 42, updated.RequestsUsed, "首账单由结账完成事件处理")
}

func TestWebhookService_HandleInvoicePaid_ConvertsTrial(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	endDate := time.Now().AddDate(0, 0, 1)
	user := testutil.TestUser(t, db,
		testutil.WithActiveTrial(model.PlanPro, endDate),
		testutil.WithStripeCustomer("cus_trial"))
	require.NoError(t, db.Model(user).Update("selected_period", model.PeriodMonthly).Error)

	err := service.HandleInvoicePaid("cus_trial", "subscription_cycle")
	require.NoError(t, err)

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, model.PlanPro, updated.PlanType, "首个续费账单触发试用转正")
	assert.Equal(t, 500, updated.RequestsLimit)
	assert.Equal(t, 0, updated.RequestsUsed)
	assert.Nil(t, updated.TrialEndDate)
}

func TestWebhookService_HandleInvoicePaid_UnknownCustomer(t *testing.T) {
	service, _, cleanup := setupWebhookService(t)
	defer cleanup()

	err := service.HandleInvoicePaid("cus_unknown", "subscription_cycle")
	assert.NoError(t, err)
}

func TestWebhookService_HandleSubscriptionDeleted(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db,
		testutil.WithPlan(model.PlanPro, 500),
		testutil.WithUsage(200),
		testutil.WithStripeCustomer("cus_gone"))

	err := service.HandleSubscriptionDeleted("cus_gone")
	require.NoError(t, err)

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, model.PlanFree, updated.PlanType)
	assert.Equal(t, 3, updated.RequestsLimit)
	assert.Equal(t, 0, updated.RequestsUsed)
}

func TestWebhookService_HandleSubscriptionDeleted_UnknownCustomer(t *testing.T) {
	service, _, cleanup := setupWebhookService(t)
	defer cleanup()

	err := service.HandleSubscriptionDeleted("cus_unknown")
	assert.NoError(t, err)
}

func TestWebhookService_HandleCheckoutExpired_RejectsAndCancelsTrial(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithTrialPending(model.PlanPro, model.PeriodMonthly))
	session := testutil.TestCheckoutSession(t, db, user.ID,
		testutil.WithCheckoutType(model.CheckoutTypeTrial),
		testutil.WithGatewaySession("cs_exp_1"))

	err := service.HandleCheckoutExpired("cs_exp_1")
	require.NoError(t, err)

	var row model.CheckoutSession
	require.NoError(t, db.First(&row, session.ID).Error)
	assert.Equal(t, model.CheckoutStatusRejected, row.Status)

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.False(t, updated.TrialPending)
	assert.True(t, updated.HasUsedTrial)
}

func TestWebhookService_HandleCheckoutExpired_FulfilledRowUntouched(t *testing.T) {
	service, db, cleanup := setupWebhookService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	session := testutil.TestCheckoutSession(t, db, user.ID,
		testutil.WithCheckoutStatus(model.CheckoutStatusFulfilled),
		testutil.WithGatewaySession("cs_exp_2"))

	err := service.HandleCheckoutExpired("cs_exp_2")
	require.NoError(t, err)

	var row model.CheckoutSession
	require.NoError(t, db.First(&row, session.ID).Error)
	assert.Equal(t, model.CheckoutStatusFulfilled, row.Status)
}

func TestWebhookService_HandleCheckoutExpired_UnknownSession(t *testing.T) {
	service, _, cleanup := setupWebhookService(t)
	defer cleanup()

	err := service.HandleCheckoutExpired("cs_missing")
	assert.NoError(t, err)
}

package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/testutil"
)

func TestUserRepository_IncrementRequestsUsed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanPro, 500), testutil.WithUsage(10))

	err := repo.IncrementRequestsUsed(user.ID, 3)
	require.NoError(t, err)

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, updated.RequestsUsed)
}

func TestUserRepository_IncrementRequestsUsed_Concurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanPro, 500))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.IncrementRequestsUsed(user.ID, 1)
		}()
	}
	wg.Wait()

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.RequestsUsed)
}

func TestUserRepository_AddFlexRequests(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanLite, 100), testutil.WithUsage(80))

	err := repo.AddFlexRequests(user.ID, 50)
	require.NoError(t, err)

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, updated.RequestsLimit)
	assert.Equal(t, 80, updated.RequestsUsed, "加量不应触碰已用量")
	assert.Equal(t, model.PlanLite, updated.PlanType, "加量不应改变套餐")
}

func TestUserRepository_ApplyPlan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	endDate := time.Now().AddDate(0, 0, 5)
	user := testutil.TestUser(t, db,
		testutil.WithActiveTrial(model.PlanPro, endDate),
		testutil.WithUsage(42))

	err := repo.ApplyPlan(user.ID, model.PlanPro, model.PeriodMonthly, 500)
	require.NoError(t, err)

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, updated.PlanType)
	assert.Equal(t, model.PeriodMonthly, updated.BillingPeriod)
	assert.Equal(t, 500, updated.RequestsLimit)
	assert.Equal(t, 0, updated.RequestsUsed)
	assert.Nil(t, updated.TrialEndDate)
}

func TestUserRepository_ResetUsage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanLite, 100), testutil.WithUsage(99))

	err := repo.ResetUsage(user.ID)
	require.NoError(t, err)

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.RequestsUsed)
	assert.Equal(t, 100, updated.RequestsLimit)
}

func TestUserRepository_MarkTrialPending_FromFree(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db)

	marked, err := repo.MarkTrialPending(user.ID, model.PlanPro, model.PeriodYearly)
	require.NoError(t, err)
	assert.True(t, marked)

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.True(t, updated.TrialPending)
	assert.Equal(t, model.PlanPro, updated.SelectedPlan)
	assert.Equal(t, model.PeriodYearly, updated.SelectedPeriod)
	assert.Equal(t, model.PlanFree, updated.PlanType, "标记阶段不改变套餐")
}

func TestUserRepository_MarkTrialPending_NotFree(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanPro, 500))

	marked, err := repo.MarkTrialPending(user.ID, model.PlanPro, model.PeriodMonthly)
	require.NoError(t, err)
	assert.False(t, marked)

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.False(t, updated.TrialPending, "付费套餐下不应产生任何副作用")
	assert.Empty(t, updated.SelectedPlan)
}

func TestUserRepository_ActivateTrial(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db,
		testutil.WithTrialPending(model.PlanPro, model.PeriodMonthly),
		testutil.WithUsage(2))

	endDate := time.Now().AddDate(0, 0, 5)
	activated, err := repo.ActivateTrial(user.ID, 30, endDate)
	require.NoError(t, err)
	assert.True(t, activated)

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanTrial, updated.PlanType)
	assert.Equal(t, 30, updated.RequestsLimit)
	assert.Equal(t, 0, updated.RequestsUsed)
	assert.True(t, updated.HasUsedTrial)
	assert.False(t, updated.TrialPending)
	require.NotNil(t, updated.TrialEndDate)
}

func TestUserRepository_ActivateTrial_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithTrialPending(model.PlanPro, model.PeriodMonthly))

	endDate := time.Now().AddDate(0, 0, 5)
	activated, err := repo.ActivateTrial(user.ID, 30, endDate)
	require.NoError(t, err)
	assert.True(t, activated)

	// 重复激活不命中
	activated, err = repo.ActivateTrial(user.ID, 30, endDate)
	require.NoError(t, err)
	assert.False(t, activated)
}

func TestUserRepository_ActivateTrial_NotPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db)

	activated, err := repo.ActivateTrial(user.ID, 30, time.Now().AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.False(t, activated)
}

func TestUserRepository_ClearTrialPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithTrialPending(model.PlanPro, model.PeriodMonthly))

	err := repo.ClearTrialPending(user.ID)
	require.NoError(t, err)

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.False(t, updated.TrialPending)
	assert.Empty(t, updated.SelectedPlan)
	assert.Empty(t, updated.SelectedPeriod)
	assert.True(t, updated.HasUsedTrial, "取消结账不回退试用资格")
}

func TestUserRepository_ListExpiredTrials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	expired := testutil.TestUser(t, db, testutil.WithActiveTrial(model.PlanPro, time.Now().Add(-time.Hour)))
	testutil.TestUser(t, db, testutil.WithActiveTrial(model.PlanPro, time.Now().Add(24*time.Hour)))
	testutil.TestUser(t, db)

	users, err := repo.ListExpiredTrials(time.Now())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, expired.ID, users[0].ID)
}

func TestUserRepository_GetByStripeCustomerID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithStripeCustomer("cus_abc123"))

	found, err := repo.GetByStripeCustomerID("cus_abc123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.GetByStripeCustomerID("cus_missing")
	assert.Error(t, err)
}
